package trellis

// BindingGenerator supplies a binding for a key nobody bound explicitly.
// Generators must be pure; returning nil declines.
type BindingGenerator interface {
	Generate(scope []Scope, key Key) *Binding
}

// GeneratorFunc adapts a function to BindingGenerator.
type GeneratorFunc func(scope []Scope, key Key) *Binding

// Generate implements BindingGenerator.
func (f GeneratorFunc) Generate(scope []Scope, key Key) *Binding {
	return f(scope, key)
}

// GeneratorChain holds generators registered per raw type constructor.
type GeneratorChain struct {
	generators map[*Type][]BindingGenerator
}

// NewGeneratorChain creates an empty chain, which refuses everything.
func NewGeneratorChain() *GeneratorChain {
	return &GeneratorChain{generators: make(map[*Type][]BindingGenerator)}
}

// Register adds a generator for keys whose type constructor is raw or one of
// its descendants.
func (c *GeneratorChain) Register(raw *Type, g BindingGenerator) {
	raw = raw.Raw()
	c.generators[raw] = append(c.generators[raw], g)
}

// Merge adds every generator of other.
func (c *GeneratorChain) Merge(other *GeneratorChain) {
	for raw, gs := range other.generators {
		c.generators[raw] = append(c.generators[raw], gs...)
	}
}

// Len returns the number of registered generators.
func (c *GeneratorChain) Len() int {
	n := 0
	for _, gs := range c.generators {
		n += len(gs)
	}

	return n
}

// lookup walks from the requested constructor to the closest one with
// registered generators. Interfaces only match exactly.
func (c *GeneratorChain) lookup(t *Type) []BindingGenerator {
	raw := t.Raw()
	if raw.iface {
		return c.generators[raw]
	}

	for current := raw; current != nil; current = current.super {
		if gs, ok := c.generators[current]; ok {
			return gs
		}
	}

	return nil
}

// Generate asks every generator registered for the closest constructor.
// It returns nil when none answers and an error when more than one does.
func (c *GeneratorChain) Generate(scope []Scope, key Key) (*Binding, error) {
	var found []*Binding

	for _, g := range c.lookup(key.Type()) {
		if b := g.Generate(scope, key); b != nil {
			found = append(found, b)
		}
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, errAmbiguousGenerator(key, len(found))
	}
}
