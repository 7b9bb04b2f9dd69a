package trellis

import "sort"

// BindingTransformer rewrites a binding, typically to wrap its factory.
// Declining is signalled by returning the very same *Binding; returning a
// new value, even an identical-looking one, counts as a transformation.
type BindingTransformer interface {
	Transform(scope []Scope, key Key, binding *Binding) *Binding
}

// TransformerFunc adapts a function to BindingTransformer.
type TransformerFunc func(scope []Scope, key Key, binding *Binding) *Binding

// Transform implements BindingTransformer.
func (f TransformerFunc) Transform(scope []Scope, key Key, binding *Binding) *Binding {
	return f(scope, key, binding)
}

// TransformerChain groups transformers by priority and applies the groups
// from low to high priority.
type TransformerChain struct {
	groups map[int][]BindingTransformer
}

// NewTransformerChain creates an empty chain, which is the identity.
func NewTransformerChain() *TransformerChain {
	return &TransformerChain{groups: make(map[int][]BindingTransformer)}
}

// Register adds a transformer at a priority.
func (c *TransformerChain) Register(priority int, t BindingTransformer) {
	c.groups[priority] = append(c.groups[priority], t)
}

// Merge adds every transformer of other.
func (c *TransformerChain) Merge(other *TransformerChain) {
	for p, ts := range other.groups {
		c.groups[p] = append(c.groups[p], ts...)
	}
}

// Len returns the number of registered transformers.
func (c *TransformerChain) Len() int {
	n := 0
	for _, ts := range c.groups {
		n += len(ts)
	}

	return n
}

func (c *TransformerChain) priorities() []int {
	ps := make([]int, 0, len(c.groups))
	for p := range c.groups {
		ps = append(ps, p)
	}

	sort.Ints(ps)

	return ps
}

// Transform feeds the binding through every priority group. Within a group
// at most one transformer may change it.
func (c *TransformerChain) Transform(scope []Scope, key Key, binding *Binding) (*Binding, error) {
	current := binding

	for _, p := range c.priorities() {
		var changed *Binding

		for _, t := range c.groups[p] {
			result := t.Transform(scope, key, current)
			if result == nil || result == current {
				continue
			}

			if changed != nil {
				return nil, errAmbiguousTransformer(key, p)
			}

			changed = result
		}

		if changed != nil {
			current = changed
		}
	}

	return current, nil
}
