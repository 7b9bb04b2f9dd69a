package trellis

import "go.uber.org/multierr"

// Module collects bindings per scope together with the generators and
// transformers that complete them. Modules are plain configuration: Compile
// copies them, so one module can feed several injectors.
type Module struct {
	bindings     *BindingTree
	generators   *GeneratorChain
	transformers *TransformerChain
	middleware   []Middleware
	errs         []error
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{
		bindings:     NewBindingTree(),
		generators:   NewGeneratorChain(),
		transformers: NewTransformerChain(),
	}
}

// Bind binds key to a binding in the scope given by the path, the root when
// the path is empty. The caller's location is attached unless the binding
// already has one.
//
// Example:
//
//	m := trellis.NewModule().
//	    Bind(trellis.KeyOf[*Config](), trellis.ToInstance(cfg)).
//	    Bind(trellis.KeyOf[*Session](), trellis.To(NewSession), RequestScope)
func (m *Module) Bind(key Key, binding *Binding, scope ...Scope) *Module {
	if binding.Location() == nil {
		binding = binding.At(CallerLocation(1))
	}

	m.put(key, Concrete(binding), scope)

	return m
}

// BindInstance binds key to a fixed value.
func (m *Module) BindInstance(key Key, instance any, scope ...Scope) *Module {
	return m.Bind(key, ToInstance(instance).At(CallerLocation(1)), scope...)
}

// Generate asks for key to be bound by the generator chain. Compile fails if
// no generator answers.
func (m *Module) Generate(key Key, scope ...Scope) *Module {
	m.put(key, PendingGeneration(CallerLocation(1)), scope)

	return m
}

// DeclareScope makes a scope path enterable even when nothing is bound in it.
func (m *Module) DeclareScope(scope ...Scope) *Module {
	m.node(scope)

	return m
}

// Generator registers a generator for keys whose constructor is raw or
// inherits from it.
func (m *Module) Generator(raw *Type, g BindingGenerator) *Module {
	m.generators.Register(raw, g)

	return m
}

// Transformer registers a transformer at a priority. Lower priorities run first.
func (m *Module) Transformer(priority int, t BindingTransformer) *Module {
	m.transformers.Register(priority, t)

	return m
}

// Use adds middleware around every factory call of the compiled injector.
func (m *Module) Use(middleware ...Middleware) *Module {
	m.middleware = append(m.middleware, middleware...)

	return m
}

// Install merges other modules into this one. Binding one key twice in the
// same scope is reported by Err and by Compile.
func (m *Module) Install(others ...*Module) *Module {
	for _, other := range others {
		other.bindings.Walk(func(path []Scope, node *BindingTree) {
			target := m.node(path)
			for key, slot := range node.Get() {
				m.putSlot(target, key, slot, path)
			}
		})

		m.generators.Merge(other.generators)
		m.transformers.Merge(other.transformers)
		m.middleware = append(m.middleware, other.middleware...)
		m.errs = append(m.errs, other.errs...)
	}

	return m
}

// ModuleBinding holds one binding for batch registration.
type ModuleBinding struct {
	Key     Key
	Binding *Binding
	Scope   []Scope
}

// Provide creates a ModuleBinding for BindAll.
func Provide(key Key, binding *Binding, scope ...Scope) ModuleBinding {
	if binding.Location() == nil {
		binding = binding.At(CallerLocation(1))
	}

	return ModuleBinding{Key: key, Binding: binding, Scope: scope}
}

// BindAll binds several entries in one call.
//
// Example:
//
//	m.BindAll(
//	    trellis.Provide(DatabaseKey, trellis.To(NewDatabase)),
//	    trellis.Provide(CacheKey, trellis.To(NewCache)),
//	)
func (m *Module) BindAll(entries ...ModuleBinding) *Module {
	for _, e := range entries {
		m.Bind(e.Key, e.Binding, e.Scope...)
	}

	return m
}

// Bindings returns the binding tree of the module.
func (m *Module) Bindings() *BindingTree { return m.bindings }

// Generators returns the generator chain.
func (m *Module) Generators() *GeneratorChain { return m.generators }

// Transformers returns the transformer chain.
func (m *Module) Transformers() *TransformerChain { return m.transformers }

// Middleware returns the middleware added with Use.
func (m *Module) Middleware() []Middleware {
	return append([]Middleware(nil), m.middleware...)
}

// Err returns every authoring error recorded so far.
func (m *Module) Err() error {
	return multierr.Combine(m.errs...)
}

func (m *Module) node(path []Scope) *BindingTree {
	node := m.bindings
	for _, s := range path {
		node = node.ComputeIfAbsent(s, func() BindingTable { return BindingTable{} })
	}

	return node
}

func (m *Module) put(key Key, slot Slot, scope []Scope) {
	m.putSlot(m.node(scope), key, slot, scope)
}

func (m *Module) putSlot(node *BindingTree, key Key, slot Slot, scope []Scope) {
	table := node.Get()
	if existing, ok := table[key]; ok {
		m.errs = append(m.errs, errDuplicateBinding(key, scope, existing.location, slot.location))

		return
	}

	table[key] = slot
}
