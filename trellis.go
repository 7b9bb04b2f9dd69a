// Package trellis is a dependency-injection runtime built around a scope
// tree of bindings.
//
// A Module declares, per scope, how to construct a value for a Key and which
// other keys that needs. Compile completes the tree with generated bindings,
// runs every binding through the transformer chain, and validates it: every
// required dependency must be bound in the scope chain of the binding needing
// it, and no scope may contain a dependency cycle. Only a fully validated
// tree produces an Injector, which then constructs instances on demand and
// caches them per scope level.
package trellis

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Compile combines the modules and compiles them into a root injector.
//
// Example:
//
//	inj, err := trellis.Compile(appModule, requestModule)
//	if err != nil {
//	    log.Fatal(err) // every unsatisfied dependency and cycle at once
//	}
//	svc, err := trellis.Instance[*UserService](inj)
func Compile(modules ...*Module) (*Injector, error) {
	return CompileWith(nil, modules...)
}

// CompileWith is Compile with options.
func CompileWith(opts []Option, modules ...*Module) (*Injector, error) {
	cfg := defaultCompileConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	module := NewModule().Install(DefaultModule()).Install(modules...)
	if err := module.Err(); err != nil {
		cfg.logger.Warn("module configuration rejected", zap.Error(err))

		return nil, err
	}

	if len(module.middleware) > 0 {
		module.Transformer(MiddlewarePriority, Interceptor(module.middleware...))
	}

	var scope []Scope
	if cfg.parent != nil {
		scope = cfg.parent.Scope()
	}

	tree := module.Bindings()
	inj := newInjector(cfg.parent, scope, tree, cfg.cache, cfg.threadsafe, cfg.logger)

	// the injector is always bound to itself
	tree.Get()[InjectorKey] = Concrete(ToInstance(inj))

	known := knownFrom(cfg.parent)

	if err := complete(tree, known, module.Generators(), module.Transformers()); err != nil {
		cfg.logger.Warn("binding graph completion failed", zap.Error(err))

		return nil, err
	}

	if err := Validate(tree, known); err != nil {
		cfg.logger.Warn("binding graph validation failed", zap.Error(err))

		return nil, err
	}

	cfg.logger.Debug("injector compiled",
		zap.Int("scopes", countNodes(tree)),
		zap.Int("bindings", countBindings(tree)),
		zap.Int("generators", module.Generators().Len()),
		zap.Int("transformers", module.Transformers().Len()),
	)

	return inj, nil
}

// Validate runs both whole-tree checks and combines their diagnostics.
// The result unwraps to *UnsatisfiedDependenciesError and/or
// *CyclicDependenciesError.
func Validate(tree *BindingTree, known map[Key]struct{}) error {
	var errs []error

	if missing := UnsatisfiedDependencies(tree, known); len(missing) > 0 {
		errs = append(errs, &UnsatisfiedDependenciesError{Missing: missing})
	}

	if cycles := CyclicDependencies(tree); len(cycles) > 0 {
		errs = append(errs, &CyclicDependenciesError{Cycles: cycles})
	}

	return multierr.Combine(errs...)
}

// knownFrom returns every key visible to a parent injector.
func knownFrom(parent *Injector) map[Key]struct{} {
	known := make(map[Key]struct{})

	for inj := parent; inj != nil; inj = inj.parent {
		for key := range inj.node.Get() {
			known[key] = struct{}{}
		}
	}

	return known
}

func countNodes(tree *BindingTree) int {
	n := 0
	tree.Walk(func([]Scope, *BindingTree) { n++ })

	return n
}

func countBindings(tree *BindingTree) int {
	n := 0
	tree.Walk(func(_ []Scope, node *BindingTree) { n += len(node.Get()) })

	return n
}
