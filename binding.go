package trellis

import (
	"fmt"
	"strings"
)

// Factory builds an instance from the resolved dependency values, passed in
// declaration order. Returning (nil, nil) means the binding refused to
// construct.
type Factory func(args []any) (any, error)

// Binding is an immutable recipe: ordered dependencies plus a factory.
// Every combinator returns a new Binding, so bindings can be shared between
// modules and between generation attempts.
type Binding struct {
	dependencies []Dependency
	factory      Factory
	location     *Location
}

// NewBinding creates a binding from a factory and its dependencies.
func NewBinding(factory Factory, deps ...Dependency) *Binding {
	return &Binding{
		dependencies: append([]Dependency(nil), deps...),
		factory:      factory,
	}
}

// ToInstance binds a fixed value.
func ToInstance[T any](instance T) *Binding {
	return NewBinding(func([]any) (any, error) {
		return instance, nil
	})
}

// To binds a factory without dependencies.
func To[R any](fn func() (R, error)) *Binding {
	return NewBinding(func([]any) (any, error) {
		return fn()
	})
}

// To1 binds a one-argument constructor.
//
// Usage:
//
//	trellis.To1(NewUserService, trellis.Require(trellis.KeyOf[*Database]()))
func To1[T1, R any](fn func(T1) (R, error), d1 Dependency) *Binding {
	return NewBinding(func(args []any) (any, error) {
		return fn(arg[T1](args, 0))
	}, d1)
}

// To2 binds a two-argument constructor.
func To2[T1, T2, R any](fn func(T1, T2) (R, error), d1, d2 Dependency) *Binding {
	return NewBinding(func(args []any) (any, error) {
		return fn(arg[T1](args, 0), arg[T2](args, 1))
	}, d1, d2)
}

// To3 binds a three-argument constructor.
func To3[T1, T2, T3, R any](fn func(T1, T2, T3) (R, error), d1, d2, d3 Dependency) *Binding {
	return NewBinding(func(args []any) (any, error) {
		return fn(arg[T1](args, 0), arg[T2](args, 1), arg[T3](args, 2))
	}, d1, d2, d3)
}

// To4 binds a four-argument constructor.
func To4[T1, T2, T3, T4, R any](fn func(T1, T2, T3, T4) (R, error), d1, d2, d3, d4 Dependency) *Binding {
	return NewBinding(func(args []any) (any, error) {
		return fn(arg[T1](args, 0), arg[T2](args, 1), arg[T3](args, 2), arg[T4](args, 3))
	}, d1, d2, d3, d4)
}

// Alias binds a key to whatever another key resolves to.
func Alias(target Key) *Binding {
	return NewBinding(func(args []any) (any, error) {
		return args[0], nil
	}, Require(target))
}

// arg returns args[i] as T, or the zero T for a nil optional slot.
func arg[T any](args []any, i int) T {
	v, ok := args[i].(T)
	if !ok {
		var zero T

		return zero
	}

	return v
}

// Dependencies returns a copy of the dependency list.
func (b *Binding) Dependencies() []Dependency {
	return append([]Dependency(nil), b.dependencies...)
}

// Location returns the authoring location, nil when unknown.
func (b *Binding) Location() *Location {
	if b == nil {
		return nil
	}

	return b.location
}

// Create runs the factory.
func (b *Binding) Create(args []any) (any, error) {
	return b.factory(args)
}

// At returns a copy of the binding attached to a location.
func (b *Binding) At(location *Location) *Binding {
	return &Binding{dependencies: b.dependencies, factory: b.factory, location: location}
}

// MapInstance returns a binding whose instance is fn applied to the original.
// A nil instance is passed through without calling fn.
func (b *Binding) MapInstance(fn func(instance any) (any, error)) *Binding {
	factory := b.factory

	return &Binding{
		dependencies: b.dependencies,
		factory: func(args []any) (any, error) {
			instance, err := factory(args)
			if err != nil || instance == nil {
				return instance, err
			}

			return fn(instance)
		},
		location: b.location,
	}
}

// OnInstance returns a binding that calls fn on every created instance.
func (b *Binding) OnInstance(fn func(instance any)) *Binding {
	return b.MapInstance(func(instance any) (any, error) {
		fn(instance)

		return instance, nil
	})
}

// OnDependencies returns a binding that observes the resolved arguments
// before the factory runs.
func (b *Binding) OnDependencies(fn func(args []any)) *Binding {
	factory := b.factory

	return &Binding{
		dependencies: b.dependencies,
		factory: func(args []any) (any, error) {
			fn(args)

			return factory(args)
		},
		location: b.location,
	}
}

// MapDependency returns a binding that replaces the resolved value of every
// position holding dependency before calling the factory. It panics when the
// binding does not depend on that key, like any other authoring mistake.
func (b *Binding) MapDependency(dependency Key, fn func(value any) any) *Binding {
	var positions []int

	for i, d := range b.dependencies {
		if d.Key == dependency {
			positions = append(positions, i)
		}
	}

	if len(positions) == 0 {
		panic(fmt.Sprintf("binding %s does not depend on %s", b, dependency))
	}

	factory := b.factory

	return &Binding{
		dependencies: b.dependencies,
		factory: func(args []any) (any, error) {
			mapped := fn(args[positions[0]])

			copied := append([]any(nil), args...)
			for _, p := range positions {
				copied[p] = mapped
			}

			return factory(copied)
		},
		location: b.location,
	}
}

// OnDependency returns a binding that observes one dependency value.
func (b *Binding) OnDependency(dependency Key, fn func(value any)) *Binding {
	return b.MapDependency(dependency, func(value any) any {
		fn(value)

		return value
	})
}

// RebindDependency returns a binding that takes the value of from out of to.
func (b *Binding) RebindDependency(from, to Key) *Binding {
	deps := make([]Dependency, len(b.dependencies))
	for i, d := range b.dependencies {
		if d.Key == from {
			d.Key = to
		}

		deps[i] = d
	}

	return &Binding{dependencies: deps, factory: b.factory, location: b.location}
}

// AddDependencies returns a binding with extra trailing dependencies. Their
// values are resolved but not passed to the original factory.
func (b *Binding) AddDependencies(deps ...Dependency) *Binding {
	if len(deps) == 0 {
		return b
	}

	combined := make([]Dependency, 0, len(b.dependencies)+len(deps))
	combined = append(combined, b.dependencies...)
	combined = append(combined, deps...)

	n := len(b.dependencies)
	factory := b.factory

	return &Binding{
		dependencies: combined,
		factory: func(args []any) (any, error) {
			return factory(args[:n:n])
		},
		location: b.location,
	}
}

// Initialize returns a binding that resolves extra dependencies and hands
// them to fn together with each created instance.
func (b *Binding) Initialize(fn func(instance any, extra []any) error, deps ...Dependency) *Binding {
	n := len(b.dependencies)
	extended := b.AddDependencies(deps...)
	factory := b.factory

	return &Binding{
		dependencies: extended.dependencies,
		factory: func(args []any) (any, error) {
			instance, err := factory(args[:n:n])
			if err != nil || instance == nil {
				return instance, err
			}

			if err := fn(instance, args[n:]); err != nil {
				return nil, err
			}

			return instance, nil
		},
		location: b.location,
	}
}

// String renders the dependency list.
func (b *Binding) String() string {
	parts := make([]string, len(b.dependencies))
	for i, d := range b.dependencies {
		parts[i] = d.String()
	}

	return "[" + strings.Join(parts, ", ") + "]"
}
