package trellis

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Raw constructors answered by the default generators.
var (
	ProviderType = NewType("trellis.Provider")
	FactoryType  = NewType("trellis.Factory")
)

// ProviderKey returns the key of the provider handle for target.
func ProviderKey(target Key) Key {
	return NewKey(Parameterized(ProviderType, target.Type()), target.Name())
}

// FactoryKey returns the key of the factory handle for target.
func FactoryKey(target Key) Key {
	return NewKey(Parameterized(FactoryType, target.Type()), target.Name())
}

// InstanceProvider resolves its key on first access through the injector
// that created it. The target is only validated at compile time, not
// constructed together with the provider.
type InstanceProvider struct {
	injector *Injector
	key      Key
	once     sync.Once
	value    any
	err      error
	resolved atomic.Bool
}

// Get resolves the instance and returns it.
// The resolution happens only once; subsequent calls return the cached value.
// Factories may call Get on handles they receive while they are running.
func (p *InstanceProvider) Get() (any, error) {
	p.once.Do(func() {
		p.value, p.err = p.injector.GetInstance(p.key)
		p.resolved.Store(p.err == nil)
	})

	return p.value, p.err
}

// IsResolved returns true if the instance has been resolved.
// It is safe to call while another goroutine runs Get.
func (p *InstanceProvider) IsResolved() bool { return p.resolved.Load() }

// Key returns the key the provider resolves.
func (p *InstanceProvider) Key() Key { return p.key }

// InstanceFactory constructs a fresh instance of its key on every call.
type InstanceFactory struct {
	injector *Injector
	key      Key
}

// Create constructs a new instance.
func (f *InstanceFactory) Create() (any, error) {
	return f.injector.CreateInstance(f.key)
}

// Key returns the key the factory constructs.
func (f *InstanceFactory) Key() Key { return f.key }

// handleGenerator answers keys of a handle constructor applied to a target type.
func handleGenerator(build func(inj *Injector, target Key) any) BindingGenerator {
	return GeneratorFunc(func(_ []Scope, key Key) *Binding {
		target := key.Type().Arg(0)
		if target == nil {
			return nil
		}

		targetKey := NewKey(target, key.Name())

		return NewBinding(func(args []any) (any, error) {
			inj, ok := args[0].(*Injector)
			if !ok {
				return nil, fmt.Errorf("handle for %s: injector not available", targetKey)
			}

			return build(inj, targetKey), nil
		}, Require(InjectorKey), Implicit(targetKey))
	})
}

// DefaultModule registers the generators for provider and factory handles.
// Compile installs it automatically.
func DefaultModule() *Module {
	return NewModule().
		Generator(ProviderType, handleGenerator(func(inj *Injector, target Key) any {
			return &InstanceProvider{injector: inj, key: target}
		})).
		Generator(FactoryType, handleGenerator(func(inj *Injector, target Key) any {
			return &InstanceFactory{injector: inj, key: target}
		}))
}

// Lazy is a typed view of an InstanceProvider.
type Lazy[T any] struct {
	provider *InstanceProvider
}

// LazyOf resolves the provider for T.
//
// Usage:
//
//	cache, err := trellis.LazyOf[*Cache](inj)
//	...
//	c, err := cache.Get() // constructed here
func LazyOf[T any](inj *Injector, name ...Name) (*Lazy[T], error) {
	p, err := InstanceFor[*InstanceProvider](inj, ProviderKey(KeyOf[T](name...)))
	if err != nil {
		return nil, err
	}

	return &Lazy[T]{provider: p}, nil
}

// Get resolves the dependency and returns it.
func (l *Lazy[T]) Get() (T, error) {
	var zero T

	instance, err := l.provider.Get()
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errTypeMismatch(l.provider.key, instance)
	}

	return typed, nil
}

// MustGet resolves the dependency and returns it, panicking on error.
func (l *Lazy[T]) MustGet() T {
	value, err := l.Get()
	if err != nil {
		panic(fmt.Sprintf("lazy dependency %s failed: %v", l.provider.key, err))
	}

	return value
}

// IsResolved returns true if the dependency has been resolved.
func (l *Lazy[T]) IsResolved() bool { return l.provider.IsResolved() }
