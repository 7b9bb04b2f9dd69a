package trellis

import "fmt"

// Instance resolves the key of T with type safety.
func Instance[T any](inj *Injector, name ...Name) (T, error) {
	return InstanceFor[T](inj, KeyOf[T](name...))
}

// InstanceFor resolves an arbitrary key and asserts its type.
func InstanceFor[T any](inj *Injector, key Key) (T, error) {
	var zero T

	instance, err := inj.GetInstance(key)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errTypeMismatch(key, instance)
	}

	return typed, nil
}

// MustInstance resolves or panics - use only during startup.
func MustInstance[T any](inj *Injector, name ...Name) T {
	instance, err := Instance[T](inj, name...)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", KeyOf[T](name...), err))
	}

	return instance
}

// InstanceOrNil resolves the key of T, returning the zero T when it is
// unbound, refused or of another type.
func InstanceOrNil[T any](inj *Injector, name ...Name) T {
	typed, _ := inj.GetInstanceOrNil(KeyOf[T](name...)).(T)

	return typed
}

// InstanceOr resolves the key of T, falling back to def.
func InstanceOr[T any](inj *Injector, def T, name ...Name) T {
	typed, ok := inj.GetInstanceOrNil(KeyOf[T](name...)).(T)
	if !ok {
		return def
	}

	return typed
}

// NewInstance creates a fresh T, reusing cached dependencies.
func NewInstance[T any](inj *Injector, name ...Name) (T, error) {
	var zero T

	key := KeyOf[T](name...)

	instance, err := inj.CreateInstance(key)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errTypeMismatch(key, instance)
	}

	return typed, nil
}

// PeekInstance returns the cached T without constructing it.
func PeekInstance[T any](inj *Injector, name ...Name) (T, bool) {
	typed, ok := inj.PeekInstance(KeyOf[T](name...)).(T)

	return typed, ok
}
