package trellis

// Dependency is a Key a binding needs, plus how badly it needs it.
type Dependency struct {
	Key Key

	// Required dependencies must be bound somewhere in the visible scope
	// chain. Optional ones resolve to nil when unbound.
	Required bool

	// Implicit dependencies are validated like required ones but are
	// neither resolved before the factory runs nor followed by the cycle
	// scan. Providers use them to stay lazy.
	Implicit bool
}

// Require creates a required dependency.
//
// Usage:
//
//	trellis.To1(NewUserService, trellis.Require(trellis.KeyOf[*Database]()))
func Require(key Key) Dependency {
	return Dependency{Key: key, Required: true}
}

// Optional creates a dependency that resolves to nil when nothing binds it.
func Optional(key Key) Dependency {
	return Dependency{Key: key}
}

// Implicit creates a required dependency that is never resolved eagerly.
func Implicit(key Key) Dependency {
	return Dependency{Key: key, Required: true, Implicit: true}
}

// String returns the display form of the dependency.
func (d Dependency) String() string {
	switch {
	case d.Implicit:
		return "~" + d.Key.String()
	case d.Required:
		return d.Key.String()
	default:
		return d.Key.String() + "?"
	}
}

// DependencyKeys extracts the keys of dependencies.
func DependencyKeys(deps []Dependency) []Key {
	keys := make([]Key, len(deps))
	for i, d := range deps {
		keys[i] = d.Key
	}

	return keys
}
