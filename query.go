package trellis

import (
	"sort"
	"strings"
)

// BindingInfo describes one compiled binding.
type BindingInfo struct {
	Key          Key
	Scope        []Scope
	Dependencies []Dependency
	Location     *Location

	// Instantiated reports whether the injector of the binding's scope has
	// a cached instance. Bindings below the inspected injector have no
	// injector yet and are never instantiated.
	Instantiated bool
}

// ScopePath returns the display form of the binding's scope.
func (b BindingInfo) ScopePath() string { return ScopePath(b.Scope) }

// Inspect returns the binding that resolves key from this injector,
// searching the parent chain. ok is false when nothing binds the key.
func (i *Injector) Inspect(key Key) (BindingInfo, bool) {
	for current := i; current != nil; current = current.parent {
		binding := current.node.Get().Binding(key)
		if binding == nil {
			continue
		}

		return BindingInfo{
			Key:          key,
			Scope:        current.Scope(),
			Dependencies: binding.Dependencies(),
			Location:     binding.Location(),
			Instantiated: current.HasInstance(key),
		}, true
	}

	return BindingInfo{}, false
}

// BindingQuery defines criteria for querying bindings.
type BindingQuery struct {
	// Scope filters by scope path display, "()" for the root.
	// Empty string matches all scopes.
	Scope string

	// Name filters by the key's qualifier display.
	// Empty string matches all keys, named or not.
	Name string

	// Type filters by raw type constructor.
	// nil matches all types.
	Type *Type

	// Instantiated filters by whether an instance is cached.
	// nil matches all bindings.
	Instantiated *bool
}

// Query returns every binding of the injector's level and the scopes
// declared below it that matches the query, ordered by scope then key.
//
// Example:
//
//	// Find every binding of the request scope
//	results := trellis.Query(inj, trellis.BindingQuery{Scope: "@request"})
func Query(inj *Injector, query BindingQuery) []BindingInfo {
	var results []BindingInfo

	inj.node.Walk(func(path []Scope, node *BindingTree) {
		scope := append(inj.Scope(), path...)
		if query.Scope != "" && ScopePath(scope) != query.Scope {
			return
		}

		local := node.Get()
		for _, key := range local.Keys() {
			binding := local.Binding(key)
			if binding == nil {
				continue
			}

			info := BindingInfo{
				Key:          key,
				Scope:        scope,
				Dependencies: binding.Dependencies(),
				Location:     binding.Location(),
				Instantiated: len(path) == 0 && inj.HasInstance(key),
			}

			if query.matches(info) {
				results = append(results, info)
			}
		}
	})

	sort.SliceStable(results, func(a, b int) bool {
		pa, pb := results[a].ScopePath(), results[b].ScopePath()
		if pa != pb {
			return pa < pb
		}

		return results[a].Key.String() < results[b].Key.String()
	})

	return results
}

func (q BindingQuery) matches(info BindingInfo) bool {
	if q.Name != "" && (info.Key.Name() == nil || info.Key.Name().String() != q.Name) {
		return false
	}

	if q.Type != nil && info.Key.RawType() != q.Type.Raw() {
		return false
	}

	if q.Instantiated != nil && info.Instantiated != *q.Instantiated {
		return false
	}

	return true
}

// QueryKeys returns the keys of bindings matching the query criteria.
func QueryKeys(inj *Injector, query BindingQuery) []Key {
	results := Query(inj, query)

	keys := make([]Key, len(results))
	for i, info := range results {
		keys[i] = info.Key
	}

	return keys
}

// FindInScope returns all bindings of one scope path.
func FindInScope(inj *Injector, scope ...Scope) []BindingInfo {
	return Query(inj, BindingQuery{Scope: ScopePath(scope)})
}

// FindInstantiated returns all bindings of this level with a cached instance.
func FindInstantiated(inj *Injector) []BindingInfo {
	instantiated := true

	return Query(inj, BindingQuery{Instantiated: &instantiated})
}

// FindByName returns all bindings whose qualifier contains fragment.
func FindByName(inj *Injector, fragment string) []BindingInfo {
	var results []BindingInfo

	for _, info := range Query(inj, BindingQuery{}) {
		if n := info.Key.Name(); n != nil && strings.Contains(n.String(), fragment) {
			results = append(results, info)
		}
	}

	return results
}
