package trellis

import (
	"sort"
	"strings"
)

// Scope is a named nesting level of the binding tree, e.g. a per-request
// scope below the unscoped root.
type Scope struct {
	name       string
	threadsafe bool
}

// NewScope creates a scope. Injectors entered for it are unsynchronized
// unless the caller asks otherwise.
func NewScope(name string) Scope {
	return Scope{name: name}
}

// ThreadsafeScope creates a scope whose injectors are synchronized by default.
func ThreadsafeScope(name string) Scope {
	return Scope{name: name, threadsafe: true}
}

// Name returns the scope name.
func (s Scope) Name() string { return s.name }

// Threadsafe reports whether injectors for this scope lock by default.
func (s Scope) Threadsafe() bool { return s.threadsafe }

// String returns the display form.
func (s Scope) String() string {
	return "@" + s.name
}

// ScopePath renders a scope path, "()" for the root.
func ScopePath(path []Scope) string {
	if len(path) == 0 {
		return "()"
	}

	parts := make([]string, len(path))
	for i, s := range path {
		parts[i] = s.String()
	}

	return strings.Join(parts, "->")
}

func nextPath(path []Scope, s Scope) []Scope {
	next := make([]Scope, len(path)+1)
	copy(next, path)
	next[len(path)] = s

	return next
}

// Trie is a tree whose edges are labelled with K and whose nodes hold a V.
type Trie[K comparable, V any] struct {
	value    V
	children map[K]*Trie[K, V]
}

// NewTrie creates a leaf.
func NewTrie[K comparable, V any](value V) *Trie[K, V] {
	return &Trie[K, V]{value: value, children: make(map[K]*Trie[K, V])}
}

// Get returns the node value.
func (t *Trie[K, V]) Get() V { return t.value }

// Set replaces the node value.
func (t *Trie[K, V]) Set(value V) { t.value = value }

// Child returns the child under k, or nil.
func (t *Trie[K, V]) Child(k K) *Trie[K, V] {
	return t.children[k]
}

// Children returns the child map. Callers must not modify it.
func (t *Trie[K, V]) Children() map[K]*Trie[K, V] {
	return t.children
}

// ComputeIfAbsent returns the child under k, creating it with mk.
func (t *Trie[K, V]) ComputeIfAbsent(k K, mk func() V) *Trie[K, V] {
	child, ok := t.children[k]
	if !ok {
		child = NewTrie[K](mk())
		t.children[k] = child
	}

	return child
}

// Path walks down a sequence of edges, returning nil when one is missing.
func (t *Trie[K, V]) Path(path ...K) *Trie[K, V] {
	node := t
	for _, k := range path {
		node = node.children[k]
		if node == nil {
			return nil
		}
	}

	return node
}

// Walk visits every node depth first, parents before children.
func (t *Trie[K, V]) Walk(fn func(path []K, node *Trie[K, V])) {
	t.walk(nil, fn)
}

func (t *Trie[K, V]) walk(path []K, fn func([]K, *Trie[K, V])) {
	fn(path, t)

	for k, child := range t.children {
		next := make([]K, len(path)+1)
		copy(next, path)
		next[len(path)] = k
		child.walk(next, fn)
	}
}

// MapTrie returns a tree of the same shape with fn applied to every value.
func MapTrie[K comparable, V, R any](t *Trie[K, V], fn func(V) R) *Trie[K, R] {
	mapped := NewTrie[K](fn(t.value))
	for k, child := range t.children {
		mapped.children[k] = MapTrie(child, fn)
	}

	return mapped
}

// Slot is one entry of a binding table: either a concrete binding or a
// request to generate one.
type Slot struct {
	binding  *Binding
	pending  bool
	location *Location
}

// Concrete creates a slot holding a binding.
func Concrete(b *Binding) Slot {
	return Slot{binding: b, location: b.Location()}
}

// PendingGeneration creates a slot asking the generator chain for a binding.
func PendingGeneration(location *Location) Slot {
	return Slot{pending: true, location: location}
}

// Binding returns the binding, nil for pending slots.
func (s Slot) Binding() *Binding { return s.binding }

// IsPending reports whether the slot still awaits generation.
func (s Slot) IsPending() bool { return s.pending }

// Location returns where the slot was authored.
func (s Slot) Location() *Location { return s.location }

// BindingTable maps keys to slots for one scope level.
type BindingTable map[Key]Slot

// BindingTree is the whole binding configuration.
type BindingTree = Trie[Scope, BindingTable]

// NewBindingTree creates a tree with an empty root table.
func NewBindingTree() *BindingTree {
	return NewTrie[Scope](BindingTable{})
}

// Keys returns the table keys sorted by display form.
func (bt BindingTable) Keys() []Key {
	keys := make([]Key, 0, len(bt))
	for k := range bt {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	return keys
}

// Binding returns the concrete binding for k, nil when absent or pending.
func (bt BindingTable) Binding(k Key) *Binding {
	return bt[k].binding
}

func (bt BindingTable) clone() BindingTable {
	c := make(BindingTable, len(bt))
	for k, v := range bt {
		c[k] = v
	}

	return c
}

// override returns a copy of base with the entries of local on top.
func override(base, local BindingTable) BindingTable {
	c := base.clone()
	for k, v := range local {
		c[k] = v
	}

	return c
}
