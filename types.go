package trellis

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Type is a structural type descriptor: a type constructor plus its type
// arguments. Descriptors are interned, so two structurally equal descriptors
// are the same pointer and compare with ==. This is what makes
// Parameterized(List, A) and Parameterized(List, B) two different keys.
type Type struct {
	ctor    string
	raw     *Type // nil when the descriptor is itself a raw constructor
	args    []*Type
	super   *Type
	iface   bool
	display string
	intern  string
}

// TypeOption configures a raw type constructor created with NewType.
type TypeOption func(*Type)

// Extends declares the parent constructor used by generator lookup.
func Extends(super *Type) TypeOption {
	return func(t *Type) {
		t.super = super
	}
}

// Interface marks the constructor as an interface. Generators registered for
// interfaces only answer exact matches.
func Interface() TypeOption {
	return func(t *Type) {
		t.iface = true
		t.super = nil
	}
}

// typeRegistry interns descriptors by their canonical form and caches the
// descriptors derived from reflect types.
type typeRegistry struct {
	byIntern  map[string]*Type
	byReflect map[reflect.Type]*Type
	owner     map[*Type]reflect.Type
	mu        sync.Mutex
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{
		byIntern:  make(map[string]*Type),
		byReflect: make(map[reflect.Type]*Type),
		owner:     make(map[*Type]reflect.Type),
	}
}

// named returns the raw constructor of a named or otherwise non-structural
// Go type. Two Go types printing the same, such as types declared inside
// different functions, get distinct constructors with the same display.
func (r *typeRegistry) named(rt reflect.Type) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.byReflect[rt]; ok {
		return t
	}

	var opts []TypeOption
	if rt.Kind() == reflect.Interface {
		opts = append(opts, Interface())
	}

	name := rt.String()
	t := r.rawLocked(name, opts)

	if owner, ok := r.owner[t]; ok && owner != rt {
		intern := fmt.Sprintf("%s\x00%d", name, len(r.owner))

		t = &Type{ctor: name, super: AnyType, display: name, intern: intern}
		for _, opt := range opts {
			opt(t)
		}

		r.byIntern[intern] = t
	}

	r.owner[t] = rt
	r.byReflect[rt] = t

	return t
}

var registry = newTypeRegistry()

// Built-in constructors.
var (
	// AnyType is the root of every non-interface constructor chain.
	AnyType = &Type{ctor: "any", display: "any", intern: "any"}

	PointerType = NewType("*")
	SliceType   = NewType("[]")
	MapType     = NewType("map")
	ChanType    = NewType("chan")
)

func init() {
	registry.byIntern[AnyType.intern] = AnyType
}

// NewType returns the raw constructor with the given name, creating it on
// first use. Options only apply when the constructor is created.
func NewType(name string, opts ...TypeOption) *Type {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	return registry.rawLocked(name, opts)
}

func (r *typeRegistry) rawLocked(name string, opts []TypeOption) *Type {
	if name == AnyType.ctor {
		return AnyType
	}

	if t, ok := r.byIntern[name]; ok {
		return t
	}

	t := &Type{ctor: name, super: AnyType, display: name, intern: name}
	for _, opt := range opts {
		opt(t)
	}

	r.byIntern[name] = t

	return t
}

// Parameterized applies type arguments to a raw constructor.
// With no arguments the raw constructor itself is returned.
func Parameterized(raw *Type, args ...*Type) *Type {
	if raw.raw != nil {
		raw = raw.raw
	}

	if len(args) == 0 {
		return raw
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.intern
	}

	intern := raw.intern + "\x00[" + strings.Join(parts, "\x00,") + "]"

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if t, ok := registry.byIntern[intern]; ok {
		return t
	}

	t := &Type{
		ctor:    raw.ctor,
		raw:     raw,
		args:    append([]*Type(nil), args...),
		iface:   raw.iface,
		display: displayOf(raw, args),
		intern:  intern,
	}
	registry.byIntern[intern] = t

	return t
}

func displayOf(raw *Type, args []*Type) string {
	switch {
	case raw == PointerType && len(args) == 1:
		return "*" + args[0].display
	case raw == SliceType && len(args) == 1:
		return "[]" + args[0].display
	case raw == ChanType && len(args) == 1:
		return "chan " + args[0].display
	case raw == MapType && len(args) == 2:
		return "map[" + args[0].display + "]" + args[1].display
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.display
	}

	return raw.display + "[" + strings.Join(parts, ", ") + "]"
}

// TypeOf returns the descriptor of the Go type T.
func TypeOf[T any]() *Type {
	return TypeFor(reflect.TypeOf((*T)(nil)).Elem())
}

// TypeFor returns the descriptor of a reflect type. Pointer, slice, map and
// channel types keep their structure; everything else is a raw constructor
// named after the Go type.
func TypeFor(rt reflect.Type) *Type {
	registry.mu.Lock()
	t, ok := registry.byReflect[rt]
	registry.mu.Unlock()

	if ok {
		return t
	}

	switch rt.Kind() {
	case reflect.Pointer:
		t = Parameterized(PointerType, TypeFor(rt.Elem()))
	case reflect.Slice:
		t = Parameterized(SliceType, TypeFor(rt.Elem()))
	case reflect.Chan:
		t = Parameterized(ChanType, TypeFor(rt.Elem()))
	case reflect.Map:
		t = Parameterized(MapType, TypeFor(rt.Key()), TypeFor(rt.Elem()))
	default:
		return registry.named(rt)
	}

	registry.mu.Lock()
	registry.byReflect[rt] = t
	registry.mu.Unlock()

	return t
}

// Raw returns the erased type constructor.
func (t *Type) Raw() *Type {
	if t.raw == nil {
		return t
	}

	return t.raw
}

// IsRaw reports whether t carries no type arguments.
func (t *Type) IsRaw() bool { return t.raw == nil }

// Args returns the type arguments.
func (t *Type) Args() []*Type {
	return append([]*Type(nil), t.args...)
}

// Arg returns the i-th type argument or nil.
func (t *Type) Arg(i int) *Type {
	if i < 0 || i >= len(t.args) {
		return nil
	}

	return t.args[i]
}

// Super returns the parent constructor, nil for AnyType and interfaces.
func (t *Type) Super() *Type {
	return t.Raw().super
}

// IsInterface reports whether generator lookup must match t exactly.
func (t *Type) IsInterface() bool { return t.Raw().iface }

// Name returns the constructor name.
func (t *Type) Name() string { return t.ctor }

// String returns the display form.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}

	return t.display
}
