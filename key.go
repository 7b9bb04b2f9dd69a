package trellis

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Name qualifies a Key so that several bindings of one type can coexist,
// e.g. the primary and the replica database. Names are compared with ==, so
// every implementation is a comparable value.
type Name interface {
	fmt.Stringer
	isName()
}

type namedName struct {
	value string
}

func (n namedName) String() string { return n.value }
func (namedName) isName()          {}

// Named returns a string qualifier.
func Named(value string) Name {
	return namedName{value: value}
}

type valueName[V comparable] struct {
	value V
}

func (n valueName[V]) String() string { return fmt.Sprintf("%v", n.value) }
func (valueName[V]) isName()          {}

// Qualifier returns a stateful qualifier that is equal to another qualifier
// of the same value type holding an equal value.
func Qualifier[V comparable](value V) Name {
	return valueName[V]{value: value}
}

type markerName struct {
	tag reflect.Type
}

func (n markerName) String() string { return "@" + n.tag.String() }
func (markerName) isName()          {}

// MarkerOf returns a stateless qualifier identified by the tag type alone.
//
//	type Primary struct{}
//	key := trellis.KeyOf[*sql.DB](trellis.MarkerOf[Primary]())
func MarkerOf[T any]() Name {
	return markerName{tag: reflect.TypeOf((*T)(nil)).Elem()}
}

type uniqueName struct {
	id       uuid.UUID
	original Name
}

func (n uniqueName) String() string {
	if n.original == nil {
		return "unique#" + n.id.String()[:8]
	}

	return n.original.String() + "#" + n.id.String()[:8]
}

func (uniqueName) isName() {}

// UniqueName mints a qualifier that is distinct from every other name.
// It is meant for synthetic bindings, not for hand-written modules.
func UniqueName(original Name) Name {
	return uniqueName{id: uuid.New(), original: original}
}

// OriginalName returns the name a unique name was minted from.
func OriginalName(n Name) (Name, bool) {
	u, ok := n.(uniqueName)
	if !ok {
		return nil, false
	}

	return u.original, true
}

// Key identifies a resolvable value by type descriptor and optional name.
// Keys are comparable and are used directly as map keys.
type Key struct {
	typ  *Type
	name Name
}

// NewKey creates a key for a type descriptor.
func NewKey(t *Type, name Name) Key {
	return Key{typ: t, name: name}
}

// KeyOf creates a key for the Go type T with an optional name.
//
// Example:
//
//	var DatabaseKey = trellis.KeyOf[*Database]()
//	var ReplicaKey = trellis.KeyOf[*Database](trellis.Named("replica"))
func KeyOf[T any](name ...Name) Key {
	k := Key{typ: TypeOf[T]()}
	if len(name) > 0 {
		k.name = name[0]
	}

	return k
}

// Type returns the type descriptor.
func (k Key) Type() *Type { return k.typ }

// Name returns the qualifier or nil.
func (k Key) Name() Name { return k.name }

// RawType returns the erased type constructor.
func (k Key) RawType() *Type { return k.typ.Raw() }

// Named returns a copy of the key with another qualifier.
func (k Key) Named(name Name) Key {
	return Key{typ: k.typ, name: name}
}

// IsZero reports whether the key was never initialized.
func (k Key) IsZero() bool { return k.typ == nil }

// String returns the display form of the key.
func (k Key) String() string {
	if k.name == nil {
		return k.typ.String()
	}

	return fmt.Sprintf("%s[name=%s]", k.typ, k.name)
}

// InjectorKey resolves to the injector doing the resolution.
var InjectorKey = KeyOf[*Injector]()
