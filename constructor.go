package trellis

import (
	"fmt"
	"reflect"
	"strings"
)

// In is a marker type that should be embedded in structs to indicate
// they are parameter objects. Fields of the struct will be treated as
// dependencies to inject.
//
// Example:
//
//	type ServiceParams struct {
//	    trellis.In
//
//	    DB     *Database
//	    Logger *Logger `optional:"true"`
//	    Cache  *Cache  `name:"redis"`
//	}
type In struct{}

var (
	inType    = reflect.TypeOf(In{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// constructorInfo holds analyzed constructor metadata
type constructorInfo struct {
	fn       reflect.Value
	fnType   reflect.Type
	params   []paramInfo
	result   reflect.Type
	hasError bool
}

// paramInfo describes a constructor parameter
type paramInfo struct {
	typ      reflect.Type
	isIn     bool        // expanded into one dependency per field
	inFields []fieldInfo // set if isIn
}

// fieldInfo describes one exported field of an In struct.
type fieldInfo struct {
	index    int
	typ      reflect.Type
	name     string // From `name:"..."` tag
	optional bool   // From `optional:"true"` tag
}

// analyzeConstructor inspects a constructor function and extracts its
// parameters and result.
func analyzeConstructor(constructor any) (*constructorInfo, error) {
	if constructor == nil {
		return nil, errInvalidConstructor("constructor must be a function, got nil")
	}

	fnValue := reflect.ValueOf(constructor)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, errInvalidConstructor(fmt.Sprintf("constructor must be a function, got %s", fnType))
	}

	if fnType.IsVariadic() {
		return nil, errInvalidConstructor("variadic constructors are not supported")
	}

	info := &constructorInfo{fn: fnValue, fnType: fnType}

	for i := 0; i < fnType.NumIn(); i++ {
		param, err := analyzeParam(fnType.In(i))
		if err != nil {
			return nil, errInvalidConstructor(fmt.Sprintf("parameter %d: %v", i, err))
		}

		info.params = append(info.params, param)
	}

	switch fnType.NumOut() {
	case 1:
		info.result = fnType.Out(0)
	case 2:
		if fnType.Out(1) != errorType {
			return nil, errInvalidConstructor("second return value must be error")
		}

		info.result = fnType.Out(0)
		info.hasError = true
	default:
		return nil, errInvalidConstructor("constructor must return a value and optionally an error")
	}

	if info.result == errorType {
		return nil, errInvalidConstructor("constructor must return at least one non-error value")
	}

	return info, nil
}

// analyzeParam analyzes a single parameter type
func analyzeParam(t reflect.Type) (paramInfo, error) {
	param := paramInfo{typ: t}

	if isInStruct(t) {
		if t.Kind() == reflect.Pointer {
			return param, fmt.Errorf("parameter object %s must be passed by value", t)
		}

		param.isIn = true
		param.inFields = expandInStruct(t)
	}

	return param, nil
}

// isInStruct checks if a type embeds trellis.In
func isInStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == inType {
			return true
		}
	}

	return false
}

// expandInStruct expands an In struct into its field dependencies
func expandInStruct(t reflect.Type) []fieldInfo {
	var fields []fieldInfo

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous && field.Type == inType {
			continue
		}

		if !field.IsExported() {
			continue
		}

		fields = append(fields, fieldInfo{
			index:    i,
			typ:      field.Type,
			name:     field.Tag.Get("name"),
			optional: strings.EqualFold(field.Tag.Get("optional"), "true"),
		})
	}

	return fields
}

func (f fieldInfo) dependency() Dependency {
	var name Name
	if f.name != "" {
		name = Named(f.name)
	}

	key := NewKey(TypeFor(f.typ), name)
	if f.optional {
		return Optional(key)
	}

	return Require(key)
}

// dependencies flattens the parameters into the binding's dependency list.
func (c *constructorInfo) dependencies() []Dependency {
	var deps []Dependency

	for _, p := range c.params {
		if !p.isIn {
			deps = append(deps, Require(NewKey(TypeFor(p.typ), nil)))

			continue
		}

		for _, f := range p.inFields {
			deps = append(deps, f.dependency())
		}
	}

	return deps
}

// call builds the arguments from the flattened dependency values and invokes
// the constructor.
func (c *constructorInfo) call(args []any) (any, error) {
	in := make([]reflect.Value, len(c.params))
	next := 0

	for i, p := range c.params {
		if !p.isIn {
			in[i] = valueOf(args[next], p.typ)
			next++

			continue
		}

		obj := reflect.New(p.typ).Elem()
		for _, f := range p.inFields {
			obj.Field(f.index).Set(valueOf(args[next], f.typ))
			next++
		}

		in[i] = obj
	}

	out := c.fn.Call(in)

	if c.hasError && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}

	return out[0].Interface(), nil
}

func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}

	return reflect.ValueOf(v)
}

// ConstructorOption configures how a constructor is bound.
type ConstructorOption func(*constructorConfig)

type constructorConfig struct {
	name    Name
	aliases []Key
	scope   []Scope
}

// WithName gives the constructor result a name for disambiguation.
//
// Example:
//
//	m.Constructor(NewPrimaryDB, trellis.WithName(trellis.Named("primary")))
//	m.Constructor(NewReplicaDB, trellis.WithName(trellis.Named("replica")))
func WithName(name Name) ConstructorOption {
	return func(c *constructorConfig) {
		c.name = name
	}
}

// WithAliases also binds each alias key to the constructor result.
//
// Example:
//
//	m.Constructor(NewPostgresStore, trellis.WithAliases(trellis.KeyOf[Store]()))
func WithAliases(keys ...Key) ConstructorOption {
	return func(c *constructorConfig) {
		c.aliases = append(c.aliases, keys...)
	}
}

// InScope binds the constructor result in a scope instead of the root.
func InScope(scope ...Scope) ConstructorOption {
	return func(c *constructorConfig) {
		c.scope = append([]Scope(nil), scope...)
	}
}

// Constructor derives a binding from a constructor function: parameters
// become required dependencies keyed by their type, parameter objects
// embedding In contribute one dependency per exported field, and a trailing
// error result reports construction failures.
//
// Example:
//
//	func NewUserService(db *Database, logger *Logger) (*UserService, error)
//
//	key, binding, err := trellis.Constructor(NewUserService)
func Constructor(fn any) (Key, *Binding, error) {
	info, err := analyzeConstructor(fn)
	if err != nil {
		return Key{}, nil, err
	}

	return NewKey(TypeFor(info.result), nil), NewBinding(info.call, info.dependencies()...), nil
}

// Constructor binds the result of a constructor function. Invalid
// constructors are reported by Err and by Compile.
//
// Example:
//
//	m := trellis.NewModule().
//	    Constructor(NewDatabase).
//	    Constructor(NewUserService, trellis.InScope(RequestScope))
func (m *Module) Constructor(fn any, opts ...ConstructorOption) *Module {
	cfg := &constructorConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	key, binding, err := Constructor(fn)
	if err != nil {
		m.errs = append(m.errs, err)

		return m
	}

	if cfg.name != nil {
		key = key.Named(cfg.name)
	}

	location := CallerLocation(1)
	m.put(key, Concrete(binding.At(location)), cfg.scope)

	for _, alias := range cfg.aliases {
		m.put(alias, Concrete(Alias(key).At(location)), cfg.scope)
	}

	return m
}
