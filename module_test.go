package trellis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_DuplicateBinding(t *testing.T) {
	m := NewModule().
		Bind(DatabaseKey, To(newDatabase)).
		Bind(DatabaseKey, To(newDatabase))

	require.Error(t, m.Err())
	assert.ErrorIs(t, m.Err(), ErrDuplicateBinding)
	assert.Contains(t, m.Err().Error(), "module_test.go")

	_, err := Compile(m)
	assert.ErrorIs(t, err, ErrDuplicateBinding)
}

func TestModule_SameKeyInDifferentScopes(t *testing.T) {
	m := NewModule().
		Bind(DatabaseKey, To(newDatabase)).
		Bind(DatabaseKey, To(newDatabase), RequestScope)

	require.NoError(t, m.Err())

	inj, err := Compile(m)
	require.NoError(t, err)

	request, err := inj.EnterScope(RequestScope)
	require.NoError(t, err)

	// the request scope rebinds the key, so it gets its own instance
	assert.NotSame(t, MustInstance[*Database](inj), MustInstance[*Database](request))
}

func TestModule_Install(t *testing.T) {
	storage := NewModule().Bind(DatabaseKey, To(newDatabase))
	web := NewModule().Bind(SessionKey, To1(newSession, Require(DatabaseKey)), RequestScope)

	app := NewModule().Install(storage, web)
	require.NoError(t, app.Err())

	assert.Contains(t, app.Bindings().Get(), DatabaseKey)
	assert.Contains(t, app.Bindings().Child(RequestScope).Get(), SessionKey)

	// installed modules are left untouched
	assert.Nil(t, storage.Bindings().Child(RequestScope))

	conflict := NewModule().Install(storage, storage)
	assert.ErrorIs(t, conflict.Err(), ErrDuplicateBinding)
}

func TestModule_CompileDoesNotConsumeModules(t *testing.T) {
	m := NewModule().Bind(DatabaseKey, To(newDatabase))

	first, err := Compile(m)
	require.NoError(t, err)

	second, err := Compile(m)
	require.NoError(t, err)

	assert.NotSame(t, MustInstance[*Database](first), MustInstance[*Database](second))
	assert.NotContains(t, m.Bindings().Get(), InjectorKey)
}

func TestModule_BindAll(t *testing.T) {
	m := NewModule().BindAll(
		Provide(DatabaseKey, To(newDatabase)),
		Provide(CacheKey, To1(newCache, Require(DatabaseKey))),
		Provide(SessionKey, To1(newSession, Require(DatabaseKey)), RequestScope),
	)

	inj, err := Compile(m)
	require.NoError(t, err)

	cache := MustInstance[*Cache](inj)
	assert.Same(t, MustInstance[*Database](inj), cache.DB)

	loc := inj.Binding(CacheKey).Location()
	require.NotNil(t, loc)
	assert.Contains(t, loc.File, "module_test.go")
}

func TestModule_NestedScopes(t *testing.T) {
	tx := NewScope("tx")

	inj, err := Compile(NewModule().
		Bind(DatabaseKey, To(newDatabase)).
		Bind(SessionKey, To1(newSession, Require(DatabaseKey)), RequestScope).
		Bind(CacheKey, NewBinding(func(args []any) (any, error) {
			return &Cache{DB: args[0].(*Session).DB}, nil
		}, Require(SessionKey)), RequestScope, tx))
	require.NoError(t, err)

	request, err := inj.EnterScope(RequestScope)
	require.NoError(t, err)

	_, err = inj.EnterScope(tx)
	assert.ErrorIs(t, err, ErrScopeNotDeclared)

	txInj, err := request.EnterScope(tx)
	require.NoError(t, err)
	assert.Equal(t, "@request->@tx", ScopePath(txInj.Scope()))

	cache := MustInstance[*Cache](txInj)
	assert.Same(t, MustInstance[*Database](inj), cache.DB)
	assert.True(t, request.HasInstance(SessionKey))
}

func TestModule_Accessors(t *testing.T) {
	m := NewModule().
		Generator(RepositoryType, repositoryGenerator()).
		Transformer(1, TransformerFunc(func(_ []Scope, _ Key, b *Binding) *Binding { return b })).
		Use(&FuncMiddleware{})

	assert.Equal(t, 1, m.Generators().Len())
	assert.Equal(t, 1, m.Transformers().Len())
	assert.Len(t, m.Middleware(), 1)
}
