package trellis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueryInjector(t *testing.T) *Injector {
	t.Helper()

	inj, err := Compile(NewModule().
		Bind(DatabaseKey, To(newDatabase)).
		Bind(KeyOf[*Database](Named("replica")), To(newDatabase)).
		Bind(CacheKey, To1(newCache, Require(DatabaseKey))).
		Bind(SessionKey, To1(newSession, Require(DatabaseKey)), RequestScope))
	require.NoError(t, err)

	return inj
}

func TestInspect(t *testing.T) {
	inj := newQueryInjector(t)

	info, ok := inj.Inspect(CacheKey)
	require.True(t, ok)
	assert.Equal(t, CacheKey, info.Key)
	assert.Equal(t, "()", info.ScopePath())
	assert.Equal(t, []Dependency{Require(DatabaseKey)}, info.Dependencies)
	assert.False(t, info.Instantiated)
	require.NotNil(t, info.Location)
	assert.Contains(t, info.Location.File, "query_test.go")

	_, err := inj.GetInstance(CacheKey)
	require.NoError(t, err)

	info, _ = inj.Inspect(CacheKey)
	assert.True(t, info.Instantiated)

	_, ok = inj.Inspect(SessionKey)
	assert.False(t, ok)
}

func TestInspect_FromChildScope(t *testing.T) {
	inj := newQueryInjector(t)

	request, err := inj.EnterScope(RequestScope)
	require.NoError(t, err)

	info, ok := request.Inspect(DatabaseKey)
	require.True(t, ok)
	assert.Equal(t, "()", info.ScopePath())

	info, ok = request.Inspect(SessionKey)
	require.True(t, ok)
	assert.Equal(t, "@request", info.ScopePath())
}

func TestQuery(t *testing.T) {
	inj := newQueryInjector(t)

	all := Query(inj, BindingQuery{})
	require.Len(t, all, 5)

	// root first, then the request scope
	assert.Equal(t, "()", all[0].ScopePath())
	assert.Equal(t, SessionKey, all[4].Key)
	assert.Equal(t, "@request", all[4].ScopePath())

	assert.Equal(t, []Key{SessionKey}, QueryKeys(inj, BindingQuery{Scope: "@request"}))
	assert.Len(t, FindInScope(inj), 4)
	assert.Len(t, FindInScope(inj, RequestScope), 1)

	named := QueryKeys(inj, BindingQuery{Name: "replica"})
	assert.Equal(t, []Key{KeyOf[*Database](Named("replica"))}, named)
	assert.Len(t, FindByName(inj, "rep"), 1)

	pointers := Query(inj, BindingQuery{Type: PointerType})
	assert.Len(t, pointers, 5)
}

func TestQuery_Instantiated(t *testing.T) {
	inj := newQueryInjector(t)

	assert.Empty(t, FindInstantiated(inj))

	_, err := inj.GetInstance(CacheKey)
	require.NoError(t, err)

	assert.ElementsMatch(t, []Key{CacheKey, DatabaseKey}, QueryKeys(inj, BindingQuery{
		Instantiated: boolPtr(true),
	}))

	notYet := QueryKeys(inj, BindingQuery{Scope: "()", Instantiated: boolPtr(false)})
	assert.ElementsMatch(t, []Key{InjectorKey, KeyOf[*Database](Named("replica"))}, notYet)
}

func boolPtr(b bool) *bool { return &b }
