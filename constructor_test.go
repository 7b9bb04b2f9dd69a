package trellis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Store interface {
	Get(id string) string
}

type memoryStore struct {
	DB *Database
}

func (s *memoryStore) Get(id string) string { return id }

type ServiceParams struct {
	In

	DB      *Database
	Replica *Database `name:"replica"`
	Cache   *Cache    `optional:"true"`

	hidden *Session
}

type paramService struct {
	params ServiceParams
}

func TestConstructor_Dependencies(t *testing.T) {
	key, binding, err := Constructor(func(db *Database, s *Session) (*Cache, error) {
		return &Cache{DB: db}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, CacheKey, key)
	assert.Equal(t, []Dependency{Require(DatabaseKey), Require(SessionKey)}, binding.Dependencies())
}

func TestConstructor_InStruct(t *testing.T) {
	_, binding, err := Constructor(func(p ServiceParams) *paramService {
		return &paramService{params: p}
	})
	require.NoError(t, err)

	assert.Equal(t, []Dependency{
		Require(DatabaseKey),
		Require(KeyOf[*Database](Named("replica"))),
		Optional(CacheKey),
	}, binding.Dependencies())

	db, replica := &Database{DSN: "a"}, &Database{DSN: "b"}

	v, err := binding.Create([]any{db, replica, nil})
	require.NoError(t, err)

	svc := v.(*paramService)
	assert.Same(t, db, svc.params.DB)
	assert.Same(t, replica, svc.params.Replica)
	assert.Nil(t, svc.params.Cache)
	assert.Nil(t, svc.params.hidden)
}

func TestConstructor_ErrorResult(t *testing.T) {
	boom := errors.New("boom")

	_, binding, err := Constructor(func() (*Database, error) { return nil, boom })
	require.NoError(t, err)

	_, err = binding.Create(nil)
	assert.ErrorIs(t, err, boom)
}

func TestConstructor_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"nil", nil},
		{"not a function", 42},
		{"no result", func(*Database) {}},
		{"only error", func() error { return nil }},
		{"error first", func() (error, *Database) { return nil, nil }},
		{"too many results", func() (*Database, *Cache, error) { return nil, nil, nil }},
		{"variadic", func(...*Database) *Cache { return nil }},
		{"pointer to parameter object", func(*ServiceParams) *Cache { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Constructor(tt.fn)
			assert.ErrorIs(t, err, ErrInvalidConstructor)
		})
	}
}

func TestModule_Constructor(t *testing.T) {
	inj, err := Compile(NewModule().
		Constructor(newDatabase).
		Constructor(func(db *Database) *Database {
			return &Database{DSN: db.DSN + "?replica"}
		}, WithName(Named("replica"))).
		Constructor(func(db *Database) (*memoryStore, error) {
			return &memoryStore{DB: db}, nil
		}, WithAliases(KeyOf[Store]())).
		Constructor(func(p ServiceParams) *paramService {
			return &paramService{params: p}
		}).
		Constructor(newSession, InScope(RequestScope)))
	require.NoError(t, err)

	svc := MustInstance[*paramService](inj)
	assert.Equal(t, "postgres://localhost?replica", svc.params.Replica.DSN)
	assert.Same(t, MustInstance[*Database](inj), svc.params.DB)

	store := MustInstance[Store](inj)
	assert.Same(t, MustInstance[*memoryStore](inj), store)

	request, err := inj.EnterScope(RequestScope)
	require.NoError(t, err)
	assert.NotNil(t, MustInstance[*Session](request))

	loc := inj.Binding(DatabaseKey).Location()
	require.NotNil(t, loc)
	assert.Contains(t, loc.File, "constructor_test.go")
}

func TestModule_ConstructorInvalid(t *testing.T) {
	m := NewModule().Constructor("not a function")

	assert.ErrorIs(t, m.Err(), ErrInvalidConstructor)

	_, err := Compile(m)
	assert.ErrorIs(t, err, ErrInvalidConstructor)
}

func TestModule_ConstructorUnsatisfied(t *testing.T) {
	_, err := Compile(NewModule().Constructor(newCache))
	require.Error(t, err)

	var unsatisfied *UnsatisfiedDependenciesError
	require.ErrorAs(t, err, &unsatisfied)
	assert.Contains(t, unsatisfied.Missing, DatabaseKey)
	assert.Contains(t, err.Error(), "constructor_test.go")
}
