package trellis

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Injector resolves keys to instances for one scope level of a compiled
// binding tree. It owns a private instance cache and delegates keys it has
// no binding for to its parent, so outer singletons are shared by every
// injector entered below them and stay in the parent's cache.
//
// A synchronized injector guards its cache with a lock and keeps at most one
// construction per key in flight. The lock is not held while factories run,
// so a factory may call back into the injector that is constructing it, for
// example through InjectorKey or a provider handle. A factory that waits on
// its own key that way never returns: that is a cycle the compile-time scan
// cannot see. An unsynchronized injector must be used from one goroutine at
// a time.
type Injector struct {
	parent   *Injector
	scope    []Scope
	node     *BindingTree
	cache    *InstanceCache
	mu       *sync.Mutex
	inflight map[Key]*construction
	logger   *zap.Logger
}

// construction is an outcome still being produced by another caller.
type construction struct {
	done     chan struct{}
	instance any
	err      error
}

func newInjector(parent *Injector, scope []Scope, node *BindingTree, cache *InstanceCache, threadsafe bool, logger *zap.Logger) *Injector {
	if cache == nil {
		cache = NewInstanceCache()
	}

	inj := &Injector{
		parent: parent,
		scope:  scope,
		node:   node,
		cache:  cache,
		logger: logger,
	}

	if threadsafe {
		inj.mu = &sync.Mutex{}
		inj.inflight = make(map[Key]*construction)
	}

	return inj
}

func (i *Injector) lock() func() {
	if i.mu == nil {
		return func() {}
	}

	i.mu.Lock()

	return i.mu.Unlock
}

// GetInstance returns the instance for key, constructing and caching it on
// first use. Failures are cached too and are never retried.
func (i *Injector) GetInstance(key Key) (any, error) {
	instance, err := i.resolve(key)
	if err != nil {
		return nil, err
	}

	if instance == nil {
		return nil, errCannotConstruct(key, i.lookupBinding(key))
	}

	return instance, nil
}

// GetInstanceOrNil is GetInstance for optional use sites: it returns nil
// instead of failing.
func (i *Injector) GetInstanceOrNil(key Key) any {
	instance, _ := i.resolve(key)

	return instance
}

// GetInstanceOr returns the instance for key or def when it resolves to nil.
func (i *Injector) GetInstanceOr(key Key, def any) any {
	if instance := i.GetInstanceOrNil(key); instance != nil {
		return instance
	}

	return def
}

// CreateInstance always constructs a new instance for key itself, while
// its dependencies still come from, and go to, the instance cache of the
// injector owning the binding.
func (i *Injector) CreateInstance(key Key) (any, error) {
	instance, err := i.create(key)
	if err != nil {
		return nil, err
	}

	if instance == nil {
		return nil, errCannotConstruct(key, i.lookupBinding(key))
	}

	return instance, nil
}

// CreateInstanceOrNil is CreateInstance returning nil instead of failing.
func (i *Injector) CreateInstanceOrNil(key Key) any {
	instance, _ := i.create(key)

	return instance
}

// PeekInstance returns the instance cached at this level for key without
// constructing it. Instances shared from a parent are not cached here.
func (i *Injector) PeekInstance(key Key) any {
	defer i.lock()()

	e, _ := i.cache.get(key)

	return e.instance
}

// HasInstance reports whether a non-nil instance for key is cached.
func (i *Injector) HasInstance(key Key) bool {
	return i.PeekInstance(key) != nil
}

// PeekInstances returns a copy of every cached non-nil instance.
func (i *Injector) PeekInstances() map[Key]any {
	defer i.lock()()

	return i.cache.snapshot()
}

// PutInstance seeds the cache with an instance for a key bound at this level.
func (i *Injector) PutInstance(key Key, instance any) error {
	defer i.lock()()

	if _, ok := i.node.Get()[key]; !ok {
		return errNotBoundInScope(key, i.scope)
	}

	i.cache.put(key, instance, nil)

	return nil
}

// HasBinding reports whether key is bound at this injector's own level.
func (i *Injector) HasBinding(key Key) bool {
	_, ok := i.node.Get()[key]

	return ok
}

// Binding returns the binding for key at this level, nil if there is none.
func (i *Injector) Binding(key Key) *Binding {
	return i.node.Get().Binding(key)
}

// Bindings returns the keys bound at this level.
func (i *Injector) Bindings() []Key {
	return i.node.Get().Keys()
}

// Parent returns the parent injector, nil for a root.
func (i *Injector) Parent() *Injector { return i.parent }

// Scope returns the scope path of this injector.
func (i *Injector) Scope() []Scope {
	return append([]Scope(nil), i.scope...)
}

// BindingsTrie returns the compiled binding tree below this injector.
// It is shared configuration and must not be modified.
func (i *Injector) BindingsTrie() *BindingTree { return i.node }

// Threadsafe reports whether this injector is synchronized.
func (i *Injector) Threadsafe() bool { return i.mu != nil }

// EnterScope creates an injector for a child scope with this injector as
// its parent and a fresh instance cache unless one is supplied.
func (i *Injector) EnterScope(scope Scope, opts ...ScopeOption) (*Injector, error) {
	child := i.node.Child(scope)
	if child == nil {
		return nil, errScopeNotDeclared(i.scope, scope)
	}

	cfg := scopeConfig{threadsafe: scope.Threadsafe()}
	for _, opt := range opts {
		opt(&cfg)
	}

	path := nextPath(i.scope, scope)

	i.logger.Debug("entering scope",
		zap.String("scope", ScopePath(path)),
		zap.Bool("threadsafe", cfg.threadsafe),
	)

	return newInjector(i, path, child, cfg.cache, cfg.threadsafe, i.logger), nil
}

// resolve returns the instance for key from this level's cache, constructing
// it for a local binding and delegating any other key to the parent. It
// reports absence as (nil, nil).
func (i *Injector) resolve(key Key) (any, error) {
	if key == InjectorKey {
		return i, nil
	}

	unlock := i.lock()

	if e, ok := i.cache.get(key); ok {
		unlock()

		return e.instance, e.err
	}

	if !i.HasBinding(key) {
		unlock()

		if i.parent != nil {
			return i.parent.resolve(key)
		}

		return nil, nil
	}

	if i.mu == nil {
		instance, err := i.construct(key)
		i.cache.put(key, instance, err)

		return instance, err
	}

	if c, ok := i.inflight[key]; ok {
		unlock()
		<-c.done

		return c.instance, c.err
	}

	c := &construction{done: make(chan struct{})}
	i.inflight[key] = c

	unlock()

	return i.constructShared(key, c)
}

// constructShared runs the construction c stands for and publishes its
// outcome to the cache and to every caller waiting on it.
func (i *Injector) constructShared(key Key, c *construction) (any, error) {
	completed := false

	defer func() {
		i.mu.Lock()
		// a panicking factory leaves nothing behind to memoize
		if completed {
			i.cache.put(key, c.instance, c.err)
		}

		delete(i.inflight, key)
		i.mu.Unlock()

		close(c.done)
	}()

	c.instance, c.err = i.construct(key)
	completed = true

	return c.instance, c.err
}

// create constructs key without consulting the cache for key itself.
func (i *Injector) create(key Key) (any, error) {
	if key == InjectorKey {
		return i, nil
	}

	if !i.HasBinding(key) {
		if i.parent != nil {
			return i.parent.create(key)
		}

		return nil, nil
	}

	return i.construct(key)
}

// lookupBinding returns the binding resolving key from here, searching parents.
func (i *Injector) lookupBinding(key Key) *Binding {
	for current := i; current != nil; current = current.parent {
		if b := current.node.Get().Binding(key); b != nil {
			return b
		}
	}

	return nil
}

// construct builds a new instance for a key bound at this level.
func (i *Injector) construct(key Key) (any, error) {
	binding := i.node.Get().Binding(key)

	args := make([]any, len(binding.dependencies))

	for idx, dep := range binding.dependencies {
		if dep.Implicit {
			continue
		}

		value, err := i.resolve(dep.Key)
		if err != nil {
			return nil, err
		}

		if value == nil && dep.Required {
			return nil, errMissingDependency(key, dep.Key, binding)
		}

		args[idx] = value
	}

	instance, err := binding.Create(args)
	if err != nil {
		return nil, errConstructionFailed(key, binding, err)
	}

	if isNil(instance) {
		return nil, nil
	}

	return instance, nil
}

// isNil also catches typed nils such as a (*T)(nil) stored in an any.
func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// InstanceCache is the per-injector instance store. Absent results and
// failures are stored as well, which is what makes them final.
type InstanceCache struct {
	entries map[Key]cachedInstance
}

type cachedInstance struct {
	instance any
	err      error
}

// NewInstanceCache creates an empty cache.
func NewInstanceCache() *InstanceCache {
	return &InstanceCache{entries: make(map[Key]cachedInstance)}
}

// Put seeds an instance before the cache is handed to an injector.
func (c *InstanceCache) Put(key Key, instance any) {
	c.put(key, instance, nil)
}

// Len returns the number of cached outcomes, failures included.
func (c *InstanceCache) Len() int { return len(c.entries) }

func (c *InstanceCache) get(key Key) (cachedInstance, bool) {
	e, ok := c.entries[key]

	return e, ok
}

func (c *InstanceCache) put(key Key, instance any, err error) {
	c.entries[key] = cachedInstance{instance: instance, err: err}
}

func (c *InstanceCache) snapshot() map[Key]any {
	out := make(map[Key]any, len(c.entries))
	for k, e := range c.entries {
		if e.instance != nil {
			out[k] = e.instance
		}
	}

	return out
}
