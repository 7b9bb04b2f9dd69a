package trellis

import "go.uber.org/zap"

// Option configures a root compile.
type Option func(*compileConfig)

type compileConfig struct {
	logger     *zap.Logger
	threadsafe bool
	parent     *Injector
	cache      *InstanceCache
}

func defaultCompileConfig() compileConfig {
	return compileConfig{
		logger:     zap.NewNop(),
		threadsafe: true,
	}
}

// WithLogger sets the logger used while compiling and entering scopes.
func WithLogger(logger *zap.Logger) Option {
	return func(c *compileConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithThreadsafe chooses between the synchronized (default) and the plain
// root injector.
func WithThreadsafe(threadsafe bool) Option {
	return func(c *compileConfig) {
		c.threadsafe = threadsafe
	}
}

// WithParent compiles the tree below an existing injector. Keys the parent
// can see count as bound, and the new root delegates them to the parent.
func WithParent(parent *Injector) Option {
	return func(c *compileConfig) {
		c.parent = parent
	}
}

// WithInstanceCache hands the root injector a pre-seeded cache.
func WithInstanceCache(cache *InstanceCache) Option {
	return func(c *compileConfig) {
		c.cache = cache
	}
}

// ScopeOption configures EnterScope.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	cache      *InstanceCache
	threadsafe bool
}

// WithScopeCache hands the scoped injector a pre-seeded cache, e.g. one
// holding the current request.
func WithScopeCache(cache *InstanceCache) ScopeOption {
	return func(c *scopeConfig) {
		c.cache = cache
	}
}

// WithScopeThreadsafe overrides the scope's own threadsafe default.
func WithScopeThreadsafe(threadsafe bool) ScopeOption {
	return func(c *scopeConfig) {
		c.threadsafe = threadsafe
	}
}
