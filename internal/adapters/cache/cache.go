// Package cache memoizes grading results by input fingerprint.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/okian/posgrade/internal/domain/model"
)

const (
	defaultMaxEntries  = 1024
	countersPerEntry   = 10
	defaultBufferItems = 64
)

// ResultCache stores results keyed by the digest of the graded inputs.
type ResultCache interface {
	Get(ctx context.Context, key string) (model.Result, bool)
	Put(ctx context.Context, key string, res model.Result)
	Close()
}

// Option applies a configuration option to the cache.
type Option func(*config)

type config struct {
	maxEntries int64
}

// WithMaxEntries bounds the number of cached results. A value <= 0
// returns a cache that stores nothing.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		c.maxEntries = int64(n)
	}
}

// New builds a ResultCache backed by ristretto.
func New(opts ...Option) (ResultCache, error) {
	cfg := config{maxEntries: defaultMaxEntries}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxEntries <= 0 {
		return noop{}, nil
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, model.Result]{
		NumCounters:        cfg.maxEntries * countersPerEntry,
		MaxCost:            cfg.maxEntries,
		BufferItems:        defaultBufferItems,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &ristrettoCache{c: c}, nil
}

type ristrettoCache struct {
	c *ristretto.Cache[string, model.Result]
}

func (r *ristrettoCache) Get(_ context.Context, key string) (model.Result, bool) {
	res, ok := r.c.Get(key)
	if !ok {
		return model.Result{}, false
	}
	return res.Clone(), true
}

// Put stores a copy of res. Writes are applied before Put returns so an
// immediate Get observes them.
func (r *ristrettoCache) Put(_ context.Context, key string, res model.Result) {
	if r.c.Set(key, res.Clone(), 1) {
		r.c.Wait()
	}
}

func (r *ristrettoCache) Close() {
	r.c.Close()
}

type noop struct{}

func (noop) Get(context.Context, string) (model.Result, bool) { return model.Result{}, false }
func (noop) Put(context.Context, string, model.Result)        {}
func (noop) Close()                                           {}
