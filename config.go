// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remoteconfig

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"rivaas.dev/remoteconfig/codec"
	"rivaas.dev/remoteconfig/repository"
)

const (
	// DefaultCacheSize bounds each typed cache.
	DefaultCacheSize = 500

	// DefaultCacheExpire is the lifetime of a typed cache entry.
	DefaultCacheExpire = time.Minute

	warnInterval = time.Minute
)

// Config is a namespace's properties with typed access and change
// notification. Getters never fail: a missing or unparsable value yields
// the supplied default.
type Config interface {
	// Namespace returns the namespace served.
	Namespace() string

	// Lookup resolves key through overrides, the namespace snapshot, the
	// environment and resource defaults, in that order.
	Lookup(key string) (string, bool)

	// Property returns the value of key or def.
	Property(key, def string) string

	String(key, def string) string
	Int(key string, def int) int
	Int64(key string, def int64) int64
	Int32(key string, def int32) int32
	Int16(key string, def int16) int16
	Int8(key string, def int8) int8
	Uint(key string, def uint) uint
	Float64(key string, def float64) float64
	Float32(key string, def float32) float32
	Bool(key string, def bool) bool
	Duration(key string, def time.Duration) time.Duration
	Time(key, layout string, def time.Time) time.Time
	StringSlice(key, sep string, def []string) []string

	// PropertyNames returns the snapshot's keys in sorted order.
	PropertyNames() []string

	// SourceType reports where the current snapshot came from.
	SourceType() repository.SourceType

	// AddChangeListener subscribes l and returns a function that removes
	// it.
	AddChangeListener(l ChangeListener, opts ...ListenerOption) (remove func())
}

// ConfigOption configures a [DefaultConfig].
type ConfigOption func(*DefaultConfig)

// WithConfigLogger sets the logger.
func WithConfigLogger(logger *slog.Logger) ConfigOption {
	return func(c *DefaultConfig) { c.logger = logger }
}

// WithConfigOverrides sets the process-level overrides consulted first.
func WithConfigOverrides(o *Overrides) ConfigOption {
	return func(c *DefaultConfig) { c.overrides = o }
}

// WithConfigResources sets the file system holding resource defaults at
// config/{namespace}.properties.
func WithConfigResources(fsys fs.FS) ConfigOption {
	return func(c *DefaultConfig) { c.resourceFS = fsys }
}

// WithTypedCache sizes the typed caches. A size of zero disables them.
func WithTypedCache(size int, expire time.Duration) ConfigOption {
	return func(c *DefaultConfig) {
		c.cacheSize = size
		c.cacheExpire = expire
	}
}

// WithListenerPool runs change listeners on pool instead of fresh
// goroutines.
func WithListenerPool(pool Submitter) ConfigOption {
	return func(c *DefaultConfig) { c.dispatcher.tasks.pool = pool }
}

// DefaultConfig is the [Config] over a repository chain.
type DefaultConfig struct {
	namespace  string
	repo       repository.Repository
	overrides  *Overrides
	resourceFS fs.FS
	resources  map[string]string
	logger     *slog.Logger
	dispatcher dispatcher

	// changeMu serializes change processing.
	changeMu sync.Mutex
	snap     atomic.Pointer[repository.Snapshot]

	cacheSize   int
	cacheExpire time.Duration
	cacheMu     sync.Mutex
	caches      map[string]*expirable.LRU[string, any]
	generation  atomic.Uint64

	parseWarnings *gocache.Cache
	missingWarn   *rate.Limiter
}

// NewDefaultConfig creates the config of namespace over repo and loads its
// first snapshot. When that load fails the config is still returned,
// serving overrides, environment and defaults, together with the error;
// later repository changes fill it in.
func NewDefaultConfig(ctx context.Context, namespace string, repo repository.Repository, opts ...ConfigOption) (*DefaultConfig, error) {
	c := &DefaultConfig{
		namespace:     namespace,
		repo:          repo,
		logger:        slog.Default(),
		cacheSize:     DefaultCacheSize,
		cacheExpire:   DefaultCacheExpire,
		caches:        make(map[string]*expirable.LRU[string, any]),
		parseWarnings: gocache.New(warnInterval, 2*warnInterval),
		missingWarn:   rate.NewLimiter(rate.Every(warnInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "config", "namespace", namespace)
	c.dispatcher.logger = c.logger
	c.dispatcher.tasks.logger = c.logger
	c.resources = c.loadResources()

	repo.AddChangeListener(c)
	snap, err := repo.Config(ctx)
	if err != nil {
		c.logger.Warn("initial load failed, serving defaults", "error", err)
		return c, err
	}
	c.snap.CompareAndSwap(nil, snap)
	return c, nil
}

// Namespace returns the namespace served.
func (c *DefaultConfig) Namespace() string {
	return c.namespace
}

// Lookup resolves key through overrides, the snapshot, the environment and
// resource defaults.
func (c *DefaultConfig) Lookup(key string) (string, bool) {
	return c.resolve(c.snap.Load(), key)
}

func (c *DefaultConfig) resolve(snap *repository.Snapshot, key string) (string, bool) {
	if v, ok := c.overrides.Get(key); ok {
		return v, true
	}
	if v, ok := snap.Get(key); ok {
		return v, true
	}
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	if v, ok := c.resources[key]; ok {
		return v, true
	}
	return "", false
}

// Property returns the value of key or def.
func (c *DefaultConfig) Property(key, def string) string {
	if v, ok := c.Lookup(key); ok {
		return v
	}
	c.warnMissing(key)
	return def
}

// String is an alias of Property.
func (c *DefaultConfig) String(key, def string) string {
	return c.Property(key, def)
}

// PropertyNames returns the snapshot's keys in sorted order.
func (c *DefaultConfig) PropertyNames() []string {
	return c.snap.Load().Keys()
}

// SourceType reports where the current snapshot came from, NONE before the
// first successful load.
func (c *DefaultConfig) SourceType() repository.SourceType {
	return c.snap.Load().Source()
}

// AddChangeListener subscribes l. With no options l receives every change.
func (c *DefaultConfig) AddChangeListener(l ChangeListener, opts ...ListenerOption) func() {
	return c.dispatcher.add(l, opts...)
}

// OnRepositoryChange installs snap and publishes the changes that are
// visible through the lookup chain. A key whose effective value is masked
// by an override or the environment on both sides is not reported.
func (c *DefaultConfig) OnRepositoryChange(_ string, snap *repository.Snapshot) {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()

	prev := c.snap.Load()
	if snap.Equal(prev) {
		return
	}

	candidates := Diff(prev, snap)
	before := make(map[string]*string, len(candidates))
	for key := range candidates {
		before[key] = c.effective(prev, key)
	}

	c.cacheMu.Lock()
	c.snap.Store(snap)
	c.generation.Add(1)
	for _, cache := range c.caches {
		cache.Purge()
	}
	c.cacheMu.Unlock()

	changes := make(map[string]Change, len(candidates))
	for key, change := range candidates {
		change.Namespace = c.namespace
		change.OldValue = before[key]
		change.NewValue = c.effective(snap, key)
		if equalValues(change.OldValue, change.NewValue) {
			continue
		}
		switch {
		case change.Type == Added && change.OldValue != nil:
			change.Type = Modified
		case change.Type == Deleted && change.NewValue != nil:
			change.Type = Modified
		}
		changes[key] = change
	}

	if len(changes) == 0 {
		c.logger.Debug("snapshot replaced without visible changes")
		return
	}
	c.logger.Info("config changed", "keys", len(changes), "source", snap.Source())
	c.dispatcher.dispatch(newChangeEvent(c.namespace, changes))
}

func (c *DefaultConfig) effective(snap *repository.Snapshot, key string) *string {
	if v, ok := c.resolve(snap, key); ok {
		return &v
	}
	return nil
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (c *DefaultConfig) loadResources() map[string]string {
	if c.resourceFS == nil {
		return nil
	}
	name := path.Join("config", c.namespace+".properties")
	data, err := fs.ReadFile(c.resourceFS, name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("cannot read resource defaults", "file", name, "error", err)
		}
		return nil
	}
	var props map[string]string
	if err = (codec.PropertiesCodec{}).Decode(data, &props); err != nil {
		c.logger.Warn("cannot parse resource defaults", "file", name, "error", err)
		return nil
	}
	return props
}

// warnMissing logs, at most once per minute, that a default is served
// because no snapshot was ever loaded.
func (c *DefaultConfig) warnMissing(key string) {
	if c.snap.Load() != nil || !c.missingWarn.Allow() {
		return
	}
	c.logger.Warn("no snapshot loaded, returning default value", "key", key)
}

// warnParse logs a conversion failure at most once per minute per key and
// kind.
func (c *DefaultConfig) warnParse(kind, key, raw string, err error) {
	if c.parseWarnings.Add(kind+"\x00"+key, struct{}{}, gocache.DefaultExpiration) != nil {
		return
	}
	c.logger.Warn("cannot parse property, returning default value", "key", key, "type", kind, "value", raw,
		"error", err)
}
