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
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Factory builds configs and config files. The [Client] installs one that
// assembles the repository chain from its settings.
type Factory interface {
	// CreateConfig returns the config of namespace. A non-nil config with
	// a non-nil error is usable but has no snapshot yet.
	CreateConfig(ctx context.Context, namespace string) (Config, error)

	// CreateConfigFile returns the file view of namespace in format, with
	// the same error convention as CreateConfig.
	CreateConfigFile(ctx context.Context, namespace string, format Format) (*ConfigFile, error)
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// Manager keeps one config and one config file per namespace. Creating two
// different namespaces never contends on the same lock; concurrent requests
// for the same new namespace wait for a single factory call.
type Manager struct {
	factory Factory
	logger  *slog.Logger

	mu      sync.RWMutex
	configs map[string]Config
	files   map[string]*ConfigFile

	factoriesMu sync.RWMutex
	factories   map[string]Factory

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager creates a Manager that builds through factory unless a
// namespace has its own factory.
func NewManager(factory Factory, opts ...ManagerOption) *Manager {
	m := &Manager{
		factory:   factory,
		logger:    slog.Default(),
		configs:   make(map[string]Config),
		files:     make(map[string]*ConfigFile),
		factories: make(map[string]Factory),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "manager")
	return m
}

// RegisterFactory makes f build namespace. For config files the namespace
// includes the format, as in "db.yaml". It affects only namespaces not
// created yet.
func (m *Manager) RegisterFactory(namespace string, f Factory) {
	m.factoriesMu.Lock()
	defer m.factoriesMu.Unlock()
	m.factories[namespace] = f
}

// GetConfig returns the config of namespace, creating it on first use. A
// ".properties" suffix is ignored.
//
// Errors:
//   - On the call that creates the config, returns the usable config
//     together with an [*Error] when no repository produced a snapshot.
//     Later calls return the same config and no error.
func (m *Manager) GetConfig(ctx context.Context, namespace string) (Config, error) {
	namespace = normalizeNamespace(namespace)
	if c, ok := m.lookupConfig(namespace); ok {
		return c, nil
	}

	lock := m.lock("config:" + namespace)
	lock.Lock()
	defer lock.Unlock()

	if c, ok := m.lookupConfig(namespace); ok {
		return c, nil
	}

	c, err := m.factoryFor(namespace).CreateConfig(ctx, namespace)
	if c == nil {
		if err == nil {
			err = errors.New("factory returned no config")
		}
		return nil, NewError(namespace, "create", err)
	}

	m.mu.Lock()
	m.configs[namespace] = c
	m.mu.Unlock()

	if err != nil {
		return c, NewError(namespace, "load", err)
	}
	return c, nil
}

// GetConfigFile returns the file view of namespace in format, creating it
// on first use. Files are keyed by "namespace.format".
func (m *Manager) GetConfigFile(ctx context.Context, namespace string, format Format) (*ConfigFile, error) {
	key := namespace + "." + string(format)
	if f, ok := m.lookupFile(key); ok {
		return f, nil
	}

	lock := m.lock("file:" + key)
	lock.Lock()
	defer lock.Unlock()

	if f, ok := m.lookupFile(key); ok {
		return f, nil
	}

	f, err := m.factoryFor(key).CreateConfigFile(ctx, namespace, format)
	if f == nil {
		if err == nil {
			err = errors.New("factory returned no config file")
		}
		return nil, NewError(key, "create", err)
	}

	m.mu.Lock()
	m.files[key] = f
	m.mu.Unlock()

	if err != nil {
		return f, NewError(key, "load", err)
	}
	return f, nil
}

// Namespaces returns the namespaces with a created config, sorted.
func (m *Manager) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.configs))
}

func (m *Manager) lookupConfig(namespace string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[namespace]
	return c, ok
}

func (m *Manager) lookupFile(key string) (*ConfigFile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[key]
	return f, ok
}

// lock returns the creation lock of key. Locks live in their own map so
// that creating one namespace never holds a lock another needs.
func (m *Manager) lock(key string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Manager) factoryFor(namespace string) Factory {
	m.factoriesMu.RLock()
	defer m.factoriesMu.RUnlock()
	if f, ok := m.factories[namespace]; ok {
		return f
	}
	return m.factory
}

func normalizeNamespace(namespace string) string {
	namespace = strings.TrimSpace(namespace)
	if f, ok := FormatOf(namespace); ok && f == FormatProperties {
		return TrimFormat(namespace)
	}
	return namespace
}
