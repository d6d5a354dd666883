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

package repository

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"time"
)

// DefaultKVTimeout bounds every store call of a [ConfigMap] without a
// configured timeout.
const DefaultKVTimeout = 5 * time.Second

// ErrKeyNotFound is returned by a [KVStore] for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// KVStore is a platform key/value resource that holds one namespace per
// key.
type KVStore interface {
	Get(ctx context.Context, key string) (map[string]string, error)
	Put(ctx context.Context, key string, props map[string]string) error
}

// ConfigMapConfig holds the inputs of a [ConfigMap].
type ConfigMapConfig struct {
	AppID     string
	Cluster   string
	Namespace string

	// Prefix is prepended to every key.
	Prefix string

	// Timeout bounds each Get and Put. Defaults to [DefaultKVTimeout].
	Timeout time.Duration
}

// ConfigMapKey returns the store key of a namespace.
func ConfigMapKey(prefix, appID, cluster, namespace string) string {
	return path.Join(prefix, appID, cluster, namespace)
}

// ConfigMapOption configures a [ConfigMap].
type ConfigMapOption func(*ConfigMap)

// WithConfigMapLogger sets the logger.
func WithConfigMapLogger(logger *slog.Logger) ConfigMapOption {
	return func(c *ConfigMap) { c.logger = logger }
}

// ConfigMap persists an upstream's snapshots into a [KVStore] and serves the
// stored copy, tagged CONFIGMAP, when the upstream fails.
type ConfigMap struct {
	*layered
	kv *kvStore
}

// NewConfigMap creates a ConfigMap over kv.
func NewConfigMap(cfg ConfigMapConfig, kv KVStore, opts ...ConfigMapOption) *ConfigMap {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultKVTimeout
	}
	store := &kvStore{
		kv:      kv,
		key:     ConfigMapKey(cfg.Prefix, cfg.AppID, cfg.Cluster, cfg.Namespace),
		timeout: cfg.Timeout,
	}
	c := &ConfigMap{
		layered: &layered{namespace: cfg.Namespace, store: store, logger: slog.Default()},
		kv:      store,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "repository", "kind", "configmap", "namespace", cfg.Namespace)
	c.listeners.logger = c.logger
	return c
}

// Key returns the store key.
func (c *ConfigMap) Key() string {
	return c.kv.key
}

type kvStore struct {
	kv      KVStore
	key     string
	timeout time.Duration
}

func (s *kvStore) load(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.kv.Get(ctx, s.key)
}

func (s *kvStore) save(ctx context.Context, props map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.kv.Put(ctx, s.key, props)
}

func (s *kvStore) source() SourceType {
	return SourceConfigMap
}

func (s *kvStore) location() string {
	return s.key
}
