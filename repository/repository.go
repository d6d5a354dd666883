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
	"slices"
	"sync"
)

var (
	// ErrNotFound reports a namespace unknown to the config service. It is
	// not retried.
	ErrNotFound = errors.New("namespace not found")

	// ErrTransient reports a failure that a later attempt may not see.
	ErrTransient = errors.New("transient failure")

	// ErrNoSnapshot reports that no source could supply a snapshot.
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrPersistence reports a failure to write the local copy.
	ErrPersistence = errors.New("persistence failed")
)

// Listener is told about a repository's new snapshot.
type Listener interface {
	OnRepositoryChange(namespace string, snap *Snapshot)
}

// Repository supplies snapshots of one namespace.
type Repository interface {
	// Namespace returns the namespace served.
	Namespace() string

	// Config returns the current snapshot, loading it on first use.
	Config(ctx context.Context) (*Snapshot, error)

	// Sync reloads the snapshot from the repository's source.
	Sync(ctx context.Context) error

	// SourceType reports where the current snapshot came from.
	SourceType() SourceType

	AddChangeListener(l Listener)
	RemoveChangeListener(l Listener)
}

// Layered repositories persist or transform the snapshots of an upstream.
type Layered interface {
	Repository
	SetUpstream(ctx context.Context, upstream Repository)
}

// listeners is the listener registry embedded by every repository.
type listeners struct {
	mu     sync.RWMutex
	list   []Listener
	logger *slog.Logger
}

// AddChangeListener subscribes l. Adding the same listener twice has no
// effect.
func (r *listeners) AddChangeListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.list, l) {
		r.list = append(r.list, l)
	}
}

// RemoveChangeListener unsubscribes l.
func (r *listeners) RemoveChangeListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.list, l); i >= 0 {
		r.list = slices.Delete(r.list, i, i+1)
	}
}

// fire calls every listener in registration order. A panicking listener is
// logged and skipped.
func (r *listeners) fire(namespace string, snap *Snapshot) {
	r.mu.RLock()
	targets := slices.Clone(r.list)
	r.mu.RUnlock()

	for _, l := range targets {
		r.call(l, namespace, snap)
	}
}

func (r *listeners) call(l Listener, namespace string, snap *Snapshot) {
	defer func() {
		if p := recover(); p != nil {
			logger := r.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("repository listener panicked", "namespace", namespace, "panic", p)
		}
	}()
	l.OnRepositoryChange(namespace, snap)
}
