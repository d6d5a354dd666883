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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// store is the durable copy behind a layered repository.
type store interface {
	load(ctx context.Context) (map[string]string, error)
	save(ctx context.Context, props map[string]string) error
	source() SourceType
	location() string
}

// layered holds the logic shared by [LocalFile] and [ConfigMap]: prefer the
// upstream, persist what it returns, fall back to the store.
type layered struct {
	listeners

	namespace string
	store     store
	logger    *slog.Logger

	mu       sync.Mutex
	upstream Repository
	// setupErr is the failure of the sync run by SetUpstream, returned once
	// by the next Config instead of a second round trip.
	setupErr error

	snap atomic.Pointer[Snapshot]
}

// Namespace returns the namespace served.
func (l *layered) Namespace() string {
	return l.namespace
}

// SourceType reports where the held snapshot came from, NONE if there is
// none.
func (l *layered) SourceType() SourceType {
	return l.snap.Load().Source()
}

// SetUpstream layers the repository over upstream, replacing any previous
// upstream, and syncs right away, falling back to the durable copy.
func (l *layered) SetUpstream(ctx context.Context, upstream Repository) {
	l.mu.Lock()
	if l.upstream != nil {
		l.upstream.RemoveChangeListener(l)
	}
	l.upstream = upstream
	if upstream != nil {
		upstream.AddChangeListener(l)
	}
	l.mu.Unlock()

	if upstream == nil {
		return
	}
	err := l.Sync(ctx)
	if err != nil {
		l.logger.Warn("no snapshot after setting upstream", "error", err)
	}
	l.mu.Lock()
	l.setupErr = err
	l.mu.Unlock()
}

// Config returns the held snapshot, syncing when none is held.
func (l *layered) Config(ctx context.Context) (*Snapshot, error) {
	if snap := l.snap.Load(); snap != nil {
		return snap, nil
	}
	l.mu.Lock()
	err := l.setupErr
	l.setupErr = nil
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err = l.Sync(ctx); err != nil {
		return nil, err
	}
	return l.snap.Load(), nil
}

// Sync takes the upstream's snapshot and persists it. If that fails the
// durable copy is loaded instead.
func (l *layered) Sync(ctx context.Context) error {
	upstream := l.currentUpstream()

	var upstreamErr error
	if upstream != nil {
		if upstreamErr = l.syncFromUpstream(ctx, upstream); upstreamErr == nil {
			return nil
		}
		l.logger.Warn("sync from upstream failed, using durable copy", "error", upstreamErr)
	}

	props, err := l.store.load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoSnapshot, l.namespace, errors.Join(upstreamErr, err))
	}
	l.logger.Debug("loaded durable copy", "location", l.store.location(), "keys", len(props))
	l.snap.Store(NewSnapshot(props, l.store.source()))
	return nil
}

// OnRepositoryChange persists and forwards an upstream change.
func (l *layered) OnRepositoryChange(namespace string, snap *Snapshot) {
	if snap.Equal(l.snap.Load()) {
		return
	}
	if upstream := l.currentUpstream(); upstream != nil {
		snap = snap.WithSource(upstream.SourceType())
	}
	l.update(context.Background(), snap)
	l.fire(namespace, snap)
}

func (l *layered) currentUpstream() Repository {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.upstream
}

func (l *layered) syncFromUpstream(ctx context.Context, upstream Repository) error {
	snap, err := upstream.Config(ctx)
	if err != nil {
		return err
	}
	l.update(ctx, snap.WithSource(upstream.SourceType()))
	return nil
}

// update installs snap, persisting it when the content changed.
func (l *layered) update(ctx context.Context, snap *Snapshot) {
	prev := l.snap.Swap(snap)
	if prev.Equal(snap) {
		return
	}
	if err := l.store.save(ctx, snap.Map()); err != nil {
		l.logger.Warn("could not persist durable copy", "location", l.store.location(),
			"error", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
}
