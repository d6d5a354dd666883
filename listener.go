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
	"runtime/debug"
	"slices"
	"strings"
	"sync"

	"rivaas.dev/remoteconfig/internal/workerpool"
)

// ChangeListener receives config change events.
type ChangeListener interface {
	OnChange(event ChangeEvent)
}

// ChangeListenerFunc adapts a function to [ChangeListener].
type ChangeListenerFunc func(event ChangeEvent)

// OnChange calls f.
func (f ChangeListenerFunc) OnChange(event ChangeEvent) {
	f(event)
}

// ListenerOption narrows the changes a listener receives.
type ListenerOption func(*listenerEntry)

// WithInterestedKeys delivers events only when one of keys changed.
func WithInterestedKeys(keys ...string) ListenerOption {
	return func(e *listenerEntry) { e.keys = append(e.keys, keys...) }
}

// WithInterestedKeyPrefixes delivers events only when a key starting with
// one of prefixes changed.
func WithInterestedKeyPrefixes(prefixes ...string) ListenerOption {
	return func(e *listenerEntry) { e.prefixes = append(e.prefixes, prefixes...) }
}

type listenerEntry struct {
	listener ChangeListener
	keys     []string
	prefixes []string
}

// interestedIn returns the keys of changed that the listener asked for. A
// listener without filters is interested in everything.
func (e *listenerEntry) interestedIn(changed []string) []string {
	if len(e.keys) == 0 && len(e.prefixes) == 0 {
		return changed
	}
	var out []string
	for _, key := range changed {
		if slices.Contains(e.keys, key) || slices.ContainsFunc(e.prefixes, func(p string) bool {
			return strings.HasPrefix(key, p)
		}) {
			out = append(out, key)
		}
	}
	return out
}

// Submitter queues background tasks. It is implemented by the internal
// worker pools.
type Submitter interface {
	Submit(ctx context.Context, task workerpool.Task) error
	TrySubmit(task workerpool.Task) error
}

// handoff feeds tasks to a pool without ever blocking the caller. Tasks
// that find the pool full wait in an unbounded queue drained, in order, by
// a single goroutine.
type handoff struct {
	pool   Submitter
	logger *slog.Logger

	mu       sync.Mutex
	queue    []workerpool.Task
	draining bool
}

func (h *handoff) submit(task workerpool.Task) {
	if h.pool == nil {
		go task(context.Background())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.draining {
		err := h.pool.TrySubmit(task)
		if err == nil {
			return
		}
		if errors.Is(err, workerpool.ErrClosed) {
			h.logger.Warn("listener pool closed, dropping notification")
			return
		}
		h.draining = true
		go h.drain()
	}
	h.queue = append(h.queue, task)
}

func (h *handoff) drain() {
	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.draining = false
			h.mu.Unlock()
			return
		}
		task := h.queue[0]
		h.queue[0] = nil
		h.queue = h.queue[1:]
		h.mu.Unlock()

		if err := h.pool.Submit(context.Background(), task); err != nil {
			h.logger.Warn("could not queue listener", "error", err)
		}
	}
}

// pending returns the number of tasks waiting for pool space.
func (h *handoff) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// dispatcher fans events out to registered listeners, each on the listener
// pool and each behind its own recover.
type dispatcher struct {
	mu      sync.RWMutex
	entries []*listenerEntry
	tasks   handoff
	logger  *slog.Logger
}

func (d *dispatcher) add(l ChangeListener, opts ...ListenerOption) func() {
	entry := &listenerEntry{listener: l}
	for _, opt := range opts {
		opt(entry)
	}

	d.mu.Lock()
	d.entries = append(d.entries, entry)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if i := slices.Index(d.entries, entry); i >= 0 {
			d.entries = slices.Delete(d.entries, i, i+1)
		}
	}
}

func (d *dispatcher) dispatch(event ChangeEvent) {
	d.mu.RLock()
	entries := slices.Clone(d.entries)
	d.mu.RUnlock()

	for _, entry := range entries {
		keys := entry.interestedIn(event.keys)
		if len(keys) == 0 {
			continue
		}
		personal := event.withInterested(keys)
		d.tasks.submit(func(context.Context) { d.call(entry.listener, personal) })
	}
}

func (d *dispatcher) call(l ChangeListener, event ChangeEvent) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("change listener panicked", "namespace", event.namespace, "panic", p,
				"stack", string(debug.Stack()))
		}
	}()
	l.OnChange(event)
}
