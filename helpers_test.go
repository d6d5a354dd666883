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
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventRecorder is a ChangeListener that records events.
type eventRecorder struct {
	mu     sync.Mutex
	events []ChangeEvent
	signal chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{signal: make(chan struct{}, 64)}
}

func (r *eventRecorder) OnChange(event ChangeEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *eventRecorder) all() []ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChangeEvent(nil), r.events...)
}

func (r *eventRecorder) wait(t *testing.T) ChangeEvent {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}
	all := r.all()
	return all[len(all)-1]
}

// quiet waits briefly and reports whether no event arrived.
func (r *eventRecorder) quiet() bool {
	select {
	case <-r.signal:
		return false
	case <-time.After(100 * time.Millisecond):
		return true
	}
}

func strPtr(s string) *string {
	return &s
}
