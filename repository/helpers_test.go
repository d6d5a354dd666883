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
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type change struct {
	namespace string
	snap      *Snapshot
}

// recordingListener collects repository changes.
type recordingListener struct {
	mu      sync.Mutex
	changes []change
	signal  chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{signal: make(chan struct{}, 64)}
}

func (r *recordingListener) OnRepositoryChange(namespace string, snap *Snapshot) {
	r.mu.Lock()
	r.changes = append(r.changes, change{namespace: namespace, snap: snap})
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recordingListener) all() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]change(nil), r.changes...)
}

func (r *recordingListener) wait(t *testing.T) change {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("no repository change received")
	}
	all := r.all()
	return all[len(all)-1]
}

// failingRepository is an upstream that is always down.
type failingRepository struct {
	listeners
	namespace string
	calls     atomic.Int32
}

var errUpstreamDown = errors.New("upstream down")

func (f *failingRepository) Namespace() string { return f.namespace }

func (f *failingRepository) Config(context.Context) (*Snapshot, error) {
	f.calls.Add(1)
	return nil, errUpstreamDown
}

func (f *failingRepository) Sync(context.Context) error {
	f.calls.Add(1)
	return errUpstreamDown
}

func (f *failingRepository) SourceType() SourceType { return SourceNone }
