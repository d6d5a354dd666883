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
	"sync/atomic"
)

// Static is an in-memory repository whose content is set in code. It is
// meant for tests and for namespaces assembled by the application.
type Static struct {
	listeners

	namespace string
	snap      atomic.Pointer[Snapshot]
}

// NewStatic creates a Static repository holding props.
func NewStatic(namespace string, props map[string]string) *Static {
	s := &Static{namespace: namespace}
	s.snap.Store(NewSnapshot(props, SourceStatic))
	return s
}

// Namespace returns the namespace served.
func (s *Static) Namespace() string { return s.namespace }

// SourceType is always STATIC.
func (s *Static) SourceType() SourceType { return SourceStatic }

// Config returns the held snapshot.
func (s *Static) Config(context.Context) (*Snapshot, error) { return s.snap.Load(), nil }

// Sync does nothing.
func (s *Static) Sync(context.Context) error { return nil }

// Set replaces the content and notifies listeners if it changed.
func (s *Static) Set(props map[string]string) {
	snap := NewSnapshot(props, SourceStatic)
	if snap.Equal(s.snap.Swap(snap)) {
		return
	}
	s.fire(s.namespace, snap)
}
