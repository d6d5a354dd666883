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
	"maps"
	"slices"

	"rivaas.dev/remoteconfig/repository"
)

// ChangeType classifies a property change.
type ChangeType string

const (
	Added    ChangeType = "ADDED"
	Modified ChangeType = "MODIFIED"
	Deleted  ChangeType = "DELETED"
)

// Change describes one changed property. OldValue is nil for an added key
// and NewValue is nil for a deleted one.
type Change struct {
	Namespace string
	Key       string
	OldValue  *string
	NewValue  *string
	Type      ChangeType
}

func (c Change) String() string {
	return string(c.Type) + " " + c.Key + ": " + deref(c.OldValue) + " -> " + deref(c.NewValue)
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// Diff classifies every key that differs between prev and cur. Keys with
// equal values never appear. Either snapshot may be nil.
func Diff(prev, cur *repository.Snapshot) map[string]Change {
	changes := make(map[string]Change)
	for _, key := range prev.Keys() {
		oldValue, _ := prev.Get(key)
		newValue, ok := cur.Get(key)
		switch {
		case !ok:
			changes[key] = Change{Key: key, OldValue: &oldValue, Type: Deleted}
		case oldValue != newValue:
			changes[key] = Change{Key: key, OldValue: &oldValue, NewValue: &newValue, Type: Modified}
		}
	}
	for _, key := range cur.Keys() {
		if _, ok := prev.Get(key); ok {
			continue
		}
		newValue, _ := cur.Get(key)
		changes[key] = Change{Key: key, NewValue: &newValue, Type: Added}
	}
	return changes
}

// ChangeEvent is delivered to config change listeners. Each listener gets
// its own copy whose interested keys reflect its registration.
type ChangeEvent struct {
	namespace  string
	changes    map[string]Change
	keys       []string
	interested []string
}

func newChangeEvent(namespace string, changes map[string]Change) ChangeEvent {
	keys := slices.Sorted(maps.Keys(changes))
	return ChangeEvent{namespace: namespace, changes: changes, keys: keys, interested: keys}
}

// Namespace returns the namespace that changed.
func (e ChangeEvent) Namespace() string {
	return e.namespace
}

// ChangedKeys returns every changed key in sorted order.
func (e ChangeEvent) ChangedKeys() []string {
	return slices.Clone(e.keys)
}

// InterestedChangedKeys returns the changed keys the receiving listener
// registered for, or every changed key for a listener without filters.
func (e ChangeEvent) InterestedChangedKeys() []string {
	return slices.Clone(e.interested)
}

// Change returns the change of key.
func (e ChangeEvent) Change(key string) (Change, bool) {
	c, ok := e.changes[key]
	return c, ok
}

// IsChanged reports whether key changed.
func (e ChangeEvent) IsChanged(key string) bool {
	_, ok := e.changes[key]
	return ok
}

func (e ChangeEvent) withInterested(keys []string) ChangeEvent {
	e.interested = keys
	return e
}
