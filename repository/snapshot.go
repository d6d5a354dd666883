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
	"maps"
	"slices"
)

// SourceType tells where a snapshot came from.
type SourceType string

// Snapshot sources.
const (
	SourceRemote    SourceType = "REMOTE"
	SourceLocal     SourceType = "LOCAL"
	SourceConfigMap SourceType = "CONFIGMAP"
	SourceNone      SourceType = "NONE"
	SourceStatic    SourceType = "STATIC"
)

// Snapshot is an immutable set of properties with sorted keys. A nil
// *Snapshot behaves as an empty snapshot with source NONE.
type Snapshot struct {
	values map[string]string
	keys   []string
	source SourceType
}

// NewSnapshot copies props into a new snapshot.
func NewSnapshot(props map[string]string, source SourceType) *Snapshot {
	values := maps.Clone(props)
	if values == nil {
		values = map[string]string{}
	}
	return &Snapshot{
		values: values,
		keys:   slices.Sorted(maps.Keys(values)),
		source: source,
	}
}

// Get returns the value of key.
func (s *Snapshot) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the sorted keys.
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

// Len returns the number of properties.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Map returns a copy of the properties.
func (s *Snapshot) Map() map[string]string {
	if s == nil {
		return map[string]string{}
	}
	return maps.Clone(s.values)
}

// Source returns the snapshot's origin.
func (s *Snapshot) Source() SourceType {
	if s == nil {
		return SourceNone
	}
	return s.source
}

// Equal compares content only; sources are ignored. A nil snapshot only
// equals nil.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return maps.Equal(s.values, other.values)
}

// WithSource returns the same content tagged with source.
func (s *Snapshot) WithSource(source SourceType) *Snapshot {
	if s == nil {
		return NewSnapshot(nil, source)
	}
	if s.source == source {
		return s
	}
	return &Snapshot{values: s.values, keys: s.keys, source: source}
}
