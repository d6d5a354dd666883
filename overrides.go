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
	"sync"
)

// Overrides holds process-level values that take precedence over every
// repository. One instance is shared by all configs of a [Client].
type Overrides struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewOverrides creates an empty set.
func NewOverrides() *Overrides {
	return &Overrides{values: make(map[string]string)}
}

// Set stores value under key.
func (o *Overrides) Set(key, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[key] = value
}

// Delete removes key.
func (o *Overrides) Delete(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.values, key)
}

// Get returns the value of key. It is safe to call on a nil Overrides.
func (o *Overrides) Get(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[key]
	return v, ok
}

// All returns a copy of every override.
func (o *Overrides) All() map[string]string {
	if o == nil {
		return map[string]string{}
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.values)
}
