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

//go:build !integration

package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	t.Parallel()

	props := map[string]string{"b": "2", "a": "1", "c": "3"}
	snap := NewSnapshot(props, SourceRemote)
	props["a"] = "mutated"

	assert.Equal(t, []string{"a", "b", "c"}, snap.Keys())
	assert.Equal(t, 3, snap.Len())
	v, ok := snap.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = snap.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, SourceRemote, snap.Source())

	copied := snap.Map()
	copied["a"] = "changed"
	v, _ = snap.Get("a")
	assert.Equal(t, "1", v)

	keys := snap.Keys()
	keys[0] = "z"
	assert.Equal(t, "a", snap.Keys()[0])
}

func TestSnapshot_Equal(t *testing.T) {
	t.Parallel()

	a := NewSnapshot(map[string]string{"k": "v"}, SourceRemote)
	b := NewSnapshot(map[string]string{"k": "v"}, SourceLocal)
	c := NewSnapshot(map[string]string{"k": "other"}, SourceRemote)
	empty := NewSnapshot(nil, SourceRemote)
	var none *Snapshot

	assert.True(t, a.Equal(b), "sources are ignored")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(none))
	assert.False(t, none.Equal(empty))
	assert.True(t, none.Equal(nil))
	assert.True(t, empty.Equal(NewSnapshot(map[string]string{}, SourceLocal)))
}

func TestSnapshot_WithSource(t *testing.T) {
	t.Parallel()

	a := NewSnapshot(map[string]string{"k": "v"}, SourceRemote)
	assert.Same(t, a, a.WithSource(SourceRemote))

	local := a.WithSource(SourceLocal)
	assert.Equal(t, SourceLocal, local.Source())
	assert.Equal(t, SourceRemote, a.Source())
	assert.True(t, a.Equal(local))

	var none *Snapshot
	assert.Equal(t, SourceNone, none.Source())
	assert.Equal(t, 0, none.Len())
	assert.Nil(t, none.Keys())
	assert.Empty(t, none.Map())
	assert.Equal(t, SourceLocal, none.WithSource(SourceLocal).Source())
}
