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

package remoteconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rivaas.dev/remoteconfig/repository"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		prev map[string]string
		cur  map[string]string
		want map[string]Change
	}{
		{
			name: "added modified deleted",
			prev: map[string]string{"a": "1", "c": "3", "same": "s"},
			cur:  map[string]string{"a": "2", "b": "x", "same": "s"},
			want: map[string]Change{
				"a": {Key: "a", OldValue: strPtr("1"), NewValue: strPtr("2"), Type: Modified},
				"b": {Key: "b", NewValue: strPtr("x"), Type: Added},
				"c": {Key: "c", OldValue: strPtr("3"), Type: Deleted},
			},
		},
		{
			name: "equal snapshots",
			prev: map[string]string{"a": "1"},
			cur:  map[string]string{"a": "1"},
			want: map[string]Change{},
		},
		{
			name: "from nothing",
			prev: nil,
			cur:  map[string]string{"a": "1"},
			want: map[string]Change{"a": {Key: "a", NewValue: strPtr("1"), Type: Added}},
		},
		{
			name: "empty value is a value",
			prev: map[string]string{"a": ""},
			cur:  map[string]string{},
			want: map[string]Change{"a": {Key: "a", OldValue: strPtr(""), Type: Deleted}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var prev *repository.Snapshot
			if tt.prev != nil {
				prev = repository.NewSnapshot(tt.prev, repository.SourceRemote)
			}
			cur := repository.NewSnapshot(tt.cur, repository.SourceRemote)
			assert.Equal(t, tt.want, Diff(prev, cur))
		})
	}
}

func TestChangeEvent(t *testing.T) {
	t.Parallel()

	event := newChangeEvent("application", map[string]Change{
		"b": {Key: "b", Type: Added},
		"a": {Key: "a", Type: Deleted},
	})

	assert.Equal(t, "application", event.Namespace())
	assert.Equal(t, []string{"a", "b"}, event.ChangedKeys())
	assert.Equal(t, []string{"a", "b"}, event.InterestedChangedKeys())
	assert.True(t, event.IsChanged("a"))
	assert.False(t, event.IsChanged("c"))

	change, ok := event.Change("b")
	assert.True(t, ok)
	assert.Equal(t, Added, change.Type)

	narrowed := event.withInterested([]string{"b"})
	assert.Equal(t, []string{"b"}, narrowed.InterestedChangedKeys())
	assert.Equal(t, []string{"a", "b"}, event.InterestedChangedKeys(), "the original is untouched")
}

func TestChange_String(t *testing.T) {
	t.Parallel()

	c := Change{Key: "a", OldValue: strPtr("1"), Type: Deleted}
	assert.Equal(t, "DELETED a: 1 -> <nil>", c.String())
}
