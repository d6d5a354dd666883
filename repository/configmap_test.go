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
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryKV is an in-memory KVStore.
type memoryKV struct {
	mu     sync.Mutex
	data   map[string]map[string]string
	putErr error
	puts   int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	props, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return maps.Clone(props), nil
}

func (m *memoryKV) Put(_ context.Context, key string, props map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = maps.Clone(props)
	return nil
}

func TestConfigMapKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "with prefix", prefix: "remoteconfig", want: "remoteconfig/app/default/application"},
		{name: "nested prefix", prefix: "team/configs/", want: "team/configs/app/default/application"},
		{name: "no prefix", prefix: "", want: "app/default/application"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ConfigMapKey(tt.prefix, "app", "default", "application"))
		})
	}
}

func newConfigMap(kv KVStore) *ConfigMap {
	return NewConfigMap(ConfigMapConfig{
		AppID:     "app",
		Cluster:   "default",
		Namespace: "application",
		Prefix:    "remoteconfig",
	}, kv, WithConfigMapLogger(discardLogger()))
}

func TestConfigMap_PersistsUpstream(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	c := newConfigMap(kv)
	c.SetUpstream(context.Background(), NewStatic("application", map[string]string{"a": "1"}))

	stored, err := kv.Get(context.Background(), c.Key())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1"}, stored)
	assert.Equal(t, SourceStatic, c.SourceType())
}

func TestConfigMap_FallsBackToStore(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	kv.data["remoteconfig/app/default/application"] = map[string]string{"k": "v"}
	c := newConfigMap(kv)
	c.SetUpstream(context.Background(), &failingRepository{namespace: "application"})

	snap, err := c.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, snap.Map())
	assert.Equal(t, SourceConfigMap, snap.Source())
}

func TestConfigMap_NothingAnywhere(t *testing.T) {
	t.Parallel()

	c := newConfigMap(newMemoryKV())
	c.SetUpstream(context.Background(), &failingRepository{namespace: "application"})

	_, err := c.Config(context.Background())
	require.ErrorIs(t, err, ErrNoSnapshot)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, err, errUpstreamDown)
}

func TestConfigMap_WriteFailureKeepsServing(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	kv.putErr = errors.New("read-only")
	c := newConfigMap(kv)
	upstream := NewStatic("application", map[string]string{"a": "1"})
	c.SetUpstream(context.Background(), upstream)
	listener := newRecordingListener()
	c.AddChangeListener(listener)

	upstream.Set(map[string]string{"a": "2"})

	snap, err := c.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", snap.Map()["a"])
	assert.Len(t, listener.all(), 1)
	assert.Equal(t, 2, kv.puts)
}

// stalledKV never answers; calls return only when their context ends.
type stalledKV struct {
	mu        sync.Mutex
	deadlines int
}

func (s *stalledKV) wait(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		s.mu.Lock()
		s.deadlines++
		s.mu.Unlock()
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stalledKV) Get(ctx context.Context, _ string) (map[string]string, error) {
	return nil, s.wait(ctx)
}

func (s *stalledKV) Put(ctx context.Context, _ string, _ map[string]string) error {
	return s.wait(ctx)
}

func TestConfigMap_StalledStoreIsBounded(t *testing.T) {
	t.Parallel()

	kv := &stalledKV{}
	c := NewConfigMap(ConfigMapConfig{
		AppID:     "app",
		Cluster:   "default",
		Namespace: "application",
		Timeout:   20 * time.Millisecond,
	}, kv, WithConfigMapLogger(discardLogger()))
	upstream := NewStatic("application", map[string]string{"a": "1"})
	c.SetUpstream(context.Background(), upstream)
	listener := newRecordingListener()
	c.AddChangeListener(listener)

	done := make(chan struct{})
	go func() {
		defer close(done)
		upstream.Set(map[string]string{"a": "2"})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("change stuck behind the store write")
	}

	assert.Equal(t, "2", listener.wait(t).snap.Map()["a"])
	kv.mu.Lock()
	defer kv.mu.Unlock()
	assert.Equal(t, 2, kv.deadlines, "every write carries a deadline")
}

// fakeConsulKV records the last write and serves canned reads.
type fakeConsulKV struct {
	pair   *api.KVPair
	getErr error
	put    *api.KVPair
}

func (f *fakeConsulKV) Get(string, *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	return f.pair, nil, f.getErr
}

func (f *fakeConsulKV) Put(p *api.KVPair, _ *api.WriteOptions) (*api.WriteMeta, error) {
	f.put = p
	return nil, nil
}

func TestConsulKV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kv      *fakeConsulKV
		want    map[string]string
		wantErr error
		anyErr  bool
	}{
		{
			name: "value present",
			kv:   &fakeConsulKV{pair: &api.KVPair{Value: []byte(`{"a":"1","b":"two"}`)}},
			want: map[string]string{"a": "1", "b": "two"},
		},
		{
			name: "null value",
			kv:   &fakeConsulKV{pair: &api.KVPair{Value: []byte(`null`)}},
			want: map[string]string{},
		},
		{
			name:    "missing key",
			kv:      &fakeConsulKV{},
			wantErr: ErrKeyNotFound,
		},
		{
			name:   "invalid json",
			kv:     &fakeConsulKV{pair: &api.KVPair{Value: []byte(`{"a":`)}},
			anyErr: true,
		},
		{
			name:   "client error",
			kv:     &fakeConsulKV{getErr: errors.New("connection refused")},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := NewConsulKV(tt.kv)
			require.NoError(t, err)

			got, err := store.Get(context.Background(), "remoteconfig/app/default/application")
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestConsulKV_Put(t *testing.T) {
	t.Parallel()

	fake := &fakeConsulKV{}
	store, err := NewConsulKV(fake)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "k", map[string]string{"a": "1"}))
	require.NotNil(t, fake.put)
	assert.Equal(t, "k", fake.put.Key)
	assert.JSONEq(t, `{"a":"1"}`, string(fake.put.Value))
}
