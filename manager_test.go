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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/remoteconfig/repository"
)

// stubFactory builds static configs and counts calls per namespace.
type stubFactory struct {
	mu      sync.Mutex
	calls   map[string]int
	block   map[string]chan struct{}
	started chan string
	err     error
	none    bool
}

func newStubFactory() *stubFactory {
	return &stubFactory{
		calls:   make(map[string]int),
		block:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (f *stubFactory) count(namespace string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[namespace]
}

func (f *stubFactory) enter(namespace string) {
	f.mu.Lock()
	f.calls[namespace]++
	gate := f.block[namespace]
	f.mu.Unlock()
	f.started <- namespace
	if gate != nil {
		<-gate
	}
}

func (f *stubFactory) CreateConfig(ctx context.Context, namespace string) (Config, error) {
	f.enter(namespace)
	if f.none {
		return nil, f.err
	}
	cfg, err := NewDefaultConfig(ctx, namespace, repository.NewStatic(namespace, map[string]string{"ns": namespace}),
		WithConfigLogger(discardLogger()))
	if err != nil {
		return nil, err
	}
	return cfg, f.err
}

func (f *stubFactory) CreateConfigFile(ctx context.Context, namespace string, format Format) (*ConfigFile, error) {
	f.enter(namespace + "." + string(format))
	repo := repository.NewStatic(namespace, map[string]string{repository.ContentKey: "body"})
	return NewConfigFile(ctx, namespace, format, repo, WithFileLogger(discardLogger()))
}

func newTestManager(f Factory) *Manager {
	return NewManager(f, WithManagerLogger(discardLogger()))
}

func TestManager_ConcurrentGetConfigReturnsOneInstance(t *testing.T) {
	t.Parallel()

	factory := newStubFactory()
	m := newTestManager(factory)

	const callers = 10
	results := make([]Config, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			cfg, err := m.GetConfig(context.Background(), "application")
			assert.NoError(t, err)
			results[i] = cfg
		})
	}
	wg.Wait()

	assert.Equal(t, 1, factory.count("application"))
	for _, cfg := range results {
		assert.Same(t, results[0], cfg)
	}
}

func TestManager_NamespacesDoNotShareLocks(t *testing.T) {
	t.Parallel()

	factory := newStubFactory()
	gate := make(chan struct{})
	factory.block["a"] = gate
	m := newTestManager(factory)

	aDone := make(chan Config, 1)
	go func() {
		cfg, _ := m.GetConfig(context.Background(), "a")
		aDone <- cfg
	}()
	require.Equal(t, "a", <-factory.started)

	// "a" is stuck inside its factory call; "b" must still be created.
	bDone := make(chan Config, 1)
	go func() {
		cfg, _ := m.GetConfig(context.Background(), "b")
		bDone <- cfg
	}()
	select {
	case cfg := <-bDone:
		assert.Equal(t, "b", cfg.Namespace())
	case <-time.After(5 * time.Second):
		t.Fatal("creating b waited for a")
	}

	close(gate)
	cfg := <-aDone
	assert.Equal(t, "a", cfg.Namespace())
	assert.Equal(t, []string{"a", "b"}, m.Namespaces())
}

func TestManager_FirstLoadErrorIsReturnedOnce(t *testing.T) {
	t.Parallel()

	factory := newStubFactory()
	factory.err = repository.ErrNoSnapshot
	m := newTestManager(factory)

	cfg, err := m.GetConfig(context.Background(), "application")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoSnapshot)
	var rcErr *Error
	require.ErrorAs(t, err, &rcErr)
	assert.Equal(t, "application", rcErr.Namespace)
	assert.Equal(t, "load", rcErr.Operation)
	require.NotNil(t, cfg)

	again, err := m.GetConfig(context.Background(), "application")
	require.NoError(t, err)
	assert.Same(t, cfg, again)
	assert.Equal(t, 1, factory.count("application"))
}

func TestManager_FactoryWithoutConfig(t *testing.T) {
	t.Parallel()

	factory := newStubFactory()
	factory.none = true
	factory.err = errors.New("boom")
	m := newTestManager(factory)

	cfg, err := m.GetConfig(context.Background(), "application")
	assert.Nil(t, cfg)
	require.ErrorContains(t, err, "boom")

	// Nothing was cached, so the next call tries again.
	_, _ = m.GetConfig(context.Background(), "application")
	assert.Equal(t, 2, factory.count("application"))
}

func TestManager_PropertiesSuffixIsIgnored(t *testing.T) {
	t.Parallel()

	factory := newStubFactory()
	m := newTestManager(factory)

	a, err := m.GetConfig(context.Background(), "application.properties")
	require.NoError(t, err)
	b, err := m.GetConfig(context.Background(), "application")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "application", a.Namespace())
}

func TestManager_RegisterFactory(t *testing.T) {
	t.Parallel()

	fallback := newStubFactory()
	special := newStubFactory()
	m := newTestManager(fallback)
	m.RegisterFactory("special", special)

	_, err := m.GetConfig(context.Background(), "special")
	require.NoError(t, err)
	_, err = m.GetConfig(context.Background(), "plain")
	require.NoError(t, err)

	assert.Equal(t, 1, special.count("special"))
	assert.Zero(t, fallback.count("special"))
	assert.Equal(t, 1, fallback.count("plain"))
}

func TestManager_GetConfigFile(t *testing.T) {
	t.Parallel()

	factory := newStubFactory()
	m := newTestManager(factory)

	var created atomic.Int32
	var wg sync.WaitGroup
	files := make([]*ConfigFile, 5)
	for i := range files {
		wg.Go(func() {
			f, err := m.GetConfigFile(context.Background(), "db", FormatYAML)
			assert.NoError(t, err)
			files[i] = f
			created.Add(1)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(5), created.Load())
	assert.Equal(t, 1, factory.count("db.yaml"))
	for _, f := range files {
		assert.Same(t, files[0], f)
	}
	assert.Equal(t, "body", files[0].Content())

	other, err := m.GetConfigFile(context.Background(), "db", FormatJSON)
	require.NoError(t, err)
	assert.NotSame(t, files[0], other)
}
