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

package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasks(t *testing.T) {
	t.Parallel()

	p := New("test", 3)
	var count atomic.Int64
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, int64(50), count.Load())
	stats := p.Stats()
	assert.Equal(t, int64(50), stats.Submitted)
	assert.Equal(t, int64(50), stats.Processed)
	assert.Equal(t, 3, stats.Workers)
}

func TestPool_RecoversPanics(t *testing.T) {
	t.Parallel()

	p := New("test", 1)
	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(context.Background(), func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task after a panic did not run")
	}
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int64(1), p.Stats().Panicked)
}

func TestPool_TrySubmitQueueFull(t *testing.T) {
	t.Parallel()

	p := New("test", 1, WithQueueSize(1))
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.TrySubmit(func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.TrySubmit(func(context.Context) {}))

	assert.ErrorIs(t, p.TrySubmit(func(context.Context) {}), ErrQueueFull)
	assert.Equal(t, int64(1), p.Stats().Dropped)

	close(release)
	require.NoError(t, p.Close(context.Background()))
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	t.Parallel()

	p := New("test", 1, WithQueueSize(1))
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.Submit(context.Background(), func(context.Context) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Submit(ctx, func(context.Context) {}), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close(context.Background()))
}

func TestPool_ClosedRejectsTasks(t *testing.T) {
	t.Parallel()

	p := New("test", 2)
	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	assert.ErrorIs(t, p.Submit(context.Background(), func(context.Context) {}), ErrClosed)
	assert.ErrorIs(t, p.TrySubmit(func(context.Context) {}), ErrClosed)
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	t.Parallel()

	p := New("test", 1, WithQueueSize(10))
	var count atomic.Int64
	for range 10 {
		require.NoError(t, p.TrySubmit(func(context.Context) { count.Add(1) }))
	}
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int64(10), count.Load())
}

func TestPool_CloseTimeoutCancelsTasks(t *testing.T) {
	t.Parallel()

	p := New("test", 1)
	cancelled := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("running task was not cancelled")
	}
}
