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

package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_Every(t *testing.T) {
	t.Parallel()

	s := New(discardLogger())
	var runs atomic.Int64
	_, err := s.Every("tick", time.Second, func(context.Context) { runs.Add(1) })
	require.NoError(t, err)
	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_RecoversPanics(t *testing.T) {
	t.Parallel()

	s := New(discardLogger())
	var runs atomic.Int64
	_, err := s.Every("panics", time.Second, func(context.Context) {
		runs.Add(1)
		panic("boom")
	})
	require.NoError(t, err)
	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	t.Parallel()

	s := New(discardLogger())
	started := make(chan struct{})
	var once atomic.Bool
	_, err := s.Every("blocking", time.Second, func(ctx context.Context) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
	})
	require.NoError(t, err)
	s.Start()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_InvalidAndStopped(t *testing.T) {
	t.Parallel()

	s := New(nil)
	_, err := s.Every("bad", 0, func(context.Context) {})
	require.Error(t, err)

	require.NoError(t, s.Stop(context.Background()))
	_, err = s.Every("late", time.Second, func(context.Context) {})
	require.ErrorIs(t, err, ErrStopped)

	s.Start()
}
