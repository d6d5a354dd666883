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

// Package scheduler runs the client's periodic jobs on a shared cron
// instance. Overlapping runs of the same job are skipped and panics are
// recovered.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrStopped is returned when adding a job to a stopped scheduler.
var ErrStopped = errors.New("scheduler: stopped")

// Scheduler wraps a cron instance whose jobs receive a context that is
// cancelled on Stop.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates an idle scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	adapter := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every runs job each interval, starting one interval from now. Intervals
// below one second are raised to one second.
func (s *Scheduler) Every(name string, interval time.Duration, job func(ctx context.Context)) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, ErrStopped
	}
	if interval <= 0 {
		return 0, fmt.Errorf("scheduler: invalid interval %s for %s", interval, name)
	}

	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Debug("running job", "job", name)
		job(s.ctx)
	}))
	return id, nil
}

// Remove unschedules a job. A running invocation completes.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// Start begins dispatching. It is a no-op when already started or stopped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop cancels the job context, stops dispatching and waits for running
// jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: %w", ctx.Err())
	}
}

// cronLogger adapts slog to cron.Logger. Cron's info output is routine and
// goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
