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

// Package workerpool runs background tasks on a fixed number of goroutines
// fed by a bounded queue.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueFull is returned by TrySubmit when no queue slot is free.
	ErrQueueFull = errors.New("workerpool: queue full")

	// ErrClosed is returned when submitting to a closed pool.
	ErrClosed = errors.New("workerpool: closed")
)

// Task is a unit of work. ctx is cancelled when the pool is closed.
type Task func(ctx context.Context)

// Stats is a point-in-time view of a pool.
type Stats struct {
	Workers    int
	QueueSize  int
	QueueDepth int
	Submitted  int64
	Processed  int64
	Panicked   int64
	Dropped    int64
}

// Option configures a [Pool].
type Option func(*Pool)

// WithQueueSize sets the queue capacity. The default is 64 per worker.
func WithQueueSize(n int) Option {
	return func(p *Pool) { p.queueSize = n }
}

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// Pool is a bounded worker pool. A panicking task is recovered and logged;
// it never takes a worker down.
type Pool struct {
	name      string
	workers   int
	queueSize int
	logger    *slog.Logger

	tasks   chan Task
	closing chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	submitted atomic.Int64
	processed atomic.Int64
	panicked  atomic.Int64
	dropped   atomic.Int64
}

// New starts a pool named name with the given number of workers.
func New(name string, workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		name:    name,
		workers: workers,
		logger:  slog.Default(),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queueSize <= 0 {
		p.queueSize = 64 * workers
	}
	p.tasks = make(chan Task, p.queueSize)
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.logger = p.logger.With("component", "workerpool", "pool", name)

	for range workers {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues task, waiting for a free slot until ctx is done or the
// pool closes.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		return nil
	case <-p.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues task without waiting.
func (p *Pool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops accepting tasks, lets the workers drain the queue and waits
// for them. If ctx ends first, running tasks see their context cancelled
// and Close returns ctx.Err(). Close is idempotent.
func (p *Pool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("workerpool %s: %w", p.name, ctx.Err())
	}
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.tasks),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Panicked:   p.panicked.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		p.processed.Add(1)
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task(p.ctx)
}
