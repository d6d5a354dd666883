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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"rivaas.dev/remoteconfig/discovery"
	"rivaas.dev/remoteconfig/internal/protocol"
	"rivaas.dev/remoteconfig/internal/scheduler"
	"rivaas.dev/remoteconfig/internal/transport"
	"rivaas.dev/remoteconfig/internal/workerpool"
	"rivaas.dev/remoteconfig/longpoll"
)

// EndpointSource supplies config service instances.
type EndpointSource interface {
	Endpoints() ([]discovery.Endpoint, error)
}

// HTTPGetter fetches and decodes JSON.
type HTTPGetter interface {
	GetJSON(ctx context.Context, url string, timeout time.Duration, out any) (int, error)
}

// Registrar subscribes a namespace to change notifications.
type Registrar interface {
	Register(namespace string, n longpoll.Notifiable) bool
}

// Submitter queues background work without waiting for queue space.
type Submitter interface {
	TrySubmit(task workerpool.Task) error
}

// RemoteConfig holds the inputs of a [Remote].
type RemoteConfig struct {
	AppID      string
	Cluster    string
	Namespace  string
	DataCenter string
	IP         string
	Label      string

	ReadTimeout     time.Duration
	RefreshInterval time.Duration

	// RetryInterval is the pause between attempts of a forced refresh.
	RetryInterval time.Duration

	// FailureBackoff and MaxFailureBackoff bound the pause between attempts
	// of a regular load. They default to 1s and 8s.
	FailureBackoff    time.Duration
	MaxFailureBackoff time.Duration

	QPS         float64
	LimiterWait time.Duration
}

// RemoteOption configures a [Remote].
type RemoteOption func(*Remote)

// WithRemoteLogger sets the logger.
func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = logger }
}

// WithScheduler enables the periodic resync on Start or Watch.
func WithScheduler(s *scheduler.Scheduler) RemoteOption {
	return func(r *Remote) { r.scheduler = s }
}

// WithLongPoll registers the repository for change notifications on Start or
// Watch.
func WithLongPoll(reg Registrar) RemoteOption {
	return func(r *Remote) { r.registrar = reg }
}

// WithSyncPool runs notification triggered syncs on pool.
func WithSyncPool(pool Submitter) RemoteOption {
	return func(r *Remote) { r.pool = pool }
}

type remoteState struct {
	snap       *Snapshot
	releaseKey string
}

// Remote fetches a namespace from the config service.
type Remote struct {
	listeners

	cfg       RemoteConfig
	locator   EndpointSource
	http      HTTPGetter
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	registrar Registrar
	pool      Submitter
	limiter   *rate.Limiter
	group     singleflight.Group

	state        atomic.Pointer[remoteState]
	hinted       atomic.Pointer[discovery.Endpoint]
	forceRefresh atomic.Bool
	syncPending  atomic.Bool

	mu       sync.Mutex
	messages *protocol.Messages
	failures *backoff.ExponentialBackOff
}

// NewRemote creates a Remote. Nothing is fetched until Config, Sync or
// Start is called.
func NewRemote(cfg RemoteConfig, locator EndpointSource, h HTTPGetter, opts ...RemoteOption) *Remote {
	if cfg.QPS <= 0 {
		cfg.QPS = 2
	}
	if cfg.LimiterWait <= 0 {
		cfg.LimiterWait = 5 * time.Second
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = time.Second
	}
	if cfg.MaxFailureBackoff <= 0 {
		cfg.MaxFailureBackoff = 8 * time.Second
	}

	r := &Remote{
		cfg:     cfg,
		locator: locator,
		http:    h,
		logger:  slog.Default(),
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), 1),
		failures: &backoff.ExponentialBackOff{
			InitialInterval:     cfg.FailureBackoff,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         cfg.MaxFailureBackoff,
			MaxElapsedTime:      0,
			Stop:                backoff.Stop,
			Clock:               backoff.SystemClock,
		},
	}
	r.failures.Reset()
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "repository", "kind", "remote", "namespace", cfg.Namespace)
	r.listeners.logger = r.logger
	return r
}

// Namespace returns the namespace served.
func (r *Remote) Namespace() string {
	return r.cfg.Namespace
}

// SourceType is always REMOTE.
func (r *Remote) SourceType() SourceType {
	return SourceRemote
}

// Start performs a best-effort sync, then calls [Remote.Watch].
func (r *Remote) Start(ctx context.Context) error {
	if err := r.Sync(ctx); err != nil {
		r.logger.Warn("initial sync failed", "error", err)
	}
	return r.Watch(ctx)
}

// Watch schedules the periodic resync and subscribes to change
// notifications without fetching. The first fetch is left to Config.
func (r *Remote) Watch(context.Context) error {
	if r.scheduler != nil && r.cfg.RefreshInterval > 0 {
		if _, err := r.scheduler.Every("sync-"+r.cfg.Namespace, r.cfg.RefreshInterval, func(ctx context.Context) {
			if err := r.Sync(ctx); err != nil {
				r.logger.Warn("periodic sync failed", "error", err)
			}
		}); err != nil {
			return err
		}
	}
	if r.registrar != nil {
		r.registrar.Register(r.cfg.Namespace, r)
	}
	return nil
}

// Config returns the cached snapshot, fetching it when none is held yet.
func (r *Remote) Config(ctx context.Context) (*Snapshot, error) {
	if st := r.state.Load(); st != nil {
		return st.snap, nil
	}
	if err := r.Sync(ctx); err != nil {
		return nil, err
	}
	if st := r.state.Load(); st != nil {
		return st.snap, nil
	}
	return nil, ErrNoSnapshot
}

// Sync fetches the namespace. Concurrent callers share one round trip.
// Listeners are told when the content changed.
func (r *Remote) Sync(ctx context.Context) error {
	_, err, _ := r.group.Do("sync", func() (any, error) {
		return nil, r.sync(ctx)
	})
	return err
}

// OnLongPollNotified records the notifying endpoint and messages and
// queues a forced sync.
func (r *Remote) OnLongPollNotified(endpoint discovery.Endpoint, messages *longpoll.Messages) {
	r.hinted.Store(&endpoint)
	r.mu.Lock()
	r.messages = messages.Clone()
	r.mu.Unlock()
	r.forceRefresh.Store(true)

	// Runs on the long-poll loop: never block. Notifications arriving
	// before the queued sync starts share it.
	if !r.syncPending.CompareAndSwap(false, true) {
		return
	}
	task := func(ctx context.Context) {
		r.syncPending.Store(false)
		if err := r.Sync(ctx); err != nil {
			r.logger.Warn("notified sync failed", "error", err)
		}
	}
	if r.pool == nil {
		go task(context.Background())
		return
	}
	if err := r.pool.TrySubmit(task); err != nil {
		r.syncPending.Store(false)
		r.logger.Warn("could not queue notified sync, the periodic sync will catch up", "error", err)
	}
}

func (r *Remote) sync(ctx context.Context) error {
	prev := r.state.Load()
	releaseKey := ""
	if prev != nil {
		releaseKey = prev.releaseKey
	}

	dto, err := r.load(ctx, releaseKey)
	if err != nil {
		return err
	}
	if dto == nil {
		return nil
	}

	snap := NewSnapshot(dto.Configurations, SourceRemote)
	r.state.Store(&remoteState{snap: snap, releaseKey: dto.ReleaseKey})
	if prev != nil && prev.snap.Equal(snap) {
		return nil
	}
	r.logger.Debug("namespace updated", "release_key", dto.ReleaseKey, "keys", snap.Len())
	r.fire(r.cfg.Namespace, snap)
	return nil
}

// load returns the fetched config, or nil when the server reports no
// change.
func (r *Remote) load(ctx context.Context, releaseKey string) (*protocol.ConfigDTO, error) {
	r.waitForToken(ctx)

	endpoints, err := r.locator.Endpoints()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrTransient, discovery.ErrNoServiceAvailable)
	}

	attempts := 1
	if r.forceRefresh.Load() {
		attempts = 2
	}

	var (
		lastErr     error
		pause       time.Duration
		notFoundErr error
	)
	for range attempts {
		order := r.attemptOrder(endpoints)
		for _, endpoint := range order {
			if pause > 0 {
				r.logger.Warn("load failed, retrying", "retry_in", pause, "error", lastErr)
				if err = sleep(ctx, pause); err != nil {
					return nil, err
				}
			}

			dto, notModified, err := r.fetch(ctx, endpoint, releaseKey)
			if err == nil {
				r.forceRefresh.Store(false)
				r.resetFailures()
				if notModified {
					return nil, nil
				}
				return dto, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			lastErr = err
			if transport.IsStatus(err, http.StatusNotFound) {
				notFoundErr = fmt.Errorf("%w: %s/%s/%s: %w", ErrNotFound, r.cfg.AppID, r.cfg.Cluster, r.cfg.Namespace, err)
				break
			}
			if r.forceRefresh.Load() {
				pause = r.cfg.RetryInterval
			} else {
				pause = r.nextFailure()
			}
		}
		if notFoundErr != nil {
			return nil, notFoundErr
		}
	}
	return nil, fmt.Errorf("%w: load %s: %w", ErrTransient, r.cfg.Namespace, lastErr)
}

// attemptOrder shuffles endpoints and puts the last notifying endpoint
// first, consuming the hint.
func (r *Remote) attemptOrder(endpoints []discovery.Endpoint) []discovery.Endpoint {
	order := make([]discovery.Endpoint, 0, len(endpoints)+1)
	if hinted := r.hinted.Swap(nil); hinted != nil {
		order = append(order, *hinted)
	}
	shuffled := append([]discovery.Endpoint(nil), endpoints...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return append(order, shuffled...)
}

func (r *Remote) fetch(ctx context.Context, endpoint discovery.Endpoint, releaseKey string) (*protocol.ConfigDTO, bool, error) {
	r.mu.Lock()
	messages := r.messages.Clone()
	r.mu.Unlock()

	url, err := protocol.ConfigURL(endpoint.HomepageURL, protocol.ConfigRequest{
		AppID:      r.cfg.AppID,
		Cluster:    r.cfg.Cluster,
		Namespace:  r.cfg.Namespace,
		ReleaseKey: releaseKey,
		DataCenter: r.cfg.DataCenter,
		IP:         r.cfg.IP,
		Label:      r.cfg.Label,
		Messages:   messages,
	})
	if err != nil {
		return nil, false, err
	}

	var dto protocol.ConfigDTO
	code, err := r.http.GetJSON(ctx, url, r.cfg.ReadTimeout, &dto)
	if err != nil {
		return nil, false, err
	}
	if code == http.StatusNotModified {
		return nil, true, nil
	}
	return &dto, false, nil
}

func (r *Remote) waitForToken(ctx context.Context) {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.LimiterWait)
	defer cancel()
	if err := r.limiter.Wait(waitCtx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Debug("load rate limited, proceeding", "error", err)
	}
}

func (r *Remote) nextFailure() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures.NextBackOff()
}

func (r *Remote) resetFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures.Reset()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
