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

package longpoll

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"rivaas.dev/remoteconfig/discovery"
	"rivaas.dev/remoteconfig/internal/protocol"
)

// State is the engine's loop state.
type State string

// Loop states.
const (
	StateIdle     State = "IDLE"
	StatePolling  State = "POLLING"
	StateNotified State = "NOTIFIED"
	StateTimedOut State = "TIMED_OUT"
	StateFailed   State = "FAILED"
	StateStopped  State = "STOPPED"
)

const propertiesSuffix = ".properties"

// Messages is the per-key notification message set handed to repositories.
type Messages = protocol.Messages

// Notifiable is told that its namespace changed. endpoint is the instance
// that reported the change and should be asked first. messages is a private
// copy.
type Notifiable interface {
	OnLongPollNotified(endpoint discovery.Endpoint, messages *Messages)
}

// EndpointSource supplies config service instances.
type EndpointSource interface {
	Endpoints() ([]discovery.Endpoint, error)
}

// HTTPGetter fetches and decodes JSON.
type HTTPGetter interface {
	GetJSON(ctx context.Context, url string, timeout time.Duration, out any) (int, error)
}

// Config holds the engine's inputs.
type Config struct {
	AppID      string
	Cluster    string
	DataCenter string
	IP         string

	InitialDelay time.Duration
	ReadTimeout  time.Duration
	QPS          float64
	LimiterWait  time.Duration

	// FailureBackoff and MaxFailureBackoff bound the pause after a failed
	// request. They default to 1s and 120s.
	FailureBackoff    time.Duration
	MaxFailureBackoff time.Duration
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine is the shared long-poll loop.
type Engine struct {
	cfg     Config
	locator EndpointSource
	http    HTTPGetter
	logger  *slog.Logger
	limiter *rate.Limiter

	mu          sync.Mutex
	subscribers map[string][]Notifiable
	ids         map[string]int64
	messages    map[string]*Messages

	state   atomic.Value
	started atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an idle engine. The loop starts with the first Register.
func New(cfg Config, locator EndpointSource, h HTTPGetter, opts ...Option) *Engine {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
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
		cfg.MaxFailureBackoff = 120 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:         cfg,
		locator:     locator,
		http:        h,
		logger:      slog.Default(),
		limiter:     rate.NewLimiter(rate.Limit(cfg.QPS), 1),
		subscribers: make(map[string][]Notifiable),
		ids:         make(map[string]int64),
		messages:    make(map[string]*Messages),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "longpoll", "app", cfg.AppID, "cluster", cfg.Cluster)
	e.state.Store(StateIdle)
	return e
}

// Register subscribes n to namespace and starts the loop if needed. It
// reports whether the pair was new. Namespaces added while a request is in
// flight are part of the next request.
func (e *Engine) Register(namespace string, n Notifiable) bool {
	if e.stopped.Load() {
		return false
	}

	e.mu.Lock()
	added := !slices.Contains(e.subscribers[namespace], n)
	if added {
		e.subscribers[namespace] = append(e.subscribers[namespace], n)
	}
	if _, ok := e.ids[namespace]; !ok {
		e.ids[namespace] = protocol.InitialNotificationID
	}
	e.mu.Unlock()

	if e.started.CompareAndSwap(false, true) {
		go e.run()
	}
	return added
}

// State returns the current loop state.
func (e *Engine) State() State {
	return e.state.Load().(State)
}

// NotificationID returns the last id seen for namespace, or
// [protocol.InitialNotificationID].
func (e *Engine) NotificationID(namespace string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.ids[namespace]; ok {
		return id
	}
	return protocol.InitialNotificationID
}

// Stop ends the loop and waits for it until ctx is done.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()
	if !e.started.Load() {
		e.state.Store(StateStopped)
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("longpoll: %w", ctx.Err())
	}
}

func (e *Engine) run() {
	defer close(e.done)
	defer e.state.Store(StateStopped)

	if err := sleep(e.ctx, e.cfg.InitialDelay); err != nil {
		return
	}

	failures := &backoff.ExponentialBackOff{
		InitialInterval:     e.cfg.FailureBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         e.cfg.MaxFailureBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	failures.Reset()

	var sticky *discovery.Endpoint
	for e.ctx.Err() == nil {
		e.waitForToken()

		if sticky == nil {
			endpoint, err := e.pickEndpoint()
			if err != nil {
				e.fail(failures, err)
				continue
			}
			sticky = &endpoint
		}

		code, notifications, err := e.poll(*sticky)
		if err != nil {
			if e.ctx.Err() != nil {
				return
			}
			sticky = nil
			e.fail(failures, err)
			continue
		}
		failures.Reset()

		switch {
		case code == http.StatusOK && len(notifications) > 0:
			e.state.Store(StateNotified)
			e.apply(notifications)
			e.notify(*sticky, notifications)
		case code == http.StatusNotModified:
			e.state.Store(StateTimedOut)
			if rand.IntN(2) == 0 {
				sticky = nil
			}
		default:
			e.state.Store(StateTimedOut)
		}
	}
}

func (e *Engine) waitForToken() {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.LimiterWait)
	defer cancel()
	if err := e.limiter.Wait(ctx); err != nil && e.ctx.Err() == nil {
		e.logger.Debug("long poll rate limited, proceeding", "error", err)
	}
}

func (e *Engine) pickEndpoint() (discovery.Endpoint, error) {
	endpoints, err := e.locator.Endpoints()
	if err != nil {
		return discovery.Endpoint{}, err
	}
	if len(endpoints) == 0 {
		return discovery.Endpoint{}, discovery.ErrNoServiceAvailable
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

func (e *Engine) poll(endpoint discovery.Endpoint) (int, []protocol.NotificationDTO, error) {
	url, err := protocol.NotificationsURL(endpoint.HomepageURL, protocol.NotificationsRequest{
		AppID:         e.cfg.AppID,
		Cluster:       e.cfg.Cluster,
		Notifications: e.snapshotIDs(),
		DataCenter:    e.cfg.DataCenter,
		IP:            e.cfg.IP,
	})
	if err != nil {
		return 0, nil, err
	}

	e.state.Store(StatePolling)
	var notifications []protocol.NotificationDTO
	code, err := e.http.GetJSON(e.ctx, url, e.cfg.ReadTimeout, &notifications)
	if err != nil {
		return code, nil, err
	}
	return code, notifications, nil
}

func (e *Engine) fail(failures backoff.BackOff, err error) {
	e.state.Store(StateFailed)
	wait := failures.NextBackOff()
	e.logger.Warn("long poll failed", "error", err, "retry_in", wait)
	_ = sleep(e.ctx, wait)
}

func (e *Engine) snapshotIDs() []protocol.NotificationDTO {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]protocol.NotificationDTO, 0, len(e.ids))
	for ns, id := range e.ids {
		out = append(out, protocol.NotificationDTO{NamespaceName: ns, NotificationID: id})
	}
	slices.SortFunc(out, func(a, b protocol.NotificationDTO) int {
		return cmp.Compare(a.NamespaceName, b.NamespaceName)
	})
	return out
}

// apply records new ids, also for a registered ".properties" alias, and
// merges messages.
func (e *Engine) apply(notifications []protocol.NotificationDTO) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range notifications {
		for _, ns := range []string{n.NamespaceName, n.NamespaceName + propertiesSuffix} {
			if _, ok := e.ids[ns]; ok {
				e.ids[ns] = n.NotificationID
			}
		}
		if n.Messages.IsEmpty() {
			continue
		}
		held, ok := e.messages[n.NamespaceName]
		if !ok {
			held = protocol.NewMessages()
			e.messages[n.NamespaceName] = held
		}
		held.Merge(n.Messages)
	}
}

func (e *Engine) notify(endpoint discovery.Endpoint, notifications []protocol.NotificationDTO) {
	for _, n := range notifications {
		e.mu.Lock()
		targets := slices.Concat(e.subscribers[n.NamespaceName], e.subscribers[n.NamespaceName+propertiesSuffix])
		messages := e.messages[n.NamespaceName].Clone()
		e.mu.Unlock()

		for _, target := range targets {
			e.safeNotify(target, endpoint, messages.Clone(), n.NamespaceName)
		}
	}
}

func (e *Engine) safeNotify(target Notifiable, endpoint discovery.Endpoint, messages *Messages, namespace string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("notifiable panicked", "namespace", namespace, "panic", r)
		}
	}()
	target.OnLongPollNotified(endpoint, messages)
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
