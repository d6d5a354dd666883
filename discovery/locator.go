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

package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"rivaas.dev/remoteconfig/internal/protocol"
	"rivaas.dev/remoteconfig/internal/scheduler"
	"rivaas.dev/remoteconfig/internal/workerpool"
)

// ServiceName is the registered name of config service instances.
const ServiceName = "apollo-configservice"

const discoveryAttempts = 2

// ErrNoServiceAvailable reports an empty instance list.
var ErrNoServiceAvailable = errors.New("no config service available")

// Endpoint is one config service instance.
type Endpoint struct {
	AppName     string
	InstanceID  string
	HomepageURL string
}

// HTTPGetter fetches and decodes JSON. It is implemented by the internal
// transport client.
type HTTPGetter interface {
	GetJSON(ctx context.Context, url string, timeout time.Duration, out any) (int, error)
}

// Submitter runs a task asynchronously without waiting for queue space.
type Submitter interface {
	TrySubmit(task workerpool.Task) error
}

// Config holds the locator's inputs.
type Config struct {
	AppID string

	// ConfigService is a comma separated static list that disables
	// discovery when set.
	ConfigService string

	// MetaServer is a comma separated list of meta server URLs.
	MetaServer string

	// IP is reported to the meta server.
	IP string

	RefreshInterval time.Duration
	RetryInterval   time.Duration
	ReadTimeout     time.Duration
	QPS             float64
	LimiterWait     time.Duration
}

// Option configures a [Locator].
type Option func(*Locator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// WithHTTP sets the HTTP client used for discovery.
func WithHTTP(h HTTPGetter) Option {
	return func(l *Locator) { l.http = h }
}

// WithSubmitter sets where on-demand refreshes run.
func WithSubmitter(s Submitter) Option {
	return func(l *Locator) { l.submitter = s }
}

// WithScheduler enables the periodic refresh on Start.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(l *Locator) { l.scheduler = s }
}

// Locator resolves config service endpoints.
type Locator struct {
	cfg       Config
	logger    *slog.Logger
	http      HTTPGetter
	submitter Submitter
	scheduler *scheduler.Scheduler
	limiter   *rate.Limiter
	static    bool

	endpoints        atomic.Pointer[[]Endpoint]
	refreshRequested atomic.Bool
}

// New creates a Locator. A static ConfigService list is installed
// immediately.
func New(cfg Config, opts ...Option) *Locator {
	if cfg.QPS <= 0 {
		cfg.QPS = 2
	}
	if cfg.LimiterWait <= 0 {
		cfg.LimiterWait = 5 * time.Second
	}
	l := &Locator{
		cfg:     cfg,
		logger:  slog.Default(),
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "discovery")

	empty := []Endpoint{}
	l.endpoints.Store(&empty)
	if static := parseStatic(cfg.ConfigService); len(static) > 0 {
		l.static = true
		l.endpoints.Store(&static)
	}
	return l
}

// Endpoints returns a copy of the cached endpoint list. When the list is
// empty it returns [ErrNoServiceAvailable] at once and requests one
// asynchronous refresh, unless one is already pending.
func (l *Locator) Endpoints() ([]Endpoint, error) {
	current := *l.endpoints.Load()
	if len(current) > 0 {
		return slices.Clone(current), nil
	}

	if !l.static && l.submitter != nil && l.refreshRequested.CompareAndSwap(false, true) {
		err := l.submitter.TrySubmit(func(ctx context.Context) {
			defer l.refreshRequested.Store(false)
			if err := l.Refresh(ctx); err != nil {
				l.logger.Warn("on-demand refresh failed", "error", err)
			}
		})
		if err != nil {
			l.refreshRequested.Store(false)
			l.logger.Warn("could not schedule refresh", "error", err)
		}
	}
	return nil, ErrNoServiceAvailable
}

// Start performs a best-effort refresh and schedules periodic ones.
func (l *Locator) Start(ctx context.Context) error {
	if l.static {
		return nil
	}
	if err := l.Refresh(ctx); err != nil {
		l.logger.Warn("initial refresh failed", "error", err)
	}
	if l.scheduler == nil || l.cfg.RefreshInterval <= 0 {
		return nil
	}
	_, err := l.scheduler.Every("discovery-refresh", l.cfg.RefreshInterval, func(ctx context.Context) {
		if err := l.Refresh(ctx); err != nil {
			l.logger.Warn("periodic refresh failed", "error", err)
		}
	})
	return err
}

// Refresh queries the meta servers and replaces the cached list on
// success. It waits at most LimiterWait for a rate limit token and skips
// the query if none arrives. A failed refresh keeps the previous list.
func (l *Locator) Refresh(ctx context.Context) error {
	if l.static {
		return nil
	}
	if l.http == nil {
		return errors.New("discovery: no http client configured")
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.LimiterWait)
	err := l.limiter.Wait(waitCtx)
	cancel()
	if err != nil {
		l.logger.Warn("refresh skipped, rate limited", "error", err)
		return fmt.Errorf("discovery rate limited: %w", err)
	}

	var lastErr error
	for attempt := range discoveryAttempts {
		if attempt > 0 {
			if err = sleep(ctx, l.cfg.RetryInterval); err != nil {
				return err
			}
		}

		endpoints, err := l.query(ctx)
		if err == nil {
			l.endpoints.Store(&endpoints)
			l.logger.Debug("endpoints refreshed", "count", len(endpoints))
			return nil
		}
		lastErr = err
		l.logger.Debug("discovery attempt failed", "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("%w: %w", ErrNoServiceAvailable, lastErr)
}

func (l *Locator) query(ctx context.Context) ([]Endpoint, error) {
	metas := splitList(l.cfg.MetaServer)
	if len(metas) == 0 {
		return nil, errors.New("no meta server configured")
	}
	rand.Shuffle(len(metas), func(i, j int) { metas[i], metas[j] = metas[j], metas[i] })

	var lastErr error
	for _, meta := range metas {
		var services []protocol.ServiceDTO
		code, err := l.http.GetJSON(ctx, protocol.DiscoveryURL(meta, l.cfg.AppID, l.cfg.IP), l.cfg.ReadTimeout, &services)
		if err != nil {
			lastErr = err
			continue
		}
		if code != http.StatusOK || len(services) == 0 {
			lastErr = fmt.Errorf("meta server %s returned no instances", meta)
			continue
		}

		endpoints := make([]Endpoint, 0, len(services))
		for _, svc := range services {
			if strings.TrimSpace(svc.HomepageURL) == "" {
				continue
			}
			endpoints = append(endpoints, Endpoint{
				AppName:     svc.AppName,
				InstanceID:  svc.InstanceID,
				HomepageURL: protocol.NormalizeURL(svc.HomepageURL),
			})
		}
		if len(endpoints) == 0 {
			lastErr = fmt.Errorf("meta server %s returned no usable instances", meta)
			continue
		}
		return endpoints, nil
	}
	return nil, lastErr
}

func parseStatic(list string) []Endpoint {
	urls := splitList(list)
	endpoints := make([]Endpoint, 0, len(urls))
	for _, u := range urls {
		u = protocol.NormalizeURL(u)
		endpoints = append(endpoints, Endpoint{AppName: ServiceName, InstanceID: u, HomepageURL: u})
	}
	return endpoints
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
