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

package remoteconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"rivaas.dev/remoteconfig/discovery"
	"rivaas.dev/remoteconfig/internal/protocol"
	"rivaas.dev/remoteconfig/internal/scheduler"
	"rivaas.dev/remoteconfig/internal/transport"
	"rivaas.dev/remoteconfig/internal/workerpool"
	"rivaas.dev/remoteconfig/longpoll"
	"rivaas.dev/remoteconfig/repository"
	"rivaas.dev/remoteconfig/settings"
)

// DefaultNamespace is the application's default namespace.
const DefaultNamespace = "application"

// Client owns everything a process needs to read remote configuration:
// settings, HTTP transport, scheduler, worker pools, service discovery, the
// long-poll loop and the namespace manager. Close releases all of it.
type Client struct {
	settings        *settings.Settings
	settingsOptions []settings.Option
	logger          *slog.Logger
	httpClient      *http.Client
	resources       fs.FS
	kv              repository.KVStore
	overrides       *Overrides

	http         *transport.Client
	scheduler    *scheduler.Scheduler
	syncPool     *workerpool.Pool
	listenerPool *workerpool.Pool
	locator      *discovery.Locator
	engine       *longpoll.Engine
	manager      *Manager

	closeOnce sync.Once
	closeErr  error
}

// New creates a client and starts its background work. Without settings
// options the settings are read from APOLLO_ environment variables.
//
// Errors:
//   - Returns error if an option is invalid
//   - Returns error if the settings cannot be loaded or fail validation
//   - Returns error if cache.configmap is set and no Consul client can be
//     created
func New(opts ...Option) (*Client, error) {
	c := &Client{logger: slog.Default()}

	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, NewError("", "options", errors.Join(errs...))
	}

	if c.settings == nil {
		s, err := c.loadSettings()
		if err != nil {
			return nil, NewError("", "settings", err)
		}
		c.settings = s
	}
	s := c.settings
	if c.overrides == nil {
		c.overrides = NewOverrides()
	}
	c.logger = c.logger.With("app_id", s.App.ID, "cluster", s.Cluster)

	if s.Cache.ConfigMap && c.kv == nil && !s.LocalMode() {
		kv, err := repository.NewConsulKV(nil)
		if err != nil {
			return nil, NewError("", "configmap", err)
		}
		c.kv = kv
	}

	transportOpts := []transport.Option{
		transport.WithConnectTimeout(s.HTTP.ConnectTimeout),
		transport.WithReadTimeout(s.HTTP.ReadTimeout),
		transport.WithSigning(s.App.ID, s.AccessKey.Secret),
	}
	if c.httpClient != nil {
		transportOpts = append(transportOpts, transport.WithHTTPClient(c.httpClient))
	}
	c.http = transport.New(transportOpts...)

	c.scheduler = scheduler.New(c.logger)
	c.syncPool = workerpool.New("sync", s.Pool.Sync, workerpool.WithLogger(c.logger))
	c.listenerPool = workerpool.New("listener", s.Pool.Listener, workerpool.WithLogger(c.logger))

	ip := protocol.LocalIP()
	c.locator = discovery.New(discovery.Config{
		AppID:           s.App.ID,
		ConfigService:   s.ConfigService,
		MetaServer:      s.MetaServer(),
		IP:              ip,
		RefreshInterval: s.Refresh.Interval,
		RetryInterval:   s.Retry.Interval,
		ReadTimeout:     s.HTTP.ReadTimeout,
		QPS:             s.Discovery.QPS,
		LimiterWait:     s.Limiter.Wait,
	},
		discovery.WithLogger(c.logger),
		discovery.WithHTTP(c.http),
		discovery.WithSubmitter(c.syncPool),
		discovery.WithScheduler(c.scheduler),
	)
	c.engine = longpoll.New(longpoll.Config{
		AppID:        s.App.ID,
		Cluster:      s.Cluster,
		DataCenter:   s.IDC,
		IP:           ip,
		InitialDelay: s.LongPoll.InitialDelay,
		ReadTimeout:  s.LongPoll.ReadTimeout,
		QPS:          s.LongPoll.QPS,
		LimiterWait:  s.Limiter.Wait,
	}, c.locator, c.http, longpoll.WithLogger(c.logger))

	c.manager = NewManager(&defaultFactory{
		settings:     s,
		ip:           ip,
		http:         c.http,
		locator:      c.locator,
		engine:       c.engine,
		scheduler:    c.scheduler,
		syncPool:     c.syncPool,
		listenerPool: c.listenerPool,
		kv:           c.kv,
		overrides:    c.overrides,
		resources:    c.resources,
		logger:       c.logger,
	}, WithManagerLogger(c.logger))

	c.scheduler.Start()
	if s.LocalMode() {
		c.logger.Info("local mode, serving cached configuration only", "cache_root", s.CacheRoot())
	} else if err := c.locator.Start(context.Background()); err != nil {
		c.logger.Warn("cannot start service discovery", "error", err)
	}

	return c, nil
}

func (c *Client) loadSettings() (*settings.Settings, error) {
	opts := c.settingsOptions
	if len(opts) == 0 {
		opts = []settings.Option{settings.WithEnv(settings.EnvPrefix)}
	}
	loader, err := settings.New(opts...)
	if err != nil {
		return nil, err
	}
	return loader.Load(context.Background())
}

// Settings returns the client's settings. They must not be modified.
func (c *Client) Settings() *settings.Settings {
	return c.settings
}

// Manager returns the namespace manager, for registering factories.
func (c *Client) Manager() *Manager {
	return c.manager
}

// Overrides returns the process-level overrides consulted before any
// repository.
func (c *Client) Overrides() *Overrides {
	return c.overrides
}

// GetConfig returns the config of namespace. See [Manager.GetConfig].
func (c *Client) GetConfig(ctx context.Context, namespace string) (Config, error) {
	return c.manager.GetConfig(ctx, namespace)
}

// GetAppConfig returns the config of the "application" namespace.
func (c *Client) GetAppConfig(ctx context.Context) (Config, error) {
	return c.manager.GetConfig(ctx, DefaultNamespace)
}

// GetConfigFile returns the file view of namespace. See
// [Manager.GetConfigFile].
func (c *Client) GetConfigFile(ctx context.Context, namespace string, format Format) (*ConfigFile, error) {
	return c.manager.GetConfigFile(ctx, namespace, format)
}

// Close stops the long-poll loop and the scheduler, drains both worker
// pools and releases idle connections. It waits until ctx is done at most.
// Configs keep serving their last snapshot after Close.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		var errs []error
		if err := c.engine.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop long poll: %w", err))
		}
		if err := c.scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := c.syncPool.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := c.listenerPool.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		c.http.CloseIdleConnections()
		if len(errs) > 0 {
			c.closeErr = NewError("", "close", errors.Join(errs...))
		}
	})
	return c.closeErr
}
