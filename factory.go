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
	"io/fs"
	"log/slog"

	"rivaas.dev/remoteconfig/codec"
	"rivaas.dev/remoteconfig/discovery"
	"rivaas.dev/remoteconfig/internal/scheduler"
	"rivaas.dev/remoteconfig/internal/transport"
	"rivaas.dev/remoteconfig/internal/workerpool"
	"rivaas.dev/remoteconfig/longpoll"
	"rivaas.dev/remoteconfig/repository"
	"rivaas.dev/remoteconfig/settings"
)

// defaultFactory assembles repository chains from the client settings.
type defaultFactory struct {
	settings     *settings.Settings
	ip           string
	http         *transport.Client
	locator      *discovery.Locator
	engine       *longpoll.Engine
	scheduler    *scheduler.Scheduler
	syncPool     *workerpool.Pool
	listenerPool *workerpool.Pool
	kv           repository.KVStore
	overrides    *Overrides
	resources    fs.FS
	logger       *slog.Logger
}

// CreateConfig builds the chain of namespace. YAML namespaces are flattened
// into properties.
func (f *defaultFactory) CreateConfig(ctx context.Context, namespace string) (Config, error) {
	repo := f.repository(ctx, namespace)
	if format, ok := FormatOf(namespace); ok && format.propertiesCompatible() {
		repo = repository.NewPropertiesCompatible(repo, codec.Type(format), f.logger)
	}
	return NewDefaultConfig(ctx, namespace, repo,
		WithConfigLogger(f.logger),
		WithConfigOverrides(f.overrides),
		WithConfigResources(f.resources),
		WithTypedCache(f.settings.Cache.MaxSize, f.settings.Cache.Expire),
		WithListenerPool(f.listenerPool),
	)
}

// CreateConfigFile builds the chain of a file. Properties files read the
// plain namespace; other formats read "namespace.format".
func (f *defaultFactory) CreateConfigFile(ctx context.Context, namespace string, format Format) (*ConfigFile, error) {
	remoteName := namespace
	if format != FormatProperties {
		remoteName = namespace + "." + string(format)
	}
	return NewConfigFile(ctx, namespace, format, f.repository(ctx, remoteName),
		WithFileLogger(f.logger),
		WithFileListenerPool(f.listenerPool),
	)
}

// repository selects the chain: local file only in local mode, otherwise a
// remote repository behind the configured durable copy.
func (f *defaultFactory) repository(ctx context.Context, namespace string) repository.Repository {
	s := f.settings
	switch {
	case s.LocalMode():
		return f.localFile(namespace)
	case s.Cache.ConfigMap && f.kv != nil:
		cm := repository.NewConfigMap(repository.ConfigMapConfig{
			AppID:     s.App.ID,
			Cluster:   s.Cluster,
			Namespace: namespace,
			Prefix:    s.Consul.Prefix,
			Timeout:   s.HTTP.ReadTimeout,
		}, f.kv, repository.WithConfigMapLogger(f.logger))
		cm.SetUpstream(ctx, f.remote(ctx, namespace))
		return cm
	case s.Cache.File:
		lf := f.localFile(namespace)
		lf.SetUpstream(ctx, f.remote(ctx, namespace))
		return lf
	default:
		return f.remote(ctx, namespace)
	}
}

func (f *defaultFactory) localFile(namespace string) *repository.LocalFile {
	s := f.settings
	return repository.NewLocalFile(repository.LocalFileConfig{
		AppID:     s.App.ID,
		Cluster:   s.Cluster,
		Namespace: namespace,
		CacheRoot: s.CacheRoot(),
	}, repository.WithLocalFileLogger(f.logger))
}

func (f *defaultFactory) remote(ctx context.Context, namespace string) *repository.Remote {
	s := f.settings
	r := repository.NewRemote(repository.RemoteConfig{
		AppID:           s.App.ID,
		Cluster:         s.Cluster,
		Namespace:       namespace,
		DataCenter:      s.IDC,
		IP:              f.ip,
		Label:           s.Label,
		ReadTimeout:     s.HTTP.ReadTimeout,
		RefreshInterval: s.Refresh.Interval,
		RetryInterval:   s.Retry.Interval,
		QPS:             s.Load.QPS,
		LimiterWait:     s.Limiter.Wait,
	}, f.locator, f.http,
		repository.WithRemoteLogger(f.logger),
		repository.WithScheduler(f.scheduler),
		repository.WithLongPoll(f.engine),
		repository.WithSyncPool(f.syncPool),
	)
	if err := r.Watch(ctx); err != nil {
		f.logger.Warn("cannot schedule resync", "namespace", namespace, "error", err)
	}
	return r
}
