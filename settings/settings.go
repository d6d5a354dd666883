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

package settings

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	// LocalEnv is the environment name that disables all remote access.
	LocalEnv = "LOCAL"

	// DefaultMetaServer is used when neither settings nor the environment
	// name a meta server.
	DefaultMetaServer = "http://apollo.meta"
)

// Settings is the client's own configuration.
type Settings struct {
	App App `config:"app"`

	// Cluster selects the cluster of the application's config.
	Cluster string `config:"cluster" default:"default" validate:"required"`

	// IDC is the data center of this process. It is sent to the config
	// service as dataCenter.
	IDC string `config:"idc"`

	// Env names the deployment environment. "LOCAL" runs from the local
	// cache only; other values select the {ENV}_META environment variable.
	Env string `config:"env"`

	// Label is an optional grey release label.
	Label string `config:"label"`

	// Meta is a comma separated list of meta server URLs.
	Meta string `config:"meta"`

	// ConfigService is a comma separated list of config service URLs that
	// bypasses discovery.
	ConfigService string `config:"configservice"`

	AccessKey AccessKey `config:"accesskey"`

	// CacheDir is the root of the local cache. The application id is
	// appended to it.
	CacheDir string `config:"cachedir"`

	Cache     Cache     `config:"cache"`
	Refresh   Refresh   `config:"refresh"`
	HTTP      HTTP      `config:"http"`
	LongPoll  LongPoll  `config:"longpoll"`
	Load      Load      `config:"load"`
	Discovery Discovery `config:"discovery"`
	Retry     Retry     `config:"retry"`
	Limiter   Limiter   `config:"limiter"`
	Pool      Pool      `config:"pool"`
	Consul    Consul    `config:"consul"`
}

// App identifies the application.
type App struct {
	ID string `config:"id" validate:"required"`
}

// AccessKey holds the secret used to sign requests.
type AccessKey struct {
	Secret string `config:"secret"`
}

// Cache controls local persistence and the typed property caches.
type Cache struct {
	// File persists every namespace to a properties file under CacheDir.
	File bool `config:"file" default:"true"`

	// ConfigMap persists into the platform key/value store instead of a file.
	ConfigMap bool `config:"configmap" default:"false"`

	// MaxSize bounds each typed property cache.
	MaxSize int `config:"maxsize" default:"500" validate:"gte=1"`

	// Expire is the lifetime of a typed cache entry.
	Expire time.Duration `config:"expire" default:"1m" validate:"gt=0"`
}

// Refresh controls the periodic "just in case" resync.
type Refresh struct {
	Interval time.Duration `config:"interval" default:"5m" validate:"gt=0"`
}

// HTTP controls plain request timeouts.
type HTTP struct {
	ConnectTimeout time.Duration `config:"connecttimeout" default:"1s" validate:"gt=0"`
	ReadTimeout    time.Duration `config:"readtimeout" default:"5s" validate:"gt=0"`
}

// LongPoll controls the notification loop.
type LongPoll struct {
	InitialDelay time.Duration `config:"initialdelay" default:"2s"`

	// ReadTimeout must exceed the server hold time of 60s.
	ReadTimeout time.Duration `config:"readtimeout" default:"90s" validate:"gt=60s"`

	QPS float64 `config:"qps" default:"2" validate:"gt=0"`
}

// Load limits config fetches.
type Load struct {
	QPS float64 `config:"qps" default:"2" validate:"gt=0"`
}

// Discovery limits meta server queries.
type Discovery struct {
	QPS float64 `config:"qps" default:"2" validate:"gt=0"`
}

// Retry is the pause between attempts of a forced refresh.
type Retry struct {
	Interval time.Duration `config:"interval" default:"1s" validate:"gte=0"`
}

// Limiter bounds how long a caller waits for a rate limit token.
type Limiter struct {
	Wait time.Duration `config:"wait" default:"5s" validate:"gt=0"`
}

// Pool sizes the background worker pools.
type Pool struct {
	Sync     int `config:"sync" default:"4" validate:"gte=1"`
	Listener int `config:"listener" default:"4" validate:"gte=1"`
}

// Consul configures the key/value store used when Cache.ConfigMap is set.
type Consul struct {
	Prefix string `config:"prefix" default:"remoteconfig"`
}

// LocalMode reports whether the client must never contact a server.
func (s *Settings) LocalMode() bool {
	return strings.EqualFold(s.Env, LocalEnv)
}

// CacheRoot returns the directory holding this application's cache files.
func (s *Settings) CacheRoot() string {
	root := s.CacheDir
	if root == "" {
		root = defaultCacheRoot()
	}
	return filepath.Join(root, s.App.ID)
}

// MetaServer resolves the meta server address list: the Meta setting, then
// the {ENV}_META environment variable, then [DefaultMetaServer].
func (s *Settings) MetaServer() string {
	if s.Meta != "" {
		return s.Meta
	}
	if s.Env != "" {
		if v, ok := os.LookupEnv(strings.ToUpper(s.Env) + "_META"); ok && v != "" {
			return v
		}
	}
	return DefaultMetaServer
}

func defaultCacheRoot() string {
	if runtime.GOOS == "windows" {
		return `C:\opt\data`
	}
	return "/opt/data"
}
