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
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"rivaas.dev/remoteconfig/repository"
	"rivaas.dev/remoteconfig/settings"
)

// Option configures a [Client].
type Option func(c *Client) error

// WithLogger sets the logger of the client and everything it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithSettings uses s as is, skipping settings loading.
func WithSettings(s *settings.Settings) Option {
	return func(c *Client) error {
		if s == nil {
			return errors.New("settings cannot be nil")
		}
		c.settings = s
		return nil
	}
}

// WithSettingsSources loads settings from the given sources instead of the
// default APOLLO_ environment variables.
//
// Example:
//
//	client, err := remoteconfig.New(remoteconfig.WithSettingsSources(
//	    settings.WithFile("remoteconfig.yaml"),
//	    settings.WithEnv(settings.EnvPrefix),
//	))
func WithSettingsSources(opts ...settings.Option) Option {
	return func(c *Client) error {
		c.settingsOptions = append(c.settingsOptions, opts...)
		return nil
	}
}

// WithResourceFS sets the file system holding per-namespace defaults at
// config/{namespace}.properties, typically an embed.FS.
func WithResourceFS(fsys fs.FS) Option {
	return func(c *Client) error {
		if fsys == nil {
			return errors.New("resource fs cannot be nil")
		}
		c.resources = fsys
		return nil
	}
}

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithKVStore sets the store used when cache.configmap is enabled. Without
// it a Consul client configured from CONSUL_HTTP_ADDR is used.
func WithKVStore(kv repository.KVStore) Option {
	return func(c *Client) error {
		if kv == nil {
			return errors.New("kv store cannot be nil")
		}
		c.kv = kv
		return nil
	}
}

// WithOverrides shares o between clients. Each client has its own set
// otherwise.
func WithOverrides(o *Overrides) Option {
	return func(c *Client) error {
		if o == nil {
			return errors.New("overrides cannot be nil")
		}
		c.overrides = o
		return nil
	}
}
