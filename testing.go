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
	"testing"

	"github.com/stretchr/testify/require"

	"rivaas.dev/remoteconfig/repository"
	"rivaas.dev/remoteconfig/settings"
)

// TestSettings returns default settings for appID that talk to the config
// service at configService and keep their cache under t's temp directory.
func TestSettings(t testing.TB, appID, configService string) *settings.Settings {
	t.Helper()
	s := settings.Default()
	s.App.ID = appID
	s.ConfigService = configService
	s.CacheDir = t.TempDir()
	return s
}

// TestConfig creates a config of namespace over an in-memory repository
// holding props. Change the repository to drive change events.
func TestConfig(t testing.TB, namespace string, props map[string]string, opts ...ConfigOption) (*DefaultConfig, *repository.Static) {
	t.Helper()
	repo := repository.NewStatic(namespace, props)
	cfg, err := NewDefaultConfig(context.Background(), namespace, repo, opts...)
	require.NoError(t, err, "failed to create test config")
	return cfg, repo
}

// TestClient creates a client from s and closes it when the test ends.
func TestClient(t testing.TB, s *settings.Settings, opts ...Option) *Client {
	t.Helper()
	client, err := New(append([]Option{WithSettings(s)}, opts...)...)
	require.NoError(t, err, "failed to create test client")
	t.Cleanup(func() {
		require.NoError(t, client.Close(context.Background()))
	})
	return client
}

// AssertProperty asserts that key resolves to expected.
func AssertProperty(t testing.TB, cfg Config, key, expected string) {
	t.Helper()
	actual, ok := cfg.Lookup(key)
	require.True(t, ok, "property %q not found", key)
	require.Equal(t, expected, actual, "property mismatch for key %q", key)
}

// AssertNoProperty asserts that key does not resolve.
func AssertNoProperty(t testing.TB, cfg Config, key string) {
	t.Helper()
	_, ok := cfg.Lookup(key)
	require.False(t, ok, "property %q unexpectedly found", key)
}
