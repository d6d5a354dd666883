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

// Package remoteconfig is a client for an Apollo-style configuration
// service.
//
// Applications ask for namespaces, named and independently released sets
// of properties. A namespace is served immediately from the last snapshot
// that was fetched or persisted, and listeners are told when the server
// publishes a new release. Reads never block on the network once a
// namespace is loaded and never fail: a missing or malformed value yields
// the caller's default.
//
// # Quick Start
//
//	client, err := remoteconfig.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	cfg, err := client.GetAppConfig(ctx)
//	if err != nil {
//	    slog.Warn("serving defaults until the config service answers", "error", err)
//	}
//	timeout := cfg.Duration("request.timeout", 5*time.Second)
//
// Settings come from APOLLO_ environment variables by default
// (APOLLO_APP_ID, APOLLO_META, APOLLO_CONFIGSERVICE, APOLLO_ENV, ...), or
// from any source of the settings package:
//
//	client, err := remoteconfig.New(remoteconfig.WithSettingsSources(
//	    settings.WithFile("remoteconfig.yaml"),
//	    settings.WithEnv(settings.EnvPrefix),
//	))
//
// # Lookup Order
//
// A key resolves through, in order: [Overrides], the namespace snapshot,
// the process environment, resource defaults from
// config/{namespace}.properties in the [WithResourceFS] file system, and
// finally the caller's default.
//
// # Repository Chain
//
// Each namespace is backed by a chain from the repository package. A
// remote repository fetches from the config service and is refreshed by
// the shared long-poll loop and a periodic resync. Its snapshots are
// persisted to a local properties file (cache.file, the default) or to a
// Consul key (cache.configmap), which serve the namespace when the service
// is unreachable. With env=LOCAL only the local file is read.
//
// # Change Listeners
//
//	remove := cfg.AddChangeListener(remoteconfig.ChangeListenerFunc(func(e remoteconfig.ChangeEvent) {
//	    for _, key := range e.InterestedChangedKeys() {
//	        change, _ := e.Change(key)
//	        slog.Info("changed", "change", change)
//	    }
//	}), remoteconfig.WithInterestedKeyPrefixes("db."))
//	defer remove()
//
// Listeners run on a bounded pool, each behind its own recover.
//
// # Config Files
//
// [Client.GetConfigFile] exposes a namespace as one document, such as a
// YAML or JSON file edited as a whole, with [ConfigFile.Decode] for the
// formats known to the codec package.
package remoteconfig
