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

// Package settings loads the client's own configuration: application
// identity, cluster, server addresses, cache locations, timeouts and rate
// limits.
//
// Settings are assembled from ordered sources. Later sources override earlier
// ones key by key, keys are case-insensitive, and dotted keys such as
// "app.id" address nested sections. The merged map is bound onto [Settings]
// using the "config" struct tag, defaults come from "default" tags and the
// result is checked with "validate" tags.
//
// # Sources
//
//   - [WithFile]: YAML, JSON, TOML or properties file, chosen by extension
//   - [WithEnv]: process environment variables with a prefix, APOLLO_APP_ID becomes app.id
//   - [WithDotEnv]: a .env file, read with the same prefix rules as [WithEnv]
//   - [WithMap]: an in-memory map, handy in tests
//
// # Example
//
//	loader := settings.MustNew(
//	    settings.WithFile("apollo.properties"),
//	    settings.WithEnv(settings.EnvPrefix),
//	)
//	s, err := loader.Load(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(s.App.ID, s.Cluster)
//
// # Keys
//
// The recognised keys and their defaults are documented on the fields of
// [Settings]. app.id is the only required key.
package settings
