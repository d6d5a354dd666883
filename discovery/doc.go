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

// Package discovery keeps the list of reachable config service instances.
//
// A [Locator] either serves a static list taken from settings or asks the
// meta server for instances registered under "apollo-configservice". The
// list is refreshed periodically; callers never block on the network. When
// the list is empty, [Locator.Endpoints] fails fast with
// [ErrNoServiceAvailable] and schedules a single background refresh.
package discovery
