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

// Package repository provides the layered sources of namespace snapshots.
//
// A [Remote] fetches a namespace from the config service and refreshes it
// when the long-poll engine reports a change. A [LocalFile] or [ConfigMap]
// sits on top of an upstream repository, persists every snapshot it sees,
// and serves the persisted copy when the upstream cannot. A
// [PropertiesCompatible] repository flattens a YAML, JSON or TOML document
// into properties, and [Static] holds snapshots set in code.
//
// Repositories notify their [Listener]s with the new [Snapshot] whenever the
// content changes. Snapshots are immutable and are replaced, never updated.
package repository
