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

// Package dumper writes encoded configuration snapshots to durable storage.
//
// A [File] dumper encodes values with a [codec.Encoder] and replaces the
// target file atomically: data goes to a temporary file in the same
// directory, is synced, and is then renamed over the destination. Readers
// never observe a partially written cache file.
//
// # Example
//
//	encoder, _ := codec.GetEncoder(codec.TypeProperties)
//	d := dumper.NewFile("/opt/data/demo/config-cache/demo+default+application.properties", encoder)
//	err := d.Dump(ctx, map[string]string{"timeout": "30"})
//
// Restrictive permissions can be requested with [WithPermissions]:
//
//	d := dumper.NewFile(path, encoder, dumper.WithPermissions(0o600))
package dumper
