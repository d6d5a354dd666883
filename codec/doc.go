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

// Package codec provides encoding and decoding of namespace content and
// client settings.
//
// The codec package defines [Encoder] and [Decoder] interfaces and a registry
// keyed by [Type]. The remote configuration client uses it in three places:
//
//   - the local cache file, which is written and read with the properties codec
//   - ConfigFile.Decode and properties-compatible namespaces (JSON, YAML)
//   - client settings files (properties, JSON, YAML, TOML) and environment variables
//
// # Built-in Codecs
//
//   - Properties: key=value files via github.com/magiconair/properties
//   - JSON: encoding/json with numbers decoded as [encoding/json.Number]
//   - YAML: github.com/goccy/go-yaml, registered as both "yaml" and "yml"
//   - TOML: github.com/BurntSushi/toml
//   - EnvVar: KEY=value lines split on underscores into nested maps
//
// # Custom Codecs
//
// Register custom codecs using [RegisterEncoder] and [RegisterDecoder]:
//
//	codec.RegisterEncoder(codec.Type("ini"), MyCodec{})
//	codec.RegisterDecoder(codec.Type("ini"), MyCodec{})
//
// Registration is safe for concurrent use with lookups.
package codec
