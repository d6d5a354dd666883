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

package codec

import (
	"path/filepath"
	"strings"
)

// Type identifies a registered encoding, e.g. "json" or "properties".
type Type string

// Encoder converts a Go value into its encoded form.
type Encoder interface {
	// Encode converts the value v into an encoded byte slice.
	// It returns an error if encoding fails.
	Encode(v any) ([]byte, error)
}

// Decoder converts encoded data into a Go value.
type Decoder interface {
	// Decode converts the encoded data into the value pointed to by v.
	// It returns an error if decoding fails or if v is not a valid target.
	Decode(data []byte, v any) error
}

var extensionTypes = map[string]Type{
	".properties": TypeProperties,
	".yaml":       TypeYAML,
	".yml":        TypeYML,
	".json":       TypeJSON,
	".toml":       TypeTOML,
	".env":        TypeEnvVar,
}

// TypeOf returns the codec type for a file path or namespace name based on
// its extension. The second result is false when the extension is unknown.
func TypeOf(name string) (Type, bool) {
	t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]
	return t, ok
}
