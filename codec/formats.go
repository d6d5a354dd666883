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
	"bytes"
	"encoding/json"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// Structured document codec types.
const (
	TypeJSON Type = "json"
	TypeYAML Type = "yaml"
	TypeYML  Type = "yml"
	TypeTOML Type = "toml"
)

func init() {
	RegisterEncoder(TypeJSON, JSONCodec{})
	RegisterDecoder(TypeJSON, JSONCodec{})
	RegisterEncoder(TypeYAML, YAMLCodec{})
	RegisterDecoder(TypeYAML, YAMLCodec{})
	RegisterEncoder(TypeYML, YAMLCodec{})
	RegisterDecoder(TypeYML, YAMLCodec{})
	RegisterEncoder(TypeTOML, TOMLCodec{})
	RegisterDecoder(TypeTOML, TOMLCodec{})
}

// JSONCodec encodes and decodes JSON. Numbers decode as [json.Number] so
// that flattened values keep their exact textual form.
type JSONCodec struct{}

// Encode returns the JSON encoding of v.
func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode parses JSON data into v.
func (JSONCodec) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// YAMLCodec encodes and decodes YAML.
type YAMLCodec struct{}

// Encode returns the YAML encoding of v.
func (YAMLCodec) Encode(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Decode parses YAML data into v.
func (YAMLCodec) Decode(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// TOMLCodec encodes and decodes TOML.
type TOMLCodec struct{}

// Encode returns the TOML encoding of v.
func (TOMLCodec) Encode(v any) ([]byte, error) {
	return toml.Marshal(v)
}

// Decode parses TOML data into v.
func (TOMLCodec) Decode(data []byte, v any) error {
	return toml.Unmarshal(data, v)
}
