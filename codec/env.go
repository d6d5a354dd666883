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
	"errors"
	"fmt"
	"strings"
)

// TypeEnvVar identifies the environment variable codec.
const TypeEnvVar Type = "env_var"

func init() {
	RegisterEncoder(TypeEnvVar, EnvVarCodec{})
	RegisterDecoder(TypeEnvVar, EnvVarCodec{})
}

// EnvVarCodec decodes KEY=value lines into a nested map. Keys are lowercased
// and split on underscores, so APP_ID=demo becomes {"app": {"id": "demo"}}.
// Blank lines and lines starting with '#' are ignored and matching single or
// double quotes around a value are removed.
type EnvVarCodec struct{}

// Encode is not supported; environment variables are read-only input.
func (EnvVarCodec) Encode(_ any) ([]byte, error) {
	return nil, errors.New("encoding to environment variables is not supported")
}

// Decode decodes env lines into the map pointed to by v, which must be a
// *map[string]any.
func (EnvVarCodec) Decode(data []byte, v any) error {
	ptr, ok := v.(*map[string]any)
	if !ok {
		return fmt.Errorf("EnvVarCodec.Decode: expected *map[string]any, got %T", v)
	}

	conf := make(map[string]any)
	for _, line := range bytes.Split(data, []byte("\n")) {
		entry := strings.TrimSpace(string(line))
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}

		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}

		parts := splitNonEmpty(strings.ToLower(strings.TrimSpace(key)), "_")
		if len(parts) == 0 {
			continue
		}

		setNested(conf, parts, unquote(strings.TrimSpace(value)))
	}

	*ptr = conf
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func splitNonEmpty(s, sep string) []string {
	raw := strings.Split(s, sep)
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// setNested stores value under the path described by parts, creating
// intermediate maps. Sections win over scalars: a scalar on the path is
// replaced by a map, and a scalar is never stored over an existing section.
func setNested(root map[string]any, parts []string, value any) {
	current := root
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	last := parts[len(parts)-1]
	if _, isSection := current[last].(map[string]any); isSection {
		return
	}
	current[last] = value
}

// Nest turns a flat map with dotted keys into nested maps, so that
// "app.id=demo" becomes {"app": {"id": "demo"}}. Conflicts between a value
// and a section resolve the same way as in [EnvVarCodec].
func Nest(flat map[string]string) map[string]any {
	nested := make(map[string]any, len(flat))
	for key, value := range flat {
		parts := splitNonEmpty(key, ".")
		if len(parts) == 0 {
			continue
		}
		setNested(nested, parts, value)
	}
	return nested
}
