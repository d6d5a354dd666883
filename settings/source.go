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

package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"rivaas.dev/remoteconfig/codec"
)

// EnvPrefix is the conventional prefix for settings read from the
// environment.
const EnvPrefix = "APOLLO_"

// Source produces a (possibly nested) settings map. Load must be safe to
// call concurrently.
type Source interface {
	Load(ctx context.Context) (map[string]any, error)
}

// SourceFunc adapts a function to [Source].
type SourceFunc func(ctx context.Context) (map[string]any, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (map[string]any, error) {
	return f(ctx)
}

// fileSource reads a file or in-memory content through a codec.
type fileSource struct {
	path      string
	data      []byte
	codecType codec.Type
}

func newFileSource(path string, data []byte, codecType codec.Type) *fileSource {
	return &fileSource{path: path, data: data, codecType: codecType}
}

func (f *fileSource) Load(context.Context) (map[string]any, error) {
	data := f.data
	if f.path != "" {
		var err error
		if data, err = os.ReadFile(f.path); err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
	}

	decoder, err := codec.GetDecoder(f.codecType)
	if err != nil {
		return nil, err
	}

	// Properties files are flat; dotted keys become sections.
	if f.codecType == codec.TypeProperties {
		var flat map[string]string
		if err = decoder.Decode(data, &flat); err != nil {
			return nil, fmt.Errorf("failed to decode file: %w", err)
		}
		return codec.Nest(lowerKeys(flat)), nil
	}

	var conf map[string]any
	if err = decoder.Decode(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}
	return conf, nil
}

// envSource reads prefixed variables from the process environment.
type envSource struct {
	prefix string
}

func (e *envSource) Load(context.Context) (map[string]any, error) {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		vars[key] = value
	}
	return decodeEnv(e.prefix, vars)
}

// dotEnvSource reads prefixed variables from a .env file without touching
// the process environment.
type dotEnvSource struct {
	path     string
	prefix   string
	optional bool
}

func (d *dotEnvSource) Load(context.Context) (map[string]any, error) {
	vars, err := godotenv.Read(d.path)
	if err != nil {
		if d.optional && errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read dotenv file: %w", err)
	}
	return decodeEnv(d.prefix, vars)
}

// decodeEnv strips prefix from matching variables and nests them through
// the env codec. Variables are fed in sorted order so that the result does
// not depend on map iteration.
func decodeEnv(prefix string, vars map[string]string) (map[string]any, error) {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, strings.TrimPrefix(key, prefix)+"="+vars[key])
	}

	var conf map[string]any
	if err := (codec.EnvVarCodec{}).Decode([]byte(strings.Join(lines, "\n")), &conf); err != nil {
		return nil, fmt.Errorf("failed to decode environment variables: %w", err)
	}
	return conf, nil
}

// mapSource returns a copy of a caller supplied map. Dotted keys are nested.
type mapSource struct {
	values map[string]any
}

func (m *mapSource) Load(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(m.values))
	for key, value := range m.values {
		parts := strings.Split(key, ".")
		current := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := current[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				current[part] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = value
	}
	return out, nil
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
