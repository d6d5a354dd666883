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
	"fmt"
	"slices"

	"github.com/magiconair/properties"
	"github.com/spf13/cast"
)

// TypeProperties identifies the properties codec.
const TypeProperties Type = "properties"

func init() {
	RegisterEncoder(TypeProperties, PropertiesCodec{})
	RegisterDecoder(TypeProperties, PropertiesCodec{})
}

// PropertiesCodec reads and writes key=value properties documents.
// Variable expansion of ${...} references is disabled in both directions so
// values round-trip exactly. Keys are written in sorted order.
type PropertiesCodec struct {
	// Comment is written as a leading "#" line when non-empty.
	Comment string
}

// Encode writes a flat map as a properties document. v may be a
// map[string]string, a *map[string]string or a map[string]any whose values
// are scalars.
func (c PropertiesCodec) Encode(v any) ([]byte, error) {
	flat, err := flatStrings(v)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	p := properties.NewProperties()
	p.DisableExpansion = true
	for _, k := range keys {
		if _, _, err = p.Set(k, flat[k]); err != nil {
			return nil, fmt.Errorf("failed to set property %q: %w", k, err)
		}
	}

	var buf bytes.Buffer
	if c.Comment != "" {
		buf.WriteString("#" + c.Comment + "\n")
	}
	if _, err = p.Write(&buf, properties.UTF8); err != nil {
		return nil, fmt.Errorf("failed to write properties: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode parses a properties document into v, which must be a
// *map[string]string or a *map[string]any. The result is flat: dotted keys
// are not nested (see [Nest]).
func (PropertiesCodec) Decode(data []byte, v any) error {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return fmt.Errorf("failed to parse properties: %w", err)
	}

	switch target := v.(type) {
	case *map[string]string:
		*target = p.Map()
	case *map[string]any:
		m := make(map[string]any, p.Len())
		for k, val := range p.Map() {
			m[k] = val
		}
		*target = m
	default:
		return fmt.Errorf("PropertiesCodec.Decode: expected *map[string]string or *map[string]any, got %T", v)
	}

	return nil
}

func flatStrings(v any) (map[string]string, error) {
	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case *map[string]string:
		if m == nil {
			return map[string]string{}, nil
		}
		return *m, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			s, err := cast.ToStringE(val)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", k, err)
			}
			out[k] = s
		}
		return out, nil
	case *map[string]any:
		if m == nil {
			return map[string]string{}, nil
		}
		return flatStrings(*m)
	default:
		return nil, fmt.Errorf("PropertiesCodec.Encode: unsupported type %T", v)
	}
}
