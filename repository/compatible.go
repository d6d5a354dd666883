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

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/spf13/cast"

	"rivaas.dev/remoteconfig/codec"
)

// ContentKey holds the raw document of a non-properties namespace.
const ContentKey = "content"

// PropertiesCompatible exposes a YAML, JSON or TOML namespace as flat
// properties. Nested keys are joined with "." and list items become
// "key[i]".
type PropertiesCompatible struct {
	listeners

	upstream Repository
	format   codec.Type
	logger   *slog.Logger
	snap     atomic.Pointer[Snapshot]
}

// NewPropertiesCompatible wraps upstream, whose snapshot carries the
// document under [ContentKey] in the given format.
func NewPropertiesCompatible(upstream Repository, format codec.Type, logger *slog.Logger) *PropertiesCompatible {
	if logger == nil {
		logger = slog.Default()
	}
	p := &PropertiesCompatible{
		upstream: upstream,
		format:   format,
		logger:   logger.With("component", "repository", "kind", "compatible", "namespace", upstream.Namespace()),
	}
	p.listeners.logger = p.logger
	upstream.AddChangeListener(p)
	return p
}

// Namespace returns the upstream's namespace.
func (p *PropertiesCompatible) Namespace() string {
	return p.upstream.Namespace()
}

// SourceType returns the upstream's source.
func (p *PropertiesCompatible) SourceType() SourceType {
	return p.upstream.SourceType()
}

// Config returns the flattened snapshot, converting on first use.
func (p *PropertiesCompatible) Config(ctx context.Context) (*Snapshot, error) {
	if snap := p.snap.Load(); snap != nil {
		return snap, nil
	}
	if err := p.Sync(ctx); err != nil {
		return nil, err
	}
	return p.snap.Load(), nil
}

// Sync converts the upstream's current snapshot.
func (p *PropertiesCompatible) Sync(ctx context.Context) error {
	upstream, err := p.upstream.Config(ctx)
	if err != nil {
		return err
	}
	snap, err := p.convert(upstream)
	if err != nil {
		return err
	}
	p.snap.Store(snap)
	return nil
}

// OnRepositoryChange converts and forwards an upstream change. Documents
// that fail to parse keep the previous snapshot.
func (p *PropertiesCompatible) OnRepositoryChange(_ string, upstream *Snapshot) {
	snap, err := p.convert(upstream)
	if err != nil {
		p.logger.Warn("cannot convert changed document", "error", err)
		return
	}
	if snap.Equal(p.snap.Swap(snap)) {
		return
	}
	p.fire(p.Namespace(), snap)
}

func (p *PropertiesCompatible) convert(upstream *Snapshot) (*Snapshot, error) {
	content, ok := upstream.Get(ContentKey)
	if !ok || content == "" {
		return NewSnapshot(nil, upstream.Source()), nil
	}
	decoder, err := codec.GetDecoder(p.format)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err = decoder.Decode([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", p.format, err)
	}
	return NewSnapshot(Flatten(doc), upstream.Source()), nil
}

// Flatten turns a nested document into properties. Empty lists and null
// values become empty strings.
func Flatten(doc map[string]any) map[string]string {
	out := make(map[string]string)
	for k, v := range doc {
		flattenValue(out, k, v)
	}
	return out
}

func flattenValue(out map[string]string, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			flattenValue(out, joinKey(key, k), child)
		}
	case map[any]any:
		for k, child := range v {
			flattenValue(out, joinKey(key, cast.ToString(k)), child)
		}
	case []any:
		if len(v) == 0 {
			out[key] = ""
			return
		}
		for i, child := range v {
			flattenValue(out, key+"["+strconv.Itoa(i)+"]", child)
		}
	case nil:
		out[key] = ""
	default:
		out[key] = cast.ToString(v)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
