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
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownType is returned when no encoder or decoder is registered for a
// type.
var ErrUnknownType = errors.New("codec: unknown type")

// Registry holds the encoders and decoders known to the process.
type Registry struct {
	mu       sync.RWMutex
	encoders map[Type]Encoder
	decoders map[Type]Decoder
}

var registry = &Registry{
	encoders: make(map[Type]Encoder),
	decoders: make(map[Type]Decoder),
}

// RegisterEncoder registers an encoder under name, replacing any previous one.
func RegisterEncoder(name Type, encoder Encoder) {
	registry.mu.Lock()
	registry.encoders[name] = encoder
	registry.mu.Unlock()
}

// RegisterDecoder registers a decoder under name, replacing any previous one.
func RegisterDecoder(name Type, decoder Decoder) {
	registry.mu.Lock()
	registry.decoders[name] = decoder
	registry.mu.Unlock()
}

// GetEncoder returns the encoder registered under name. The error wraps
// [ErrUnknownType].
func GetEncoder(name Type) (Encoder, error) {
	return find(registry.encoders, "encoder", name)
}

// GetDecoder returns the decoder registered under name. The error wraps
// [ErrUnknownType].
func GetDecoder(name Type) (Decoder, error) {
	return find(registry.decoders, "decoder", name)
}

// Decoders lists the types that can be decoded, sorted.
func Decoders() []Type {
	registry.mu.RLock()
	types := make([]Type, 0, len(registry.decoders))
	for t := range registry.decoders {
		types = append(types, t)
	}
	registry.mu.RUnlock()
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func find[T any](m map[Type]T, kind string, name Type) (T, error) {
	registry.mu.RLock()
	v, ok := m[name]
	registry.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: no %s for %q", ErrUnknownType, kind, name)
	}
	return v, nil
}
