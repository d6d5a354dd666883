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

//go:build !integration

package codec

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_UnknownType(t *testing.T) {
	t.Parallel()

	encoder, err := GetEncoder(Type("unknown"))
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Nil(t, encoder)
	assert.Contains(t, err.Error(), `no encoder for "unknown"`)

	decoder, err := GetDecoder(Type("unknown"))
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Nil(t, decoder)
	assert.Contains(t, err.Error(), `no decoder for "unknown"`)
}

func TestDecoders(t *testing.T) {
	t.Parallel()

	types := Decoders()
	assert.Subset(t, types, []Type{TypeEnvVar, TypeJSON, TypeProperties, TypeTOML, TypeYAML, TypeYML})
	assert.True(t, sort.SliceIsSorted(types, func(i, j int) bool { return types[i] < types[j] }))
}

func TestRegistry_ConcurrentRegisterAndLookup(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			RegisterDecoder(Type("concurrent"), JSONCodec{})
			RegisterEncoder(Type("concurrent"), JSONCodec{})
		}()
		go func() {
			defer wg.Done()
			_, _ = GetDecoder(TypeJSON)
			_, _ = GetEncoder(Type("concurrent"))
		}()
	}
	wg.Wait()

	decoder, err := GetDecoder(Type("concurrent"))
	require.NoError(t, err)
	assert.IsType(t, JSONCodec{}, decoder)
}

func TestTypeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		want   Type
		wantOK bool
	}{
		{name: "application.properties", want: TypeProperties, wantOK: true},
		{name: "datasource.yaml", want: TypeYAML, wantOK: true},
		{name: "datasource.YML", want: TypeYML, wantOK: true},
		{name: "feature.json", want: TypeJSON, wantOK: true},
		{name: "settings.toml", want: TypeTOML, wantOK: true},
		{name: ".env", want: TypeEnvVar, wantOK: true},
		{name: "application", wantOK: false},
		{name: "layout.xml", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := TypeOf(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
