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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvVarCodec_Decode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{
			name:  "flat",
			input: "CLUSTER=default\nIDC=sh",
			want:  map[string]any{"cluster": "default", "idc": "sh"},
		},
		{
			name:  "nested by underscore",
			input: "APP_ID=demo\nLONGPOLL_READTIMEOUT=90s\nCACHE_FILE=false",
			want: map[string]any{
				"app":      map[string]any{"id": "demo"},
				"longpoll": map[string]any{"readtimeout": "90s"},
				"cache":    map[string]any{"file": "false"},
			},
		},
		{
			name:  "empty input",
			input: "",
			want:  map[string]any{},
		},
		{
			name:  "lines without equals are skipped",
			input: "APP\nMETA=http://meta",
			want:  map[string]any{"meta": "http://meta"},
		},
		{
			name:  "whitespace is trimmed",
			input: "  ENV  =  DEV  \n\tLABEL\t=\tgrey\t",
			want:  map[string]any{"env": "DEV", "label": "grey"},
		},
		{
			name:  "empty keys are skipped",
			input: "=x\n_=y\n___=z\nENV=PRO",
			want:  map[string]any{"env": "PRO"},
		},
		{
			name:  "repeated underscores collapse",
			input: "POOL__SYNC=8\n_POOL_LISTENER_=2",
			want:  map[string]any{"pool": map[string]any{"sync": "8", "listener": "2"}},
		},
		{
			name:  "comments and quotes",
			input: "# settings\nAPP_ID=\"demo\"\nMETA='http://meta:8080'\nLABEL=\"open",
			want: map[string]any{
				"app":   map[string]any{"id": "demo"},
				"meta":  "http://meta:8080",
				"label": "\"open",
			},
		},
		{
			name:  "section replaces earlier scalar",
			input: "CACHE=on\nCACHE_FILE=true",
			want:  map[string]any{"cache": map[string]any{"file": "true"}},
		},
		{
			name:  "scalar never replaces section",
			input: "CACHE_FILE=true\nCACHE=on",
			want:  map[string]any{"cache": map[string]any{"file": "true"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got map[string]any
			require.NoError(t, EnvVarCodec{}.Decode([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvVarCodec_DecodeWrongTarget(t *testing.T) {
	t.Parallel()

	var target []string
	err := EnvVarCodec{}.Decode([]byte("APP_ID=demo"), &target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected *map[string]any")
}

func TestEnvVarCodec_EncodeUnsupported(t *testing.T) {
	t.Parallel()

	_, err := EnvVarCodec{}.Encode(map[string]any{"app": "demo"})
	require.ErrorContains(t, err, "not supported")
}

func TestNest(t *testing.T) {
	t.Parallel()

	nested := Nest(map[string]string{
		"app.id":          "demo",
		"cache.file":      "false",
		"cluster":         "default",
		"cache":           "ignored",
		"..":              "skipped",
		"longpoll..delay": "2s",
	})

	assert.Equal(t, "default", nested["cluster"])
	assert.Equal(t, map[string]any{"id": "demo"}, nested["app"])
	assert.Equal(t, map[string]any{"file": "false"}, nested["cache"])
	assert.Equal(t, map[string]any{"delay": "2s"}, nested["longpoll"])
	assert.NotContains(t, nested, "")
}
