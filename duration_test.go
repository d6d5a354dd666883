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

package remoteconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "go syntax", input: "1h30m", want: 90 * time.Minute},
		{name: "milliseconds", input: "250ms", want: 250 * time.Millisecond},
		{name: "days", input: "3d", want: 72 * time.Hour},
		{name: "all units", input: "1d2h3m4s5ms", want: 26*time.Hour + 3*time.Minute + 4*time.Second + 5*time.Millisecond},
		{name: "upper case", input: "1D12H", want: 36 * time.Hour},
		{name: "surrounding space", input: " 2d ", want: 48 * time.Hour},
		{name: "empty", input: "", wantErr: true},
		{name: "no unit", input: "1d5", wantErr: true},
		{name: "garbage", input: "soon", wantErr: true},
		{name: "unknown unit", input: "2w", wantErr: true},
		{name: "overflowing days", input: "9999999999999d", wantErr: true},
		{name: "overflowing sum", input: "106751d23h47m16s854ms1ms", wantErr: true},
		{name: "largest day form", input: "106751d23h47m16s854ms", want: 106751*24*time.Hour + 23*time.Hour + 47*time.Minute + 16*time.Second + 854*time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
