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

package remoteconfig

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// ParseDuration accepts Go duration syntax ("1h30m", "250ms") and the
// day-based form "1d2h3m4s5ms". Units are case-insensitive and may be
// omitted, so "3d" and "2h5ms" are valid.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	rest := strings.ToLower(s)
	if rest == "" {
		return 0, fmt.Errorf("%w: empty duration", ErrParse)
	}

	var total time.Duration
	for rest != "" {
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("%w: invalid duration %q", ErrParse, s)
		}
		n, err := strconv.ParseInt(rest[:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid duration %q: %w", ErrParse, s, err)
		}
		rest = rest[i:]

		var unit time.Duration
		for _, u := range durationUnits {
			if strings.HasPrefix(rest, u.suffix) {
				unit = u.unit
				rest = rest[len(u.suffix):]
				break
			}
		}
		if unit == 0 {
			return 0, fmt.Errorf("%w: missing unit in duration %q", ErrParse, s)
		}
		if n > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("%w: duration %q overflows", ErrParse, s)
		}
		d := time.Duration(n) * unit
		if total > math.MaxInt64-d {
			return 0, fmt.Errorf("%w: duration %q overflows", ErrParse, s)
		}
		total += d
	}
	return total, nil
}
