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
	"strings"
	"time"

	"github.com/spf13/cast"
)

// GetOr returns key converted to the type of def, or def when the key is
// missing or cannot be converted. Results are not cached. Conversion
// failures are logged like those of the typed getters when c supports it.
//
// Example:
//
//	port := remoteconfig.GetOr(cfg, "server.port", 8080)
//	timeout := remoteconfig.GetOr(cfg, "timeout", 30*time.Second)
func GetOr[T any](c Config, key string, def T) T {
	return Parse(c, key, convert[T], def)
}

// Parse returns key converted by parse, or def when the key is missing or
// parse fails. It serves types the typed getters do not cover. A
// [DefaultConfig] logs a failure at most once per minute per key and type.
//
// Example:
//
//	level := remoteconfig.Parse(cfg, "log.level", parseLevel, slog.LevelInfo)
func Parse[T any](c Config, key string, parse func(string) (T, error), def T) T {
	if c == nil {
		return def
	}
	raw, ok := c.Lookup(key)
	if !ok {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		if w, ok := c.(parseWarner); ok {
			w.warnParse(fmt.Sprintf("%T", def), key, raw, err)
		}
		return def
	}
	return v
}

// parseWarner is implemented by configs that report conversion failures.
type parseWarner interface {
	warnParse(kind, key, raw string, err error)
}

// convert converts raw to T with cast for common types.
func convert[T any](raw string) (T, error) {
	var zero T
	var (
		result any
		err    error
	)

	switch any(zero).(type) {
	case string:
		result = raw
	case int:
		result, err = cast.ToIntE(raw)
	case int64:
		result, err = cast.ToInt64E(raw)
	case int32:
		result, err = cast.ToInt32E(raw)
	case int16:
		result, err = cast.ToInt16E(raw)
	case int8:
		result, err = cast.ToInt8E(raw)
	case uint:
		result, err = cast.ToUintE(raw)
	case uint64:
		result, err = cast.ToUint64E(raw)
	case uint32:
		result, err = cast.ToUint32E(raw)
	case uint16:
		result, err = cast.ToUint16E(raw)
	case uint8:
		result, err = cast.ToUint8E(raw)
	case float64:
		result, err = cast.ToFloat64E(raw)
	case float32:
		result, err = cast.ToFloat32E(raw)
	case bool:
		result, err = cast.ToBoolE(raw)
	case time.Duration:
		result, err = ParseDuration(raw)
	case []string:
		result = strings.Split(raw, ",")
	default:
		return zero, fmt.Errorf("%w: unsupported type %T", ErrParse, zero)
	}
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}
