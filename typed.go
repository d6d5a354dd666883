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
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/spf13/cast"
)

// Int returns key as an int.
func (c *DefaultConfig) Int(key string, def int) int {
	return cached(c, "int", key, def, fromString(cast.ToIntE))
}

// Int64 returns key as an int64.
func (c *DefaultConfig) Int64(key string, def int64) int64 {
	return cached(c, "int64", key, def, fromString(cast.ToInt64E))
}

// Int32 returns key as an int32.
func (c *DefaultConfig) Int32(key string, def int32) int32 {
	return cached(c, "int32", key, def, fromString(cast.ToInt32E))
}

// Int16 returns key as an int16.
func (c *DefaultConfig) Int16(key string, def int16) int16 {
	return cached(c, "int16", key, def, fromString(cast.ToInt16E))
}

// Int8 returns key as an int8.
func (c *DefaultConfig) Int8(key string, def int8) int8 {
	return cached(c, "int8", key, def, fromString(cast.ToInt8E))
}

// Uint returns key as a uint.
func (c *DefaultConfig) Uint(key string, def uint) uint {
	return cached(c, "uint", key, def, fromString(cast.ToUintE))
}

// Float64 returns key as a float64.
func (c *DefaultConfig) Float64(key string, def float64) float64 {
	return cached(c, "float64", key, def, fromString(cast.ToFloat64E))
}

// Float32 returns key as a float32.
func (c *DefaultConfig) Float32(key string, def float32) float32 {
	return cached(c, "float32", key, def, fromString(cast.ToFloat32E))
}

// Bool returns key as a bool.
func (c *DefaultConfig) Bool(key string, def bool) bool {
	return cached(c, "bool", key, def, fromString(cast.ToBoolE))
}

// Duration returns key parsed by [ParseDuration].
func (c *DefaultConfig) Duration(key string, def time.Duration) time.Duration {
	return cached(c, "duration", key, def, ParseDuration)
}

// Time returns key parsed with layout in the local time zone.
func (c *DefaultConfig) Time(key, layout string, def time.Time) time.Time {
	return cached(c, "time:"+layout, key, def, func(raw string) (time.Time, error) {
		return time.ParseInLocation(layout, raw, time.Local)
	})
}

// StringSlice returns key split on sep. The result is a copy the caller may
// modify.
func (c *DefaultConfig) StringSlice(key, sep string, def []string) []string {
	v := cached(c, "slice:"+sep, key, def, func(raw string) ([]string, error) {
		return strings.Split(raw, sep), nil
	})
	return slices.Clone(v)
}

// fromString adapts a cast conversion to a string parser.
func fromString[T any](conv func(any) (T, error)) func(string) (T, error) {
	return func(raw string) (T, error) { return conv(raw) }
}

// cached resolves key, parses it and memoizes the result per kind. A
// result is stored only if no snapshot change happened since the raw value
// was read, so a cache never holds a value of an older snapshot.
func cached[T any](c *DefaultConfig, kind, key string, def T, parse func(string) (T, error)) T {
	cache := c.cache(kind)
	if cache != nil {
		if v, ok := cache.Get(key); ok {
			return v.(T)
		}
	}

	generation := c.generation.Load()
	raw, ok := c.Lookup(key)
	if !ok {
		c.warnMissing(key)
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		c.warnParse(kind, key, raw, err)
		return def
	}

	if cache != nil {
		c.cacheMu.Lock()
		if c.generation.Load() == generation {
			cache.Add(key, v)
		}
		c.cacheMu.Unlock()
	}
	return v
}

func (c *DefaultConfig) cache(kind string) *expirable.LRU[string, any] {
	if c.cacheSize <= 0 {
		return nil
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	cache, ok := c.caches[kind]
	if !ok {
		cache = expirable.NewLRU[string, any](c.cacheSize, nil, c.cacheExpire)
		c.caches[kind] = cache
	}
	return cache
}
