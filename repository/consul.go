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

	"github.com/hashicorp/consul/api"

	"rivaas.dev/remoteconfig/codec"
)

// ConsulKVAPI is the subset of the Consul KV client used by [ConsulKV].
type ConsulKVAPI interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Put(p *api.KVPair, q *api.WriteOptions) (*api.WriteMeta, error)
}

// ConsulKV is a [KVStore] on Consul's key/value API. Values are JSON
// objects of string properties.
type ConsulKV struct {
	kv    ConsulKVAPI
	codec codec.JSONCodec
}

// NewConsulKV creates a store. A nil kv uses a client configured from the
// standard CONSUL_HTTP_ADDR and CONSUL_HTTP_TOKEN variables.
//
// Errors:
//   - Returns error if the Consul client cannot be created
func NewConsulKV(kv ConsulKVAPI) (*ConsulKV, error) {
	if kv == nil {
		client, err := api.NewClient(api.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create consul client: %w", err)
		}
		kv = client.KV()
	}
	return &ConsulKV{kv: kv}, nil
}

// Get returns the properties stored under key or [ErrKeyNotFound].
func (c *ConsulKV) Get(ctx context.Context, key string) (map[string]string, error) {
	pair, _, err := c.kv.Get(key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get consul key: %w", err)
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	var props map[string]string
	if err = c.codec.Decode(pair.Value, &props); err != nil {
		return nil, fmt.Errorf("failed to decode consul value: %w", err)
	}
	if props == nil {
		props = map[string]string{}
	}
	return props, nil
}

// Put stores props under key.
func (c *ConsulKV) Put(ctx context.Context, key string, props map[string]string) error {
	data, err := c.codec.Encode(props)
	if err != nil {
		return fmt.Errorf("failed to encode consul value: %w", err)
	}
	if _, err = c.kv.Put(&api.KVPair{Key: key, Value: data}, (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to put consul key: %w", err)
	}
	return nil
}
