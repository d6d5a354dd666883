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

package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"rivaas.dev/remoteconfig/codec"
)

// Option configures a [Loader].
type Option func(l *Loader) error

// Loader merges settings sources and binds them onto [Settings].
type Loader struct {
	sources          []Source
	jsonSchema       *jsonschema.Schema
	customValidators []func(map[string]any) error

	validateOnce sync.Once
	validate     *validator.Validate
}

// WithSource appends a custom source.
func WithSource(src Source) Option {
	return func(l *Loader) error {
		if src == nil {
			return errors.New("source cannot be nil")
		}
		l.sources = append(l.sources, src)
		return nil
	}
}

// WithFile appends a file source whose format is detected from its
// extension (.yaml, .yml, .json, .toml, .properties).
func WithFile(path string) Option {
	return func(l *Loader) error {
		t, ok := codec.TypeOf(path)
		if !ok {
			return fmt.Errorf("cannot detect format of %q", path)
		}
		l.sources = append(l.sources, newFileSource(path, nil, t))
		return nil
	}
}

// WithFileAs appends a file source decoded with an explicit codec.
func WithFileAs(path string, codecType codec.Type) Option {
	return func(l *Loader) error {
		l.sources = append(l.sources, newFileSource(path, nil, codecType))
		return nil
	}
}

// WithContent appends in-memory content decoded with codecType.
func WithContent(data []byte, codecType codec.Type) Option {
	return func(l *Loader) error {
		l.sources = append(l.sources, newFileSource("", data, codecType))
		return nil
	}
}

// WithEnv appends the process environment filtered by prefix. An empty
// prefix is replaced by [EnvPrefix].
func WithEnv(prefix string) Option {
	return func(l *Loader) error {
		if prefix == "" {
			prefix = EnvPrefix
		}
		l.sources = append(l.sources, &envSource{prefix: prefix})
		return nil
	}
}

// WithDotEnv appends a .env file read with the given prefix. A missing file
// is an error.
func WithDotEnv(path, prefix string) Option {
	return withDotEnv(path, prefix, false)
}

// WithOptionalDotEnv is like [WithDotEnv] but ignores a missing file.
func WithOptionalDotEnv(path, prefix string) Option {
	return withDotEnv(path, prefix, true)
}

func withDotEnv(path, prefix string, optional bool) Option {
	return func(l *Loader) error {
		if prefix == "" {
			prefix = EnvPrefix
		}
		l.sources = append(l.sources, &dotEnvSource{path: path, prefix: prefix, optional: optional})
		return nil
	}
}

// WithMap appends an in-memory map. Keys may be dotted.
func WithMap(values map[string]any) Option {
	return func(l *Loader) error {
		l.sources = append(l.sources, &mapSource{values: values})
		return nil
	}
}

// WithJSONSchema validates the merged map against schema before binding.
func WithJSONSchema(schema []byte) Option {
	return func(l *Loader) error {
		const schemaName = "settings.schema.json"
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
		if err != nil {
			return err
		}
		compiler := jsonschema.NewCompiler()
		if err = compiler.AddResource(schemaName, doc); err != nil {
			return err
		}
		compiled, err := compiler.Compile(schemaName)
		if err != nil {
			return err
		}
		l.jsonSchema = compiled
		return nil
	}
}

// WithValidator adds a check on the merged map.
func WithValidator(fn func(map[string]any) error) Option {
	return func(l *Loader) error {
		l.customValidators = append(l.customValidators, fn)
		return nil
	}
}

// New creates a Loader. Option errors are joined and returned together with
// the partially configured Loader.
func New(options ...Option) (*Loader, error) {
	var errs error
	l := &Loader{}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(l); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return l, errs //nolint:nilnil // partial loader with error is intentional
}

// MustNew is like [New] but panics on error.
func MustNew(options ...Option) *Loader {
	l, err := New(options...)
	if err != nil {
		panic(fmt.Sprintf("settings: failed to create loader: %v", err))
	}
	return l
}

// Load reads every source in order, merges them, and returns validated
// Settings.
//
// Errors:
//   - Returns [*Error] if a source fails to load or merge
//   - Returns [*Error] if JSON schema or custom validation fails
//   - Returns [*Error] if binding or struct validation fails
func (l *Loader) Load(ctx context.Context) (*Settings, error) {
	values, err := l.merge(ctx)
	if err != nil {
		return nil, err
	}

	if l.jsonSchema != nil {
		if err = l.jsonSchema.Validate(values); err != nil {
			return nil, NewError("json-schema", "validate", err)
		}
	}

	for i, fn := range l.customValidators {
		if fn == nil {
			continue
		}
		if err = runValidator(fn, values); err != nil {
			return nil, NewError(fmt.Sprintf("custom-validator[%d]", i), "validate", err)
		}
	}

	s, err := Bind(values)
	if err != nil {
		return nil, NewError("binding", "bind", err)
	}

	if err = l.validator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, NewFieldError("binding", strings.ToLower(verrs[0].Namespace()), "validate", err)
		}
		return nil, NewError("binding", "validate", err)
	}
	return s, nil
}

func (l *Loader) merge(ctx context.Context) (map[string]any, error) {
	merged := make(map[string]any)
	for i, src := range l.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conf, err := src.Load(ctx)
		if err != nil {
			return nil, NewError(fmt.Sprintf("source[%d]", i), "load", err)
		}
		if conf == nil {
			continue
		}

		if err = mergo.Map(&merged, normalizeMapKeys(conf), mergo.WithOverride); err != nil {
			return nil, NewError(fmt.Sprintf("source[%d]", i), "merge", err)
		}
	}
	return merged, nil
}

func (l *Loader) validator() *validator.Validate {
	l.validateOnce.Do(func() {
		l.validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return l.validate
}

func runValidator(fn func(map[string]any) error, values map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panic: %v", r)
		}
	}()
	return fn(values)
}

// Bind decodes a nested map onto a fresh [Settings]. Defaults are applied
// first so that explicit zero values such as cache.file=false survive.
func Bind(values map[string]any) (*Settings, error) {
	s := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		WeaklyTypedInput: true,
		Result:           s,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err = decoder.Decode(values); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// normalizeMapKeys lowercases keys at every level.
func normalizeMapKeys(m map[string]any) map[string]any {
	normalized := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = normalizeMapKeys(nested)
		}
		normalized[strings.ToLower(k)] = v
	}
	return normalized
}
