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
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"rivaas.dev/remoteconfig/codec"
	"rivaas.dev/remoteconfig/repository"
)

// Format is the content format of a config file namespace.
type Format string

const (
	FormatProperties Format = "properties"
	FormatXML        Format = "xml"
	FormatJSON       Format = "json"
	FormatYML        Format = "yml"
	FormatYAML       Format = "yaml"
	FormatTXT        Format = "txt"
)

var formats = []Format{FormatProperties, FormatXML, FormatJSON, FormatYML, FormatYAML, FormatTXT}

// FormatOf returns the format named by namespace's suffix, such as yaml for
// "db.yaml".
func FormatOf(namespace string) (Format, bool) {
	i := strings.LastIndexByte(namespace, '.')
	if i < 0 {
		return "", false
	}
	f := Format(strings.ToLower(namespace[i+1:]))
	return f, slices.Contains(formats, f)
}

// TrimFormat removes a known format suffix from namespace.
func TrimFormat(namespace string) string {
	if f, ok := FormatOf(namespace); ok {
		return namespace[:len(namespace)-len(f)-1]
	}
	return namespace
}

// propertiesCompatible reports whether a format can be flattened into
// properties.
func (f Format) propertiesCompatible() bool {
	return f == FormatYAML || f == FormatYML
}

// FileChangeEvent describes a change of a config file's content. OldValue
// is nil when content appeared, NewValue is nil when it was removed.
type FileChangeEvent struct {
	Namespace string
	OldValue  *string
	NewValue  *string
	Type      ChangeType
}

// ConfigFile exposes a namespace as one document.
type ConfigFile struct {
	namespace string
	format    Format
	repo      repository.Repository
	logger    *slog.Logger
	tasks     handoff

	content atomic.Pointer[string]

	mu        sync.RWMutex
	listeners []*func(FileChangeEvent)
}

// FileOption configures a [ConfigFile].
type FileOption func(*ConfigFile)

// WithFileLogger sets the logger.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(f *ConfigFile) { f.logger = logger }
}

// WithFileListenerPool runs file listeners on pool.
func WithFileListenerPool(pool Submitter) FileOption {
	return func(f *ConfigFile) { f.tasks.pool = pool }
}

// NewConfigFile creates the file view of namespace over repo and loads its
// first document. As with [NewDefaultConfig] the file is returned even when
// that load fails.
func NewConfigFile(ctx context.Context, namespace string, format Format, repo repository.Repository,
	opts ...FileOption,
) (*ConfigFile, error) {
	f := &ConfigFile{
		namespace: namespace,
		format:    format,
		repo:      repo,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "configfile", "namespace", namespace, "format", format)
	f.tasks.logger = f.logger
	repo.AddChangeListener(f)
	snap, err := repo.Config(ctx)
	if err != nil {
		f.logger.Warn("initial load failed", "error", err)
		return f, err
	}
	f.content.CompareAndSwap(nil, f.render(snap))
	return f, nil
}

// Namespace returns the namespace without its format suffix.
func (f *ConfigFile) Namespace() string {
	return f.namespace
}

// Format returns the file's format.
func (f *ConfigFile) Format() Format {
	return f.format
}

// Content returns the document, empty when there is none.
func (f *ConfigFile) Content() string {
	if c := f.content.Load(); c != nil {
		return *c
	}
	return ""
}

// HasContent reports whether a non-empty document is held.
func (f *ConfigFile) HasContent() bool {
	return f.Content() != ""
}

// SourceType reports where the document came from.
func (f *ConfigFile) SourceType() repository.SourceType {
	return f.repo.SourceType()
}

// Decode parses the document into v with the codec of the file's format.
func (f *ConfigFile) Decode(v any) error {
	decoder, err := codec.GetDecoder(codec.Type(f.format))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, f.format, err)
	}
	if err = decoder.Decode([]byte(f.Content()), v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, f.namespace, err)
	}
	return nil
}

// AddChangeListener subscribes fn and returns a function that removes it.
// Events are delivered asynchronously.
func (f *ConfigFile) AddChangeListener(fn func(FileChangeEvent)) func() {
	entry := &fn
	f.mu.Lock()
	f.listeners = append(f.listeners, entry)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if i := slices.Index(f.listeners, entry); i >= 0 {
			f.listeners = slices.Delete(f.listeners, i, i+1)
		}
	}
}

// OnRepositoryChange re-renders the document and notifies listeners when it
// changed.
func (f *ConfigFile) OnRepositoryChange(_ string, snap *repository.Snapshot) {
	next := f.render(snap)
	prev := f.content.Swap(next)
	if equalValues(prev, next) {
		return
	}

	event := FileChangeEvent{Namespace: f.namespace, OldValue: prev, NewValue: next, Type: Modified}
	switch {
	case prev == nil:
		event.Type = Added
	case next == nil:
		event.Type = Deleted
	}

	f.mu.RLock()
	targets := slices.Clone(f.listeners)
	f.mu.RUnlock()
	for _, fn := range targets {
		f.tasks.submit(func(context.Context) { f.call(*fn, event) })
	}
}

// render returns the document of snap, nil when it has none.
func (f *ConfigFile) render(snap *repository.Snapshot) *string {
	if f.format != FormatProperties {
		if v, ok := snap.Get(repository.ContentKey); ok && v != "" {
			return &v
		}
		return nil
	}
	if snap.Len() == 0 {
		return nil
	}
	data, err := codec.PropertiesCodec{}.Encode(snap.Map())
	if err != nil {
		f.logger.Warn("cannot render properties", "error", err)
		return nil
	}
	s := string(data)
	return &s
}

func (f *ConfigFile) call(fn func(FileChangeEvent), event FileChangeEvent) {
	defer func() {
		if p := recover(); p != nil {
			f.logger.Error("file listener panicked", "panic", p)
		}
	}()
	fn(event)
}
