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
	"log/slog"
	"os"
	"path/filepath"

	"rivaas.dev/remoteconfig/codec"
	"rivaas.dev/remoteconfig/dumper"
)

const (
	cacheDirName   = "config-cache"
	persistComment = "Persisted by remoteconfig"
)

// CacheFileName returns the name of a namespace's cache file.
func CacheFileName(appID, cluster, namespace string) string {
	return appID + "+" + cluster + "+" + namespace + ".properties"
}

// LocalFileConfig holds the inputs of a [LocalFile].
type LocalFileConfig struct {
	AppID     string
	Cluster   string
	Namespace string

	// CacheRoot is the application's cache directory; files live in its
	// config-cache subdirectory.
	CacheRoot string
}

// LocalFileOption configures a [LocalFile].
type LocalFileOption func(*LocalFile)

// WithLocalFileLogger sets the logger.
func WithLocalFileLogger(logger *slog.Logger) LocalFileOption {
	return func(l *LocalFile) { l.logger = logger }
}

// LocalFile persists an upstream's snapshots to a properties file and serves
// that file when the upstream fails. Without an upstream it serves the file
// only.
type LocalFile struct {
	*layered
	file *fileStore
}

// NewLocalFile creates a LocalFile. Call SetUpstream to layer it over a
// remote repository.
func NewLocalFile(cfg LocalFileConfig, opts ...LocalFileOption) *LocalFile {
	path := filepath.Join(cfg.CacheRoot, cacheDirName, CacheFileName(cfg.AppID, cfg.Cluster, cfg.Namespace))
	file := &fileStore{
		path:   path,
		dumper: dumper.NewFile(path, codec.PropertiesCodec{Comment: persistComment}),
	}
	l := &LocalFile{
		layered: &layered{namespace: cfg.Namespace, store: file, logger: slog.Default()},
		file:    file,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "repository", "kind", "localfile", "namespace", cfg.Namespace)
	l.listeners.logger = l.logger
	return l
}

// Path returns the cache file location.
func (l *LocalFile) Path() string {
	return l.file.path
}

type fileStore struct {
	path   string
	dumper *dumper.File
}

func (f *fileStore) load(context.Context) (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var props map[string]string
	if err = (codec.PropertiesCodec{}).Decode(data, &props); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return props, nil
}

func (f *fileStore) save(ctx context.Context, props map[string]string) error {
	return f.dumper.Dump(ctx, props)
}

func (f *fileStore) source() SourceType {
	return SourceLocal
}

func (f *fileStore) location() string {
	return f.path
}
