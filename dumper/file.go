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

package dumper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"rivaas.dev/remoteconfig/codec"
)

const (
	// DefaultFilePermissions is applied to dumped files unless overridden.
	DefaultFilePermissions fs.FileMode = 0o644

	// DefaultDirPermissions is applied to directories created on demand.
	DefaultDirPermissions fs.FileMode = 0o755
)

// File writes encoded values to a single path with atomic replacement.
type File struct {
	path        string
	encoder     codec.Encoder
	permissions fs.FileMode
}

// FileOption configures a [File].
type FileOption func(*File)

// WithPermissions sets the mode of the written file.
func WithPermissions(perm fs.FileMode) FileOption {
	return func(f *File) {
		f.permissions = perm
	}
}

// NewFile creates a File dumper for path using encoder.
func NewFile(path string, encoder codec.Encoder, opts ...FileOption) *File {
	f := &File{
		path:        path,
		encoder:     encoder,
		permissions: DefaultFilePermissions,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the destination path.
func (f *File) Path() string {
	return f.path
}

// Dump encodes values and atomically replaces the destination file. Missing
// parent directories are created. A cancelled context aborts the dump before
// anything is written.
//
// Errors:
//   - Returns error if ctx is already done
//   - Returns error if encoding fails
//   - Returns error if the temporary file cannot be written or renamed
func (f *File) Dump(ctx context.Context, values any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.encoder == nil {
		return errors.New("no encoder configured")
	}

	data, err := f.encoder.Encode(values)
	if err != nil {
		return fmt.Errorf("failed to encode values: %w", err)
	}

	if err = writeAtomic(f.path, data, f.permissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}

	// Windows refuses to rename over an open or existing file.
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %w (after remove: %w)", err, err2)
		}
	}
	return nil
}
