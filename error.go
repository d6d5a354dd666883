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
	"errors"
	"fmt"

	"rivaas.dev/remoteconfig/discovery"
	"rivaas.dev/remoteconfig/repository"
)

// Error classes. Test with [errors.Is].
var (
	// ErrNotFound reports a namespace the config service does not know.
	ErrNotFound = repository.ErrNotFound

	// ErrTransient reports a network, 5xx or timeout failure.
	ErrTransient = repository.ErrTransient

	// ErrNoServiceAvailable reports that discovery found no config service.
	ErrNoServiceAvailable = discovery.ErrNoServiceAvailable

	// ErrPersistence reports a failed write of the local copy.
	ErrPersistence = repository.ErrPersistence

	// ErrNoSnapshot reports that no repository in a chain produced a
	// snapshot.
	ErrNoSnapshot = repository.ErrNoSnapshot

	// ErrParse reports a value that could not be converted. Typed getters
	// log it and return the default; it is returned by [ParseDuration] and
	// [ConfigFile.Decode].
	ErrParse = errors.New("parse error")
)

// Error carries the namespace and operation of a failure returned by this
// package.
type Error struct {
	Namespace string // The namespace involved, empty for client-level errors
	Operation string // The operation being performed (e.g., "load", "settings", "close")
	Err       error  // The underlying error
}

// Error returns a formatted error message with context information.
func (e *Error) Error() string {
	if e.Namespace != "" {
		return fmt.Sprintf("remoteconfig error in namespace %s during %s: %v", e.Namespace, e.Operation, e.Err)
	}
	return fmt.Sprintf("remoteconfig error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error.
func NewError(namespace, operation string, err error) *Error {
	return &Error{
		Namespace: namespace,
		Operation: operation,
		Err:       err,
	}
}
