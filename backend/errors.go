// Copyright 2026 Agora Labs
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

package backend

import (
	"errors"
	"fmt"
)

// TransportError is a network or server failure. It is retryable and
// never invalidates previously resolved store state.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError is a backend 404 for a proposal the indexer has not
// caught up to yet. During post-write polling it is an expected
// transient condition, not a failure.
type NotFoundError struct {
	Id uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("proposal %d not indexed", e.Id)
}

// AuthError is a backend 401/403. The reader does not refresh tokens;
// the error propagates to the caller unresolved.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("backend auth failure (status %d)", e.Status)
}

// IsNotFound returns true if the error is a backend NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsAuth returns true if the error is a backend AuthError
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
