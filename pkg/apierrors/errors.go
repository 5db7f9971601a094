// Copyright 2024 Greptime Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apierrors centralizes the error kinds the store, controllers and
// API surface agree on, so the API layer can map a kind to an
// HTTP status with a single type switch instead of string sniffing.
package apierrors

import "fmt"

// Kind distinguishes the handling policy for an error: whether it is
// surfaced to API clients, retried with backoff, or recorded as a
// terminal condition on the object.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindAlreadyExists    Kind = "AlreadyExists"
	KindValidationError  Kind = "ValidationError"
	KindRuntimeTransient Kind = "RuntimeTransient"
	KindRuntimeFatal     Kind = "RuntimeFatal"
	KindInternal         Kind = "Internal"
)

// Error is a kind-tagged error carrying the (kind, namespace, name) of the
// resource it concerns, where applicable.
type Error struct {
	Kind      Kind
	Resource  string // e.g. "Pod", empty if not resource-scoped
	Namespace string
	Name      string
	Reason    string
	Cause     error
}

func (e *Error) Error() string {
	loc := ""
	if e.Resource != "" {
		loc = fmt.Sprintf("%s %s/%s: ", e.Resource, e.Namespace, e.Name)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %s: %v", loc, e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s%s: %s", loc, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewNotFound(resource, namespace, name string) error {
	return &Error{Kind: KindNotFound, Resource: resource, Namespace: namespace, Name: name,
		Reason: fmt.Sprintf("%s %q not found", resource, name)}
}

func NewAlreadyExists(resource, namespace, name string) error {
	return &Error{Kind: KindAlreadyExists, Resource: resource, Namespace: namespace, Name: name,
		Reason: fmt.Sprintf("%s %q already exists", resource, name)}
}

func NewValidationError(resource, reason string) error {
	return &Error{Kind: KindValidationError, Resource: resource, Reason: reason}
}

func NewRuntimeTransient(reason string, cause error) error {
	return &Error{Kind: KindRuntimeTransient, Reason: reason, Cause: cause}
}

func NewRuntimeFatal(reason string, cause error) error {
	return &Error{Kind: KindRuntimeFatal, Reason: reason, Cause: cause}
}

func NewInternal(reason string, cause error) error {
	return &Error{Kind: KindInternal, Reason: reason, Cause: cause}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// KindOf returns the Kind of err, or KindInternal if err is not a tagged Error.
func KindOf(err error) Kind {
	if ae, ok := err.(*Error); ok {
		return ae.Kind
	}
	return KindInternal
}
