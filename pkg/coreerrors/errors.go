// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package coreerrors defines the error taxonomy shared by every
// component of the agricultural query-answering core. Components
// return a *Error wrapping one of the Kind constants so callers can
// branch on failure class with errors.As without parsing message
// strings.
package coreerrors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure from the taxonomy.
type Kind string

const (
	InvalidArgument    Kind = "invalid_argument"
	NotFound           Kind = "not_found"
	OutOfOrder         Kind = "out_of_order"
	Incomplete         Kind = "incomplete"
	WorkflowErrored    Kind = "workflow_errored"
	SchemaViolation    Kind = "schema_violation"
	UpstreamAuth       Kind = "upstream_auth"
	UpstreamQuota      Kind = "upstream_quota"
	UpstreamBusy       Kind = "upstream_busy"
	UpstreamUnavailable Kind = "upstream_unavailable"
	ContentRefused     Kind = "content_refused"
	DimensionConflict  Kind = "dimension_conflict"
	ShapeMismatch      Kind = "shape_mismatch"
	Cancelled          Kind = "cancelled"
	InternalError      Kind = "internal_error"
)

// Error is a taxonomy-classified error. Op names the failing
// operation (e.g. "VectorStore.Upsert"); Cause is the wrapped error.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a taxonomy error whose cause is a plain error
// carrying msg.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Cause: errors.New(msg)}
}

// Wrap constructs a taxonomy error wrapping cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Is reports whether err (or something it wraps) carries Kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to InternalError when
// err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}
