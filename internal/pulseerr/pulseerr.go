// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Pulse Authors.

// Package pulseerr classifies failures the way spec.md §7 requires: every
// error flowing out of an external call site is tagged with a Kind so
// callers can decide whether to retry, alert, or treat a signal as unknown.
package pulseerr

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Kind is one of the five error categories from spec.md §7.
type Kind int

const (
	// Transient is retried with bounded backoff.
	Transient Kind = iota
	// Conflict is refetched and retried, bounded.
	Conflict
	// Permission is logged and alerted, never retried.
	Permission
	// InvariantViolation aborts the current tick, never the process.
	InvariantViolation
	// ExternalUnknown means a dependent signal must be treated as unknown,
	// never as zero.
	ExternalUnknown
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "Transient"
	case Conflict:
		return "Conflict"
	case Permission:
		return "Permission"
	case InvariantViolation:
		return "InvariantViolation"
	case ExternalUnknown:
		return "ExternalUnknown"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind for dispatch.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retryable reports whether the error kind is one to retry (Transient or
// Conflict); ReplicaController's apply path uses it to decide.
func Retryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == Transient || pe.Kind == Conflict
	}
	return false
}

// KindOf returns the classified Kind, defaulting to ExternalUnknown for
// errors that were never wrapped by this package.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ExternalUnknown
}

// Classify maps a raw cluster-API error onto a Kind the way the teacher's
// controller distinguishes IsConflict/IsForbidden/IsNotFound, then wraps it.
func Classify(op string, err error) *Error {
	switch {
	case err == nil:
		return nil
	case apierrors.IsConflict(err):
		return New(Conflict, op, err)
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return New(Permission, op, err)
	case apierrors.IsServerTimeout(err), apierrors.IsTimeout(err), apierrors.IsTooManyRequests(err):
		return New(Transient, op, err)
	case apierrors.IsNotFound(err):
		return New(ExternalUnknown, op, err)
	default:
		return New(Transient, op, err)
	}
}
