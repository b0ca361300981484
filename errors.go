// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread

import (
	"errors"
	"fmt"
)

var (
	// ErrSchedulerClosed is logged, at LevelWarn, when Admit is called
	// after the scheduler has torn down (body returned and the system
	// went quiescent); the thread is not admitted. Admit has no return
	// value, so the error is not returned to the caller.
	ErrSchedulerClosed = errors.New("bthread: scheduler closed")

	// ErrBodyPanicked is wrapped into the result of RunSystem when the
	// top-level body itself panics, as distinct from a thread body
	// panicking (which only terminates that thread, see ThreadError).
	ErrBodyPanicked = errors.New("bthread: body panicked")
)

// ThreadError wraps an error that escaped a thread body uncaught,
// identifying the offending thread by name. The scheduler logs it when
// such an error terminates the thread; it is not stored on the Thread
// Record and is not returned from RunSystem.
type ThreadError struct {
	// Name is the thread's diagnostic name (Thread Record.name).
	Name string
	// Cause is the error that escaped the body, or that was injected
	// into it via a failed async op and not re-caught.
	Cause error
}

// Error implements the error interface.
func (e *ThreadError) Error() string {
	return fmt.Sprintf("bthread: thread %q: %v", e.Name, e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *ThreadError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a recovered panic value that was not itself an
// error (e.g. a string or other type), from a thread body or the
// top-level body.
type PanicError struct {
	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("bthread: panic: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value was itself an
// error, enabling errors.Is/errors.As through the panic value's own
// cause chain.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// WrapError wraps cause with a message, preserving it for errors.Is
// and errors.As via %w.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}

// recoverAsError converts a recovered panic value (as returned by the
// builtin recover()) into an error, preserving it unchanged if it
// already is one.
func recoverAsError(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return err
	}
	return PanicError{Value: r}
}
