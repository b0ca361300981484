// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread

import "context"

// AsyncFunc is the thunk a Sync Spec's exec field holds while pending:
// invoked on a background goroutine, it either produces an event (to
// be posted) or an error (to be thrown into the thread body). ctx is
// cancelled by the scheduler the instant the thread is advanced by an
// event before the op completes (§4.3); an AsyncFunc MUST select on
// ctx.Done() (or otherwise poll it) so it returns promptly on
// cancellation — the scheduler blocks the whole turn that cancelled it
// until this function returns (§5: cancellation is synchronous).
type AsyncFunc[E comparable] func(ctx context.Context) (E, error)

type execKind uint8

const (
	execNone execKind = iota
	execPending
	execRunning
	execDone
)

// execState is the tagged variant described by spec §3/§4.4.3: none,
// pending(op), running(handle), done(ok v | err e). Polymorphism over
// "what to do with a sync" is by case analysis on kind, not subtyping,
// per the design note in §9.
type execState[E comparable] struct {
	kind execKind

	// valid when kind == execPending
	op AsyncFunc[E]

	// valid when kind == execRunning
	cancel func()
	ack    <-chan struct{}

	// valid when kind == execDone
	val E
	err error
}

// SyncSpec describes one thread's request at a single sync point: the
// events it asks to post, the predicate under which it should be
// advanced regardless of its own post list, the predicate vetoing
// event selection while this spec is live, and an optional async op.
//
// A SyncSpec is immutable once yielded by a thread body, except that
// the scheduler alone transitions its internal exec field through the
// exec state machine (§4.4.3) and, when an async op succeeds, appends
// the op's value to Post.
type SyncSpec[E comparable] struct {
	// Post is the ordered sequence of events this thread requests be
	// selected next. Earlier entries are preferred over later ones
	// within this same spec.
	Post []E

	// Wait reports whether a candidate event should advance this
	// thread even though it is not (or not only) in Post.
	Wait func(E) bool

	// Block vetoes selection of any event satisfying it, for as long
	// as this spec is live.
	Block func(E) bool

	exec execState[E]
}

func alwaysFalse[E comparable](E) bool { return false }

// SyncOption configures a SyncSpec built by NewSync.
type SyncOption[E comparable] func(*SyncSpec[E])

// WithPost requests that one of events be the next selected event,
// preferring earlier entries over later ones.
func WithPost[E comparable](events ...E) SyncOption[E] {
	return func(s *SyncSpec[E]) {
		s.Post = append(s.Post, events...)
	}
}

// WithWait advances the thread whenever a selected event satisfies
// wait, independent of Post.
func WithWait[E comparable](wait func(E) bool) SyncOption[E] {
	return func(s *SyncSpec[E]) { s.Wait = wait }
}

// WithBlock vetoes any candidate event satisfying block from being
// selected, for as long as this spec is the thread's current one.
func WithBlock[E comparable](block func(E) bool) SyncOption[E] {
	return func(s *SyncSpec[E]) { s.Block = block }
}

// WithExec attaches an async op. It is stored as pending and started
// by the scheduler the moment this spec becomes the thread's current
// one (on admission, or immediately after the thread is advanced or
// its op's result is harvested).
func WithExec[E comparable](op AsyncFunc[E]) SyncOption[E] {
	return func(s *SyncSpec[E]) { s.exec = execState[E]{kind: execPending, op: op} }
}

// NewSync is the Sync Spec factory (spec §4.1's make_sync): missing
// predicates default to "always false", missing Post to the empty
// sequence, and missing exec to "none".
func NewSync[E comparable](opts ...SyncOption[E]) SyncSpec[E] {
	s := SyncSpec[E]{
		Wait:  alwaysFalse[E],
		Block: alwaysFalse[E],
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.Wait == nil {
		s.Wait = alwaysFalse[E]
	}
	if s.Block == nil {
		s.Block = alwaysFalse[E]
	}
	return s
}

// advances reports whether the selected event e should resume a
// thread currently holding this spec: either e is present in Post, or
// Wait(e) holds. The spec's open question about post+wait interaction
// is resolved by treating the two as a single OR'd condition (§9).
func (s SyncSpec[E]) advances(e E) bool {
	for _, p := range s.Post {
		if p == e {
			return true
		}
	}
	return s.Wait != nil && s.Wait(e)
}
