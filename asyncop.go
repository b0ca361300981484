// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread

// opResult is what an async op's goroutine hands back to the
// scheduler once op() returns. gen lets the scheduler recognise a
// result that raced against a cancellation (spec §4.4.3).
type opResult[E comparable] struct {
	thread *threadRecord[E]
	gen    uint64
	val    E
	err    error
}

// startOpIfPending is the Async Op Runner's start contract (§4.3): if
// t.sync's exec is pending, spawn a background task computing it and
// transition exec to running. Safe to call whether t is about to be
// published to the scheduler (admission, still single-owner) or is
// already live (only ever called from the scheduler goroutine in that
// case).
func (s *Scheduler[E]) startOpIfPending(t *threadRecord[E]) {
	if t.sync.exec.kind != execPending {
		return
	}
	op := t.sync.exec.op
	t.opGen++
	gen := t.opGen

	ack := make(chan struct{})
	ctx, cancel := s.opContext()

	t.sync.exec = execState[E]{kind: execRunning, cancel: cancel, ack: ack}

	s.opGroup.Go(func() error {
		val, err := op(ctx)
		// ack is closed as soon as op returns, before the result is
		// handed off, so cancelOp never waits on a full opDone buffer.
		close(ack)
		select {
		case s.opDone <- opResult[E]{thread: t, gen: gen, val: val, err: err}:
		case <-s.closed:
		}
		s.signalWake()
		return nil
	})
}

// cancelOp is the Async Op Runner's cancel contract (§4.3): called by
// the scheduler when a thread holding a running op is advanced by an
// event. It synchronously requests cancellation and blocks until the
// op's goroutine has observed it and returned from op(), per §5's
// "cancellation is synchronous from the scheduler's perspective".
// exec is overwritten to none before anything is awaited, so a result
// landing on opDone afterwards is recognised as stale by generation.
func (s *Scheduler[E]) cancelOp(t *threadRecord[E]) {
	if t.sync.exec.kind != execRunning {
		return
	}
	cancel, ack := t.sync.exec.cancel, t.sync.exec.ack
	t.opGen++
	t.sync.exec = execState[E]{kind: execNone}
	cancel()
	<-ack
}
