// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread

import "fmt"

// Behavior is a thread body: a function that runs on its own goroutine
// and reaches a sync point by calling Point.Sync, as many times as it
// likes, until it returns (terminating the thread) or panics.
type Behavior[E comparable] func(p *Point[E]) error

// Point is the yield handle a Behavior uses to reach a sync point.
type Point[E comparable] struct {
	c *coroutine[E]
}

// Sync yields spec to the scheduler and blocks until the thread is
// advanced by a selected event, or an error is thrown into it (§4.4.4).
// A thrown error unwinds the calling goroutine via panic unless the
// Behavior recovers it itself; recovering and calling Sync again
// resumes the thread with a new Sync Spec, exactly as if the error had
// never happened.
func (p *Point[E]) Sync(spec SyncSpec[E]) E {
	p.c.out <- stepOutput[E]{spec: spec}
	in := <-p.c.in
	if in.isErr {
		panic(threadThrow{err: in.err})
	}
	return in.event
}

// threadThrow is the unexported sentinel panic value used to unwind a
// Behavior goroutine at its current Sync suspension point when an
// error is thrown into it (spec §4.4.1 Phase A, §4.4.4).
type threadThrow struct{ err error }

type stepInput[E comparable] struct {
	event E
	err   error
	isErr bool
}

type stepOutput[E comparable] struct {
	spec SyncSpec[E]
	done bool
	err  error
}

// coroutine realises a Thread Record's body as a goroutine driven by
// an unbuffered request/response channel pair, per the design note in
// §9 ("Coroutine bodies ... implementations may realise them as
// generators, hand-written state machines, or fiber-like stackful
// primitives").
type coroutine[E comparable] struct {
	in  chan stepInput[E]
	out chan stepOutput[E]
}

func newCoroutine[E comparable](name string, behavior Behavior[E]) *coroutine[E] {
	c := &coroutine[E]{
		in:  make(chan stepInput[E]),
		out: make(chan stepOutput[E]),
	}
	go c.run(name, behavior)
	return c
}

func (c *coroutine[E]) run(name string, behavior Behavior[E]) {
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(threadThrow); ok {
				c.out <- stepOutput[E]{done: true, err: t.err}
				return
			}
			c.out <- stepOutput[E]{done: true, err: fmt.Errorf("bthread: thread %q panicked: %w", name, recoverAsError(r))}
		}
	}()
	err := behavior(&Point[E]{c: c})
	c.out <- stepOutput[E]{done: true, err: err}
}

// start invokes the body once, per §4.2, to obtain its first yielded
// Sync Spec (or an immediate termination).
func (c *coroutine[E]) start() stepOutput[E] {
	return <-c.out
}

// resume supplies the selected event as the body's next input.
func (c *coroutine[E]) resume(event E) stepOutput[E] {
	c.in <- stepInput[E]{event: event}
	return <-c.out
}

// throw injects err at the body's current suspension point.
func (c *coroutine[E]) throw(err error) stepOutput[E] {
	c.in <- stepInput[E]{err: err, isErr: true}
	return <-c.out
}
