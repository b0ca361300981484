// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package bthread implements a behavioral-programming scheduler: a
// turn-based event selection loop that coordinates a dynamic set of
// cooperative behavioral threads (b-threads), extended with
// interruptible asynchronous operations whose completion values feed
// back into the event stream.
//
// # Architecture
//
// [RunSystem] drives a [Scheduler]: an application-supplied body,
// invoked once, admits threads via the [Admit] function it is given.
// Each thread is a [Behavior] running on its own goroutine, yielding a
// [SyncSpec] each time it reaches a sync point ([Point.Sync]). Every
// turn, the scheduler harvests completed async ops, selects the next
// event under priority and blocking constraints, and advances every
// thread whose post or wait condition matches.
//
// # Sync points
//
//	bthread.NewSync(
//	    bthread.WithPost(eventA, eventB),
//	    bthread.WithWait(func(e Event) bool { return e == eventC }),
//	    bthread.WithBlock(func(e Event) bool { return e == eventD }),
//	)
//
// # Thread Safety
//
// The turn algorithm itself runs on exactly one goroutine (the caller
// of [RunSystem]). [Admit] may be called concurrently from any
// goroutine, including from inside a thread body's own asynchronous
// work; newly admitted threads become visible starting with the next
// turn, never the one in progress.
package bthread
