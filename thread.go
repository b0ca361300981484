// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread

// threadRecord is the runtime handle for one b-thread (spec §3/§4.2).
// Once the record is published to pending, every field, opGen and
// removed included, is touched exclusively by the scheduler goroutine;
// see SPEC_FULL.md §5 for the concurrency argument.
type threadRecord[E comparable] struct {
	name string
	prio int
	coro *coroutine[E]

	sync SyncSpec[E]

	// opGen is bumped whenever the current op is cancelled or
	// superseded, so a late result from a stale op goroutine can be
	// told apart from the current one (spec §4.4.3: "no done
	// transition may be observed by the scheduler after a
	// cancellation").
	opGen uint64

	// removed marks a thread that has been taken out of active, so
	// that a late-draining opResult referencing it is ignored even if
	// its generation happens to still match (defence in depth; in
	// practice removal always bumps opGen too).
	removed bool
}

// newThreadRecord invokes behavior once, per §4.2, to obtain its first
// yielded Sync Spec. If the body terminates without ever yielding, ok
// is false and the caller must silently discard the thread.
func newThreadRecord[E comparable](name string, prio int, behavior Behavior[E]) (*threadRecord[E], bool) {
	coro := newCoroutine[E](name, behavior)
	out := coro.start()
	if out.done {
		return nil, false
	}
	return &threadRecord[E]{name: name, prio: prio, coro: coro, sync: out.spec}, true
}
