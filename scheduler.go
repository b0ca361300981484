// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Admit is the admission function handed to a RunSystem body: it
// registers a new thread, running behavior with the given diagnostic
// name and priority (higher runs first; ties fall to insertion order).
// A thread whose body terminates on its very first step without
// yielding is silently discarded (§4.2).
type Admit[E comparable] func(name string, prio int, behavior Behavior[E])

// Scheduler is the runtime state described by spec §3 ("Scheduler
// State"): the active and pending Thread Record sets, and the wake
// primitive that rouses the turn loop when otherwise quiescent.
//
// Scheduler has no exported methods and no exported constructor: its
// lifetime is entirely owned by RunSystem, and the only way in from
// outside is the Admit function RunSystem hands to the body.
type Scheduler[E comparable] struct {
	logger Logger

	ctx context.Context

	mu      sync.Mutex
	pending []*threadRecord[E]
	closed  chan struct{}

	active []*threadRecord[E]

	wake   chan struct{}
	opDone chan opResult[E]

	opGroup *errgroup.Group
}

// opContext derives a cancellable context for a single async op from
// the scheduler's root context.
func (s *Scheduler[E]) opContext() (context.Context, func()) {
	return context.WithCancel(s.ctx)
}

func (s *Scheduler[E]) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// admit implements Admit: construct the Thread Record, start its
// pending op if any, add it to pending, and signal wake — exactly the
// outer-loop admission contract in §4.4.2.
func (s *Scheduler[E]) admit(name string, prio int, behavior Behavior[E]) {
	select {
	case <-s.closed:
		s.logger.Log(LevelWarn, "admit after close ignored", "thread", name, "err", ErrSchedulerClosed)
		return
	default:
	}

	t, ok := newThreadRecord[E](name, prio, behavior)
	if !ok {
		s.logger.Log(LevelDebug, "thread terminated without yielding, discarded", "thread", name)
		return
	}
	s.startOpIfPending(t)

	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		s.cancelOp(t)
		return
	default:
	}
	s.pending = append(s.pending, t)
	s.mu.Unlock()

	s.logger.Log(LevelInfo, "thread admitted", "thread", name, "prio", prio)
	s.signalWake()
}

// takePending atomically empties and returns the pending set.
func (s *Scheduler[E]) takePending() []*threadRecord[E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	p := s.pending
	s.pending = nil
	return p
}

func (s *Scheduler[E]) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// harvest is Phase A of one turn (§4.4.1): drain completed ops into the
// exec state machine's done arm (§3/§4.4.3: none, pending, running,
// done), then settle every thread sitting in done into a post
// (success) or a throw into its body (failure).
func (s *Scheduler[E]) harvest() bool {
	didWork := false

drain:
	for {
		select {
		case r := <-s.opDone:
			t := r.thread
			if t.removed || t.opGen != r.gen {
				// Stale: cancelled or superseded since this op started.
				continue drain
			}
			t.sync.exec = execState[E]{kind: execDone, val: r.val, err: r.err}
			didWork = true
		default:
			break drain
		}
	}

	for _, t := range s.active {
		if t.sync.exec.kind != execDone {
			continue
		}
		didWork = true
		val, err := t.sync.exec.val, t.sync.exec.err
		if err == nil {
			t.sync.exec = execState[E]{kind: execNone}
			t.sync.Post = append(t.sync.Post, val)
			s.logger.Log(LevelDebug, "op completed", "thread", t.name)
			continue
		}
		s.logger.Log(LevelWarn, "op failed, throwing into thread", "thread", t.name, "err", err)
		out := t.coro.throw(err)
		if out.done {
			s.removeActive(t, out.err)
			continue
		}
		t.sync = out.spec
		s.startOpIfPending(t)
	}

	return didWork
}

// selectEvent is Phase B of one turn (§4.4.1): the selected event is
// the first candidate, in priority-then-post-order, that no active
// thread's Block predicate vetoes.
func (s *Scheduler[E]) selectEvent() (E, bool) {
	order := make([]*threadRecord[E], len(s.active))
	copy(order, s.active)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].prio > order[j].prio
	})

	seen := make(map[E]struct{})
	for _, t := range order {
		for _, e := range t.sync.Post {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			if !s.blockedByAny(e) {
				return e, true
			}
		}
	}
	var zero E
	return zero, false
}

func (s *Scheduler[E]) blockedByAny(e E) bool {
	for _, t := range s.active {
		if t.sync.Block != nil && t.sync.Block(e) {
			return true
		}
	}
	return false
}

// advance is Phase C of one turn (§4.4.1): every thread whose current
// spec matches the selected event (by Post membership or Wait) is
// resumed exactly once, in a single batch computed from the
// pre-advance snapshot of active.
func (s *Scheduler[E]) advance(selected E) {
	snapshot := make([]*threadRecord[E], len(s.active))
	copy(snapshot, s.active)

	for _, t := range snapshot {
		if t.removed || !t.sync.advances(selected) {
			continue
		}
		s.cancelOp(t)
		out := t.coro.resume(selected)
		if out.done {
			s.removeActive(t, out.err)
			continue
		}
		t.sync = out.spec
		s.startOpIfPending(t)
		s.logger.Log(LevelDebug, "thread advanced", "thread", t.name, "event", selected)
	}
}

// removeActive drops t from active (in place, preserving order of the
// rest) and logs its termination. err is nil for a normal return; a
// non-nil err (an uncaught body error or an unrecovered thrown async-op
// error, spec §4.4.4 kinds 1 and 2) is wrapped in a ThreadError naming
// the offending thread before it is surfaced.
func (s *Scheduler[E]) removeActive(t *threadRecord[E], err error) {
	t.removed = true
	t.opGen++
	for i, at := range s.active {
		if at == t {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}
	if err != nil {
		s.logger.Log(LevelWarn, "thread terminated with error", "thread", t.name, "err", &ThreadError{Name: t.name, Cause: err})
	} else {
		s.logger.Log(LevelInfo, "thread terminated", "thread", t.name)
	}
}

// mergePending admits every currently pending Thread Record into
// active, in the order they were admitted.
func (s *Scheduler[E]) mergePending() {
	for _, t := range s.takePending() {
		s.active = append(s.active, t)
	}
}

// iterate runs one full turn: harvest, select, advance. It returns
// true if any work was done this turn (spec §4.4.1's "did work" flag).
func (s *Scheduler[E]) iterate() bool {
	did := s.harvest()
	if e, ok := s.selectEvent(); ok {
		s.advance(e)
		did = true
	}
	return did
}

// quiescent implements spec §4.4's termination condition literally: no
// requested event can be selected, no thread has a running or done
// async op, and no new threads are pending. A thread that is merely
// stuck (e.g. every event it could advance on is permanently blocked,
// scenario S2) does not, by itself, prevent quiescence — only threads
// with outstanding work (a selectable post/wait match, or a live op)
// do.
func (s *Scheduler[E]) quiescent() bool {
	if s.hasPending() {
		return false
	}
	for _, t := range s.active {
		if t.sync.exec.kind == execRunning || t.sync.exec.kind == execDone {
			return false
		}
	}
	_, ok := s.selectEvent()
	return !ok
}
