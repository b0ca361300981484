// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-bthreads"
)

// runWithTimeout fails the test rather than hanging forever if
// RunSystem never returns, since a buggy turn algorithm failing to
// reach quiescence is exactly the kind of bug these tests exist to
// catch.
func runWithTimeout[V any](t *testing.T, timeout time.Duration, fn func() (V, error)) (V, error) {
	t.Helper()
	type result struct {
		v   V
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-time.After(timeout):
		t.Fatal("RunSystem did not return before the test timeout")
		var zero V
		return zero, nil
	}
}

// S1 — Basic producer/consumer.
func TestProducerConsumer(t *testing.T) {
	var records []string

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("producer", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithPost[string]("e1")))
				p.Sync(bthread.NewSync(bthread.WithPost[string]("e2")))
				return nil
			})
			admit("consumer", 1, func(p *bthread.Point[string]) error {
				e := p.Sync(bthread.NewSync(bthread.WithWait[string](func(e string) bool { return e == "e1" })))
				records = append(records, e)
				e = p.Sync(bthread.NewSync(bthread.WithWait[string](func(e string) bool { return e == "e2" })))
				records = append(records, e)
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e2"}, records)
}

// S2 — Block wins over post: the blocked event is never selected, and
// the system still reaches quiescence and returns.
func TestBlockWinsOverPost(t *testing.T) {
	var selected []string

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("A", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithPost[string]("x")))
				return nil
			})
			admit("B", 1, func(p *bthread.Point[string]) error {
				// Never resumes: the only event it would be advanced
				// by is the one it blocks.
				p.Sync(bthread.NewSync(bthread.WithBlock[string](func(e string) bool { return e == "x" })))
				return nil
			})
			admit("observer", 1, func(p *bthread.Point[string]) error {
				e := p.Sync(bthread.NewSync(bthread.WithWait[string](func(string) bool { return true })))
				selected = append(selected, e)
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.Empty(t, selected, "x must never be selected")
}

// S3 — Priority ordering: the higher-priority post wins.
func TestPriorityOrdering(t *testing.T) {
	var record string

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("A", 2, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithPost[string]("hi")))
				return nil
			})
			admit("B", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithPost[string]("lo")))
				return nil
			})
			admit("C", 1, func(p *bthread.Point[string]) error {
				record = p.Sync(bthread.NewSync(bthread.WithWait[string](func(string) bool { return true })))
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.Equal(t, "hi", record)
}

// S4 — Async op produces an event once it completes.
func TestAsyncOpProducesEvent(t *testing.T) {
	var record string

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("worker", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithExec[string](func(ctx context.Context) (string, error) {
					time.Sleep(2 * time.Millisecond)
					return "done", nil
				})))
				return nil
			})
			admit("waiter", 1, func(p *bthread.Point[string]) error {
				record = p.Sync(bthread.NewSync(bthread.WithWait[string](func(e string) bool { return e == "done" })))
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.Equal(t, "done", record)
}

// S5 — Async op interrupted: the event arrives before the op finishes,
// the op is cancelled, and its result is never observed.
func TestAsyncOpInterrupted(t *testing.T) {
	var advancedWith string
	var doneSeen bool

	_, err := runWithTimeout(t, 2*time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("worker", 1, func(p *bthread.Point[string]) error {
				advancedWith = p.Sync(bthread.NewSync(
					bthread.WithWait[string](func(e string) bool { return e == "timeout" }),
					bthread.WithExec[string](func(ctx context.Context) (string, error) {
						select {
						case <-time.After(10 * time.Second):
							return "done", nil
						case <-ctx.Done():
							return "", ctx.Err()
						}
					}),
				))
				return nil
			})
			admit("timer", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithPost[string]("timeout")))
				return nil
			})
			admit("doneObserver", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithWait[string](func(e string) bool { return e == "done" })))
				doneSeen = true
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.Equal(t, "timeout", advancedWith)
	require.False(t, doneSeen, `"done" must never appear after cancellation`)
}

// A thread that terminates on its first step without ever yielding is
// never admitted.
func TestImmediatelyTerminatingThreadIsNotAdmitted(t *testing.T) {
	bodyRan := false

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("ghost", 1, func(p *bthread.Point[string]) error {
				bodyRan = true
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.True(t, bodyRan, "the body must still run once")
}

// A post list orders its own events: posting [a, b] with nothing
// blocking either selects a first.
func TestPostOrderingWithinThread(t *testing.T) {
	var record string

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("poster", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithPost[string]("a", "b")))
				return nil
			})
			admit("observer", 1, func(p *bthread.Point[string]) error {
				record = p.Sync(bthread.NewSync(bthread.WithWait[string](func(string) bool { return true })))
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.Equal(t, "a", record)
}

// A thread body's uncaught error terminates only that thread; its
// peers continue unaffected.
func TestThreadErrorIsolated(t *testing.T) {
	boom := errors.New("boom")
	var consumerSaw string

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("failing", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithPost[string]("x")))
				return boom
			})
			admit("peer", 1, func(p *bthread.Point[string]) error {
				consumerSaw = p.Sync(bthread.NewSync(bthread.WithWait[string](func(e string) bool { return e == "x" })))
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.Equal(t, "x", consumerSaw)
}

// A thread that catches a thrown async-op error and yields a fresh
// Sync Spec continues running instead of terminating.
func TestThreadRecoversFromThrownError(t *testing.T) {
	opErr := errors.New("op failed")
	var recovered bool
	var finalEvent string

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("resilient", 1, func(p *bthread.Point[string]) (err error) {
				func() {
					defer func() {
						if r := recover(); r != nil {
							recovered = true
						}
					}()
					p.Sync(bthread.NewSync(bthread.WithExec[string](func(ctx context.Context) (string, error) {
						return "", opErr
					})))
				}()
				if !recovered {
					return nil
				}
				finalEvent = p.Sync(bthread.NewSync(bthread.WithPost[string]("recovered")))
				return nil
			})
			admit("observer", 1, func(p *bthread.Point[string]) error {
				p.Sync(bthread.NewSync(bthread.WithWait[string](func(e string) bool { return e == "recovered" })))
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.True(t, recovered)
	require.Equal(t, "recovered", finalEvent)
}

// Dynamic admission: a thread admitted from inside another thread's
// body becomes live, and its post advances the thread that admitted it.
func TestDynamicAdmission(t *testing.T) {
	var record string

	_, err := runWithTimeout(t, time.Second, func() (struct{}, error) {
		return bthread.RunSystem[string, struct{}](func(admit bthread.Admit[string]) (struct{}, error) {
			admit("spawner", 1, func(p *bthread.Point[string]) error {
				admit("spawned", 1, func(p2 *bthread.Point[string]) error {
					p2.Sync(bthread.NewSync(bthread.WithPost[string]("spawned-event")))
					return nil
				})
				p.Sync(bthread.NewSync(bthread.WithWait[string](func(e string) bool { return e == "spawned-event" })))
				record = "spawner-saw-it"
				return nil
			})
			return struct{}{}, nil
		})
	})

	require.NoError(t, err)
	require.Equal(t, "spawner-saw-it", record)
}

func TestMakeSyncDefaults(t *testing.T) {
	s := bthread.NewSync[string]()
	require.Empty(t, s.Post)
	require.False(t, s.Wait("anything"))
	require.False(t, s.Block("anything"))
}
