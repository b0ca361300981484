// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunSystem is the scheduler's single public operation (spec §4.4,
// §6). body is invoked once, on its own goroutine, receiving an Admit
// function it may call any number of times — synchronously or while
// suspended on its own async work — to register threads. RunSystem
// returns once body has returned a value and the system has gone
// quiescent per Scheduler.quiescent (spec §4.4 "Result"; see
// DESIGN.md for why this is not simply "no thread is live").
func RunSystem[E comparable, V any](body func(Admit[E]) (V, error), opts ...Option[E]) (V, error) {
	cfg := resolveRunConfig[E](opts)

	group, _ := errgroup.WithContext(cfg.ctx)
	s := &Scheduler[E]{
		logger:  cfg.logger,
		ctx:     cfg.ctx,
		closed:  make(chan struct{}),
		wake:    make(chan struct{}, 1),
		opDone:  make(chan opResult[E], cfg.opBufferSize),
		opGroup: group,
	}

	type bodyOutcome struct {
		v   V
		err error
	}
	bodyDone := make(chan bodyOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero V
				bodyDone <- bodyOutcome{zero, fmt.Errorf("%w: %w", ErrBodyPanicked, recoverAsError(r))}
			}
		}()
		v, err := body(Admit[E](s.admit))
		bodyDone <- bodyOutcome{v, err}
	}()

	var (
		result    bodyOutcome
		bodyEnded bool
	)

	for {
		for {
			s.mergePending()
			if !s.iterate() {
				break
			}
		}

		if s.hasPending() {
			continue
		}

		if bodyEnded && s.quiescent() {
			close(s.closed)
			_ = s.opGroup.Wait()
			return result.v, result.err
		}

		if bodyEnded {
			<-s.wake
			continue
		}

		select {
		case result = <-bodyDone:
			bodyEnded = true
		case <-s.wake:
		}
	}
}
