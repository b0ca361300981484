// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bthread

import "context"

// runConfig holds configuration assembled from Option values, in the
// same shape as the teacher's loopOptions (eventloop/options.go).
type runConfig struct {
	ctx          context.Context
	logger       Logger
	opBufferSize int
}

// Option configures RunSystem.
type Option[E comparable] interface {
	apply(*runConfig)
}

type optionFunc[E comparable] func(*runConfig)

func (f optionFunc[E]) apply(c *runConfig) { f(c) }

// WithContext sets the root context used to cancel outstanding async
// ops when it is done; it is also what an external caller cancels to
// force every op to unwind even if the body never returns. Defaults to
// context.Background().
func WithContext[E comparable](ctx context.Context) Option[E] {
	return optionFunc[E](func(c *runConfig) { c.ctx = ctx })
}

// WithLogger sets the Logger used for scheduler diagnostics. Defaults
// to a no-op logger.
func WithLogger[E comparable](logger Logger) Option[E] {
	return optionFunc[E](func(c *runConfig) { c.logger = logger })
}

// WithOpBufferSize sets the capacity of the channel async op
// goroutines deliver their results on. It is a throughput knob only:
// a smaller buffer never changes correctness, only how soon an op
// goroutine that has already finished is able to hand off its result
// and exit. Defaults to 16.
func WithOpBufferSize[E comparable](n int) Option[E] {
	return optionFunc[E](func(c *runConfig) { c.opBufferSize = n })
}

func resolveRunConfig[E comparable](opts []Option[E]) *runConfig {
	c := &runConfig{
		ctx:          context.Background(),
		logger:       NewNoopLogger(),
		opBufferSize: 16,
	}
	for _, o := range opts {
		if o != nil {
			o.apply(c)
		}
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	if c.logger == nil {
		c.logger = NewNoopLogger()
	}
	if c.opBufferSize <= 0 {
		c.opBufferSize = 16
	}
	return c
}
