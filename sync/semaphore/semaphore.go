// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package semaphore provides semaphore.
package semaphore

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.chromium.org/infra/build/cmakedeps/o11y/clog"
)

// Semaphore is a counting semaphore that counts its requests.
type Semaphore struct {
	name string
	ch   chan int

	reqs atomic.Int64
}

// New creates a new semaphore with name and capacity.
// n less than 1 is treated as 1.
func New(name string, n int) *Semaphore {
	n = max(n, 1)
	ch := make(chan int, n)
	for i := 0; i < n; i++ {
		ch <- i + 1 // tid
	}
	return &Semaphore{
		name: name,
		ch:   ch,
	}
}

// WaitAcquire acquires a semaphore.
// It returns a context for acquired semaphore and func to release it.
// The returned context carries the slot as "tid" log label.
func (s *Semaphore) WaitAcquire(ctx context.Context) (context.Context, func(), error) {
	select {
	case tid := <-s.ch:
		s.reqs.Add(1)
		ctx = clog.NewSpan(ctx, map[string]string{
			"tid": fmt.Sprintf("%s:%d", s.name, tid),
		})
		return ctx, func() {
			s.ch <- tid
		}, nil
	case <-ctx.Done():
		return ctx, func() {}, context.Cause(ctx)
	}
}

// Name returns name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Capacity returns capacity of the semaphore.
func (s *Semaphore) Capacity() int {
	if s == nil {
		return 0
	}
	return cap(s.ch)
}

// NumRequests returns total number of requests.
func (s *Semaphore) NumRequests() int {
	return int(s.reqs.Load())
}
