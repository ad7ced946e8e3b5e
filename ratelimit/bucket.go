/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package ratelimit implements a shared, fair token bucket used to govern
// upload and download throughput. It generalizes the teacher's
// file/bandwidth sleep-on-increment algorithm into an interval-tick bucket
// with a FIFO pending queue, so multiple concurrent transfers can share one
// capacity fairly instead of each racing the clock independently.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// request is one pending call to Wait, queued FIFO until the bucket can
// afford it.
type request struct {
	count int64
	ch    chan error
}

// Bucket is a single shared rate limiter. At every interval boundary the
// available count resets to capacity and pending requests are served in
// arrival order until the next request's count would exceed what remains;
// later requests stay queued for the following tick.
type Bucket struct {
	mu        sync.Mutex
	capacity  int64
	current   int64
	pending   int64
	hasChange bool
	interval  time.Duration
	waiters   []*request
	closed    bool
	unbounded bool
	stop      chan struct{}
}

// New returns a bucket with the given capacity (tokens per interval) and
// interval. A capacity of zero or less is the "no limit" sentinel: Wait
// always returns immediately and SetCapacity is a no-op.
func New(capacity int64, interval time.Duration) *Bucket {
	b := &Bucket{
		capacity:  capacity,
		current:   capacity,
		interval:  interval,
		unbounded: capacity <= 0,
		stop:      make(chan struct{}),
	}
	if !b.unbounded {
		go b.run()
	}
	return b
}

// Unbounded returns a bucket that never throttles, for callers that want a
// uniform Bucket interface regardless of whether a limit is configured.
func Unbounded() *Bucket {
	return New(0, 0)
}

func (b *Bucket) run() {
	t := time.NewTicker(b.interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			b.tick()
		case <-b.stop:
			return
		}
	}
}

func (b *Bucket) tick() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hasChange {
		b.capacity = b.pending
		b.hasChange = false
	}
	b.current = b.capacity
	b.serveLocked()
}

// serveLocked drains queued waiters in FIFO order until the head would
// overdraw the current allotment, leaving the rest queued for next tick.
func (b *Bucket) serveLocked() {
	for len(b.waiters) > 0 {
		head := b.waiters[0]
		if head.count > b.current {
			break
		}
		b.current -= head.count
		b.waiters = b.waiters[1:]
		head.ch <- nil
	}
}

// Wait blocks until count tokens are available, or ctx is canceled. It
// fails with ErrorArgumentOutOfRange if count exceeds the bucket's
// capacity and any capacity pending from SetCapacity — no amount of
// waiting would ever satisfy the request.
func (b *Bucket) Wait(ctx context.Context, count int64) error {
	if b.unbounded {
		return nil
	}

	b.mu.Lock()
	if count > b.capacity && (!b.hasChange || count > b.pending) {
		b.mu.Unlock()
		return ErrorArgumentOutOfRange.Error(nil)
	}
	if b.closed {
		b.mu.Unlock()
		return ErrorBucketClosed.Error(nil)
	}
	if len(b.waiters) == 0 && count <= b.current {
		b.current -= count
		b.mu.Unlock()
		return nil
	}

	req := &request{count: count, ch: make(chan error, 1)}
	b.waiters = append(b.waiters, req)
	b.mu.Unlock()

	select {
	case err := <-req.ch:
		return err
	case <-ctx.Done():
		b.cancel(req)
		return ctx.Err()
	}
}

func (b *Bucket) cancel(req *request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, q := range b.waiters {
		if q == req {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}

// SetCapacity reconfigures the bucket. The change takes effect at the next
// interval tick, not immediately (§4.3).
func (b *Bucket) SetCapacity(capacity int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unbounded {
		return
	}
	b.pending = capacity
	b.hasChange = true
}

// Close stops the interval timer and rejects any queued waiters with
// ErrorBucketClosed. Close is idempotent.
func (b *Bucket) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()

	if !b.unbounded {
		close(b.stop)
	}
	for _, w := range waiters {
		w.ch <- ErrorBucketClosed.Error(nil)
	}
}
