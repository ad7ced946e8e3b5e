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

// Package waiter implements a keyed future registry: callers register an
// awaiter for a WaitKey (built from a message code, a username, a transfer
// token, ...) and some other goroutine later resolves or rejects it once
// the matching reply arrives on the wire. The per-key queue lives inside
// the teacher's generic context.Config[T] map, the same key→handle
// indirection the rest of this module uses for connection and transfer
// lookups.
package waiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	libctx "github.com/sabouaram/soulseek/context"
)

// WaitKey identifies one logical request/response pair, e.g. a server
// message code plus a username, or a peer token plus a filename.
type WaitKey string

// Key joins parts with a separator that cannot appear in a message code,
// username, or token, so distinct part tuples never collide.
func Key(parts ...interface{}) WaitKey {
	s := make([]string, 0, len(parts))
	for _, p := range parts {
		s = append(s, fmt.Sprint(p))
	}
	return WaitKey(strings.Join(s, "\x1f"))
}

// Result carries either a value or an error to the waiter that receives it.
type Result struct {
	Value interface{}
	Err   error
}

type entry struct {
	ch chan Result
}

// queue is a FIFO list of waiters registered under the same key. Multiple
// concurrent Wait calls for one key are resolved in arrival order.
type queue struct {
	mu    sync.Mutex
	items []*entry
}

func (q *queue) push(e *entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, e)
}

func (q *queue) popFront() (*entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

func (q *queue) remove(e *entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, x := range q.items {
		if x == e {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

type deadline struct {
	key WaitKey
	e   *entry
	at  time.Time
}

// Registry owns every pending waiter across every key. It must be closed
// to stop its background deadline sweeper.
type Registry struct {
	cfg libctx.Config[string]

	dmu       sync.Mutex
	deadlines []*deadline

	sweep time.Duration
	stop  chan struct{}
	once  sync.Once
}

// NewRegistry starts a registry whose deadline sweeper wakes every
// sweepInterval to expire due waiters in bounded batches.
func NewRegistry(sweepInterval time.Duration) *Registry {
	r := &Registry{
		cfg:   libctx.NewConfig[string](nil),
		sweep: sweepInterval,
		stop:  make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

func (r *Registry) queueFor(key WaitKey) *queue {
	v, _ := r.cfg.LoadOrStore(string(key), &queue{})
	return v.(*queue)
}

func (r *Registry) sweepLoop() {
	t := time.NewTicker(r.sweep)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			r.expireDue()
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) expireDue() {
	now := time.Now()

	r.dmu.Lock()
	due := r.deadlines[:0:0]
	rest := r.deadlines[:0:0]
	for _, d := range r.deadlines {
		if !d.at.IsZero() && !d.at.After(now) {
			due = append(due, d)
		} else {
			rest = append(rest, d)
		}
	}
	r.deadlines = rest
	r.dmu.Unlock()

	for _, d := range due {
		r.queueFor(d.key).remove(d.e)
		select {
		case d.e.ch <- Result{Err: ErrorWaitTimeout.Error(nil)}:
		default:
		}
	}
}

func (r *Registry) trackDeadline(key WaitKey, e *entry, at time.Time) {
	if at.IsZero() {
		return
	}
	r.dmu.Lock()
	r.deadlines = append(r.deadlines, &deadline{key: key, e: e, at: at})
	r.dmu.Unlock()
}

// Close stops the deadline sweeper. Pending waiters are left untouched;
// callers should cancel their own contexts to unblock them.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.stop)
	})
}

// Complete resolves the head of key's FIFO queue with value. It reports
// false if no waiter was registered for key.
func (r *Registry) Complete(key WaitKey, value interface{}) bool {
	e, ok := r.queueFor(key).popFront()
	if !ok {
		return false
	}
	select {
	case e.ch <- Result{Value: value}:
		return true
	default:
		return false
	}
}

// Throw rejects the head of key's FIFO queue with err.
func (r *Registry) Throw(key WaitKey, err error) bool {
	e, ok := r.queueFor(key).popFront()
	if !ok {
		return false
	}
	select {
	case e.ch <- Result{Err: err}:
		return true
	default:
		return false
	}
}

// Wait registers a single-shot awaiter for key and blocks until Complete,
// Throw, ctx cancellation, or timeout (timeout ≤ 0 waits indefinitely).
func Wait[T any](ctx context.Context, r *Registry, key WaitKey, timeout time.Duration) (T, error) {
	var zero T

	e := &entry{ch: make(chan Result, 1)}
	q := r.queueFor(key)
	q.push(e)

	var at time.Time
	if timeout > 0 {
		at = time.Now().Add(timeout)
	}
	r.trackDeadline(key, e, at)

	select {
	case res := <-e.ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Value.(T)
		if !ok {
			return zero, ErrorResultTypeMismatch.Error(nil)
		}
		return v, nil
	case <-ctx.Done():
		q.remove(e)
		return zero, ErrorOperationCanceled.Error(ctx.Err())
	}
}

// WaitIndefinite registers an awaiter with no deadline; only ctx
// cancellation can unblock it.
func WaitIndefinite[T any](ctx context.Context, r *Registry, key WaitKey) (T, error) {
	return Wait[T](ctx, r, key, 0)
}
