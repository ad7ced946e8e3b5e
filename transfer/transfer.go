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

// Package transfer implements the download and upload state machines
// (§4.14): the start-offset handshake over a freshly established
// transfer-type connection, byte pumping under the shared upload/download
// token buckets and an optional per-transfer governor, and the per-user
// upload queue that releases queued downloads as slots free up.
package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/sabouaram/soulseek/transport"
)

// Direction distinguishes which side of the handshake a Transfer plays.
type Direction int

const (
	Download Direction = iota
	Upload
)

func (d Direction) String() string {
	if d == Upload {
		return "Upload"
	}
	return "Download"
}

// State is a Transfer's lifecycle stage.
type State int

const (
	StateQueued State = iota
	StateInitializing
	StateInProgress
	StateCompleted
	StateErrored
	StateCancelled
	StateTimedOut
	StateRemotelyCancelled
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "Queued"
	case StateInitializing:
		return "Initializing"
	case StateInProgress:
		return "InProgress"
	case StateCompleted:
		return "Completed"
	case StateErrored:
		return "Errored"
	case StateCancelled:
		return "Cancelled"
	case StateTimedOut:
		return "TimedOut"
	case StateRemotelyCancelled:
		return "RemotelyCancelled"
	default:
		return "Unknown"
	}
}

// Transfer is one in-flight or finished file transfer, shared by both the
// download and upload paths.
type Transfer struct {
	Token     uint32
	Username  string
	Filename  string
	Direction Direction

	onProgress func(bytes, size int64)
	onState    func(State)

	mu         sync.Mutex
	state      State
	err        error
	size       int64
	bytes      int64
	lastNotify time.Time

	cancel context.CancelFunc
	done   chan struct{}

	// connCh delivers the passively-accepted transfer socket to a Download
	// waiting on AdoptInboundConnection. Only used by the Download direction.
	connCh chan *transport.Connection
}

// State returns the transfer's current stage and, if StateErrored, the
// underlying error.
func (t *Transfer) State() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.err
}

// Progress returns bytes transferred so far and the expected total (0 if
// not yet known).
func (t *Transfer) Progress() (int64, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytes, t.size
}

// Cancel requests early termination; the transfer settles into
// StateCancelled once its pump notices.
func (t *Transfer) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Done is closed once the transfer reaches a terminal state.
func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

func (t *Transfer) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	if t.onState != nil {
		t.onState(s)
	}
}

func (t *Transfer) fail(s State, err error) {
	t.mu.Lock()
	if t.state == StateCompleted || t.state == StateErrored || t.state == StateCancelled ||
		t.state == StateTimedOut || t.state == StateRemotelyCancelled {
		t.mu.Unlock()
		return
	}
	t.state = s
	t.err = err
	t.mu.Unlock()
	if t.onState != nil {
		t.onState(s)
	}
}

// setSize records the negotiated file size once known.
func (t *Transfer) setSize(size int64) {
	t.mu.Lock()
	t.size = size
	t.mu.Unlock()
}

// progressDebounce bounds how often onProgress fires during a byte pump.
const progressDebounce = 200 * time.Millisecond

// noteProgress records bytes moved and invokes onProgress at most once per
// progressDebounce, always firing on the final call (done=true).
func (t *Transfer) noteProgress(n int64, done bool) {
	t.mu.Lock()
	t.bytes += n
	bytes, size := t.bytes, t.size
	fire := done || t.lastNotify.IsZero() || time.Since(t.lastNotify) >= progressDebounce
	if fire {
		t.lastNotify = time.Now()
	}
	t.mu.Unlock()

	if fire && t.onProgress != nil {
		t.onProgress(bytes, size)
	}
}
