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

// Package transport implements the raw and message-framed TCP connection
// layer every peer, distributed, and server channel rides on: a small
// state machine (Pending → Connecting → Connected → Disconnecting →
// Disconnected), an inactivity timer that disconnects idle sockets, and a
// continuous frame-read loop built on the wire codec.
package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"
)

// Governor paces I/O against a shared budget; *ratelimit.Bucket satisfies
// this structurally so transport never imports the ratelimit package
// directly.
type Governor interface {
	Wait(ctx context.Context, count int64) error
}

// DialFunc abstracts socket creation so callers can inject a fake
// transport in tests instead of touching the network.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func defaultDial(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// Option configures a Connection at construction time.
type Option func(*Connection)

// WithDialFunc overrides how Connect obtains a net.Conn.
func WithDialFunc(fn DialFunc) Option {
	return func(c *Connection) { c.dial = fn }
}

// WithKeepAlive enables TCP keepalive with the given period once connected.
// A non-positive period leaves the OS default in place.
func WithKeepAlive(period time.Duration) Option {
	return func(c *Connection) { c.keepAlive = period }
}

// WithInactivityTimeout sets the idle duration after which the connection
// disconnects itself with ReasonTimedOut. A negative duration disables it.
func WithInactivityTimeout(d time.Duration) Option {
	return func(c *Connection) { c.inactivity = d }
}

// Connection is a reliable stream wrapped in the lifecycle state machine
// described in §4.5.
type Connection struct {
	network string
	address string
	dial    DialFunc

	keepAlive  time.Duration
	inactivity time.Duration

	mu     sync.Mutex
	state  State
	reason Reason
	conn   net.Conn

	writeMu sync.Mutex

	idleMu    sync.Mutex
	idleTimer *time.Timer
	closeOnce sync.Once
}

// New returns a Connection in StatePending for the given address. Connect
// must be called before any I/O.
func New(network, address string, opts ...Option) *Connection {
	c := &Connection{
		network:    network,
		address:    address,
		dial:       defaultDial,
		inactivity: -1,
		state:      StatePending,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Adopt wraps an already-established net.Conn (e.g. one accepted by a
// Listener) directly into StateConnected, skipping Connect/dial.
func Adopt(conn net.Conn, opts ...Option) *Connection {
	c := &Connection{
		dial:       defaultDial,
		inactivity: -1,
		state:      StateConnected,
		conn:       conn,
	}
	for _, o := range opts {
		o(c)
	}
	c.applyKeepAlive()
	c.armIdleTimer()
	return c
}

// State reports the connection's current lifecycle stage.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason reports why the connection disconnected, or ReasonNone if it
// hasn't.
func (c *Connection) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Connect dials the remote address and transitions Pending → Connecting →
// Connected.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StatePending {
		st := c.state
		c.mu.Unlock()
		return ErrorInvalidState.Errorf("cannot Connect from state %s", st)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.network, c.address)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.reason = ReasonDialFailed
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.applyKeepAlive()
	c.armIdleTimer()
	return nil
}

func (c *Connection) applyKeepAlive() {
	if c.keepAlive <= 0 {
		return
	}
	if tc, ok := c.conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(c.keepAlive)
	}
}

func (c *Connection) armIdleTimer() {
	if c.inactivity < 0 {
		return
	}
	c.idleMu.Lock()
	defer c.idleMu.Unlock()
	c.idleTimer = time.AfterFunc(c.inactivity, func() {
		_ = c.Disconnect(ReasonTimedOut)
	})
}

func (c *Connection) resetIdleTimer() {
	if c.inactivity < 0 {
		return
	}
	c.idleMu.Lock()
	defer c.idleMu.Unlock()
	if c.idleTimer != nil {
		c.idleTimer.Reset(c.inactivity)
	}
}

func (c *Connection) snapshotConn() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return nil, ErrorConnectionClosed.Errorf("connection is %s, reason=%s", c.state, c.reason)
	}
	return c.conn, nil
}

// Read blocks until exactly len(buf) bytes have been read.
func (c *Connection) Read(buf []byte) error {
	conn, err := c.snapshotConn()
	if err != nil {
		return err
	}
	if _, err := io.ReadFull(conn, buf); err != nil {
		_ = c.Disconnect(ReasonIOError)
		return err
	}
	c.resetIdleTimer()
	return nil
}

// ReadToStream reads exactly n bytes, writing them to sink as they arrive,
// pacing each chunk against governor when non-nil.
func (c *Connection) ReadToStream(ctx context.Context, n int64, sink io.Writer, governor Governor) (int64, error) {
	conn, err := c.snapshotConn()
	if err != nil {
		return 0, err
	}

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	var total int64

	for total < n {
		want := int64(len(buf))
		if remaining := n - total; remaining < want {
			want = remaining
		}
		if governor != nil {
			if err := governor.Wait(ctx, want); err != nil {
				return total, err
			}
		}
		read, err := io.ReadFull(conn, buf[:want])
		total += int64(read)
		if err != nil {
			_ = c.Disconnect(ReasonIOError)
			return total, err
		}
		if _, err := sink.Write(buf[:read]); err != nil {
			return total, err
		}
		c.resetIdleTimer()
	}

	return total, nil
}

// WriteFromStream reads exactly n bytes from source and writes them to the
// connection, pacing each chunk against governor when non-nil. It is the
// write-side counterpart to ReadToStream, used by upload transfers pumping
// bytes from a local file into the socket.
func (c *Connection) WriteFromStream(ctx context.Context, n int64, source io.Reader, governor Governor) (int64, error) {
	conn, err := c.snapshotConn()
	if err != nil {
		return 0, err
	}

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	var total int64

	for total < n {
		want := int64(len(buf))
		if remaining := n - total; remaining < want {
			want = remaining
		}
		read, err := io.ReadFull(source, buf[:want])
		if err != nil {
			return total, err
		}
		if governor != nil {
			if err := governor.Wait(ctx, int64(read)); err != nil {
				return total, err
			}
		}

		c.writeMu.Lock()
		_, werr := conn.Write(buf[:read])
		c.writeMu.Unlock()
		if werr != nil {
			_ = c.Disconnect(ReasonIOError)
			return total, werr
		}
		total += int64(read)
		c.resetIdleTimer()
	}

	return total, nil
}

// Write writes all of p, pacing against governor when non-nil.
func (c *Connection) Write(ctx context.Context, p []byte, governor Governor) error {
	conn, err := c.snapshotConn()
	if err != nil {
		return err
	}

	if governor != nil {
		if err := governor.Wait(ctx, int64(len(p))); err != nil {
			return err
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := conn.Write(p); err != nil {
		_ = c.Disconnect(ReasonIOError)
		return err
	}
	c.resetIdleTimer()
	return nil
}

// Disconnect closes the socket and transitions to Disconnected, recording
// reason. It is idempotent: later calls are no-ops.
func (c *Connection) Disconnect(reason Reason) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateDisconnecting
		c.reason = reason
		conn := c.conn
		c.mu.Unlock()

		c.idleMu.Lock()
		if c.idleTimer != nil {
			c.idleTimer.Stop()
		}
		c.idleMu.Unlock()

		if conn != nil {
			err = conn.Close()
		}

		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
	})
	return err
}
