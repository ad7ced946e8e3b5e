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

package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
)

// FrameHandler receives one decoded frame (code+payload, length prefix
// already stripped) off a MessageConnection's read loop.
type FrameHandler func(frame []byte)

// CloseHandler is invoked exactly once when the read loop exits, carrying
// the reason the underlying Connection disconnected.
type CloseHandler func(reason Reason)

// MessageConnection wraps a raw Connection with a continuous frame read
// loop (§4.6): read a 4-byte length, read the remaining length bytes, hand
// one []byte to the subscriber. Writes are serialized by a dedicated mutex
// independent of the raw Connection's own write mutex, since a message
// connection's unit of atomicity is a whole frame, not a byte range.
type MessageConnection struct {
	conn *Connection

	writeMu sync.Mutex

	onFrame FrameHandler
	onClose CloseHandler

	// preread holds bytes already consumed off the socket before the read
	// loop started — the handshake byte a Listener peeked at classification
	// time (§4.7, §4.6's "special flag").
	preread []byte

	loopOnce sync.Once
	done     chan struct{}
}

// NewMessageConnection starts the read loop over an already-Connected raw
// Connection. preread carries any bytes the caller already consumed from
// the socket (e.g. the listener's handshake peek) so the frame boundary
// stays correct.
func NewMessageConnection(conn *Connection, onFrame FrameHandler, onClose CloseHandler, preread []byte) *MessageConnection {
	mc := &MessageConnection{
		conn:    conn,
		onFrame: onFrame,
		onClose: onClose,
		preread: preread,
		done:    make(chan struct{}),
	}
	go mc.readLoop()
	return mc
}

// Underlying returns the raw Connection this message connection rides on,
// for callers that need to inspect state/reason or force a Disconnect.
func (mc *MessageConnection) Underlying() *Connection {
	return mc.conn
}

func (mc *MessageConnection) readLength() (uint32, error) {
	if len(mc.preread) > 0 {
		if len(mc.preread) < 4 {
			// Not enough prered bytes to cover the length prefix; top up
			// from the socket.
			buf := make([]byte, 4)
			copy(buf, mc.preread)
			if err := mc.conn.Read(buf[len(mc.preread):]); err != nil {
				return 0, err
			}
			mc.preread = nil
			return binary.LittleEndian.Uint32(buf), nil
		}
		v := binary.LittleEndian.Uint32(mc.preread[:4])
		mc.preread = mc.preread[4:]
		return v, nil
	}

	var buf [4]byte
	if err := mc.conn.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (mc *MessageConnection) readLoop() {
	defer close(mc.done)

	for {
		length, err := mc.readLength()
		if err != nil {
			if mc.onClose != nil {
				mc.onClose(mc.conn.Reason())
			}
			return
		}

		body := make([]byte, length)
		n := 0
		if len(mc.preread) > 0 {
			n = copy(body, mc.preread)
			mc.preread = mc.preread[n:]
		}
		if n < len(body) {
			if err := mc.conn.Read(body[n:]); err != nil {
				if mc.onClose != nil {
					mc.onClose(mc.conn.Reason())
				}
				return
			}
		}

		if mc.onFrame != nil {
			mc.onFrame(body)
		}
	}
}

// Write sends one complete frame (already encoded, e.g. via
// wire.Builder.Bytes) atomically with respect to other Write calls on this
// MessageConnection.
func (mc *MessageConnection) Write(ctx context.Context, frame []byte, governor Governor) error {
	mc.writeMu.Lock()
	defer mc.writeMu.Unlock()
	return mc.conn.Write(ctx, frame, governor)
}

// Done is closed once the read loop has exited (the connection closed).
func (mc *MessageConnection) Done() <-chan struct{} {
	return mc.done
}

// drainPreread exposes any bytes a listener peeked but did not consume,
// as an io.Reader, for callers that want to splice them ahead of further
// socket reads without going through the frame loop (used by the transfer
// engine's start-offset handshake on a freshly adopted transfer socket).
func (mc *MessageConnection) drainPreread() io.Reader {
	if len(mc.preread) == 0 {
		return nil
	}
	return bytes.NewReader(mc.preread)
}
