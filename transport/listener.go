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
	"encoding/binary"
	"io"
	"net"
)

// InitKind distinguishes the two handshake kinds a Listener classifies an
// inbound socket into (§4.7, §6).
type InitKind uint8

const (
	InitPierceFirewall InitKind = 0x00
	InitPeerInit       InitKind = 0x01
)

// Accepted is one freshly classified inbound socket. To classify it the
// Listener reads the whole first frame (4-byte length, 1-byte init code and
// the rest of the body, kept in Payload) and nothing past that frame.
type Accepted struct {
	Conn    net.Conn
	Kind    InitKind
	Code    uint8
	Payload []byte // remaining frame bytes after the init code, already read
}

// AcceptHandler receives one classified inbound socket.
type AcceptHandler func(Accepted)

// Listener accepts inbound TCP connections and classifies each by its
// first frame's initialization code before handing the socket off to the
// peer or distributed manager. It never reads past that first frame.
type Listener struct {
	ln      net.Listener
	onAccept AcceptHandler
	done    chan struct{}
}

// Listen starts accepting on address and dispatches each classified socket
// to onAccept from its own goroutine.
func Listen(address string, onAccept AcceptHandler) (*Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	l := &Listener{ln: ln, onAccept: onAccept, done: make(chan struct{})}
	go l.acceptLoop()
	return l, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *Listener) acceptLoop() {
	defer close(l.done)

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		go l.classify(conn)
	}
}

func (l *Listener) classify(conn net.Conn) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		_ = conn.Close()
		return
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length == 0 || length > 1<<20 {
		_ = conn.Close()
		return
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		_ = conn.Close()
		return
	}

	code := body[0]
	switch InitKind(code) {
	case InitPierceFirewall, InitPeerInit:
		if l.onAccept != nil {
			l.onAccept(Accepted{Conn: conn, Kind: InitKind(code), Code: code, Payload: body[1:]})
		}
	default:
		_ = conn.Close()
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Done is closed once the accept loop has exited.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}
