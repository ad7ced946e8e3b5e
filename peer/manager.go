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

// Package peer owns the per-user message and transfer connections: the
// direct/indirect connection-establishment race (§4.10), the global
// admission limit on concurrent peer message connections
// (golang.org/x/sync/semaphore, §4.8, §5), and the per-username exclusive
// writer every message connection already provides via its own write
// mutex.
package peer

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	libctx "github.com/sabouaram/soulseek/context"
	"github.com/sabouaram/soulseek/logger"
	"github.com/sabouaram/soulseek/transport"
)

// Connection types carried by PeerInit/ConnectToPeer (§4.10).
const (
	TypeMessage  = "P"
	TypeTransfer = "F"
	TypeDistrib  = "D"
)

// AddressResolver looks up a user's advertised direct-dial endpoint,
// typically by asking the server for GetPeerAddress.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, username string) (ip [4]byte, port uint32, err error)
}

// ServerSender relays an indirect connection request to the server
// (ConnectToPeer) so the target dials us back with PierceFirewall.
type ServerSender interface {
	SendConnectToPeer(ctx context.Context, token uint32, username, kind string) error
}

// TokenGenerator is the injected random-token collaborator (§1).
type TokenGenerator func() uint32

// Dialer abstracts outbound TCP dialing so tests can fake the transport
// factory instead of touching the network, mirroring transport.DialFunc.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

func defaultDialer(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// ConnectionOptions configures both outgoing dials and inbound adoption for
// peer message and transfer connections (§6).
type ConnectionOptions struct {
	ConnectTimeout    time.Duration
	InactivityTimeout time.Duration
	KeepaliveIdle     time.Duration
}

// Options configures a Manager.
type Options struct {
	Message                ConnectionOptions
	Transfer               ConnectionOptions
	ConcurrentMessageLimit int64 // 0 = unlimited
	SelfUsername           string
}

// PeerConn is a long-lived message connection to one peer (§3
// "Message connection").
type PeerConn struct {
	Username string
	mc       *transport.MessageConnection
}

// Underlying exposes the raw framed connection for callers that need to
// write a frame or inspect its lifecycle state.
func (p *PeerConn) Underlying() *transport.MessageConnection { return p.mc }

// Write sends one pre-encoded frame to this peer, serialized with every
// other writer on the same PeerConn by the MessageConnection's own mutex.
func (p *PeerConn) Write(ctx context.Context, frame []byte) error {
	return p.mc.Write(ctx, frame, nil)
}

type solicitation struct {
	ch chan net.Conn
}

// raceResult carries one connection-establishment attempt's outcome back
// to the direct/indirect race in establish.
type raceResult struct {
	conn net.Conn
	err  error
}

// Manager owns every peer message connection, the global admission
// semaphore, and the bookkeeping for in-flight indirect solicitations
// (§4.8, §4.10).
type Manager struct {
	log    logger.Logger
	addr   AddressResolver
	server ServerSender
	newTok TokenGenerator
	opts   Options
	dial   Dialer

	sem *semaphore.Weighted

	conns libctx.Config[string] // username -> *PeerConn

	solMu sync.Mutex
	sols  map[uint32]*solicitation

	onFrame func(username string, frame []byte)
	onClose func(username string, reason transport.Reason)
}

// New constructs a Manager. onFrame/onClose are invoked for every message
// connection this manager owns or adopts, regardless of how it was
// established, so the peer handler (§4.12) has one subscription point.
func New(
	log logger.Logger,
	addr AddressResolver,
	server ServerSender,
	newTok TokenGenerator,
	opts Options,
	onFrame func(username string, frame []byte),
	onClose func(username string, reason transport.Reason),
) *Manager {
	m := &Manager{
		log:     log,
		addr:    addr,
		server:  server,
		newTok:  newTok,
		opts:    opts,
		dial:    defaultDialer,
		conns:   libctx.NewConfig[string](nil),
		sols:    make(map[uint32]*solicitation),
		onFrame: onFrame,
		onClose: onClose,
	}
	if opts.ConcurrentMessageLimit > 0 {
		m.sem = semaphore.NewWeighted(opts.ConcurrentMessageLimit)
	}
	return m
}

// WithDialer overrides outbound dialing, for tests that fake the transport
// factory instead of touching the network.
func (m *Manager) WithDialer(dial Dialer) *Manager {
	m.dial = dial
	return m
}

func (m *Manager) get(username string) (*PeerConn, bool) {
	v, ok := m.conns.Load(username)
	if !ok {
		return nil, false
	}
	pc := v.(*PeerConn)
	if pc.mc.Underlying().State() != transport.StateConnected {
		m.conns.LoadAndDelete(username)
		return nil, false
	}
	return pc, true
}

// GetOrAddMessageConnection returns the existing healthy connection to
// username, or establishes one via the direct/indirect race (§4.10).
func (m *Manager) GetOrAddMessageConnection(ctx context.Context, username string) (*PeerConn, error) {
	if pc, ok := m.get(username); ok {
		return pc, nil
	}

	if m.sem != nil {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return nil, ErrorAdmissionLimitExceeded.Error(err)
		}
		defer m.sem.Release(1)
	}

	// Re-check after acquiring admission: another goroutine may have
	// finished establishing the connection while we waited for a slot.
	if pc, ok := m.get(username); ok {
		return pc, nil
	}

	conn, err := m.establish(ctx, username, TypeMessage)
	if err != nil {
		return nil, err
	}

	return m.adoptMessageConn(username, conn, nil), nil
}

func (m *Manager) adoptMessageConn(username string, conn net.Conn, preread []byte) *PeerConn {
	raw := transport.Adopt(conn, transport.WithInactivityTimeout(m.opts.Message.InactivityTimeout))
	pc := &PeerConn{Username: username}
	pc.mc = transport.NewMessageConnection(
		raw,
		func(frame []byte) {
			if m.onFrame != nil {
				m.onFrame(username, frame)
			}
		},
		func(reason transport.Reason) {
			m.conns.LoadAndDelete(username)
			if m.onClose != nil {
				m.onClose(username, reason)
			}
		},
		preread,
	)
	m.conns.Store(username, pc)
	return pc
}

// establish runs the direct/indirect race described in §4.10: whichever
// mode completes a usable handshake first wins; the loser's socket is
// closed with AbandonedAfterRace. If both fail, the attempt fails with
// ConnectionTimeout.
func (m *Manager) establish(ctx context.Context, username, kind string) (net.Conn, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceResult, 2)
	token := m.newTok()

	go func() {
		conn, err := m.dialDirect(raceCtx, username, kind, token)
		results <- raceResult{conn: conn, err: err}
	}()

	go func() {
		conn, err := m.dialIndirect(raceCtx, username, kind, token)
		results <- raceResult{conn: conn, err: err}
	}()

	var firstErr error
	var winner net.Conn
	pending := 2

	for pending > 0 && winner == nil {
		select {
		case r := <-results:
			pending--
			if r.err == nil {
				winner = r.conn
			} else if firstErr == nil {
				firstErr = r.err
			}
		case <-ctx.Done():
			cancel()
			go drainRace(results, pending)
			return nil, ErrorConnectionTimeout.Error(ctx.Err())
		}
	}

	cancel()
	if winner != nil {
		go drainRace(results, pending)
		return winner, nil
	}

	if firstErr == nil {
		firstErr = ErrorConnectionTimeout.Error(nil)
	}
	return nil, ErrorConnectionTimeout.Error(firstErr)
}

// drainRace waits for the remaining n race results (the losing mode may
// still be in flight after a winner is chosen, or after the caller's
// context expires) and closes whichever socket it produced with
// AbandonedAfterRace.
func drainRace(results chan raceResult, n int) {
	for i := 0; i < n; i++ {
		r := <-results
		if r.conn != nil {
			_ = r.conn.Close()
		}
	}
}

func (m *Manager) dialDirect(ctx context.Context, username, kind string, token uint32) (net.Conn, error) {
	ip, port, err := m.addr.ResolveAddress(ctx, username)
	if err != nil {
		return nil, err
	}

	dctx := ctx
	if m.opts.Message.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, m.opts.Message.ConnectTimeout)
		defer cancel()
	}

	conn, err := m.dial(dctx, "tcp", formatEndpoint(ip, port))
	if err != nil {
		return nil, err
	}

	init := &initFrame{username: m.opts.SelfUsername, kind: kind, token: token}
	if _, err := conn.Write(init.bytes()); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func (m *Manager) dialIndirect(ctx context.Context, username, kind string, token uint32) (net.Conn, error) {
	if err := m.server.SendConnectToPeer(ctx, token, username, kind); err != nil {
		return nil, err
	}

	sol := &solicitation{ch: make(chan net.Conn, 1)}
	m.solMu.Lock()
	m.sols[token] = sol
	m.solMu.Unlock()
	defer func() {
		m.solMu.Lock()
		delete(m.sols, token)
		m.solMu.Unlock()
	}()

	select {
	case conn := <-sol.ch:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AdoptPierceFirewall is called by the listener dispatch (§4.7) when an
// inbound socket opens with PierceFirewall(token): it resolves the pending
// indirect solicitation registered under that token, if any.
func (m *Manager) AdoptPierceFirewall(token uint32, conn net.Conn) error {
	m.solMu.Lock()
	sol, ok := m.sols[token]
	m.solMu.Unlock()
	if !ok {
		return ErrorUnknownSolicitation.Error(nil)
	}
	select {
	case sol.ch <- conn:
		return nil
	default:
		_ = conn.Close()
		return ErrorAbandonedAfterRace.Error(nil)
	}
}

// AdoptPeerInit is called by the listener dispatch when an inbound socket
// opens with PeerInit(username, type, token): a direct, unsolicited
// connection from that user. Only message-type PeerInit sockets are
// tracked here; transfer/distributed sockets are handled by their own
// owners.
func (m *Manager) AdoptPeerInit(username, kind string, token uint32, conn net.Conn) *PeerConn {
	if kind != TypeMessage {
		return nil
	}
	if pc, ok := m.get(username); ok {
		_ = conn.Close()
		return pc
	}
	return m.adoptMessageConn(username, conn, nil)
}

// Establish runs the direct/indirect race for an arbitrary connection kind
// ("P", "F", or "D") and returns the winning raw socket. It is exported so
// the distributed manager can reuse the same race for its "D" parent/child
// sockets without duplicating §4.10.
func (m *Manager) Establish(ctx context.Context, username, kind string) (net.Conn, error) {
	return m.establish(ctx, username, kind)
}

// AddTransferConnection establishes a fresh transfer-type connection to
// username, racing direct/indirect exactly like a message connection, and
// returns the raw adopted Connection, owned from this point on by the
// caller (the transfer engine).
func (m *Manager) AddTransferConnection(ctx context.Context, username string) (*transport.Connection, error) {
	conn, err := m.establish(ctx, username, TypeTransfer)
	if err != nil {
		return nil, err
	}
	return transport.Adopt(conn, transport.WithInactivityTimeout(m.opts.Transfer.InactivityTimeout)), nil
}

// AdoptTransferConn wraps an inbound socket the listener classified as a
// transfer-type PeerInit (or a pierced-firewall transfer correlation) into
// an owned raw Connection for the transfer engine.
func (m *Manager) AdoptTransferConn(conn net.Conn) *transport.Connection {
	return transport.Adopt(conn, transport.WithInactivityTimeout(m.opts.Transfer.InactivityTimeout))
}

func formatEndpoint(ip [4]byte, port uint32) string {
	return net.JoinHostPort(
		net.IPv4(ip[0], ip[1], ip[2], ip[3]).String(),
		strconv.FormatUint(uint64(port), 10),
	)
}
