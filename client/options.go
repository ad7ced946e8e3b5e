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

package client

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"net"
	"time"

	"github.com/sabouaram/soulseek/duration"
	"github.com/sabouaram/soulseek/logger"
	loglvl "github.com/sabouaram/soulseek/logger/level"
	"github.com/sabouaram/soulseek/protocol"
)

// Clock is the injected time source (§1). Tests substitute a fake clock to
// control deadlines and token seeding without sleeping on a wall clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Dialer is the injected TCP transport factory (§1): it opens the outbound
// socket Connect uses for the server connection and is threaded down to the
// peer manager for outbound peer/transfer/distributed dials.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

func defaultDialer(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// TokenGenerator is the injected random-token collaborator (§1): it mints
// the tokens attached to searches, transfers and indirect connection
// solicitations.
type TokenGenerator func() uint32

// defaultTokenGenerator draws a fresh random uint32 from crypto/rand on
// every call, rather than incrementing a counter seeded once at startup.
func defaultTokenGenerator() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// ConnectionOptions tunes the dial, idle and keepalive behavior of one
// class of TCP connection (server, peer, transfer or distributed).
type ConnectionOptions struct {
	ConnectTimeout     duration.Duration
	InactivityTimeout  duration.Duration
	ReadBufferBytes    uint32
	WriteBufferBytes   uint32
	KeepaliveIdle      duration.Duration
	KeepaliveInterval  duration.Duration
}

func defaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		ConnectTimeout:    duration.Seconds(10),
		InactivityTimeout: duration.Seconds(60),
		ReadBufferBytes:   64 * 1024,
		WriteBufferBytes:  64 * 1024,
		KeepaliveIdle:     duration.Seconds(30),
		KeepaliveInterval: duration.Seconds(10),
	}
}

// SearchResponseResolver answers an inbound FileSearch on behalf of the
// caller's own shares. Returning ok=false means this client has nothing to
// offer and no response frame is sent.
type SearchResponseResolver func(username string, token uint32, query string) (*protocol.SearchResponse, bool)

// Options is the full configuration surface of a Client (§6).
type Options struct {
	MinimumDiagnosticLevel loglvl.Level

	Server      ConnectionOptions
	Peer        ConnectionOptions
	Transfer    ConnectionOptions
	Distributed ConnectionOptions

	ConcurrentPeerMessageConnectionLimit uint32

	ListenPort    uint16
	EnableListener bool

	AutoAcknowledgePrivateMessages        bool
	AutoAcknowledgePrivilegeNotifications bool

	AcceptDistributedChildren bool
	DistributedChildLimit     uint32

	UploadSpeedLimitBytesPerSecond   uint32
	DownloadSpeedLimitBytesPerSecond uint32

	SearchResponseResolver SearchResponseResolver

	// Clock, Dialer, NewToken and Log are the dependency-injected
	// collaborators of §1. A nil field falls back to the real clock, the
	// standard net.Dialer, a crypto/rand-backed generator, and an internally
	// constructed logger, respectively.
	Clock    Clock
	Dialer   Dialer
	NewToken TokenGenerator
	Log      logger.Logger
}

// DefaultOptions returns the configuration a Client uses when the caller
// supplies none: no shared files, no listener, unlimited transfer speeds.
func DefaultOptions() Options {
	return Options{
		MinimumDiagnosticLevel: loglvl.InfoLevel,

		Server:      defaultConnectionOptions(),
		Peer:        defaultConnectionOptions(),
		Transfer:    defaultConnectionOptions(),
		Distributed: defaultConnectionOptions(),

		ConcurrentPeerMessageConnectionLimit: 32,

		ListenPort:     2234,
		EnableListener: false,

		AutoAcknowledgePrivateMessages:        true,
		AutoAcknowledgePrivilegeNotifications: true,

		AcceptDistributedChildren: false,
		DistributedChildLimit:     0,

		UploadSpeedLimitBytesPerSecond:   0,
		DownloadSpeedLimitBytesPerSecond: 0,
	}
}
