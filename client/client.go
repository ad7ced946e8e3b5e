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

// Package client assembles the wire, protocol, peer, distributed, search
// and transfer packages into the single façade described by §4.15: one
// Client per logged-in session, driving its own lifecycle state machine
// and publishing every server/peer push as an Event.
package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	goerrors "errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	libctx "github.com/sabouaram/soulseek/context"
	"github.com/sabouaram/soulseek/distributed"
	"github.com/sabouaram/soulseek/ioutils/mapCloser"
	"github.com/sabouaram/soulseek/logger"
	loglvl "github.com/sabouaram/soulseek/logger/level"
	"github.com/sabouaram/soulseek/peer"
	"github.com/sabouaram/soulseek/protocol"
	"github.com/sabouaram/soulseek/ratelimit"
	"github.com/sabouaram/soulseek/search"
	"github.com/sabouaram/soulseek/transfer"
	"github.com/sabouaram/soulseek/transport"
	"github.com/sabouaram/soulseek/waiter"
)

// Client is one SoulSeek session: a server-channel connection plus the
// peer, distributed, search and transfer machinery it owns.
type Client struct {
	opts Options

	clock  Clock
	dial   Dialer
	newTok TokenGenerator

	log    logger.Logger
	closer mapCloser.Closer
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	state    State
	username string

	serverConn *transport.MessageConnection
	listener   *transport.Listener

	waiters     *waiter.Registry
	peers       *peer.Manager
	distributed *distributed.Manager
	search      *search.Engine
	transfer    *transfer.Manager

	downloadBucket *ratelimit.Bucket
	uploadBucket   *ratelimit.Bucket

	evCh chan Event

	rooms libctx.Config[string] // room -> struct{}, joined rooms this session
}

// New constructs a Client with the given configuration. The client does
// nothing on the network until Connect is called.
func New(opts Options) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	log := opts.Log
	if log == nil {
		log = logger.New(ctx)
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	dial := opts.Dialer
	if dial == nil {
		dial = defaultDialer
	}
	newTok := opts.NewToken
	if newTok == nil {
		newTok = defaultTokenGenerator
	}

	c := &Client{
		opts:   opts,
		clock:  clock,
		dial:   dial,
		newTok: newTok,
		log:    log,
		closer: mapCloser.New(ctx),
		ctx:    ctx,
		cancel: cancel,
		state:  StateDisconnected,
		evCh:   make(chan Event, 256),
		rooms:  libctx.NewConfig[string](nil),
	}
	c.log.SetLevel(opts.MinimumDiagnosticLevel)

	if opts.UploadSpeedLimitBytesPerSecond > 0 {
		c.uploadBucket = ratelimit.New(int64(opts.UploadSpeedLimitBytesPerSecond), time.Second)
	} else {
		c.uploadBucket = ratelimit.Unbounded()
	}
	if opts.DownloadSpeedLimitBytesPerSecond > 0 {
		c.downloadBucket = ratelimit.New(int64(opts.DownloadSpeedLimitBytesPerSecond), time.Second)
	} else {
		c.downloadBucket = ratelimit.Unbounded()
	}
	c.closer.Add(c.uploadBucket, c.downloadBucket)

	c.waiters = waiter.NewRegistry(30 * time.Second)
	c.closer.Add(closerFunc(func() error { c.waiters.Close(); return nil }))

	// peers/distributed/search/transfer depend on the logged-in username
	// (PeerInit carries it) and are assembled once Login succeeds.
	return c
}

// buildSession wires the peer, distributed, search and transfer managers
// once a username is known, after a successful LoginResponse.
func (c *Client) buildSession(username string) {
	c.peers = peer.New(c.log, c, c, c.newToken, peer.Options{
		Message: peer.ConnectionOptions{
			ConnectTimeout:    c.opts.Peer.ConnectTimeout.Time(),
			InactivityTimeout: c.opts.Peer.InactivityTimeout.Time(),
			KeepaliveIdle:     c.opts.Peer.KeepaliveIdle.Time(),
		},
		Transfer: peer.ConnectionOptions{
			ConnectTimeout:    c.opts.Transfer.ConnectTimeout.Time(),
			InactivityTimeout: c.opts.Transfer.InactivityTimeout.Time(),
			KeepaliveIdle:     c.opts.Transfer.KeepaliveIdle.Time(),
		},
		ConcurrentMessageLimit: int64(c.opts.ConcurrentPeerMessageConnectionLimit),
		SelfUsername:           username,
	}, c.onPeerFrame, c.onPeerClose).WithDialer(peer.Dialer(c.dial))

	c.distributed = distributed.New(c.log, c.peers, c, c.onDistributedSearch, int(c.opts.DistributedChildLimit))
	c.search = search.NewEngine(c)
	c.transfer = transfer.New(c.log, c.peers, c.waiters, c.downloadBucket, c.uploadBucket, nil, c.newToken, 0)
}

// closerFunc adapts a plain func() error to io.Closer, the way the teacher
// wraps ad-hoc cleanup steps for mapCloser.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newToken hands out a token for searches, transfers and indirect
// connection solicitations, via the injected TokenGenerator (§1).
func (c *Client) newToken() uint32 {
	return c.newTok()
}

// State returns the client's current lifecycle stage.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Events returns the channel every Event is published on. The caller is
// expected to drain it continuously; a full buffer drops the oldest
// pending event, whatever its kind, to make room for the new one.
func (c *Client) Events() <-chan Event {
	return c.evCh
}

func (c *Client) emit(ev Event) {
	select {
	case c.evCh <- ev:
	default:
		select {
		case <-c.evCh:
		default:
		}
		select {
		case c.evCh <- ev:
		default:
		}
	}
}

func (c *Client) diag(lvl loglvl.Level, message string, correlationID string) {
	if lvl > c.opts.MinimumDiagnosticLevel {
		return
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	c.log.LogDetails(lvl, message, nil, nil, nil)
	c.emit(Event{Kind: EventDiagnostic, Diagnostic: Diagnostic{Level: lvl, Message: message, CorrelationID: correlationID, Timestamp: c.clock.Now()}})
}

func (c *Client) transitionTo(next State, err error) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev == next {
		return
	}
	c.emit(Event{Kind: EventConnectionStateChanged, ConnectionStateChanged: ConnectionStateChanged{Previous: prev, Current: next, Err: err}})
}

// Connect dials the server at address and starts the optional inbound
// listener. Login must be called afterward to complete the handshake.
func (c *Client) Connect(ctx context.Context, address string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrorAlreadyConnected.Error(nil)
	}
	c.mu.Unlock()
	c.transitionTo(StateConnecting, nil)

	conn := transport.New("tcp", address,
		transport.WithInactivityTimeout(c.opts.Server.InactivityTimeout.Time()),
		transport.WithKeepAlive(c.opts.Server.KeepaliveIdle.Time()),
		transport.WithDialFunc(transport.DialFunc(c.dial)),
	)

	dialCtx := ctx
	if d := c.opts.Server.ConnectTimeout.Time(); d > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := conn.Connect(dialCtx); err != nil {
		c.transitionTo(StateDisconnected, err)
		return err
	}

	c.mu.Lock()
	c.serverConn = transport.NewMessageConnection(conn, c.onServerFrame, c.onServerClose, nil)
	c.mu.Unlock()
	c.closer.Add(closerFunc(func() error { return conn.Disconnect(transport.ReasonLocalClose) }))

	if c.opts.EnableListener {
		ln, err := transport.Listen(fmt.Sprintf(":%d", c.opts.ListenPort), c.onAccepted)
		if err != nil {
			c.transitionTo(StateDisconnected, err)
			return ErrorListenFailed.Error(err)
		}
		c.mu.Lock()
		c.listener = ln
		c.mu.Unlock()
		c.closer.Add(closerFunc(func() error { return ln.Close() }))
	}

	return nil
}

// Login sends the LoginRequest handshake and, on success, assembles the
// peer/distributed/search/transfer machinery and pushes the post-login
// announcements (§4.15).
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.mu.RLock()
	st := c.state
	sc := c.serverConn
	c.mu.RUnlock()
	if st != StateConnecting || sc == nil {
		return ErrorNotConnected.Error(nil)
	}

	sum := md5.Sum([]byte(username + password))
	req := &protocol.LoginRequest{
		Username:     username,
		Password:     password,
		Version:      157,
		PasswordHash: hex.EncodeToString(sum[:]),
		MinorVersion: 17,
	}

	key := waiter.Key("login")
	if err := sc.Write(ctx, req.ToBytes(), nil); err != nil {
		return err
	}

	resp, err := waiter.Wait[*protocol.LoginResponse](ctx, c.waiters, key, c.opts.Server.ConnectTimeout.Time())
	if err != nil {
		return err
	}
	if !resp.Success {
		refused := ErrorLoginRefused.Error(goerrors.New(resp.Message))
		c.transitionTo(StateDisconnected, refused)
		return refused
	}

	c.mu.Lock()
	c.username = username
	c.mu.Unlock()
	c.buildSession(username)
	c.transitionTo(StateLoggedIn, nil)
	c.pushPostLogin(ctx)
	return nil
}

// pushPostLogin sends the announcements §4.15 requires right after a
// successful login: our listen port, that we have no distributed parent
// yet, our shared-file counts, and that we are online.
func (c *Client) pushPostLogin(ctx context.Context) {
	sc := c.serverConn
	if sc == nil {
		return
	}
	_ = sc.Write(ctx, (&protocol.SetListenPort{Port: uint32(c.opts.ListenPort)}).ToBytes(), nil)
	_ = sc.Write(ctx, (&protocol.HaveNoParents{NoParents: true}).ToBytes(), nil)
	_ = sc.Write(ctx, (&protocol.SetSharedCounts{Directories: 0, Files: 0}).ToBytes(), nil)
	_ = sc.Write(ctx, (&protocol.SetOnlineStatus{Status: 2}).ToBytes(), nil)
}

// Disconnect tears down the server connection, listener and every peer,
// distributed and transfer connection this client owns.
func (c *Client) Disconnect() error {
	c.mu.RLock()
	st := c.state
	c.mu.RUnlock()
	if st == StateDisconnected {
		return nil
	}
	c.transitionTo(StateDisconnecting, nil)

	if c.distributed != nil {
		c.distributed.Close()
	}
	if c.transfer != nil {
		c.transfer.Close()
	}

	err := c.closer.Close()
	c.cancel()
	c.transitionTo(StateDisconnected, nil)
	return err
}

func (c *Client) onServerClose(reason transport.Reason) {
	c.diag(loglvl.WarnLevel, fmt.Sprintf("server connection closed: %s", reason), "")
	c.transitionTo(StateDisconnected, ErrorServerConnectionClosed.Error(goerrors.New(string(reason))))
}

// onServerFrame is the server-channel dispatch table of §4.11. Decode
// failures are logged and swallowed: a malformed push must not take the
// whole connection down.
func (c *Client) onServerFrame(frame []byte) {
	code, msg, ok, err := protocol.DecodeServer(frame)
	if err != nil {
		c.diag(loglvl.WarnLevel, fmt.Sprintf("malformed server frame (code %d): %v", code, err), "")
		return
	}
	if !ok {
		c.diag(loglvl.DebugLevel, fmt.Sprintf("unhandled server code %d", code), "")
		return
	}

	switch v := msg.(type) {
	case *protocol.LoginResponse:
		c.waiters.Complete(waiter.Key("login"), v)

	case *protocol.GetPeerAddressResponse:
		c.waiters.Complete(waiter.Key("peer-address", v.Username), v)

	case *protocol.ConnectToPeer:
		c.handleConnectToPeer(v)

	case *protocol.SayInChatRoomIn:
		c.emit(Event{Kind: EventRoomMessage, RoomMessage: RoomMessage{Room: v.Room, Username: v.Username, Message: v.Message}})

	case *protocol.UserJoinedRoom:
		c.emit(Event{Kind: EventRoomJoined, RoomMembership: RoomMembership{Room: v.Room, Username: v.Username}})

	case *protocol.UserLeftRoom:
		c.emit(Event{Kind: EventRoomLeft, RoomMembership: RoomMembership{Room: v.Room, Username: v.Username}})

	case *protocol.GetUserStatsResponse:
		c.waiters.Complete(waiter.Key("user-stats", v.Username), v)
		c.emit(Event{Kind: EventUserStatsChanged, UserStatsChanged: UserStatsChanged{
			Username: v.Username, SpeedBps: v.SpeedBps, UploadCount: v.UploadCount,
			FileCount: v.FileCount, FolderCount: v.FolderCount,
		}})

	case *protocol.GetStatusResponse:
		c.waiters.Complete(waiter.Key("user-status", v.Username), v)
		c.emit(Event{Kind: EventUserStatusChanged, UserStatusChanged: UserStatusChanged{
			Username: v.Username, Status: v.Status, Privileged: v.Privileged,
		}})

	case *protocol.PrivateMessage:
		c.emit(Event{Kind: EventPrivateMessage, PrivateMessage: PrivateMessage{
			ID: v.ID, Timestamp: time.Unix(int64(v.Timestamp), 0), Username: v.Username, Message: v.Message,
		}})
		if c.opts.AutoAcknowledgePrivateMessages && c.serverConn != nil {
			_ = c.serverConn.Write(context.Background(), (&protocol.AcknowledgePrivateMessage{ID: v.ID}).ToBytes(), nil)
		}

	case *protocol.NotifyPrivileges:
		c.emit(Event{Kind: EventPrivilegeNotification, PrivilegeNotification: PrivilegeNotification{ID: v.ID, Username: v.Username}})
		if c.opts.AutoAcknowledgePrivilegeNotifications && c.serverConn != nil {
			_ = c.serverConn.Write(context.Background(), (&protocol.AcknowledgePrivilegeNotification{ID: v.ID}).ToBytes(), nil)
		}

	case *protocol.RoomList:
		c.waiters.Complete(waiter.Key("room-list"), v)

	case *protocol.PrivilegedUsers:
		c.waiters.Complete(waiter.Key("privileged-users"), v)
		c.emit(Event{Kind: EventPrivilegedUserList, PrivilegedUserList: PrivilegedUserList{Usernames: v.Usernames}})

	case *protocol.CheckPrivilegesResponse:
		c.waiters.Complete(waiter.Key("check-privileges"), v)

	case *protocol.SearchRequest:
		if c.distributed != nil {
			c.distributed.HandleFallbackSearchRequest(v.Username, v.Token, v.Query)
		}
		c.answerSearchIfConfigured(v.Username, v.Token, v.Query)

	case *protocol.ParentMinSpeed:
		c.waiters.Complete(waiter.Key("parent-min-speed"), v)

	case *protocol.ParentSpeedRatio:
		c.waiters.Complete(waiter.Key("parent-speed-ratio"), v)

	case *protocol.WishlistInterval:
		c.waiters.Complete(waiter.Key("wishlist-interval"), v)

	case *protocol.NewPassword:
		c.waiters.Complete(waiter.Key("new-password"), v)

	case *protocol.NetInfo:
		if c.distributed != nil {
			go func() { _ = c.distributed.AcquireParent(c.ctx, v.Candidates) }()
		}

	case *protocol.KickedFromServer:
		c.emit(Event{Kind: EventKickedFromServer})
		go func() { _ = c.Disconnect() }()

	case *protocol.AddUserResponse:
		c.waiters.Complete(waiter.Key("add-user", v.Username), v)

	case *protocol.JoinRoomResponse:
		c.waiters.Complete(waiter.Key("join-room", v.Room), v)

	case *protocol.LeaveRoomResponse:
		c.waiters.Complete(waiter.Key("leave-room", v.Room), v)

	case *protocol.Ping:
		c.waiters.Complete(waiter.Key("ping"), v)
	}
}

// answerSearchIfConfigured lets a caller act as an upload source for
// distributed/fallback searches by implementing SearchResponseResolver.
func (c *Client) answerSearchIfConfigured(username string, token uint32, query string) {
	if c.opts.SearchResponseResolver == nil || c.peers == nil {
		return
	}
	resp, ok := c.opts.SearchResponseResolver(username, token, query)
	if !ok || resp == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.Peer.ConnectTimeout.Time())
		defer cancel()
		pc, err := c.peers.GetOrAddMessageConnection(ctx, username)
		if err != nil {
			c.diag(loglvl.WarnLevel, fmt.Sprintf("failed to answer search from %s: %v", username, err), "")
			return
		}
		_ = pc.Write(ctx, resp.ToBytes())
	}()
}

// handleConnectToPeer routes an inbound ConnectToPeer by its Type, dialing
// the advertised endpoint and writing PierceFirewall(Token) before handing
// the resulting socket to the matching owner (§4.10, §4.11).
func (c *Client) handleConnectToPeer(v *protocol.ConnectToPeer) {
	switch v.Type {
	case peer.TypeMessage:
		go c.dialAndPierce(v, func(conn net.Conn) {
			c.peers.AdoptPeerInit(v.Username, peer.TypeMessage, v.Token, conn)
		})

	case peer.TypeTransfer:
		go c.dialAndPierce(v, func(conn net.Conn) {
			if c.transfer == nil {
				_ = conn.Close()
				return
			}
			if err := c.transfer.AdoptInboundConnection(v.Username, conn); err != nil {
				c.diag(loglvl.WarnLevel, fmt.Sprintf("no pending download for inbound transfer from %s: %v", v.Username, err), "")
				_ = conn.Close()
			}
		})

	case peer.TypeDistrib:
		go c.dialAndPierce(v, func(conn net.Conn) {
			if c.distributed == nil || !c.opts.AcceptDistributedChildren {
				_ = conn.Close()
				return
			}
			tc := transport.Adopt(conn,
				transport.WithInactivityTimeout(c.opts.Distributed.InactivityTimeout.Time()),
				transport.WithKeepAlive(c.opts.Distributed.KeepaliveIdle.Time()),
			)
			if err := c.distributed.AdmitChild(v.Username, tc, nil); err != nil {
				c.diag(loglvl.WarnLevel, fmt.Sprintf("rejected distributed child %s: %v", v.Username, err), "")
				_ = tc.Disconnect(transport.ReasonLocalClose)
			}
		})

	default:
		err := ErrorUnknownConnectType.Error(goerrors.New(v.Type))
		c.diag(loglvl.WarnLevel, fmt.Sprintf("ConnectToPeer from %s: %v", v.Username, err), "")
	}
}

func (c *Client) dialAndPierce(v *protocol.ConnectToPeer, adopt func(net.Conn)) {
	addr := fmt.Sprintf("%d.%d.%d.%d:%d", v.IP[0], v.IP[1], v.IP[2], v.IP[3], v.Port)

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.Peer.ConnectTimeout.Time())
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.diag(loglvl.WarnLevel, fmt.Sprintf("failed to connect back to %s at %s: %v", v.Username, addr, err), "")
		return
	}

	if _, err := conn.Write((&protocol.PierceFirewall{Token: v.Token}).ToBytes()); err != nil {
		c.diag(loglvl.WarnLevel, fmt.Sprintf("failed to pierce firewall for %s: %v", v.Username, err), "")
		_ = conn.Close()
		return
	}

	adopt(conn)
}

// onAccepted classifies an inbound listener socket (§4.7) and routes it to
// the peer, transfer or distributed owner.
func (c *Client) onAccepted(a transport.Accepted) {
	frame := append([]byte{a.Code}, a.Payload...)
	_, msg, ok, err := protocol.DecodeInit(frame)
	if err != nil || !ok {
		c.diag(loglvl.WarnLevel, fmt.Sprintf("failed to decode inbound init frame: %v", err), "")
		_ = a.Conn.Close()
		return
	}

	switch v := msg.(type) {
	case *protocol.PierceFirewall:
		// Resolves whichever kind of indirect solicitation (message,
		// transfer or distributed) is waiting on this token: peer.Manager
		// tracks all three under one solicitation map (§4.10).
		if err := c.peers.AdoptPierceFirewall(v.Token, a.Conn); err != nil {
			c.diag(loglvl.DebugLevel, fmt.Sprintf("dropped unclaimed PierceFirewall (token %d): %v", v.Token, err), "")
			_ = a.Conn.Close()
		}

	case *protocol.PeerInit:
		switch v.Type {
		case peer.TypeMessage:
			c.peers.AdoptPeerInit(v.Username, v.Type, v.Token, a.Conn)

		case peer.TypeTransfer:
			if c.transfer == nil || c.transfer.AdoptInboundConnection(v.Username, a.Conn) != nil {
				_ = a.Conn.Close()
			}

		case peer.TypeDistrib:
			if c.distributed == nil || !c.opts.AcceptDistributedChildren {
				_ = a.Conn.Close()
				return
			}
			tc := transport.Adopt(a.Conn,
				transport.WithInactivityTimeout(c.opts.Distributed.InactivityTimeout.Time()),
				transport.WithKeepAlive(c.opts.Distributed.KeepaliveIdle.Time()),
			)
			if err := c.distributed.AdmitChild(v.Username, tc, nil); err != nil {
				_ = tc.Disconnect(transport.ReasonLocalClose)
			}

		default:
			err := ErrorUnknownConnectType.Error(goerrors.New(v.Type))
			c.diag(loglvl.WarnLevel, fmt.Sprintf("PeerInit from %s: %v", v.Username, err), "")
			_ = a.Conn.Close()
		}
	}
}

// onPeerFrame is the peer-channel dispatch table of §4.12.
func (c *Client) onPeerFrame(username string, frame []byte) {
	code, msg, ok, err := protocol.DecodePeer(frame)
	if err != nil {
		c.diag(loglvl.WarnLevel, fmt.Sprintf("malformed peer frame from %s (code %d): %v", username, code, err), "")
		return
	}
	if !ok {
		c.diag(loglvl.DebugLevel, fmt.Sprintf("unhandled peer code %d from %s", code, username), "")
		return
	}

	switch v := msg.(type) {
	case *protocol.BrowseResponse:
		c.waiters.Complete(waiter.Key("browse", username), v)

	case *protocol.SearchResponse:
		if c.search != nil {
			c.search.Ingest(v)
		}

	case *protocol.InfoResponse:
		c.waiters.Complete(waiter.Key("peer-info", username), v)

	case *protocol.FolderContentsReply:
		c.waiters.Complete(waiter.Key("folder-contents", username, v.Token), v)

	case *protocol.TransferRequest:
		if c.transfer != nil {
			c.transfer.HandleTransferRequest(c.ctx, username, v)
		}

	case *protocol.TransferResponse:
		if c.transfer != nil {
			c.transfer.HandleTransferResponse(username, v)
		}

	case *protocol.QueueDownload:
		if c.transfer != nil {
			c.transfer.HandleQueueDownload(c.ctx, username, v)
		}

	case *protocol.UploadFailed:
		if c.transfer != nil {
			c.transfer.HandleUploadFailed(username, v)
		}

	case *protocol.QueueFailed:
		if c.transfer != nil {
			c.transfer.HandleQueueFailed(username, v)
		}

	case *protocol.PlaceInQueueReply:
		c.waiters.Complete(waiter.Key("place-in-queue", username, v.Filename), v)
	}
}

func (c *Client) onPeerClose(username string, reason transport.Reason) {
	c.diag(loglvl.DebugLevel, fmt.Sprintf("peer connection to %s closed: %s", username, reason), "")
}

func (c *Client) onDistributedSearch(req *protocol.DistributedSearchRequest) {
	c.answerSearchIfConfigured(req.Username, req.Token, req.Query)
}

// ResolveAddress implements peer.AddressResolver by asking the server.
func (c *Client) ResolveAddress(ctx context.Context, username string) (ip [4]byte, port uint32, err error) {
	sc := c.serverConn
	if sc == nil {
		return ip, 0, ErrorNotConnected.Error(nil)
	}
	key := waiter.Key("peer-address", username)
	if err = sc.Write(ctx, (&protocol.GetPeerAddressRequest{Username: username}).ToBytes(), nil); err != nil {
		return ip, 0, err
	}
	resp, err := waiter.Wait[*protocol.GetPeerAddressResponse](ctx, c.waiters, key, c.opts.Peer.ConnectTimeout.Time())
	if err != nil {
		return ip, 0, err
	}
	return resp.IP, resp.Port, nil
}

// SendConnectToPeer implements peer.ServerSender.
func (c *Client) SendConnectToPeer(ctx context.Context, token uint32, username, kind string) error {
	sc := c.serverConn
	if sc == nil {
		return ErrorNotConnected.Error(nil)
	}
	return sc.Write(ctx, (&protocol.ConnectToPeerRequest{Token: token, Username: username, Type: kind}).ToBytes(), nil)
}

// SendBranchLevel implements distributed.ServerLink.
func (c *Client) SendBranchLevel(ctx context.Context, level uint32) error {
	if c.serverConn == nil {
		return ErrorNotConnected.Error(nil)
	}
	return c.serverConn.Write(ctx, (&protocol.ServerBranchLevel{Level: level}).ToBytes(), nil)
}

// SendBranchRoot implements distributed.ServerLink.
func (c *Client) SendBranchRoot(ctx context.Context, root string) error {
	if c.serverConn == nil {
		return ErrorNotConnected.Error(nil)
	}
	return c.serverConn.Write(ctx, (&protocol.ServerBranchRoot{Root: root}).ToBytes(), nil)
}

// SendChildDepth implements distributed.ServerLink.
func (c *Client) SendChildDepth(ctx context.Context, depth uint32) error {
	if c.serverConn == nil {
		return ErrorNotConnected.Error(nil)
	}
	return c.serverConn.Write(ctx, (&protocol.ServerChildDepth{Depth: depth}).ToBytes(), nil)
}

// SendHaveNoParents implements distributed.ServerLink.
func (c *Client) SendHaveNoParents(ctx context.Context, have bool) error {
	if c.serverConn == nil {
		return ErrorNotConnected.Error(nil)
	}
	return c.serverConn.Write(ctx, (&protocol.HaveNoParents{NoParents: have}).ToBytes(), nil)
}

// SendFileSearch implements search.Sender.
func (c *Client) SendFileSearch(ctx context.Context, token uint32, query string) error {
	if c.serverConn == nil {
		return ErrorNotConnected.Error(nil)
	}
	return c.serverConn.Write(ctx, (&protocol.FileSearch{Token: token, Query: query}).ToBytes(), nil)
}

// SendRoomSearch implements search.Sender.
func (c *Client) SendRoomSearch(ctx context.Context, room string, token uint32, query string) error {
	if c.serverConn == nil {
		return ErrorNotConnected.Error(nil)
	}
	return c.serverConn.Write(ctx, (&protocol.RoomSearch{Room: room, Token: token, Query: query}).ToBytes(), nil)
}

// SendUserSearch implements search.Sender.
func (c *Client) SendUserSearch(ctx context.Context, username string, token uint32, query string) error {
	if c.serverConn == nil {
		return ErrorNotConnected.Error(nil)
	}
	return c.serverConn.Write(ctx, (&protocol.UserSearch{Username: username, Token: token, Query: query}).ToBytes(), nil)
}

// SendWishlistSearch implements search.Sender.
func (c *Client) SendWishlistSearch(ctx context.Context, token uint32, query string) error {
	if c.serverConn == nil {
		return ErrorNotConnected.Error(nil)
	}
	return c.serverConn.Write(ctx, (&protocol.WishlistSearch{Token: token, Query: query}).ToBytes(), nil)
}

