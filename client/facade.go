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
	"io"

	"github.com/sabouaram/soulseek/protocol"
	"github.com/sabouaram/soulseek/search"
	"github.com/sabouaram/soulseek/transfer"
	"github.com/sabouaram/soulseek/waiter"
)

// requireLoggedIn guards every facade method that needs a live session.
func (c *Client) requireLoggedIn() error {
	if c.State() != StateLoggedIn {
		return ErrorNotLoggedIn.Error(nil)
	}
	return nil
}

// Search starts a network/room/user/wishlist search and wires its
// OnResponse/OnComplete callbacks to EventSearchResponseReceived and
// EventSearchStateChanged, in addition to whatever the caller supplied in
// opts (§4.13).
func (c *Client) Search(ctx context.Context, query string, scope search.Scope, filters search.Filters, opts search.Options) (*search.Search, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}

	token := c.newToken()

	userOnResponse := opts.OnResponse
	opts.OnResponse = func(r search.Response) {
		c.emit(Event{Kind: EventSearchResponseReceived, SearchResponseReceived: SearchResponseReceived{Token: token, Response: r}})
		if userOnResponse != nil {
			userOnResponse(r)
		}
	}
	userOnComplete := opts.OnComplete
	opts.OnComplete = func(reason search.CompletionReason) {
		c.emit(Event{Kind: EventSearchStateChanged, SearchStateChanged: SearchStateChanged{Token: token, State: search.StateCompleted, Reason: reason}})
		if userOnComplete != nil {
			userOnComplete(reason)
		}
	}

	return c.search.Start(ctx, token, query, scope, filters, opts)
}

// Download fetches a file from username and wires OnProgress/OnState to
// EventTransferProgressUpdated/EventTransferStateChanged, in addition to
// whatever the caller supplied in opts (§4.14).
func (c *Client) Download(ctx context.Context, username, filename string, sink io.Writer, opts transfer.DownloadOptions) (*transfer.Transfer, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}

	var token uint32
	userOnProgress := opts.OnProgress
	opts.OnProgress = func(bytes, size int64) {
		c.emit(Event{Kind: EventTransferProgressUpdated, TransferProgressUpdated: TransferProgressUpdated{
			Token: token, Username: username, Filename: filename, Bytes: bytes, TotalSize: size,
		}})
		if userOnProgress != nil {
			userOnProgress(bytes, size)
		}
	}
	userOnState := opts.OnState
	opts.OnState = func(s transfer.State) {
		c.emit(Event{Kind: EventTransferStateChanged, TransferStateChanged: TransferStateChanged{
			Token: token, Username: username, Filename: filename, Direction: transfer.Download, State: s,
		}})
		if userOnState != nil {
			userOnState(s)
		}
	}

	t, err := c.transfer.Download(ctx, username, filename, sink, opts)
	if t != nil {
		token = t.Token
	}
	return t, err
}

// Browse requests username's complete shared-folder listing and waits for
// the (possibly zlib-decompressed) reply.
func (c *Client) Browse(ctx context.Context, username string) (*protocol.BrowseResponse, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	pc, err := c.peers.GetOrAddMessageConnection(ctx, username)
	if err != nil {
		return nil, err
	}
	key := waiter.Key("browse", username)
	if err := pc.Write(ctx, (&protocol.BrowseRequest{}).ToBytes()); err != nil {
		return nil, err
	}
	return waiter.Wait[*protocol.BrowseResponse](ctx, c.waiters, key, c.opts.Peer.InactivityTimeout.Time())
}

// GetFolderContents requests one folder's file listing from username.
func (c *Client) GetFolderContents(ctx context.Context, username, folder string) (*protocol.FolderContentsReply, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	pc, err := c.peers.GetOrAddMessageConnection(ctx, username)
	if err != nil {
		return nil, err
	}
	token := c.newToken()
	key := waiter.Key("folder-contents", username, token)
	if err := pc.Write(ctx, (&protocol.FolderContentsRequest{Token: token, Folder: folder}).ToBytes()); err != nil {
		return nil, err
	}
	return waiter.Wait[*protocol.FolderContentsReply](ctx, c.waiters, key, c.opts.Peer.InactivityTimeout.Time())
}

// GetPeerInfo requests username's profile (description, picture, slots).
func (c *Client) GetPeerInfo(ctx context.Context, username string) (*protocol.InfoResponse, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	pc, err := c.peers.GetOrAddMessageConnection(ctx, username)
	if err != nil {
		return nil, err
	}
	key := waiter.Key("peer-info", username)
	if err := pc.Write(ctx, (&protocol.InfoRequest{}).ToBytes()); err != nil {
		return nil, err
	}
	return waiter.Wait[*protocol.InfoResponse](ctx, c.waiters, key, c.opts.Peer.InactivityTimeout.Time())
}

// GetPlaceInQueue asks username for a queued download's current queue
// position.
func (c *Client) GetPlaceInQueue(ctx context.Context, username, filename string) (*protocol.PlaceInQueueReply, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	pc, err := c.peers.GetOrAddMessageConnection(ctx, username)
	if err != nil {
		return nil, err
	}
	key := waiter.Key("place-in-queue", username, filename)
	if err := pc.Write(ctx, (&protocol.PlaceInQueueRequest{Filename: filename}).ToBytes()); err != nil {
		return nil, err
	}
	return waiter.Wait[*protocol.PlaceInQueueReply](ctx, c.waiters, key, c.opts.Peer.InactivityTimeout.Time())
}

// SendPrivateMessage sends a private message through the server, which
// relays it to username and echoes delivery back as EventPrivateMessage to
// the recipient's own client.
func (c *Client) SendPrivateMessage(ctx context.Context, username, message string) error {
	if err := c.requireLoggedIn(); err != nil {
		return err
	}
	return c.serverConn.Write(ctx, (&protocol.PrivateMessageRequest{Username: username, Message: message}).ToBytes(), nil)
}

// JoinRoom joins room and blocks until the server confirms with
// JoinRoomResponse; UserJoinedRoom/SayInChatRoomIn pushes for it then start
// arriving as EventRoomJoined/EventRoomMessage.
func (c *Client) JoinRoom(ctx context.Context, room string) (*protocol.JoinRoomResponse, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	key := waiter.Key("join-room", room)
	if err := c.serverConn.Write(ctx, (&protocol.JoinRoom{Room: room}).ToBytes(), nil); err != nil {
		return nil, err
	}
	resp, err := waiter.Wait[*protocol.JoinRoomResponse](ctx, c.waiters, key, c.opts.Server.InactivityTimeout.Time())
	if err != nil {
		return nil, err
	}
	c.rooms.Store(room, struct{}{})
	return resp, nil
}

// LeaveRoom leaves room and blocks until the server confirms with
// LeaveRoomResponse.
func (c *Client) LeaveRoom(ctx context.Context, room string) error {
	if err := c.requireLoggedIn(); err != nil {
		return err
	}
	key := waiter.Key("leave-room", room)
	if err := c.serverConn.Write(ctx, (&protocol.LeaveRoom{Room: room}).ToBytes(), nil); err != nil {
		return err
	}
	if _, err := waiter.Wait[*protocol.LeaveRoomResponse](ctx, c.waiters, key, c.opts.Server.InactivityTimeout.Time()); err != nil {
		return err
	}
	c.rooms.Delete(room)
	return nil
}

// Ping round-trips a keepalive frame through the server connection and
// blocks until the server echoes it back, completing the outstanding
// "ping" waiter by code alone (there is only ever one in flight).
func (c *Client) Ping(ctx context.Context) error {
	if err := c.requireLoggedIn(); err != nil {
		return err
	}
	key := waiter.Key("ping")
	if err := c.serverConn.Write(ctx, (&protocol.Ping{}).ToBytes(), nil); err != nil {
		return err
	}
	_, err := waiter.Wait[*protocol.Ping](ctx, c.waiters, key, c.opts.Server.InactivityTimeout.Time())
	return err
}

// SayInRoom sends a chat line to a joined room.
func (c *Client) SayInRoom(ctx context.Context, room, message string) error {
	if err := c.requireLoggedIn(); err != nil {
		return err
	}
	return c.serverConn.Write(ctx, (&protocol.SayInChatRoomOut{Room: room, Message: message}).ToBytes(), nil)
}

// Rooms returns the rooms this session has joined (best-effort local
// bookkeeping, not re-synced from the server on reconnect).
func (c *Client) Rooms() []string {
	var out []string
	c.rooms.Walk(func(room string, _ interface{}) bool {
		out = append(out, room)
		return true
	})
	return out
}

// GetUserStatus asks the server for username's online/away/offline status.
func (c *Client) GetUserStatus(ctx context.Context, username string) (*protocol.GetStatusResponse, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	key := waiter.Key("user-status", username)
	if err := c.serverConn.Write(ctx, (&protocol.GetStatusRequest{Username: username}).ToBytes(), nil); err != nil {
		return nil, err
	}
	return waiter.Wait[*protocol.GetStatusResponse](ctx, c.waiters, key, c.opts.Server.InactivityTimeout.Time())
}

// GetUserStats asks the server for username's shared-file counts and
// transfer speed.
func (c *Client) GetUserStats(ctx context.Context, username string) (*protocol.GetUserStatsResponse, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	key := waiter.Key("user-stats", username)
	if err := c.serverConn.Write(ctx, (&protocol.GetUserStatsRequest{Username: username}).ToBytes(), nil); err != nil {
		return nil, err
	}
	return waiter.Wait[*protocol.GetUserStatsResponse](ctx, c.waiters, key, c.opts.Server.InactivityTimeout.Time())
}

// AddUser subscribes to username's status/stats pushes and reports whether
// the account exists.
func (c *Client) AddUser(ctx context.Context, username string) (*protocol.AddUserResponse, error) {
	if err := c.requireLoggedIn(); err != nil {
		return nil, err
	}
	key := waiter.Key("add-user", username)
	if err := c.serverConn.Write(ctx, (&protocol.AddUserRequest{Username: username}).ToBytes(), nil); err != nil {
		return nil, err
	}
	return waiter.Wait[*protocol.AddUserResponse](ctx, c.waiters, key, c.opts.Server.InactivityTimeout.Time())
}
