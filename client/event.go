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
	"time"

	loglvl "github.com/sabouaram/soulseek/logger/level"
	"github.com/sabouaram/soulseek/search"
	"github.com/sabouaram/soulseek/transfer"
)

// EventKind discriminates the payload carried by an Event. Only the field
// matching Kind is populated; the rest are left at their zero value.
type EventKind int

const (
	EventConnectionStateChanged EventKind = iota
	EventDiagnostic
	EventPrivateMessage
	EventRoomMessage
	EventRoomJoined
	EventRoomLeft
	EventUserStatusChanged
	EventUserStatsChanged
	EventPrivilegedUserList
	EventPrivilegeNotification
	EventKickedFromServer
	EventSearchResponseReceived
	EventSearchStateChanged
	EventTransferStateChanged
	EventTransferProgressUpdated
	EventBrowseProgressUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventConnectionStateChanged:
		return "connection-state-changed"
	case EventDiagnostic:
		return "diagnostic"
	case EventPrivateMessage:
		return "private-message"
	case EventRoomMessage:
		return "room-message"
	case EventRoomJoined:
		return "room-joined"
	case EventRoomLeft:
		return "room-left"
	case EventUserStatusChanged:
		return "user-status-changed"
	case EventUserStatsChanged:
		return "user-stats-changed"
	case EventPrivilegedUserList:
		return "privileged-user-list"
	case EventPrivilegeNotification:
		return "privilege-notification"
	case EventKickedFromServer:
		return "kicked-from-server"
	case EventSearchResponseReceived:
		return "search-response-received"
	case EventSearchStateChanged:
		return "search-state-changed"
	case EventTransferStateChanged:
		return "transfer-state-changed"
	case EventTransferProgressUpdated:
		return "transfer-progress-updated"
	case EventBrowseProgressUpdated:
		return "browse-progress-updated"
	}
	return "unknown"
}

// State is the client's connection lifecycle stage (§4.15).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateLoggedIn
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateLoggedIn:
		return "logged-in"
	case StateDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

// ConnectionStateChanged carries the client's previous and new lifecycle
// state, plus the error that caused the transition, if any.
type ConnectionStateChanged struct {
	Previous State
	Current  State
	Err      error
}

// Diagnostic is an internal log line surfaced to the caller, gated by
// Options.MinimumDiagnosticLevel. CorrelationID ties a diagnostic back to
// the Connect/Login call (or other operation) that triggered it.
type Diagnostic struct {
	Level         loglvl.Level
	Message       string
	CorrelationID string
	Timestamp     time.Time
}

// PrivateMessage mirrors a received server PrivateMessage.
type PrivateMessage struct {
	ID        uint32
	Timestamp time.Time
	Username  string
	Message   string
}

// RoomMessage mirrors a chat line relayed in a joined room.
type RoomMessage struct {
	Room     string
	Username string
	Message  string
}

// RoomMembership fires for both room-joined and room-left.
type RoomMembership struct {
	Room     string
	Username string
}

// UserStatusChanged mirrors a GetStatusResponse push.
type UserStatusChanged struct {
	Username   string
	Status     uint32
	Privileged bool
}

// UserStatsChanged mirrors a GetUserStatsResponse push.
type UserStatsChanged struct {
	Username    string
	SpeedBps    uint32
	UploadCount uint64
	FileCount   uint32
	FolderCount uint32
}

// PrivilegedUserList mirrors a PrivilegedUsers push.
type PrivilegedUserList struct {
	Usernames []string
}

// PrivilegeNotification mirrors a NotifyPrivileges push.
type PrivilegeNotification struct {
	ID       uint32
	Username string
}

// SearchResponseReceived fires once per ingested peer SearchResponse.
type SearchResponseReceived struct {
	Token    uint32
	Response search.Response
}

// SearchStateChanged fires when a Search completes.
type SearchStateChanged struct {
	Token  uint32
	State  search.State
	Reason search.CompletionReason
}

// TransferStateChanged fires on every Transfer state transition.
type TransferStateChanged struct {
	Token     uint32
	Username  string
	Filename  string
	Direction transfer.Direction
	State     transfer.State
	Err       error
}

// TransferProgressUpdated fires on debounced Transfer byte-count updates.
type TransferProgressUpdated struct {
	Token     uint32
	Username  string
	Filename  string
	Bytes     int64
	TotalSize int64
}

// BrowseProgressUpdated fires as a BrowseResponse is being assembled for a
// peer whose shares are large enough to warrant incremental reporting.
type BrowseProgressUpdated struct {
	Username     string
	FoldersSoFar int
}

// Event is a tagged union: only the field named by Kind is meaningful.
type Event struct {
	Kind EventKind

	ConnectionStateChanged  ConnectionStateChanged
	Diagnostic              Diagnostic
	PrivateMessage          PrivateMessage
	RoomMessage             RoomMessage
	RoomMembership          RoomMembership
	UserStatusChanged       UserStatusChanged
	UserStatsChanged        UserStatsChanged
	PrivilegedUserList      PrivilegedUserList
	PrivilegeNotification   PrivilegeNotification
	SearchResponseReceived  SearchResponseReceived
	SearchStateChanged      SearchStateChanged
	TransferStateChanged    TransferStateChanged
	TransferProgressUpdated TransferProgressUpdated
	BrowseProgressUpdated   BrowseProgressUpdated
}
