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

package protocol

import "github.com/sabouaram/soulseek/wire"

// LoginRequest is sent once, at connect time, to authenticate the session.
type LoginRequest struct {
	Username      string
	Password      string
	Version       uint32
	PasswordHash  string
	MinorVersion  uint32
}

func (m *LoginRequest) ToBytes() []byte {
	b := wire.NewBuilder(wire.CodeWidth4, CodeLogin)
	b.WriteString(m.Username, wire.UTF8).
		WriteString(m.Password, wire.UTF8).
		WriteU32(m.Version).
		WriteString(m.PasswordHash, wire.UTF8).
		WriteU32(m.MinorVersion)
	return b.Bytes()
}

func DecodeLoginRequest(r *wire.Reader) (*LoginRequest, error) {
	m := &LoginRequest{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Password, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Version, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.PasswordHash, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.MinorVersion, err = r.ReadU32(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoginResponse is the server's reply to LoginRequest.
type LoginResponse struct {
	Success bool
	Message string
	IP      [4]byte
}

func (m *LoginResponse) ToBytes() []byte {
	b := wire.NewBuilder(wire.CodeWidth4, CodeLogin)
	b.WriteBool(m.Success).WriteString(m.Message, wire.UTF8)
	if m.Success {
		b.WriteIP(m.IP[0], m.IP[1], m.IP[2], m.IP[3])
	}
	return b.Bytes()
}

func DecodeLoginResponse(r *wire.Reader) (*LoginResponse, error) {
	m := &LoginResponse{}
	var err error
	if m.Success, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if m.Message, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Success && r.Remaining() >= 4 {
		if m.IP, err = r.ReadIP(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetListenPort advertises our inbound TCP port to the server.
type SetListenPort struct {
	Port uint32
}

func (m *SetListenPort) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeSetListenPort).WriteU32(m.Port).Bytes()
}

// GetPeerAddressRequest asks the server for a user's advertised endpoint.
type GetPeerAddressRequest struct {
	Username string
}

func (m *GetPeerAddressRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeGetPeerAddress).WriteString(m.Username, wire.UTF8).Bytes()
}

// GetPeerAddressResponse carries the resolved endpoint.
type GetPeerAddressResponse struct {
	Username string
	IP       [4]byte
	Port     uint32
}

func DecodeGetPeerAddressResponse(r *wire.Reader) (*GetPeerAddressResponse, error) {
	m := &GetPeerAddressResponse{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.IP, err = r.ReadIP(); err != nil {
		return nil, err
	}
	if m.Port, err = r.ReadU32(); err != nil {
		return nil, err
	}
	return m, nil
}

// ConnectToPeerRequest asks the server to relay an indirect connection
// request to username, so that it dials us back with PierceFirewall.
type ConnectToPeerRequest struct {
	Token    uint32
	Username string
	Type     string
}

func (m *ConnectToPeerRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeConnectToPeer).
		WriteU32(m.Token).WriteString(m.Username, wire.UTF8).WriteString(m.Type, wire.UTF8).Bytes()
}

// ConnectToPeer is the server's notification that a peer wants to connect
// to us, either directly (our dial failed) or for a distributed handshake.
type ConnectToPeer struct {
	Username string
	Type     string
	IP       [4]byte
	Port     uint32
	Token    uint32
	Privileged bool
}

func DecodeConnectToPeer(r *wire.Reader) (*ConnectToPeer, error) {
	m := &ConnectToPeer{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Type, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.IP, err = r.ReadIP(); err != nil {
		return nil, err
	}
	if m.Port, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Token, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if r.Remaining() >= 1 {
		if m.Privileged, err = r.ReadBool(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FileSearch, RoomSearch, UserSearch, WishlistSearch share the same
// token+query layout, differing only in the outgoing code and (for
// RoomSearch/UserSearch) an extra scope field.
type FileSearch struct {
	Token uint32
	Query string
}

func (m *FileSearch) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeFileSearch).WriteU32(m.Token).WriteString(m.Query, wire.UTF8).Bytes()
}

type WishlistSearch struct {
	Token uint32
	Query string
}

func (m *WishlistSearch) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeWishlistSearch).WriteU32(m.Token).WriteString(m.Query, wire.UTF8).Bytes()
}

type RoomSearch struct {
	Room  string
	Token uint32
	Query string
}

func (m *RoomSearch) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeRoomSearch).
		WriteString(m.Room, wire.UTF8).WriteU32(m.Token).WriteString(m.Query, wire.UTF8).Bytes()
}

type UserSearch struct {
	Username string
	Token    uint32
	Query    string
}

func (m *UserSearch) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeUserSearch).
		WriteString(m.Username, wire.UTF8).WriteU32(m.Token).WriteString(m.Query, wire.UTF8).Bytes()
}

// SearchRequest is the server-channel fallback delivery of a distributed
// search query, used when parent acquisition stalls (§4.9).
type SearchRequest struct {
	Username string
	Token    uint32
	Query    string
}

func DecodeSearchRequest(r *wire.Reader) (*SearchRequest, error) {
	m := &SearchRequest{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Token, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Query, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

// SayInChatRoomOut/In cover the outgoing send and the incoming echo.
type SayInChatRoomOut struct {
	Room    string
	Message string
}

func (m *SayInChatRoomOut) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeSayInChatRoom).
		WriteString(m.Room, wire.UTF8).WriteString(m.Message, wire.UTF8).Bytes()
}

type SayInChatRoomIn struct {
	Room     string
	Username string
	Message  string
}

func DecodeSayInChatRoomIn(r *wire.Reader) (*SayInChatRoomIn, error) {
	m := &SayInChatRoomIn{}
	var err error
	if m.Room, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Message, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

type JoinRoom struct {
	Room string
}

func (m *JoinRoom) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeJoinRoom).WriteString(m.Room, wire.UTF8).Bytes()
}

// JoinRoomResponse confirms a JoinRoom request and lists the room's current
// members, echoed by the server once the join is accepted.
type JoinRoomResponse struct {
	Room      string
	Usernames []string
}

func DecodeJoinRoomResponse(r *wire.Reader) (*JoinRoomResponse, error) {
	m := &JoinRoomResponse{}
	var err error
	if m.Room, err = r.ReadString(); err != nil {
		return nil, err
	}

	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.Usernames = make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		u, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		m.Usernames = append(m.Usernames, u)
	}

	// Parallel status/slot/country groups follow and are intentionally left
	// unread here, mirroring DecodeRoomList's handling of trailing groups.
	return m, nil
}

type LeaveRoom struct {
	Room string
}

func (m *LeaveRoom) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeLeaveRoom).WriteString(m.Room, wire.UTF8).Bytes()
}

// LeaveRoomResponse confirms a LeaveRoom request by echoing the room name.
type LeaveRoomResponse struct {
	Room string
}

func DecodeLeaveRoomResponse(r *wire.Reader) (*LeaveRoomResponse, error) {
	m := &LeaveRoomResponse{}
	var err error
	if m.Room, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

// Ping carries no payload in either direction: the client sends it to keep
// the server connection alive, and the server echoes it back unchanged.
type Ping struct{}

func (m *Ping) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodePing).Bytes()
}

func DecodePing(r *wire.Reader) (*Ping, error) {
	return &Ping{}, nil
}

type UserJoinedRoom struct {
	Room     string
	Username string
}

func DecodeUserJoinedRoom(r *wire.Reader) (*UserJoinedRoom, error) {
	m := &UserJoinedRoom{}
	var err error
	if m.Room, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

type UserLeftRoom struct {
	Room     string
	Username string
}

func DecodeUserLeftRoom(r *wire.Reader) (*UserLeftRoom, error) {
	m := &UserLeftRoom{}
	var err error
	if m.Room, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

type GetUserStatsRequest struct {
	Username string
}

func (m *GetUserStatsRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeGetUserStats).WriteString(m.Username, wire.UTF8).Bytes()
}

type GetUserStatsResponse struct {
	Username    string
	SpeedBps    uint32
	UploadCount uint64
	FileCount   uint32
	FolderCount uint32
}

func DecodeGetUserStatsResponse(r *wire.Reader) (*GetUserStatsResponse, error) {
	m := &GetUserStatsResponse{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.SpeedBps, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.UploadCount, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if m.FileCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.FolderCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	return m, nil
}

type GetStatusRequest struct {
	Username string
}

func (m *GetStatusRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeGetStatus).WriteString(m.Username, wire.UTF8).Bytes()
}

type GetStatusResponse struct {
	Username   string
	Status     uint32
	Privileged bool
}

func DecodeGetStatusResponse(r *wire.Reader) (*GetStatusResponse, error) {
	m := &GetStatusResponse{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Status, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if r.Remaining() >= 1 {
		if m.Privileged, err = r.ReadBool(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type PrivateMessage struct {
	ID        uint32
	Timestamp uint32
	Username  string
	Message   string
}

func DecodePrivateMessage(r *wire.Reader) (*PrivateMessage, error) {
	m := &PrivateMessage{}
	var err error
	if m.ID, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Timestamp, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Message, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

// PrivateMessageRequest is the outgoing half of CodePrivateMessage; the
// server echoes it back to the recipient as PrivateMessage.
type PrivateMessageRequest struct {
	Username string
	Message  string
}

func (m *PrivateMessageRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodePrivateMessage).
		WriteString(m.Username, wire.UTF8).WriteString(m.Message, wire.UTF8).Bytes()
}

type AcknowledgePrivateMessage struct {
	ID uint32
}

func (m *AcknowledgePrivateMessage) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeAcknowledgePrivateMessage).WriteU32(m.ID).Bytes()
}

type NotifyPrivileges struct {
	ID       uint32
	Username string
}

func DecodeNotifyPrivileges(r *wire.Reader) (*NotifyPrivileges, error) {
	m := &NotifyPrivileges{}
	var err error
	if m.ID, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

type AcknowledgePrivilegeNotification struct {
	ID uint32
}

func (m *AcknowledgePrivilegeNotification) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeAcknowledgePrivilegeNotify).WriteU32(m.ID).Bytes()
}

// RoomList enumerates public rooms and their occupant counts. Per §9 OQ1,
// any trailing groups beyond the basic counts (moderated rooms, etc.) are
// skipped rather than rejected: the decoder stops once the documented
// fields are consumed and ignores r.Remaining().
type RoomList struct {
	Rooms  []string
	Counts []uint32
}

func DecodeRoomList(r *wire.Reader) (*RoomList, error) {
	m := &RoomList{}

	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.Rooms = make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		m.Rooms = append(m.Rooms, s)
	}

	cn, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.Counts = make([]uint32, 0, cn)
	for i := uint32(0); i < cn; i++ {
		c, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		m.Counts = append(m.Counts, c)
	}

	// Unknown trailing groups (moderated-room counts, etc.) are
	// intentionally left unread here.
	return m, nil
}

type PrivilegedUsers struct {
	Usernames []string
}

func DecodePrivilegedUsers(r *wire.Reader) (*PrivilegedUsers, error) {
	m := &PrivilegedUsers{}
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.Usernames = make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		m.Usernames = append(m.Usernames, s)
	}
	return m, nil
}

type CheckPrivilegesRequest struct{}

func (m *CheckPrivilegesRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeCheckPrivileges).Bytes()
}

type CheckPrivilegesResponse struct {
	TimeLeftSeconds uint32
}

func DecodeCheckPrivilegesResponse(r *wire.Reader) (*CheckPrivilegesResponse, error) {
	m := &CheckPrivilegesResponse{}
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.TimeLeftSeconds = v
	return m, nil
}

type ParentMinSpeed struct {
	Speed uint32
}

func DecodeParentMinSpeed(r *wire.Reader) (*ParentMinSpeed, error) {
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return &ParentMinSpeed{Speed: v}, nil
}

type ParentSpeedRatio struct {
	Ratio uint32
}

func DecodeParentSpeedRatio(r *wire.Reader) (*ParentSpeedRatio, error) {
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return &ParentSpeedRatio{Ratio: v}, nil
}

type WishlistInterval struct {
	Seconds uint32
}

func DecodeWishlistInterval(r *wire.Reader) (*WishlistInterval, error) {
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return &WishlistInterval{Seconds: v}, nil
}

type NewPassword struct {
	Password string
}

func (m *NewPassword) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeNewPassword).WriteString(m.Password, wire.UTF8).Bytes()
}

func DecodeNewPassword(r *wire.Reader) (*NewPassword, error) {
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &NewPassword{Password: s}, nil
}

// NetInfo carries distributed-tree parent candidates.
type NetInfo struct {
	Candidates []NetInfoEntry
}

type NetInfoEntry struct {
	Username string
	IP       [4]byte
	Port     uint32
}

func DecodeNetInfo(r *wire.Reader) (*NetInfo, error) {
	m := &NetInfo{}
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.Candidates = make([]NetInfoEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		var e NetInfoEntry
		if e.Username, err = r.ReadString(); err != nil {
			return nil, err
		}
		if e.IP, err = r.ReadIP(); err != nil {
			return nil, err
		}
		if e.Port, err = r.ReadU32(); err != nil {
			return nil, err
		}
		m.Candidates = append(m.Candidates, e)
	}
	return m, nil
}

// KickedFromServer carries no payload.
type KickedFromServer struct{}

func DecodeKickedFromServer(r *wire.Reader) (*KickedFromServer, error) {
	return &KickedFromServer{}, nil
}

type SetSharedCounts struct {
	Directories uint32
	Files       uint32
}

func (m *SetSharedCounts) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeSetSharedCounts).WriteU32(m.Directories).WriteU32(m.Files).Bytes()
}

type SetOnlineStatus struct {
	Status uint32
}

func (m *SetOnlineStatus) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeSetOnlineStatus).WriteU32(m.Status).Bytes()
}

type HaveNoParents struct {
	NoParents bool
}

func (m *HaveNoParents) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeHaveNoParents).WriteBool(m.NoParents).Bytes()
}

// ServerBranchLevel, ServerBranchRoot and ServerChildDepth push this
// node's position in the distributed tree up to the server, separately
// from the same-named messages exchanged with a distributed parent/child.
type ServerBranchLevel struct {
	Level uint32
}

func (m *ServerBranchLevel) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeServerBranchLevel).WriteU32(m.Level).Bytes()
}

type ServerBranchRoot struct {
	Root string
}

func (m *ServerBranchRoot) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeServerBranchRoot).WriteString(m.Root, wire.UTF8).Bytes()
}

type ServerChildDepth struct {
	Depth uint32
}

func (m *ServerChildDepth) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeServerChildDepth).WriteU32(m.Depth).Bytes()
}

type AddUserRequest struct {
	Username string
}

func (m *AddUserRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeAddUser).WriteString(m.Username, wire.UTF8).Bytes()
}

type AddUserResponse struct {
	Username string
	Exists   bool
}

func DecodeAddUserResponse(r *wire.Reader) (*AddUserResponse, error) {
	m := &AddUserResponse{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Exists, err = r.ReadBool(); err != nil {
		return nil, err
	}
	return m, nil
}
