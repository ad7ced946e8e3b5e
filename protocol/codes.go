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

// Package protocol defines the SoulSeek message catalog: per-channel code
// constants, typed message records, and an explicit (channel, code) →
// decoder dispatch table built at init rather than by reflection.
package protocol

// Channel identifies which of the four code namespaces a message code
// belongs to. Server and Peer codes are u32 LE on the wire; Distributed and
// Init codes are a single byte.
type Channel int

const (
	ChannelServer Channel = iota
	ChannelPeer
	ChannelDistributed
	ChannelInit
)

// Server channel codes (u32).
const (
	CodeLogin                      uint32 = 1
	CodeSetListenPort              uint32 = 2
	CodeGetPeerAddress             uint32 = 3
	CodeAddUser                    uint32 = 5
	CodeGetStatus                  uint32 = 7
	CodeSayInChatRoom              uint32 = 13
	CodeJoinRoom                    uint32 = 14
	CodeLeaveRoom                  uint32 = 15
	CodeUserJoinedRoom             uint32 = 16
	CodeUserLeftRoom               uint32 = 17
	CodeConnectToPeer              uint32 = 18
	CodePrivateMessage             uint32 = 22
	CodeAcknowledgePrivateMessage  uint32 = 23
	CodeFileSearch                 uint32 = 26
	CodeSetOnlineStatus            uint32 = 28
	CodePing                       uint32 = 32
	CodeSetSharedCounts            uint32 = 35
	CodeGetUserStats               uint32 = 36
	CodeKickedFromServer           uint32 = 41
	CodeUserSearch                 uint32 = 42
	CodeRoomList                   uint32 = 64
	CodePrivilegedUsers            uint32 = 69
	CodeHaveNoParents              uint32 = 71
	CodeParentMinSpeed             uint32 = 83
	CodeParentSpeedRatio           uint32 = 84
	CodeCheckPrivileges            uint32 = 92
	CodeSearchRequest              uint32 = 93
	CodeNetInfo                    uint32 = 102
	CodeWishlistSearch             uint32 = 103
	CodeWishlistInterval           uint32 = 104
	CodeRoomSearch                 uint32 = 120
	CodeNotifyPrivileges           uint32 = 124
	CodeAcknowledgePrivilegeNotify uint32 = 125
	CodeServerBranchLevel          uint32 = 126
	CodeServerBranchRoot           uint32 = 127
	CodeServerChildDepth           uint32 = 130
	CodeNewPassword                uint32 = 142
)

// Peer channel codes (u32).
const (
	CodeBrowseRequest         uint32 = 4
	CodeBrowseResponse        uint32 = 5
	CodeFolderContentsRequest uint32 = 36
	CodeFolderContentsReply   uint32 = 37
	CodeTransferRequest       uint32 = 40
	CodeTransferResponse      uint32 = 41
	CodeQueueDownload         uint32 = 43
	CodePlaceInQueueReply     uint32 = 44
	CodeUploadFailed          uint32 = 46
	CodeQueueFailed           uint32 = 50
	CodePlaceInQueueRequest   uint32 = 51
	CodeInfoRequest           uint32 = 15
	CodeInfoResponse          uint32 = 16
	CodeSearchResponse        uint32 = 9
)

// Distributed channel codes (u8).
const (
	CodeDistributedPing          uint8 = 0
	CodeDistributedSearchRequest uint8 = 3
	CodeDistributedBranchLevel   uint8 = 4
	CodeDistributedBranchRoot    uint8 = 5
	CodeDistributedChildDepth    uint8 = 7
)

// Initialization channel codes (u8).
const (
	CodeInitPierceFirewall uint8 = 0
	CodeInitPeerInit       uint8 = 1
)
