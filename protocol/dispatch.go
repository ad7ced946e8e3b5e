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

// Decoder decodes a message body given a reader already positioned past the
// message code.
type Decoder func(r *wire.Reader) (interface{}, error)

// Explicit dispatch tables, built once at init, keyed by (channel, code).
// No reflection over struct tags: the teacher's MessageMapper used
// attribute-based reflection, which §9 Design Notes asks to replace.
var serverDecoders = map[uint32]Decoder{
	CodeLogin:                      func(r *wire.Reader) (interface{}, error) { return DecodeLoginResponse(r) },
	CodeGetPeerAddress:             func(r *wire.Reader) (interface{}, error) { return DecodeGetPeerAddressResponse(r) },
	CodeConnectToPeer:              func(r *wire.Reader) (interface{}, error) { return DecodeConnectToPeer(r) },
	CodeSayInChatRoom:              func(r *wire.Reader) (interface{}, error) { return DecodeSayInChatRoomIn(r) },
	CodeJoinRoom:                   func(r *wire.Reader) (interface{}, error) { return DecodeJoinRoomResponse(r) },
	CodeLeaveRoom:                  func(r *wire.Reader) (interface{}, error) { return DecodeLeaveRoomResponse(r) },
	CodePing:                       func(r *wire.Reader) (interface{}, error) { return DecodePing(r) },
	CodeUserJoinedRoom:             func(r *wire.Reader) (interface{}, error) { return DecodeUserJoinedRoom(r) },
	CodeUserLeftRoom:               func(r *wire.Reader) (interface{}, error) { return DecodeUserLeftRoom(r) },
	CodeGetUserStats:               func(r *wire.Reader) (interface{}, error) { return DecodeGetUserStatsResponse(r) },
	CodeGetStatus:                  func(r *wire.Reader) (interface{}, error) { return DecodeGetStatusResponse(r) },
	CodePrivateMessage:             func(r *wire.Reader) (interface{}, error) { return DecodePrivateMessage(r) },
	CodeNotifyPrivileges:           func(r *wire.Reader) (interface{}, error) { return DecodeNotifyPrivileges(r) },
	CodeRoomList:                   func(r *wire.Reader) (interface{}, error) { return DecodeRoomList(r) },
	CodePrivilegedUsers:            func(r *wire.Reader) (interface{}, error) { return DecodePrivilegedUsers(r) },
	CodeCheckPrivileges:            func(r *wire.Reader) (interface{}, error) { return DecodeCheckPrivilegesResponse(r) },
	CodeSearchRequest:              func(r *wire.Reader) (interface{}, error) { return DecodeSearchRequest(r) },
	CodeParentMinSpeed:             func(r *wire.Reader) (interface{}, error) { return DecodeParentMinSpeed(r) },
	CodeParentSpeedRatio:           func(r *wire.Reader) (interface{}, error) { return DecodeParentSpeedRatio(r) },
	CodeWishlistInterval:           func(r *wire.Reader) (interface{}, error) { return DecodeWishlistInterval(r) },
	CodeNewPassword:                func(r *wire.Reader) (interface{}, error) { return DecodeNewPassword(r) },
	CodeNetInfo:                    func(r *wire.Reader) (interface{}, error) { return DecodeNetInfo(r) },
	CodeKickedFromServer:           func(r *wire.Reader) (interface{}, error) { return DecodeKickedFromServer(r) },
	CodeAddUser:                    func(r *wire.Reader) (interface{}, error) { return DecodeAddUserResponse(r) },
}

var peerDecoders = map[uint32]Decoder{
	CodeBrowseResponse: func(r *wire.Reader) (interface{}, error) {
		if err := r.Decompress(); err != nil {
			return nil, err
		}
		return DecodeBrowseResponse(r)
	},
	CodeSearchResponse: func(r *wire.Reader) (interface{}, error) {
		if err := r.Decompress(); err != nil {
			return nil, err
		}
		return DecodeSearchResponse(r)
	},
	CodeInfoResponse:          func(r *wire.Reader) (interface{}, error) { return DecodeInfoResponse(r) },
	CodeFolderContentsReply:   func(r *wire.Reader) (interface{}, error) { return DecodeFolderContentsReply(r) },
	CodeTransferRequest:       func(r *wire.Reader) (interface{}, error) { return DecodeTransferRequest(r) },
	CodeTransferResponse:      func(r *wire.Reader) (interface{}, error) { return DecodeTransferResponse(r) },
	CodeQueueDownload:         func(r *wire.Reader) (interface{}, error) { return DecodeQueueDownload(r) },
	CodeUploadFailed:          func(r *wire.Reader) (interface{}, error) { return DecodeUploadFailed(r) },
	CodeQueueFailed:           func(r *wire.Reader) (interface{}, error) { return DecodeQueueFailed(r) },
	CodePlaceInQueueReply:     func(r *wire.Reader) (interface{}, error) { return DecodePlaceInQueueReply(r) },
}

var distributedDecoders = map[uint8]Decoder{
	CodeDistributedPing:          func(r *wire.Reader) (interface{}, error) { return DecodeDistributedPing(r) },
	CodeDistributedSearchRequest: func(r *wire.Reader) (interface{}, error) { return DecodeDistributedSearchRequest(r) },
	CodeDistributedBranchLevel:   func(r *wire.Reader) (interface{}, error) { return DecodeBranchLevel(r) },
	CodeDistributedBranchRoot:    func(r *wire.Reader) (interface{}, error) { return DecodeBranchRoot(r) },
	CodeDistributedChildDepth:    func(r *wire.Reader) (interface{}, error) { return DecodeChildDepth(r) },
}

var initDecoders = map[uint8]Decoder{
	CodeInitPierceFirewall: func(r *wire.Reader) (interface{}, error) { return DecodePierceFirewall(r) },
	CodeInitPeerInit:       func(r *wire.Reader) (interface{}, error) { return DecodePeerInit(r) },
}

// DecodeServer decodes a server-channel frame (the code+payload slice
// returned by wire.ReadFrame). Unknown codes return (nil, nil, ok=false)
// so the caller can log a debug diagnostic and drop the frame per §4.2.
func DecodeServer(frame []byte) (uint32, interface{}, bool, error) {
	return decode32(frame, serverDecoders)
}

// DecodePeer decodes a peer-channel frame.
func DecodePeer(frame []byte) (uint32, interface{}, bool, error) {
	return decode32(frame, peerDecoders)
}

func decode32(frame []byte, table map[uint32]Decoder) (uint32, interface{}, bool, error) {
	r, err := wire.NewReader(frame, wire.CodeWidth4)
	if err != nil {
		return 0, nil, false, err
	}

	dec, ok := table[r.Code()]
	if !ok {
		return r.Code(), nil, false, nil
	}

	msg, err := dec(r)
	if err != nil {
		return r.Code(), nil, true, err
	}
	return r.Code(), msg, true, nil
}

// DecodeDistributed decodes a distributed-channel frame (u8 code).
func DecodeDistributed(frame []byte) (uint8, interface{}, bool, error) {
	return decode8(frame, distributedDecoders)
}

// DecodeInit decodes an initialization-channel frame (u8 code).
func DecodeInit(frame []byte) (uint8, interface{}, bool, error) {
	return decode8(frame, initDecoders)
}

func decode8(frame []byte, table map[uint8]Decoder) (uint8, interface{}, bool, error) {
	r, err := wire.NewReader(frame, wire.CodeWidth1)
	if err != nil {
		return 0, nil, false, err
	}

	code := uint8(r.Code())
	dec, ok := table[code]
	if !ok {
		return code, nil, false, nil
	}

	msg, err := dec(r)
	if err != nil {
		return code, nil, true, err
	}
	return code, msg, true, nil
}
