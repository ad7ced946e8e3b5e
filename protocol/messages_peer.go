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

// BrowseRequest carries no payload; the response is zlib-compressed.
type BrowseRequest struct{}

func (m *BrowseRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeBrowseRequest).Bytes()
}

// BrowseResponse is the caller's decompressed shared-folder listing. The
// wire payload is zlib-compressed starting right after the code; callers
// must call Reader.Decompress before DecodeBrowseResponse.
type BrowseResponse struct {
	Folders []BrowseFolder
}

type BrowseFolder struct {
	Name  string
	Files []BrowseFile
}

type BrowseFile struct {
	Name      string
	Size      uint64
	Extension string
	BitrateKbps uint32
}

func DecodeBrowseResponse(r *wire.Reader) (*BrowseResponse, error) {
	m := &BrowseResponse{}

	folderCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	m.Folders = make([]BrowseFolder, 0, folderCount)
	for i := uint32(0); i < folderCount; i++ {
		var f BrowseFolder
		if f.Name, err = r.ReadString(); err != nil {
			return nil, err
		}

		fileCount, err := r.ReadU32()
		if err != nil {
			return nil, err
		}

		f.Files = make([]BrowseFile, 0, fileCount)
		for j := uint32(0); j < fileCount; j++ {
			var file BrowseFile
			if file.Name, err = r.ReadString(); err != nil {
				return nil, err
			}
			if file.Size, err = r.ReadU64(); err != nil {
				return nil, err
			}
			if file.Extension, err = r.ReadString(); err != nil {
				return nil, err
			}
			if file.BitrateKbps, err = r.ReadU32(); err != nil {
				return nil, err
			}
			f.Files = append(f.Files, file)
		}

		m.Folders = append(m.Folders, f)
	}

	return m, nil
}

// SearchResponse is a peer's answer to a distributed or direct search;
// compressed the same way as BrowseResponse.
type SearchResponse struct {
	Username       string
	Token          uint32
	Files          []SearchResultFile
	FreeUploadSlots bool
	UploadSpeedBps  uint32
	QueueLength     uint32
}

type SearchResultFile struct {
	Name        string
	Size        uint64
	Extension   string
	BitrateKbps uint32
	SampleRateHz uint32
	BitDepth    uint32
	DurationSec uint32
	IsVBR       bool
}

func DecodeSearchResponse(r *wire.Reader) (*SearchResponse, error) {
	m := &SearchResponse{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Token, err = r.ReadU32(); err != nil {
		return nil, err
	}

	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.Files = make([]SearchResultFile, 0, n)
	for i := uint32(0); i < n; i++ {
		var f SearchResultFile
		if f.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if f.Size, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if f.Extension, err = r.ReadString(); err != nil {
			return nil, err
		}
		if f.BitrateKbps, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if f.SampleRateHz, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if f.BitDepth, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if f.DurationSec, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if f.IsVBR, err = r.ReadBool(); err != nil {
			return nil, err
		}
		m.Files = append(m.Files, f)
	}

	if m.FreeUploadSlots, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if m.UploadSpeedBps, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.QueueLength, err = r.ReadU32(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *SearchResponse) ToBytes() []byte {
	b := wire.NewBuilder(wire.CodeWidth4, CodeSearchResponse)
	b.WriteString(m.Username, wire.UTF8).WriteU32(m.Token).WriteU32(uint32(len(m.Files)))
	for _, f := range m.Files {
		b.WriteString(f.Name, wire.UTF8).
			WriteU64(f.Size).
			WriteString(f.Extension, wire.UTF8).
			WriteU32(f.BitrateKbps).
			WriteU32(f.SampleRateHz).
			WriteU32(f.BitDepth).
			WriteU32(f.DurationSec).
			WriteBool(f.IsVBR)
	}
	b.WriteBool(m.FreeUploadSlots).WriteU32(m.UploadSpeedBps).WriteU32(m.QueueLength)
	_ = b.Compress()
	return b.Bytes()
}

type InfoRequest struct{}

func (m *InfoRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeInfoRequest).Bytes()
}

type InfoResponse struct {
	Description   string
	HasPicture    bool
	Picture       []byte
	UploadSlots   uint32
	QueueLength   uint32
	HasFreeSlots  bool
}

func DecodeInfoResponse(r *wire.Reader) (*InfoResponse, error) {
	m := &InfoResponse{}
	var err error
	if m.Description, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.HasPicture, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if m.HasPicture {
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if m.Picture, err = r.ReadBytes(int(n)); err != nil {
			return nil, err
		}
	}
	if m.UploadSlots, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.QueueLength, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.HasFreeSlots, err = r.ReadBool(); err != nil {
		return nil, err
	}
	return m, nil
}

type FolderContentsRequest struct {
	Token  uint32
	Folder string
}

func (m *FolderContentsRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeFolderContentsRequest).
		WriteU32(m.Token).WriteString(m.Folder, wire.UTF8).Bytes()
}

type FolderContentsReply struct {
	Token  uint32
	Folder string
	Files  []BrowseFile
}

func DecodeFolderContentsReply(r *wire.Reader) (*FolderContentsReply, error) {
	m := &FolderContentsReply{}
	var err error
	if m.Token, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Folder, err = r.ReadString(); err != nil {
		return nil, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.Files = make([]BrowseFile, 0, n)
	for i := uint32(0); i < n; i++ {
		var f BrowseFile
		if f.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if f.Size, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if f.Extension, err = r.ReadString(); err != nil {
			return nil, err
		}
		if f.BitrateKbps, err = r.ReadU32(); err != nil {
			return nil, err
		}
		m.Files = append(m.Files, f)
	}
	return m, nil
}

// TransferRequest is sent by either side to begin negotiating a transfer:
// the downloader requesting a file, or the uploader offering a queued one.
type TransferRequest struct {
	Direction uint32 // 0 = Download request by us, 1 = Upload offer by peer
	Token     uint32
	Filename  string
	FileSize  uint64
	HasSize   bool
}

func (m *TransferRequest) ToBytes() []byte {
	b := wire.NewBuilder(wire.CodeWidth4, CodeTransferRequest)
	b.WriteU32(m.Direction).WriteU32(m.Token).WriteString(m.Filename, wire.UTF8)
	if m.HasSize {
		b.WriteU64(m.FileSize)
	}
	return b.Bytes()
}

func DecodeTransferRequest(r *wire.Reader) (*TransferRequest, error) {
	m := &TransferRequest{}
	var err error
	if m.Direction, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Token, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Filename, err = r.ReadString(); err != nil {
		return nil, err
	}
	if r.Remaining() >= 8 {
		m.HasSize = true
		if m.FileSize, err = r.ReadU64(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type TransferResponse struct {
	Token    uint32
	Allowed  bool
	FileSize uint64
	Message  string
}

func (m *TransferResponse) ToBytes() []byte {
	b := wire.NewBuilder(wire.CodeWidth4, CodeTransferResponse)
	b.WriteU32(m.Token).WriteBool(m.Allowed)
	if m.Allowed {
		b.WriteU64(m.FileSize)
	} else {
		b.WriteString(m.Message, wire.UTF8)
	}
	return b.Bytes()
}

func DecodeTransferResponse(r *wire.Reader) (*TransferResponse, error) {
	m := &TransferResponse{}
	var err error
	if m.Token, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.Allowed, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if m.Allowed {
		if m.FileSize, err = r.ReadU64(); err != nil {
			return nil, err
		}
	} else if r.Remaining() > 0 {
		if m.Message, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type QueueDownload struct {
	Filename string
}

func (m *QueueDownload) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodeQueueDownload).WriteString(m.Filename, wire.UTF8).Bytes()
}

func DecodeQueueDownload(r *wire.Reader) (*QueueDownload, error) {
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &QueueDownload{Filename: s}, nil
}

type UploadFailed struct {
	Filename string
}

func DecodeUploadFailed(r *wire.Reader) (*UploadFailed, error) {
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &UploadFailed{Filename: s}, nil
}

type QueueFailed struct {
	Filename string
	Reason   string
}

func DecodeQueueFailed(r *wire.Reader) (*QueueFailed, error) {
	m := &QueueFailed{}
	var err error
	if m.Filename, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Reason, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

type PlaceInQueueRequest struct {
	Filename string
}

func (m *PlaceInQueueRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodePlaceInQueueRequest).WriteString(m.Filename, wire.UTF8).Bytes()
}

type PlaceInQueueReply struct {
	Filename string
	Place    uint32
}

func (m *PlaceInQueueReply) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth4, CodePlaceInQueueReply).
		WriteString(m.Filename, wire.UTF8).WriteU32(m.Place).Bytes()
}

func DecodePlaceInQueueReply(r *wire.Reader) (*PlaceInQueueReply, error) {
	m := &PlaceInQueueReply{}
	var err error
	if m.Filename, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Place, err = r.ReadU32(); err != nil {
		return nil, err
	}
	return m, nil
}
