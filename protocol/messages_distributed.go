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

// Per §9 OQ3, these five are the only distributed codes this catalog
// decodes; anything else is logged and dropped by the dispatch table.

type DistributedPing struct{}

func DecodeDistributedPing(r *wire.Reader) (*DistributedPing, error) {
	return &DistributedPing{}, nil
}

func (m *DistributedPing) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth1, uint32(CodeDistributedPing)).Bytes()
}

// DistributedSearchRequest is forwarded verbatim from parent to every
// child (§4.9, S3).
type DistributedSearchRequest struct {
	Username string
	Token    uint32
	Query    string
}

func (m *DistributedSearchRequest) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth1, uint32(CodeDistributedSearchRequest)).
		WriteString(m.Username, wire.UTF8).WriteU32(m.Token).WriteString(m.Query, wire.UTF8).Bytes()
}

func DecodeDistributedSearchRequest(r *wire.Reader) (*DistributedSearchRequest, error) {
	m := &DistributedSearchRequest{}
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

type BranchLevel struct {
	Level uint32
}

func (m *BranchLevel) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth1, uint32(CodeDistributedBranchLevel)).WriteU32(m.Level).Bytes()
}

func DecodeBranchLevel(r *wire.Reader) (*BranchLevel, error) {
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return &BranchLevel{Level: v}, nil
}

type BranchRoot struct {
	Root string
}

func (m *BranchRoot) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth1, uint32(CodeDistributedBranchRoot)).WriteString(m.Root, wire.UTF8).Bytes()
}

func DecodeBranchRoot(r *wire.Reader) (*BranchRoot, error) {
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &BranchRoot{Root: s}, nil
}

type ChildDepth struct {
	Depth uint32
}

func (m *ChildDepth) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth1, uint32(CodeDistributedChildDepth)).WriteU32(m.Depth).Bytes()
}

func DecodeChildDepth(r *wire.Reader) (*ChildDepth, error) {
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return &ChildDepth{Depth: v}, nil
}
