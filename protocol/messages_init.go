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

// PierceFirewall is written on a fresh inbound socket to complete an
// indirect connection that the server relayed on our behalf (§4.10).
type PierceFirewall struct {
	Token uint32
}

func (m *PierceFirewall) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth1, uint32(CodeInitPierceFirewall)).WriteU32(m.Token).Bytes()
}

func DecodePierceFirewall(r *wire.Reader) (*PierceFirewall, error) {
	v, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return &PierceFirewall{Token: v}, nil
}

// PeerInit is written on a fresh outbound or inbound socket to establish a
// direct message or transfer connection (§4.10).
type PeerInit struct {
	Username string
	Type     string
	Token    uint32
}

func (m *PeerInit) ToBytes() []byte {
	return wire.NewBuilder(wire.CodeWidth1, uint32(CodeInitPeerInit)).
		WriteString(m.Username, wire.UTF8).WriteString(m.Type, wire.UTF8).WriteU32(m.Token).Bytes()
}

func DecodePeerInit(r *wire.Reader) (*PeerInit, error) {
	m := &PeerInit{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Type, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Token, err = r.ReadU32(); err != nil {
		return nil, err
	}
	return m, nil
}
