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

// Package wire implements the SoulSeek length-prefixed binary frame codec:
// primitive readers/writers, the code-width distinction between the
// initialization/distributed channels (1 byte) and the server/peer channels
// (4 bytes), and the zlib-compressed payload convention used by browse and
// search responses.
package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
)

// CodeWidth enumerates the two code sizes used on the wire.
type CodeWidth int

const (
	// CodeWidth1 is used by the initialization and distributed channels.
	CodeWidth1 CodeWidth = 1
	// CodeWidth4 is used by the server and peer channels.
	CodeWidth4 CodeWidth = 4
)

// MaxFrameSize bounds the length field to keep a single malformed frame from
// exhausting memory; the protocol itself never emits payloads anywhere near
// this size.
const MaxFrameSize = 1 << 27

// ReadFrame reads one length-prefixed frame from r: a u32 LE length followed
// by exactly that many bytes (code + payload). The returned slice starts at
// the code, not at the length prefix.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > MaxFrameSize {
		return nil, ErrorPayloadTooLarge.Error(nil)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrorShortFrame.Error(err)
		}
		return nil, err
	}

	return body, nil
}

// WriteFrame writes a length-prefixed frame to w: the code of the given
// width followed by payload, preceded by a u32 LE length covering both.
func WriteFrame(w io.Writer, width CodeWidth, code uint32, payload []byte) error {
	length := uint32(width) + uint32(len(payload))

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], length)

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}

	switch width {
	case CodeWidth1:
		if _, err := w.Write([]byte{byte(code)}); err != nil {
			return err
		}
	case CodeWidth4:
		var codeBuf [4]byte
		binary.LittleEndian.PutUint32(codeBuf[:], code)
		if _, err := w.Write(codeBuf[:]); err != nil {
			return err
		}
	}

	_, err := w.Write(payload)
	return err
}

// Encoding selects the string codec used by Builder.WriteString and
// Reader.ReadString.
type Encoding int

const (
	// UTF8 is the default write encoding.
	UTF8 Encoding = iota
	// ISO88591 is offered for compatibility with legacy peers that emit
	// Latin-1 text; it is also the fallback used on read when a field
	// fails strict UTF-8 validation.
	ISO88591
)

// Builder accumulates a message code and payload and produces the final
// [u32 length][code][payload] frame on Bytes.
type Builder struct {
	width CodeWidth
	code  uint32
	buf   bytes.Buffer
}

// NewBuilder starts a frame for the given code width and message code.
func NewBuilder(width CodeWidth, code uint32) *Builder {
	return &Builder{width: width, code: code}
}

func (b *Builder) WriteU8(v uint8) *Builder {
	b.buf.WriteByte(v)
	return b
}

func (b *Builder) WriteBool(v bool) *Builder {
	if v {
		return b.WriteU8(1)
	}
	return b.WriteU8(0)
}

func (b *Builder) WriteU32(v uint32) *Builder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *Builder) WriteU64(v uint64) *Builder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// WriteBytes appends raw bytes with no length prefix.
func (b *Builder) WriteBytes(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// WriteString writes a u32 length followed by the string encoded per enc.
func (b *Builder) WriteString(s string, enc Encoding) *Builder {
	var raw []byte
	if enc == ISO88591 {
		raw = encodeISO88591(s)
	} else {
		raw = []byte(s)
	}

	b.WriteU32(uint32(len(raw)))
	b.buf.Write(raw)
	return b
}

// WriteIP writes a 4-byte IPv4 address in the network-order-reversed form
// the protocol uses: the big-endian octets are stored reversed so that a
// little-endian read & byte-reversal recovers the address.
func (b *Builder) WriteIP(a, c, d, e byte) *Builder {
	b.buf.Write([]byte{e, d, c, a})
	return b
}

// Compress replaces the accumulated payload with its zlib-compressed form.
// Used by handlers that emit BrowseResponse/SearchResponse payloads.
func (b *Builder) Compress() error {
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(b.buf.Bytes()); err != nil {
		_ = zw.Close()
		return ErrorCompression.Error(err)
	}
	if err := zw.Close(); err != nil {
		return ErrorCompression.Error(err)
	}

	b.buf.Reset()
	b.buf.Write(out.Bytes())
	return nil
}

// Frame returns the code+payload portion of the frame (without the length
// prefix), suitable for passing to WriteFrame.
func (b *Builder) Frame() (width CodeWidth, code uint32, payload []byte) {
	return b.width, b.code, b.buf.Bytes()
}

// Bytes returns the complete [u32 length][code][payload] frame.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	_ = WriteFrame(&out, b.width, b.code, b.buf.Bytes())
	return out.Bytes()
}

// Reader walks a decoded frame (code + payload, as returned by ReadFrame)
// with a position cursor starting right after the code.
type Reader struct {
	width CodeWidth
	code  uint32
	data  []byte
	pos   int
}

// NewReader decodes the code from the front of frame and positions the
// cursor at the start of the payload.
func NewReader(frame []byte, width CodeWidth) (*Reader, error) {
	if len(frame) < int(width) {
		return nil, ErrorShortFrame.Error(nil)
	}

	var code uint32
	switch width {
	case CodeWidth1:
		code = uint32(frame[0])
	case CodeWidth4:
		code = binary.LittleEndian.Uint32(frame[:4])
	}

	return &Reader{width: width, code: code, data: frame, pos: int(width)}, nil
}

// Code returns the message code decoded from the frame header.
func (r *Reader) Code() uint32 {
	return r.code
}

// Remaining returns the number of unread payload bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Seek repositions the cursor to an absolute offset within the payload
// (offsets are relative to the start of the whole frame, i.e. >= code width).
func (r *Reader) Seek(pos int) error {
	if pos < int(r.width) || pos > len(r.data) {
		return ErrorSeekOutOfRange.Error(nil)
	}
	r.pos = pos
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrorShortFrame.Error(nil)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v != 0, err
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadBytes reads n raw bytes with no interpretation.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.take(n)
}

// ReadIP reads the protocol's reversed 4-byte IPv4 address and returns it in
// conventional big-endian octet order.
func (r *Reader) ReadIP() ([4]byte, error) {
	var ip [4]byte
	b, err := r.take(4)
	if err != nil {
		return ip, err
	}
	ip[0], ip[1], ip[2], ip[3] = b[3], b[2], b[1], b[0]
	return ip, nil
}

// ReadString reads a u32 length followed by that many bytes, decoding as
// UTF-8 and falling back to ISO-8859-1 when the bytes are not valid UTF-8.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}

	b, err := r.take(int(n))
	if err != nil {
		return "", ErrorStringTruncated.Error(err)
	}

	if utf8.Valid(b) {
		return string(b), nil
	}
	return decodeISO88591(b), nil
}

// Decompress inflates the remaining payload (from the current position to
// the end of the frame) in place and resets the cursor to directly after
// the code, preserving it. Used for BrowseResponse/SearchResponse bodies
// which are zlib-compressed starting right after the message code.
func (r *Reader) Decompress() error {
	zr, err := zlib.NewReader(bytes.NewReader(r.data[r.pos:]))
	if err != nil {
		return ErrorDecompression.Error(err)
	}
	defer func() { _ = zr.Close() }()

	inflated, err := io.ReadAll(zr)
	if err != nil {
		return ErrorDecompression.Error(err)
	}

	head := r.data[:r.pos]
	r.data = append(append([]byte{}, head...), inflated...)
	return nil
}

func encodeISO88591(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out
}

func decodeISO88591(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
