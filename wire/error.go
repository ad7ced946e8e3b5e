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

package wire

import "github.com/sabouaram/soulseek/errors"

const (
	ErrorShortFrame errors.CodeError = iota + errors.MinPkgWire
	ErrorStringTruncated
	ErrorCodeMismatch
	ErrorCompression
	ErrorDecompression
	ErrorPayloadTooLarge
	ErrorSeekOutOfRange
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorShortFrame)
	errors.RegisterIdFctMessage(ErrorShortFrame, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorShortFrame:
		return "frame shorter than declared length"
	case ErrorStringTruncated:
		return "string field truncated before declared length"
	case ErrorCodeMismatch:
		return "decoded message code does not match expected code"
	case ErrorCompression:
		return "zlib compression of payload failed"
	case ErrorDecompression:
		return "zlib decompression of payload failed"
	case ErrorPayloadTooLarge:
		return "payload exceeds maximum frame size"
	case ErrorSeekOutOfRange:
		return "reader seek position out of range"
	}

	return ""
}
