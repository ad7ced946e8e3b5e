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

package transfer

import "github.com/sabouaram/soulseek/errors"

const (
	ErrorTransferDenied errors.CodeError = iota + errors.MinPkgTransfer
	ErrorIncompleteData
	ErrorUploadFailed
	ErrorQueueFailed
	ErrorUnknownTransfer
	ErrorNoUploadSource
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorTransferDenied)
	errors.RegisterIdFctMessage(ErrorTransferDenied, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorTransferDenied:
		return "peer declined the transfer request"
	case ErrorIncompleteData:
		return "connection closed before the expected size was transferred"
	case ErrorUploadFailed:
		return "peer reported UploadFailed for this file"
	case ErrorQueueFailed:
		return "peer reported QueueFailed for this file"
	case ErrorUnknownTransfer:
		return "no transfer is registered under this token"
	case ErrorNoUploadSource:
		return "no FileSource configured to serve this upload"
	}

	return ""
}
