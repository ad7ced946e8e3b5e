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

import "github.com/sabouaram/soulseek/errors"

const (
	ErrorAlreadyConnected errors.CodeError = iota + errors.MinPkgClient
	ErrorNotConnected
	ErrorNotLoggedIn
	ErrorLoginRefused
	ErrorKickedFromServer
	ErrorListenFailed
	ErrorUnknownConnectType
	ErrorServerConnectionClosed
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorAlreadyConnected)
	errors.RegisterIdFctMessage(ErrorAlreadyConnected, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorAlreadyConnected:
		return "client is already connected to a server"
	case ErrorNotConnected:
		return "client is not connected to a server"
	case ErrorNotLoggedIn:
		return "client has not completed login"
	case ErrorLoginRefused:
		return "server refused the login request"
	case ErrorKickedFromServer:
		return "server kicked this client off"
	case ErrorListenFailed:
		return "failed to start the incoming connection listener"
	case ErrorUnknownConnectType:
		return "server requested a connection of an unrecognized type"
	case ErrorServerConnectionClosed:
		return "server connection closed"
	}

	return ""
}
