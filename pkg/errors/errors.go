// Copyright (c) 2019 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

// Package errors defines common errors for netlib.
package errors

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrOutOfMemory is the errno reported when a socket handle cannot be allocated.
	ErrOutOfMemory = unix.ENOMEM
	// ErrUnsupportedProtocol occurs when a socket carries a protocol tag other than tcp, udp or raw.
	ErrUnsupportedProtocol = errors.New("netlib: only tcp, udp and raw are supported")
	// ErrInvalidNetworkAddress occurs when the network address is not a valid IPv4 address and port.
	ErrInvalidNetworkAddress = errors.New("netlib: invalid network address")
	// ErrSocketClosed occurs when operating on a socket that has already been closed.
	ErrSocketClosed = errors.New("netlib: socket is closed")
	// ErrUnsupportedOp occurs when calling some methods that are either not supported or have not been implemented yet.
	ErrUnsupportedOp = errors.New("netlib: unsupported operation")
)

// Errno extracts the OS error number carried by err, if any.
func Errno(err error) (unix.Errno, bool) {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
