// Copyright (c) 2020 The Gnet Authors. All rights reserved.
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

package socket

import (
	"golang.org/x/sys/unix"
)

// rawSocket creates an IPv4 raw endpoint for protocol and applies the options.
// Raw sockets are never bound, the kernel hands them every datagram of
// that protocol.
func rawSocket(protocol int, sockOptInts []Option[int], sockOptStrs []Option[string]) (fd int, err error) {
	if fd, err = sysSocket(unix.AF_INET, unix.SOCK_RAW, protocol); err != nil {
		return -1, err
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
			fd = -1
		}
	}()

	err = SetSockOpts(fd, sockOptInts, sockOptStrs)

	return
}
