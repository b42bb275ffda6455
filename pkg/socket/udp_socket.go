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
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// udpSocket creates a datagram endpoint, applies the options and binds it.
func udpSocket(addr *net.UDPAddr, sockOptInts []Option[int], sockOptStrs []Option[string]) (fd int, netAddr net.Addr, err error) {
	sa, err := ipv4Sockaddr(addr.IP, addr.Port)
	if err != nil {
		return -1, nil, err
	}

	if fd, err = sysSocket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP); err != nil {
		return -1, nil, err
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
			fd = -1
		}
	}()

	if err = SetSockOpts(fd, sockOptInts, sockOptStrs); err != nil {
		return
	}

	if err = os.NewSyscallError("bind", unix.Bind(fd, sa)); err != nil {
		return
	}

	bound, err := LocalSockaddr(fd)
	if err != nil {
		return
	}
	netAddr = SockaddrToUDPAddr(bound)

	return
}
