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

// Package socket provides the blocking IPv4 socket primitives netlib is built on.
//
// Every constructor in this package runs a sequence of fallible steps
// (socket, setsockopt, bind, listen) and closes the descriptor it opened
// if any later step fails, so a returned error never leaks an fd.
package socket

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// socketFunc is socket(2), swapped out in tests to simulate kernel refusals.
var socketFunc = unix.Socket

// Option is used for setting an option on socket.
type Option[T int | string] struct {
	SetSockOpt func(int, T) error
	Opt        T
}

func execSockOpts[T int | string](fd int, opts []Option[T]) error {
	for _, opt := range opts {
		if err := opt.SetSockOpt(fd, opt.Opt); err != nil {
			return err
		}
	}
	return nil
}

// SetSockOpts sets the given options on fd, stopping at the first failure.
func SetSockOpts(fd int, sockOptInts []Option[int], sockOptStrs []Option[string]) error {
	if err := execSockOpts(fd, sockOptInts); err != nil {
		return err
	}
	return execSockOpts(fd, sockOptStrs)
}

// TCPSocket creates a listening TCP socket bound to addr and returns the
// file descriptor along with the address it is actually bound to.
// The given socket options are set between socket creation and bind.
func TCPSocket(addr *net.TCPAddr, backlog int, sockOptInts []Option[int], sockOptStrs []Option[string]) (int, net.Addr, error) {
	return tcpSocket(addr, backlog, sockOptInts, sockOptStrs)
}

// UDPSocket creates a UDP socket bound to addr and returns the file
// descriptor along with the address it is actually bound to, a zero port
// in addr is replaced with the ephemeral port picked by the kernel.
func UDPSocket(addr *net.UDPAddr, sockOptInts []Option[int], sockOptStrs []Option[string]) (int, net.Addr, error) {
	return udpSocket(addr, sockOptInts, sockOptStrs)
}

// RawSocket creates an IPv4 raw socket for the given IP protocol number.
func RawSocket(protocol int, sockOptInts []Option[int], sockOptStrs []Option[string]) (int, error) {
	return rawSocket(protocol, sockOptInts, sockOptStrs)
}

// Accept blocks until the next incoming connection arrives on the listening fd
// and returns it with the O_CLOEXEC flag set.
func Accept(fd int) (int, unix.Sockaddr, error) {
	for {
		nfd, sa, err := sysAccept(fd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1, nil, os.NewSyscallError("accept", err)
		}
		return nfd, sa, nil
	}
}

// Write writes b to the connected socket fd.
func Write(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Write(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, os.NewSyscallError("write", err)
		}
		return n, nil
	}
}

// Read reads from the connected socket fd into b, n == 0 with a nil error
// means the peer has shut the connection down.
func Read(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, os.NewSyscallError("read", err)
		}
		return n, nil
	}
}

// SendTo sends b as one datagram to sa, a nil sa sends without a target
// which only succeeds on a connected socket.
func SendTo(fd int, b []byte, sa unix.Sockaddr) (int, error) {
	for {
		n, err := unix.SendmsgN(fd, b, nil, sa, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, os.NewSyscallError("sendmsg", err)
		}
		return n, nil
	}
}

// RecvFrom receives one datagram into b and reports who sent it.
func RecvFrom(fd int, b []byte) (int, unix.Sockaddr, error) {
	for {
		n, sa, err := unix.Recvfrom(fd, b, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, nil, os.NewSyscallError("recvfrom", err)
		}
		return n, sa, nil
	}
}

// Close closes the socket fd.
func Close(fd int) error {
	return os.NewSyscallError("close", unix.Close(fd))
}

// LocalSockaddr returns the address fd is bound to.
func LocalSockaddr(fd int) (unix.Sockaddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, os.NewSyscallError("getsockname", err)
	}
	return sa, nil
}
