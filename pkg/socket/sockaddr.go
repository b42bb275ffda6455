// Copyright (c) 2022 The Gnet Authors. All rights reserved.
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
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	errorx "github.com/panjf2000/netlib/pkg/errors"
)

// ipv4Sockaddr builds an AF_INET socket address, a nil or unspecified ip
// stands for INADDR_ANY.
func ipv4Sockaddr(ip net.IP, port int) (*unix.SockaddrInet4, error) {
	if port < 0 || port > 0xFFFF {
		return nil, fmt.Errorf("%w: port %d out of range", errorx.ErrInvalidNetworkAddress, port)
	}
	sa := &unix.SockaddrInet4{Port: port}
	if len(ip) == 0 {
		return sa, nil
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: %s is not an IPv4 address", errorx.ErrInvalidNetworkAddress, ip)
	}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// NetAddrToSockaddr converts a net.Addr carrying an IPv4 address to a Sockaddr.
// A nil addr, typed or not, converts to a nil Sockaddr.
func NetAddrToSockaddr(addr net.Addr) (unix.Sockaddr, error) {
	switch addr := addr.(type) {
	case nil:
		return nil, nil
	case *net.UDPAddr:
		if addr == nil {
			return nil, nil
		}
		return ipv4Sockaddr(addr.IP, addr.Port)
	case *net.IPAddr:
		if addr == nil {
			return nil, nil
		}
		return ipv4Sockaddr(addr.IP, 0)
	case *net.TCPAddr:
		if addr == nil {
			return nil, nil
		}
		return ipv4Sockaddr(addr.IP, addr.Port)
	default:
		return nil, fmt.Errorf("%w: unsupported address type %T", errorx.ErrInvalidNetworkAddress, addr)
	}
}

// SockaddrToTCPAddr converts a unix.Sockaddr to a net.TCPAddr.
// Returns nil if sa is not an IPv4 address.
func SockaddrToTCPAddr(sa unix.Sockaddr) net.Addr {
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return &net.TCPAddr{IP: sockaddrInet4ToIP(sa4), Port: sa4.Port}
	}
	return nil
}

// SockaddrToUDPAddr converts a unix.Sockaddr to a net.UDPAddr.
// Returns nil if sa is not an IPv4 address.
func SockaddrToUDPAddr(sa unix.Sockaddr) net.Addr {
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return &net.UDPAddr{IP: sockaddrInet4ToIP(sa4), Port: sa4.Port}
	}
	return nil
}

// SockaddrToIPAddr converts a unix.Sockaddr to a net.IPAddr, the port is dropped.
// Returns nil if sa is not an IPv4 address.
func SockaddrToIPAddr(sa unix.Sockaddr) net.Addr {
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return &net.IPAddr{IP: sockaddrInet4ToIP(sa4)}
	}
	return nil
}

// sockaddrInet4ToIP copies the address out of sa, the returned IP does not
// alias the Sockaddr.
func sockaddrInet4ToIP(sa *unix.SockaddrInet4) net.IP {
	return net.IPv4(sa.Addr[0], sa.Addr[1], sa.Addr[2], sa.Addr[3])
}
