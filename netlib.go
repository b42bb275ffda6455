// Copyright (c) 2026 The Gnet Authors. All rights reserved.
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

package netlib

import (
	"fmt"
	"net"
	"os"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	errorx "github.com/panjf2000/netlib/pkg/errors"
	"github.com/panjf2000/netlib/pkg/logging"
	"github.com/panjf2000/netlib/pkg/rawip"
	"github.com/panjf2000/netlib/pkg/socket"
)

// Protocol tells which kind of endpoint a Socket wraps.
type Protocol int

const (
	// TCP is a stream socket, either listening or connected.
	TCP Protocol = iota
	// UDP is a datagram socket.
	UDP
	// RAW is an IPv4 raw socket.
	RAW
)

func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	case RAW:
		return "raw"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// Socket is a handle to one OS socket descriptor.
//
// The protocol is fixed when the handle is created. A Socket is not safe for
// concurrent use, distinct Sockets are independent of each other.
type Socket struct {
	fd     int
	proto  Protocol
	addr   net.Addr
	opts   *Options
	logger logging.Logger
}

func newSocket(fd int, proto Protocol, addr net.Addr, opts *Options) *Socket {
	return &Socket{fd: fd, proto: proto, addr: addr, opts: opts, logger: loggerOf(opts)}
}

func loggerOf(opts *Options) logging.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return logging.GetDefaultLogger()
}

// parseIPv4 parses a dotted IPv4 literal, the empty string means INADDR_ANY.
func parseIPv4(ip string) (net.IP, error) {
	if ip == "" {
		return nil, nil
	}
	addr := net.ParseIP(ip).To4()
	if addr == nil {
		return nil, fmt.Errorf("%w: %q is not an IPv4 address", errorx.ErrInvalidNetworkAddress, ip)
	}
	return addr, nil
}

// CreateTCPServer creates a TCP socket bound to ip:port and listening on it.
//
// An empty ip binds to all interfaces. SO_REUSEADDR is on unless disabled
// with WithReuseAddr(false) and the listen backlog is DefaultBacklog unless
// WithBacklog says otherwise. On failure no descriptor is left open and the
// returned error wraps the errno of the step that failed.
func CreateTCPServer(ip string, port int, opts ...Option) (*Socket, error) {
	options := loadOptions(opts...)
	logger := loggerOf(options)

	bindIP, err := parseIPv4(ip)
	if err != nil {
		return nil, err
	}
	backlog := options.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	sockOptInts, sockOptStrs := tcpSockOpts(options)
	fd, addr, err := socket.TCPSocket(&net.TCPAddr{IP: bindIP, Port: port}, backlog, sockOptInts, sockOptStrs)
	if err != nil {
		logger.Warnf("failed to create tcp server on %s: %v", hostPort(ip, port), err)
		return nil, err
	}

	logger.Debugf("tcp server listening on %v, fd: %d, backlog: %d", addr, fd, backlog)
	return newSocket(fd, TCP, addr, options), nil
}

// CreateUDPEndpoint creates a UDP socket bound to ip:port.
//
// An empty ip binds to all interfaces and port 0 asks the kernel for an
// ephemeral port, Addr reports the port that was picked.
func CreateUDPEndpoint(ip string, port int, opts ...Option) (*Socket, error) {
	options := loadOptions(opts...)
	logger := loggerOf(options)

	bindIP, err := parseIPv4(ip)
	if err != nil {
		return nil, err
	}

	sockOptInts, sockOptStrs := udpSockOpts(options)
	fd, addr, err := socket.UDPSocket(&net.UDPAddr{IP: bindIP, Port: port}, sockOptInts, sockOptStrs)
	if err != nil {
		logger.Warnf("failed to create udp endpoint on %s: %v", hostPort(ip, port), err)
		return nil, err
	}

	logger.Debugf("udp endpoint bound to %v, fd: %d", addr, fd)
	return newSocket(fd, UDP, addr, options), nil
}

// CreateRawSocket creates an IPv4 raw socket for the given IP protocol
// number, unix.IPPROTO_ICMP for instance.
//
// IP_HDRINCL is enabled unless WithHeaderIncluded(false) is given, so every
// Send must carry a complete IPv4 header, see SendPacket. Raw sockets need
// elevated privileges, without them the error wraps EPERM.
func CreateRawSocket(protocol int, opts ...Option) (*Socket, error) {
	options := loadOptions(opts...)
	logger := loggerOf(options)

	sockOptInts, sockOptStrs := rawSockOpts(options)
	fd, err := socket.RawSocket(protocol, sockOptInts, sockOptStrs)
	if err != nil {
		logger.Warnf("failed to create raw socket for protocol %d: %v", protocol, err)
		return nil, err
	}

	logger.Debugf("raw socket created for protocol %d, fd: %d", protocol, fd)
	return newSocket(fd, RAW, nil, options), nil
}

func hostPort(ip string, port int) string {
	if ip == "" {
		ip = net.IPv4zero.String()
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

// Protocol returns the protocol the socket was created with.
func (s *Socket) Protocol() Protocol {
	return s.proto
}

// Fd returns the underlying file descriptor, -1 once the socket is closed.
func (s *Socket) Fd() int {
	return s.fd
}

// Addr returns the address stored in the handle: the bound address of a
// server or UDP endpoint, the peer address of an accepted connection and
// nil for raw sockets.
func (s *Socket) Addr() net.Addr {
	return s.addr
}

// LocalAddr returns the address the descriptor is currently bound to,
// nil if it cannot be determined.
func (s *Socket) LocalAddr() net.Addr {
	if s.fd < 0 {
		return nil
	}
	sa, err := socket.LocalSockaddr(s.fd)
	if err != nil {
		return nil
	}
	switch s.proto {
	case TCP:
		return socket.SockaddrToTCPAddr(sa)
	case UDP:
		return socket.SockaddrToUDPAddr(sa)
	default:
		return socket.SockaddrToIPAddr(sa)
	}
}

// Accept waits for the next connection on a TCP server and returns it as a
// new Socket owned by the caller. The server socket keeps listening.
//
// Accept on a UDP or raw socket fails right away with EPROTONOSUPPORT.
func (s *Socket) Accept() (*Socket, error) {
	if s.fd < 0 {
		return nil, errorx.ErrSocketClosed
	}
	if s.proto != TCP {
		return nil, os.NewSyscallError("accept", unix.EPROTONOSUPPORT)
	}

	nfd, sa, err := socket.Accept(s.fd)
	if err != nil {
		s.logger.Errorf("failed to accept on %v: %v", s.addr, err)
		return nil, err
	}
	if err = socket.SetSockOpts(nfd, streamSockOpts(s.opts), nil); err != nil {
		_ = unix.Close(nfd)
		s.logger.Warnf("failed to configure connection accepted on %v: %v", s.addr, err)
		return nil, err
	}

	c := newSocket(nfd, TCP, socket.SockaddrToTCPAddr(sa), s.opts)
	s.logger.Debugf("accepted connection from %v on %v, fd: %d", c.addr, s.addr, nfd)
	return c, nil
}

// Send transmits b and returns how many bytes the OS accepted.
//
// On a TCP socket dest is ignored, the data goes to the connected peer.
// On UDP and raw sockets dest names the receiver, a nil dest only works
// if the socket has a default peer and otherwise fails with the OS error.
func (s *Socket) Send(b []byte, dest net.Addr) (int, error) {
	if s.fd < 0 {
		return 0, errorx.ErrSocketClosed
	}

	switch s.proto {
	case TCP:
		return socket.Write(s.fd, b)
	case UDP, RAW:
		sa, err := socket.NetAddrToSockaddr(dest)
		if err != nil {
			return 0, err
		}
		return socket.SendTo(s.fd, b, sa)
	default:
		return 0, errorx.ErrUnsupportedProtocol
	}
}

// Recv reads into b and returns the number of bytes read along with the
// sender's address.
//
// On a TCP socket the address is always nil and n == 0 with a nil error
// means the peer closed the connection. On a UDP socket the sender is a
// *net.UDPAddr, on a raw socket a *net.IPAddr and b starts with the IPv4
// header of the received datagram.
func (s *Socket) Recv(b []byte) (int, net.Addr, error) {
	if s.fd < 0 {
		return 0, nil, errorx.ErrSocketClosed
	}

	switch s.proto {
	case TCP:
		n, err := socket.Read(s.fd, b)
		return n, nil, err
	case UDP:
		n, sa, err := socket.RecvFrom(s.fd, b)
		if err != nil {
			return 0, nil, err
		}
		return n, socket.SockaddrToUDPAddr(sa), nil
	case RAW:
		n, sa, err := socket.RecvFrom(s.fd, b)
		if err != nil {
			return 0, nil, err
		}
		return n, socket.SockaddrToIPAddr(sa), nil
	default:
		return 0, nil, errorx.ErrUnsupportedProtocol
	}
}

// SendPacket prepends the IPv4 header h to payload and sends the packet to
// h.Dst, TotalLen and the header checksum are filled in. It is only valid
// on a raw socket with IP_HDRINCL enabled.
func (s *Socket) SendPacket(h *ipv4.Header, payload []byte) (int, error) {
	if s.fd < 0 {
		return 0, errorx.ErrSocketClosed
	}
	if s.proto != RAW || !s.opts.headerIncluded() {
		return 0, errorx.ErrUnsupportedOp
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := rawip.AppendPacket(buf, h, payload); err != nil {
		return 0, err
	}
	return s.Send(buf.B, &net.IPAddr{IP: h.Dst})
}

// Close closes the underlying descriptor. Closing a nil Socket is a no-op,
// any use of the Socket after Close, Close included, returns ErrSocketClosed.
func (s *Socket) Close() error {
	if s == nil {
		return nil
	}
	if s.fd < 0 {
		return errorx.ErrSocketClosed
	}

	fd := s.fd
	s.fd = -1
	err := socket.Close(fd)
	if err != nil {
		s.logger.Errorf("failed to close %v socket, fd: %d: %v", s.proto, fd, err)
		return err
	}
	s.logger.Debugf("closed %v socket, fd: %d", s.proto, fd)
	return nil
}
