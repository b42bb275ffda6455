//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package netlib

import (
	"errors"
	"net"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	errorx "github.com/panjf2000/netlib/pkg/errors"
	"github.com/panjf2000/netlib/pkg/rawip"
	"github.com/panjf2000/netlib/pkg/socket"
)

const testMessage = "Hello Network Library!"

// openFDs counts the descriptors currently open in this process.
func openFDs(t *testing.T) int {
	t.Helper()
	for _, dir := range []string{"/proc/self/fd", "/dev/fd"} {
		if entries, err := os.ReadDir(dir); err == nil {
			return len(entries)
		}
	}
	t.Skip("no way to count open file descriptors on this platform")
	return 0
}

func testLogger(t *testing.T) Option {
	return WithLogger(zaptest.NewLogger(t).Sugar())
}

func TestProtocolString(t *testing.T) {
	assert.Equal(t, "tcp", TCP.String())
	assert.Equal(t, "udp", UDP.String())
	assert.Equal(t, "raw", RAW.String())
	assert.Equal(t, "protocol(9)", Protocol(9).String())
}

func TestCreateTCPServer(t *testing.T) {
	s, err := CreateTCPServer("127.0.0.1", 0, testLogger(t))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	assert.Equal(t, TCP, s.Protocol())
	assert.GreaterOrEqual(t, s.Fd(), 0)

	addr, ok := s.Addr().(*net.TCPAddr)
	require.True(t, ok, "unexpected address type %T", s.Addr())
	assert.True(t, addr.IP.Equal(net.IPv4(127, 0, 0, 1)))
	assert.NotZero(t, addr.Port)
	assert.Equal(t, addr.String(), s.LocalAddr().String())

	reuse, err := socket.GetSockoptInt(s.Fd(), unix.SOL_SOCKET, unix.SO_REUSEADDR)
	require.NoError(t, err)
	assert.NotZero(t, reuse, "SO_REUSEADDR should be on by default")

	// The socket is really listening.
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}

func TestCreateTCPServerOptions(t *testing.T) {
	s, err := CreateTCPServer("", 0,
		WithReuseAddr(false),
		WithReusePort(true),
		WithBacklog(16),
		WithSocketRecvBuffer(64*1024),
		WithTCPNoDelay(TCPNoDelay),
		WithTCPKeepAlive(1500*time.Millisecond),
		testLogger(t))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	assert.True(t, s.Addr().(*net.TCPAddr).IP.Equal(net.IPv4zero))

	reuseAddr, err := socket.GetSockoptInt(s.Fd(), unix.SOL_SOCKET, unix.SO_REUSEADDR)
	require.NoError(t, err)
	assert.Zero(t, reuseAddr)

	reusePort, err := socket.GetSockoptInt(s.Fd(), unix.SOL_SOCKET, unix.SO_REUSEPORT)
	require.NoError(t, err)
	assert.NotZero(t, reusePort)

	rcvBuf, err := socket.GetSockoptInt(s.Fd(), unix.SOL_SOCKET, unix.SO_RCVBUF)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rcvBuf, 64*1024)

	keepAlive, err := socket.GetSockoptInt(s.Fd(), unix.SOL_SOCKET, unix.SO_KEEPALIVE)
	require.NoError(t, err)
	assert.NotZero(t, keepAlive)
}

func TestWithOptionsKeepsDefaults(t *testing.T) {
	opts := loadOptions(WithOptions(Options{Backlog: 10}))
	assert.Equal(t, TCPDefault, opts.TCPNoDelay)
	assert.True(t, opts.headerIncluded())
	assert.Empty(t, streamSockOpts(opts), "no TCP option should be touched")

	ints, _ := rawSockOpts(opts)
	require.Len(t, ints, 1)
	assert.Equal(t, 1, ints[0].Opt)

	opts = loadOptions(WithOptions(Options{Backlog: 10}), WithHeaderIncluded(false), WithTCPNoDelay(TCPDelay))
	assert.False(t, opts.headerIncluded())
	ints, _ = rawSockOpts(opts)
	assert.Empty(t, ints)
	ints = streamSockOpts(opts)
	require.Len(t, ints, 1)
	assert.Zero(t, ints[0].Opt)

	plain, err := CreateTCPServer("127.0.0.1", 0, testLogger(t))
	require.NoError(t, err)
	defer plain.Close() //nolint:errcheck
	osDefault, err := socket.GetSockoptInt(plain.Fd(), unix.IPPROTO_TCP, unix.TCP_NODELAY)
	require.NoError(t, err)

	s, err := CreateTCPServer("127.0.0.1", 0, WithOptions(Options{Backlog: 10}), testLogger(t))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	noDelay, err := socket.GetSockoptInt(s.Fd(), unix.IPPROTO_TCP, unix.TCP_NODELAY)
	require.NoError(t, err)
	assert.Equal(t, osDefault, noDelay)

	raw, err := CreateRawSocket(unix.IPPROTO_ICMP, WithOptions(Options{}), testLogger(t))
	if err != nil {
		return
	}
	defer raw.Close() //nolint:errcheck
	hdrincl, err := socket.GetSockoptInt(raw.Fd(), unix.IPPROTO_IP, unix.IP_HDRINCL)
	require.NoError(t, err)
	assert.NotZero(t, hdrincl)
}

func TestInvalidAddress(t *testing.T) {
	before := openFDs(t)

	s, err := CreateTCPServer("not-an-ip", 0, testLogger(t))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, errorx.ErrInvalidNetworkAddress)

	s, err = CreateTCPServer("::1", 0, testLogger(t))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, errorx.ErrInvalidNetworkAddress)

	s, err = CreateUDPEndpoint("127.0.0.1", 70000, testLogger(t))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, errorx.ErrInvalidNetworkAddress)

	_, ok := Errno(err)
	assert.False(t, ok)

	assert.Equal(t, before, openFDs(t))
}

func TestTCPServerAddressInUse(t *testing.T) {
	first, err := CreateTCPServer("127.0.0.1", 8080, testLogger(t))
	if errors.Is(err, unix.EADDRINUSE) {
		t.Skip("port 8080 is taken by another process")
	}
	require.NoError(t, err)
	defer first.Close() //nolint:errcheck

	before := openFDs(t)
	second, err := CreateTCPServer("127.0.0.1", 8080, testLogger(t))
	assert.Nil(t, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EADDRINUSE)

	var sysErr *os.SyscallError
	require.ErrorAs(t, err, &sysErr)
	assert.Equal(t, "bind", sysErr.Syscall)

	code, ok := Errno(err)
	require.True(t, ok)
	assert.Equal(t, int(unix.EADDRINUSE), code)
	assert.Equal(t, unix.EADDRINUSE.Error(), StrError(code))

	assert.Equal(t, before, openFDs(t), "a failed constructor must not leak descriptors")
}

func TestConstructorRollbackOnSetsockopt(t *testing.T) {
	before := openFDs(t)

	s, err := CreateTCPServer("127.0.0.1", 0, WithBindToDevice("nlbogus0"), testLogger(t))
	assert.Nil(t, s)
	require.Error(t, err)

	s, err = CreateUDPEndpoint("127.0.0.1", 0, WithBindToDevice("nlbogus0"), testLogger(t))
	assert.Nil(t, s)
	require.Error(t, err)
	if runtime.GOOS != "linux" {
		assert.ErrorIs(t, err, errorx.ErrUnsupportedOp)
	}

	assert.Equal(t, before, openFDs(t))
}

func TestConstructorRollbackOnBind(t *testing.T) {
	before := openFDs(t)

	// 192.0.2.0/24 is TEST-NET-1, never assigned to a local interface.
	s, err := CreateUDPEndpoint("192.0.2.1", 0, testLogger(t))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, unix.EADDRNOTAVAIL)

	s, err = CreateTCPServer("192.0.2.1", 0, testLogger(t))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, unix.EADDRNOTAVAIL)

	assert.Equal(t, before, openFDs(t))
}

func TestUDPRoundTrip(t *testing.T) {
	server, err := CreateUDPEndpoint("127.0.0.1", 0, testLogger(t))
	require.NoError(t, err)
	defer server.Close() //nolint:errcheck
	assert.Equal(t, UDP, server.Protocol())

	client, err := CreateUDPEndpoint("127.0.0.1", 0, testLogger(t))
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	serverAddr := server.Addr().(*net.UDPAddr)
	clientAddr := client.Addr().(*net.UDPAddr)
	require.NotZero(t, serverAddr.Port)
	require.NotZero(t, clientAddr.Port, "port 0 should be replaced with an ephemeral port")

	n, err := client.Send([]byte(testMessage), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: serverAddr.Port})
	require.NoError(t, err)
	assert.Equal(t, len(testMessage), n)

	buf := make([]byte, 256)
	n, from, err := server.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, testMessage, string(buf[:n]))

	src, ok := from.(*net.UDPAddr)
	require.True(t, ok, "unexpected source address type %T", from)
	assert.Equal(t, clientAddr.Port, src.Port)
	assert.True(t, src.IP.Equal(net.IPv4(127, 0, 0, 1)))

	// Reply to whoever sent the datagram.
	_, err = server.Send(buf[:n], from)
	require.NoError(t, err)
	n, from, err = client.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, testMessage, string(buf[:n]))
	assert.Equal(t, serverAddr.Port, from.(*net.UDPAddr).Port)
}

func TestUDPSendWithoutDestination(t *testing.T) {
	s, err := CreateUDPEndpoint("127.0.0.1", 0, testLogger(t))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	_, err = s.Send([]byte(testMessage), nil)
	require.Error(t, err)
	if runtime.GOOS == "linux" {
		assert.ErrorIs(t, err, unix.EDESTADDRREQ)
	}
	var nilAddr *net.UDPAddr
	_, err = s.Send([]byte(testMessage), nilAddr)
	require.Error(t, err)

	_, err = s.Send([]byte(testMessage), &net.UDPAddr{IP: net.IPv6loopback, Port: 9})
	assert.ErrorIs(t, err, errorx.ErrInvalidNetworkAddress)

	// A failed send leaves the socket usable.
	n, err := s.Send([]byte(testMessage), s.Addr())
	require.NoError(t, err)
	assert.Equal(t, len(testMessage), n)

	buf := make([]byte, 64)
	n, _, err = s.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, testMessage, string(buf[:n]))
}

func TestUDPBroadcastOption(t *testing.T) {
	s, err := CreateUDPEndpoint("", 0, WithBroadcast(true), WithSocketSendBuffer(32*1024), testLogger(t))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	broadcast, err := socket.GetSockoptInt(s.Fd(), unix.SOL_SOCKET, unix.SO_BROADCAST)
	require.NoError(t, err)
	assert.NotZero(t, broadcast)
}

func TestAcceptOnNonTCP(t *testing.T) {
	s, err := CreateUDPEndpoint("127.0.0.1", 0, testLogger(t))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	type result struct {
		c   *Socket
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := s.Accept()
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		assert.Nil(t, r.c)
		assert.ErrorIs(t, r.err, unix.EPROTONOSUPPORT)
		code, ok := Errno(r.err)
		require.True(t, ok)
		assert.Equal(t, int(unix.EPROTONOSUPPORT), code)
	case <-time.After(3 * time.Second):
		t.Fatal("accept on a UDP socket must not block")
	}
}

func TestTCPAcceptAndTransfer(t *testing.T) {
	server, err := CreateTCPServer("127.0.0.1", 0, WithTCPNoDelay(TCPNoDelay), testLogger(t))
	require.NoError(t, err)
	defer server.Close() //nolint:errcheck
	serverAddr := server.Addr().String()

	conn, err := net.Dial("tcp", serverAddr)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	c, err := server.Accept()
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	assert.Equal(t, TCP, c.Protocol())
	assert.NotEqual(t, server.Fd(), c.Fd())
	assert.Equal(t, conn.LocalAddr().String(), c.Addr().String(), "accepted handle stores the peer address")
	assert.Equal(t, conn.RemoteAddr().String(), c.LocalAddr().String())

	noDelay, err := socket.GetSockoptInt(c.Fd(), unix.IPPROTO_TCP, unix.TCP_NODELAY)
	require.NoError(t, err)
	assert.NotZero(t, noDelay)

	delayed, err := CreateTCPServer("127.0.0.1", 0, WithTCPNoDelay(TCPDelay), testLogger(t))
	require.NoError(t, err)
	noDelay, err = socket.GetSockoptInt(delayed.Fd(), unix.IPPROTO_TCP, unix.TCP_NODELAY)
	require.NoError(t, err)
	assert.Zero(t, noDelay)
	require.NoError(t, delayed.Close())

	_, err = conn.Write([]byte(testMessage))
	require.NoError(t, err)

	buf := make([]byte, 256)
	n, from, err := c.Recv(buf)
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Equal(t, testMessage, string(buf[:n]))

	// The destination is ignored on a stream socket.
	n, err = c.Send([]byte(testMessage), &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 1})
	require.NoError(t, err)
	assert.Equal(t, len(testMessage), n)

	reply := make([]byte, len(testMessage))
	_, err = conn.Read(reply)
	require.NoError(t, err)
	assert.Equal(t, testMessage, string(reply))

	require.NoError(t, conn.Close())
	n, _, err = c.Recv(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "orderly shutdown reads zero bytes")

	// The server keeps listening after an accept.
	conn2, err := net.Dial("tcp", serverAddr)
	require.NoError(t, err)
	defer conn2.Close() //nolint:errcheck
	c2, err := server.Accept()
	require.NoError(t, err)
	assert.NoError(t, c2.Close())
}

func TestRawSocket(t *testing.T) {
	before := openFDs(t)

	s, err := CreateRawSocket(unix.IPPROTO_ICMP, testLogger(t))
	if err != nil {
		assert.Nil(t, s)
		assert.True(t, errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES),
			"unprivileged raw socket creation should fail with a permission error, got %v", err)
		assert.Equal(t, before, openFDs(t))
		return
	}
	defer s.Close() //nolint:errcheck

	assert.Equal(t, RAW, s.Protocol())
	assert.Nil(t, s.Addr())

	hdrincl, err := socket.GetSockoptInt(s.Fd(), unix.IPPROTO_IP, unix.IP_HDRINCL)
	require.NoError(t, err)
	assert.NotZero(t, hdrincl)

	_, err = s.Accept()
	assert.ErrorIs(t, err, unix.EPROTONOSUPPORT)

	// Bound the wait below, Recv itself never times out.
	require.NoError(t, unix.SetsockoptTimeval(s.Fd(), unix.SOL_SOCKET, unix.SO_RCVTIMEO, &unix.Timeval{Sec: 2}))

	const echoID = 0x4e4c
	icmpEcho, err := rawip.ICMPEcho(echoID, 1, []byte(testMessage))
	require.NoError(t, err)
	loopback := net.IPv4(127, 0, 0, 1)
	_, err = s.SendPacket(rawip.NewHeader(loopback, loopback, rawip.ProtocolICMP), icmpEcho)
	require.NoError(t, err)

	buf := make([]byte, 1500)
	for i := 0; i < 8; i++ {
		n, from, err := s.Recv(buf)
		require.NoError(t, err)
		src, ok := from.(*net.IPAddr)
		require.True(t, ok, "unexpected source address type %T", from)
		if !src.IP.Equal(loopback) {
			continue
		}
		_, payload, err := rawip.Parse(buf[:n])
		require.NoError(t, err)
		msg, err := rawip.ParseICMP(payload)
		require.NoError(t, err)
		if echo, ok := msg.Body.(*icmp.Echo); ok && echo.ID == echoID {
			assert.Equal(t, testMessage, string(echo.Data))
			return
		}
	}
	t.Fatal("no ICMP echo carrying our identifier came back")
}

func TestRawSocketWithoutHeaderIncluded(t *testing.T) {
	s, err := CreateRawSocket(unix.IPPROTO_ICMP, WithHeaderIncluded(false), testLogger(t))
	if err != nil {
		t.Skipf("raw sockets are not permitted: %v", err)
	}
	defer s.Close() //nolint:errcheck

	hdrincl, err := socket.GetSockoptInt(s.Fd(), unix.IPPROTO_IP, unix.IP_HDRINCL)
	require.NoError(t, err)
	assert.Zero(t, hdrincl)

	_, err = s.SendPacket(&ipv4.Header{Dst: net.IPv4(127, 0, 0, 1)}, nil)
	assert.ErrorIs(t, err, errorx.ErrUnsupportedOp)
}

func TestUnknownProtocolDispatch(t *testing.T) {
	s, err := CreateUDPEndpoint("127.0.0.1", 0, testLogger(t))
	require.NoError(t, err)
	s.proto = Protocol(42)
	defer func() {
		s.proto = UDP
		assert.NoError(t, s.Close())
	}()

	_, err = s.Send([]byte(testMessage), s.Addr())
	assert.ErrorIs(t, err, errorx.ErrUnsupportedProtocol)

	_, _, err = s.Recv(make([]byte, 16))
	assert.ErrorIs(t, err, errorx.ErrUnsupportedProtocol)
}

func TestClose(t *testing.T) {
	var nilSocket *Socket
	assert.NoError(t, nilSocket.Close())

	before := openFDs(t)
	s, err := CreateUDPEndpoint("127.0.0.1", 0, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, before+1, openFDs(t))

	require.NoError(t, s.Close())
	assert.Equal(t, before, openFDs(t))
	assert.Equal(t, -1, s.Fd())
	assert.Nil(t, s.LocalAddr())

	assert.ErrorIs(t, s.Close(), errorx.ErrSocketClosed)
	_, err = s.Send([]byte(testMessage), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9})
	assert.ErrorIs(t, err, errorx.ErrSocketClosed)
	_, _, err = s.Recv(make([]byte, 16))
	assert.ErrorIs(t, err, errorx.ErrSocketClosed)
	_, err = s.Accept()
	assert.ErrorIs(t, err, errorx.ErrSocketClosed)
}

func TestStrError(t *testing.T) {
	assert.Equal(t, unix.ECONNREFUSED.Error(), StrError(int(unix.ECONNREFUSED)))
	assert.Equal(t, unix.EPERM.Error(), StrError(int(unix.EPERM)))
	assert.NotEmpty(t, StrError(int(unix.EPROTONOSUPPORT)))

	code, ok := Errno(os.NewSyscallError("bind", unix.EACCES))
	require.True(t, ok)
	assert.Equal(t, int(unix.EACCES), code)

	_, ok = Errno(errorx.ErrSocketClosed)
	assert.False(t, ok)
}
