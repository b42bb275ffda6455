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

package netlib

import (
	"time"

	"github.com/panjf2000/netlib/pkg/logging"
)

// DefaultBacklog is the number of pending connections a TCP server queues.
const DefaultBacklog = 5

// TCPSocketOpt is the type of TCP socket options.
type TCPSocketOpt int

// Available TCP socket options.
const (
	// TCPDefault leaves TCP_NODELAY as the OS sets it.
	TCPDefault TCPSocketOpt = iota
	// TCPNoDelay disables Nagle's algorithm.
	TCPNoDelay
	// TCPDelay keeps Nagle's algorithm on.
	TCPDelay
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := &Options{Backlog: DefaultBacklog}
	for _, option := range options {
		option(opts)
	}
	return opts
}

// Options are configurations for a socket handle, each constructor only
// applies the fields meaningful to its protocol.
type Options struct {
	// ReuseAddr sets SO_REUSEADDR. TCP servers turn it on unless
	// WithReuseAddr(false) is given explicitly.
	ReuseAddr *bool

	// ReusePort sets SO_REUSEPORT on TCP and UDP sockets.
	ReusePort bool

	// Backlog is the listen queue length of a TCP server, DefaultBacklog if not positive.
	Backlog int

	// SocketRecvBuffer sets SO_RCVBUF, 0 keeps the OS default.
	SocketRecvBuffer int

	// SocketSendBuffer sets SO_SNDBUF, 0 keeps the OS default.
	SocketSendBuffer int

	// TCPNoDelay sets TCP_NODELAY on TCP servers and the connections they accept,
	// TCPDefault keeps the OS default.
	TCPNoDelay TCPSocketOpt

	// TCPKeepAlive enables SO_KEEPALIVE with the given probe period on
	// TCP servers and accepted connections, whole seconds only.
	TCPKeepAlive time.Duration

	// Broadcast sets SO_BROADCAST on UDP endpoints.
	Broadcast bool

	// HeaderIncluded sets IP_HDRINCL on raw sockets, which is on unless
	// WithHeaderIncluded(false) is given explicitly.
	HeaderIncluded *bool

	// BindToDevice sets SO_BINDTODEVICE to the named interface, Linux only.
	BindToDevice string

	// Logger is the customized logger for the socket, logging.GetDefaultLogger() if nil.
	Logger logging.Logger
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithReuseAddr sets up SO_REUSEADDR socket option.
func WithReuseAddr(reuseAddr bool) Option {
	return func(opts *Options) {
		opts.ReuseAddr = &reuseAddr
	}
}

// WithReusePort sets up SO_REUSEPORT socket option.
func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

// WithBacklog sets up the listen backlog of a TCP server.
func WithBacklog(backlog int) Option {
	return func(opts *Options) {
		opts.Backlog = backlog
	}
}

// WithSocketRecvBuffer sets the maximum socket receive buffer in bytes.
func WithSocketRecvBuffer(recvBuf int) Option {
	return func(opts *Options) {
		opts.SocketRecvBuffer = recvBuf
	}
}

// WithSocketSendBuffer sets the maximum socket send buffer in bytes.
func WithSocketSendBuffer(sendBuf int) Option {
	return func(opts *Options) {
		opts.SocketSendBuffer = sendBuf
	}
}

// WithTCPNoDelay enable/disable the TCP_NODELAY socket option.
func WithTCPNoDelay(tcpNoDelay TCPSocketOpt) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = tcpNoDelay
	}
}

// WithTCPKeepAlive sets up the SO_KEEPALIVE socket option with duration.
func WithTCPKeepAlive(tcpKeepAlive time.Duration) Option {
	return func(opts *Options) {
		opts.TCPKeepAlive = tcpKeepAlive
	}
}

// WithBroadcast sets up the SO_BROADCAST socket option.
func WithBroadcast(broadcast bool) Option {
	return func(opts *Options) {
		opts.Broadcast = broadcast
	}
}

// WithHeaderIncluded sets up the IP_HDRINCL socket option on raw sockets.
func WithHeaderIncluded(included bool) Option {
	return func(opts *Options) {
		opts.HeaderIncluded = &included
	}
}

func (opts *Options) headerIncluded() bool {
	return opts.HeaderIncluded == nil || *opts.HeaderIncluded
}

// WithBindToDevice binds the socket to the named network interface.
func WithBindToDevice(iface string) Option {
	return func(opts *Options) {
		opts.BindToDevice = iface
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
