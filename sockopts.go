// Copyright (c) 2023 The Gnet Authors. All rights reserved.
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
	"time"

	"github.com/panjf2000/netlib/pkg/socket"
)

func bool2int(b bool) int {
	if b {
		return 1
	}
	return 0
}

// keepAliveSecs rounds d up to whole seconds, the granularity of TCP_KEEPIDLE.
func keepAliveSecs(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func commonSockOpts(opts *Options) (sockOptInts []socket.Option[int], sockOptStrs []socket.Option[string]) {
	if opts.SocketRecvBuffer > 0 {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetRecvBuffer, Opt: opts.SocketRecvBuffer})
	}
	if opts.SocketSendBuffer > 0 {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetSendBuffer, Opt: opts.SocketSendBuffer})
	}
	if opts.BindToDevice != "" {
		sockOptStrs = append(sockOptStrs, socket.Option[string]{SetSockOpt: socket.SetBindToDevice, Opt: opts.BindToDevice})
	}
	return
}

// streamSockOpts are the options a TCP connection inherits, they are set on
// the server socket and again on every accepted one.
func streamSockOpts(opts *Options) (sockOptInts []socket.Option[int]) {
	if opts.TCPNoDelay != TCPDefault {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetNoDelay, Opt: bool2int(opts.TCPNoDelay == TCPNoDelay)})
	}
	if opts.TCPKeepAlive > 0 {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetKeepAlivePeriod, Opt: keepAliveSecs(opts.TCPKeepAlive)})
	}
	return
}

func tcpSockOpts(opts *Options) ([]socket.Option[int], []socket.Option[string]) {
	reuseAddr := opts.ReuseAddr == nil || *opts.ReuseAddr
	sockOptInts := []socket.Option[int]{{SetSockOpt: socket.SetReuseAddr, Opt: bool2int(reuseAddr)}}
	if opts.ReusePort {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetReuseport, Opt: 1})
	}
	sockOptInts = append(sockOptInts, streamSockOpts(opts)...)
	ints, strs := commonSockOpts(opts)
	return append(sockOptInts, ints...), strs
}

func udpSockOpts(opts *Options) ([]socket.Option[int], []socket.Option[string]) {
	var sockOptInts []socket.Option[int]
	if opts.ReuseAddr != nil && *opts.ReuseAddr {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetReuseAddr, Opt: 1})
	}
	if opts.ReusePort {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetReuseport, Opt: 1})
	}
	if opts.Broadcast {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetBroadcast, Opt: 1})
	}
	ints, strs := commonSockOpts(opts)
	return append(sockOptInts, ints...), strs
}

func rawSockOpts(opts *Options) ([]socket.Option[int], []socket.Option[string]) {
	var sockOptInts []socket.Option[int]
	if opts.headerIncluded() {
		sockOptInts = append(sockOptInts, socket.Option[int]{SetSockOpt: socket.SetHeaderIncluded, Opt: 1})
	}
	ints, strs := commonSockOpts(opts)
	return append(sockOptInts, ints...), strs
}
