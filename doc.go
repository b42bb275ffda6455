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

/*
Package netlib puts TCP, UDP and raw IPv4 sockets behind one handle type.

A Socket is created by CreateTCPServer, CreateUDPEndpoint or CreateRawSocket,
or handed out by Accept on a TCP server. Whatever the protocol, data moves
through Send and Recv and the handle is released with Close. Every call
blocks until the kernel completes it, there are no deadlines and no
background goroutines.

Errors coming from the kernel wrap the errno of the failing syscall, use
errors.Is with a unix.Errno, or Errno and StrError, to inspect them.

UDP echo built upon netlib is shown below:

	package main

	import (
		"log"

		"github.com/panjf2000/netlib"
	)

	func main() {
		s, err := netlib.CreateUDPEndpoint("127.0.0.1", 9000)
		if err != nil {
			log.Fatal(err)
		}
		defer s.Close()

		buf := make([]byte, 1500)
		for {
			n, from, err := s.Recv(buf)
			if err != nil {
				log.Fatal(err)
			}
			if _, err = s.Send(buf[:n], from); err != nil {
				log.Printf("echo to %v: %v", from, err)
			}
		}
	}
*/
package netlib
