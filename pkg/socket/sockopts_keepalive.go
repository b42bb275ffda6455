// Copyright (c) 2021 The Gnet Authors. All rights reserved.
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

//go:build darwin || dragonfly || freebsd || linux || netbsd

package socket

import (
	"os"

	"golang.org/x/sys/unix"
)

// SetKeepAlivePeriod turns on SO_KEEPALIVE for a blocking TCP socket and makes
// the kernel probe an idle peer every secs seconds. Accepted connections do not
// inherit these options on every platform, so netlib applies them again after
// each accept.
func SetKeepAlivePeriod(fd, secs int) error {
	if secs <= 0 {
		return os.NewSyscallError("setsockopt", unix.EINVAL)
	}
	for _, opt := range [...]struct{ level, name, value int }{
		{unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1},
		{unix.IPPROTO_TCP, tcpKeepIdle, secs},
		{unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs},
	} {
		if err := unix.SetsockoptInt(fd, opt.level, opt.name, opt.value); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
	}
	return nil
}
