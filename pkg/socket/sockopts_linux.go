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

package socket

import (
	"os"

	"golang.org/x/sys/unix"
)

// SetBindToDevice pins an IPv4 socket to the interface ifname, an empty name
// removes the binding. The kernel silently truncates names that do not fit
// in IFNAMSIZ, so those are refused with EINVAL before reaching it.
func SetBindToDevice(fd int, ifname string) error {
	if len(ifname) >= unix.IFNAMSIZ {
		return os.NewSyscallError("setsockopt", unix.EINVAL)
	}
	return os.NewSyscallError("setsockopt", unix.BindToDevice(fd, ifname))
}
