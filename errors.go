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
	"golang.org/x/sys/unix"

	errorx "github.com/panjf2000/netlib/pkg/errors"
)

// StrError returns the platform's message for the OS error number code.
func StrError(code int) string {
	return unix.Errno(code).Error()
}

// Errno returns the OS error number carried by an error returned from this
// package, false if err did not originate from the OS.
func Errno(err error) (int, bool) {
	errno, ok := errorx.Errno(err)
	return int(errno), ok
}
