// Copyright 2018 The gVisor Authors.
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

package mm

import "fmt"

// Errno is the kernel core's error taxonomy. Every rejection from an
// address-space or area operation is one of these values; no operation
// ever mutates state before deciding which Errno (if any) applies.
type Errno int

// Error taxonomy surfaced to callers, per spec.
const (
	// ErrNone indicates success; operations return nil, not ErrNone.
	ErrNone Errno = iota
	ErrNoEnt
	ErrNotSup
	ErrPerm
	ErrAddrNotAvail
	ErrNoMem
	ErrExists
)

func (e Errno) Error() string {
	switch e {
	case ErrNoEnt:
		return "no such entity"
	case ErrNotSup:
		return "operation not supported"
	case ErrPerm:
		return "operation not permitted"
	case ErrAddrNotAvail:
		return "address range not available"
	case ErrNoMem:
		return "out of memory"
	case ErrExists:
		return "already exists"
	default:
		return "unknown error"
	}
}

// wrapf attaches context to an Errno while preserving errors.Is(err, e).
func (e Errno) wrapf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}
