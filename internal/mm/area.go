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

import "sync"

// PageSize is the hardware page size assumed throughout the core. The
// real page-table layout is architecture-specific and out of scope
// (spec §1); this constant only drives the area/used-range arithmetic.
const PageSize = 4096

// Flags is the permission/kind bitmask for an area.
type Flags uint32

// Area permission and kind flags.
const (
	Read Flags = 1 << iota
	Write
	Exec
	Device
)

// State is the lifecycle state of an area. Partial marks an area that is
// the destination of an in-progress steal (§4.4 area_steal); the fault
// handler treats it as "no mapping yet" and defers to the owner instead
// of racing to install a fresh page.
type State int

// Area lifecycle states.
const (
	Normal State = iota
	Partial
)

// Area is a contiguous virtual range within an address space with
// uniform flags (component, data model §3 "Area").
type Area struct {
	mu sync.Mutex

	base  int
	pages int
	flags Flags
	state State
	used  *UsedRangeSet
}

func newArea(base, pages int, flags Flags) *Area {
	return &Area{
		base:  base,
		pages: pages,
		flags: flags,
		state: Normal,
		used:  NewUsedRangeSet(),
	}
}

// Base returns the area's page-aligned base virtual address.
func (a *Area) Base() int { return a.base }

// Pages returns the area's size in pages.
func (a *Area) Pages() int { return a.pages }

// Size returns the area's size in bytes.
func (a *Area) Size() int { return a.pages * PageSize }

// Flags returns the area's permission/kind flags.
func (a *Area) Flags() Flags { return a.flags }

// State returns the area's lifecycle state.
func (a *Area) State() State { return a.state }

// Used returns the area's used-range set. Callers must hold the area
// lock (Lock/Unlock) before mutating it.
func (a *Area) Used() *UsedRangeSet { return a.used }

// Lock acquires the per-area mutex. Lock order: ASID-global -> AS ->
// area -> page-table (spec §5).
func (a *Area) Lock() { a.mu.Lock() }

// Unlock releases the per-area mutex.
func (a *Area) Unlock() { a.mu.Unlock() }

func validFlags(f Flags) bool {
	if f&Exec != 0 && f&Write != 0 {
		return false
	}
	return true
}
