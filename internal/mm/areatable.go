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

import "github.com/google/btree"

// KernelBase is the start of the reserved kernel half of the address
// space, taken as the upper half of the non-negative int range.
// ConflictCheck rejects any area overlapping [KernelBase, 2^63) unless
// shadowing is enabled (spec §4.3).
const KernelBase = 1 << 62

const nullPageEnd = PageSize

type areaEntry struct {
	base int
	area *Area
}

func areaLess(a, b areaEntry) bool { return a.base < b.base }

// AreaTable is the per-address-space ordered index of areas keyed by
// base virtual address (component C3).
type AreaTable struct {
	t             *btree.BTreeG[areaEntry]
	shadowKernel  bool
}

// NewAreaTable returns an empty area table. shadowKernel, when true,
// allows areas to overlap the reserved kernel half (used by kernel
// address spaces).
func NewAreaTable(shadowKernel bool) *AreaTable {
	return &AreaTable{t: btree.NewG(32, areaLess), shadowKernel: shadowKernel}
}

func (t *AreaTable) predecessor(key int) (areaEntry, bool) {
	var found areaEntry
	var ok bool
	t.t.DescendLessOrEqual(areaEntry{base: key}, func(item areaEntry) bool {
		found, ok = item, true
		return false
	})
	return found, ok
}

func (t *AreaTable) successor(key int) (areaEntry, bool) {
	var found areaEntry
	var ok bool
	t.t.AscendGreaterOrEqual(areaEntry{base: key + 1}, func(item areaEntry) bool {
		found, ok = item, true
		return false
	})
	return found, ok
}

// Find returns the area containing va, or (nil, false). Spec §4.3: find
// the greatest base <= va; if base+pages*PageSize > va, that is the
// area; otherwise there is none. Only the one left neighbour is
// examined.
func (t *AreaTable) Find(va int) (*Area, bool) {
	e, ok := t.predecessor(va)
	if !ok {
		return nil, false
	}
	if e.base+e.area.pages*PageSize > va {
		return e.area, true
	}
	return nil, false
}

// ConflictCheck returns true iff inserting or growing an area to
// [va, va+size) would overlap the null page, overlap any existing area
// other than avoid, or overlap the kernel half when shadowing is
// disabled (spec §4.3).
func (t *AreaTable) ConflictCheck(va, size int, avoid *Area) bool {
	if va < nullPageEnd {
		return true
	}
	end := va + size
	if !t.shadowKernel && end > KernelBase {
		return true
	}

	// Direct hit: an existing area starting inside [va, end).
	conflict := false
	t.t.AscendGreaterOrEqual(areaEntry{base: va}, func(item areaEntry) bool {
		if item.base >= end {
			return false
		}
		if item.area != avoid {
			conflict = true
			return false
		}
		return true
	})
	if conflict {
		return true
	}

	// Left neighbour: the area whose base is <= va may still extend
	// into [va, end).
	if l, ok := t.predecessor(va); ok && l.area != avoid {
		if l.base+l.area.pages*PageSize > va {
			return true
		}
	}
	return false
}

// Insert installs area in the table keyed by its base address.
func (t *AreaTable) Insert(area *Area) {
	t.t.ReplaceOrInsert(areaEntry{base: area.base, area: area})
}

// Remove unlinks the area at base from the table.
func (t *AreaTable) Remove(base int) {
	t.t.Delete(areaEntry{base: base})
}

// Len returns the number of areas in the table.
func (t *AreaTable) Len() int { return t.t.Len() }

// Areas returns all areas in ascending order of base address. Intended
// for tests and introspection only.
func (t *AreaTable) Areas() []*Area {
	out := make([]*Area, 0, t.t.Len())
	t.t.Ascend(func(item areaEntry) bool {
		out = append(out, item.area)
		return true
	})
	return out
}
