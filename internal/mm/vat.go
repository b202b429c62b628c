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

// Frame is a physical frame number. The frame allocator and page-table
// layout are architecture-specific and explicitly out of scope (spec
// §1); the core only ever holds opaque Frame values handed to it by the
// VAT collaborator.
type Frame uintptr

// PTE is the core's view of a page-table entry: enough to decide
// whether a mapping exists and what frame/flags it carries.
type PTE struct {
	Frame   Frame
	Flags   Flags
	Present bool
}

// PageTable is the VAT (virtual-address-translation) collaborator
// interface consumed by the address-space core (spec §6). A concrete
// implementation owns one address space's page-table root; the root
// itself is opaque to the core (data model §3, "Address space").
type PageTable interface {
	// Lock acquires the page-table lock (lock order: ... -> area ->
	// page-table, spec §5).
	Lock()
	Unlock()

	// MappingInsert installs a mapping for va to frame with the given
	// flags, allocating any intermediate page-table levels as needed.
	MappingInsert(va int, frame Frame, flags Flags) error

	// MappingFind returns the current PTE for va, if a page-table leaf
	// exists for it (regardless of whether it is Present).
	MappingFind(va int) (PTE, bool)

	// MappingRemove clears any mapping for va. It is a no-op if none
	// exists.
	MappingRemove(va int)
}

// FrameAllocator is the frame/physical-memory collaborator interface
// consumed by the address-space core (spec §6).
type FrameAllocator interface {
	// Alloc returns n contiguous zeroed frames, or an error if none are
	// available.
	Alloc(n int) (Frame, error)

	// Free releases a frame back to the allocator.
	Free(f Frame)

	// RefAdd increments a frame's reference count, for pages shared by
	// more than one mapping (area_steal, COW).
	RefAdd(f Frame)
}

// PageTableFactory creates a fresh page-table root for a new address
// space (VAT's page_table_create, spec §6).
type PageTableFactory func(flags Flags) PageTable
