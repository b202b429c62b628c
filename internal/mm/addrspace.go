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

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// ASFlags selects address-space creation options.
type ASFlags uint32

// ASKernel marks the address space as the (singleton) kernel address
// space: it is born with ASIDKernel instead of ASIDInvalid and is never
// linked into the inactive-with-ASID FIFO (spec §4.2).
const ASKernel ASFlags = 1

var asSeq uint64

// AddressSpace is a per-process virtual memory context (component C4):
// an area table, a page-table root, a CPU refcount and an ASID (data
// model §3, "Address space").
type AddressSpace struct {
	mu sync.Mutex // the per-AS lock; order: ASID-global -> AS -> area -> page-table (§5)

	seq uint64 // creation order, used as the ABBA-free lock-ordering key in AreaSteal

	areas  *AreaTable
	pt     PageTable
	frames FrameAllocator
	tlb    TLB

	asid         ASID
	refcount     int
	kernel       bool
	inactiveElem *list.Element // link in the allocator's inactive FIFO, nil if not linked
}

// NewAddressSpace creates an address space with an empty area table, the
// given page-table root and collaborators (spec §4.4 "create").
func NewAddressSpace(flags ASFlags, ptf PageTableFactory, frames FrameAllocator, tlb TLB) *AddressSpace {
	isKernel := flags&ASKernel != 0
	asid := ASIDInvalid
	if isKernel {
		asid = ASIDKernel
	}
	return &AddressSpace{
		seq:    atomic.AddUint64(&asSeq, 1),
		areas:  NewAreaTable(isKernel),
		pt:     ptf(0),
		frames: frames,
		tlb:    tlb,
		asid:   asid,
		kernel: isKernel,
	}
}

// Lock acquires the per-AS lock guarding the area table and page-table
// root.
func (as *AddressSpace) Lock() { as.mu.Lock() }

// Unlock releases the per-AS lock.
func (as *AddressSpace) Unlock() { as.mu.Unlock() }

// ASID returns the address space's current ASID.
func (as *AddressSpace) ASID() ASID { as.mu.Lock(); defer as.mu.Unlock(); return as.asid }

// RefCount returns the number of CPUs currently running threads in this
// address space.
func (as *AddressSpace) RefCount() int { as.mu.Lock(); defer as.mu.Unlock(); return as.refcount }

func ceilDiv(n, d int) int { return (n + d - 1) / d }

// createAreaLocked inserts a new area after a conflict check. Callers
// must hold as.mu.
func (as *AddressSpace) createAreaLocked(base, size int, flags Flags, state State) (*Area, error) {
	if base%PageSize != 0 {
		return nil, ErrPerm.wrapf("area base %#x is not page-aligned", base)
	}
	if size <= 0 {
		return nil, ErrPerm.wrapf("area size must be positive")
	}
	if !validFlags(flags) {
		return nil, ErrPerm.wrapf("area flags %v: EXEC and WRITE are mutually exclusive", flags)
	}
	pages := ceilDiv(size, PageSize)
	if as.areas.ConflictCheck(base, pages*PageSize, nil) {
		return nil, ErrAddrNotAvail.wrapf("area [%#x, %#x) conflicts", base, base+pages*PageSize)
	}
	area := newArea(base, pages, flags)
	area.state = state
	as.areas.Insert(area)
	return area, nil
}

// AreaCreate creates a new area of size bytes at base with the given
// flags (spec §4.4 "area_create").
func (as *AddressSpace) AreaCreate(base, size int, flags Flags) (*Area, error) {
	ipl := RaiseIPL()
	defer ipl.Restore()
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.createAreaLocked(base, size, flags, Normal)
}

// freePageLocked releases the frame mapped at va, if any, and removes
// its mapping. Callers must hold the owning area's lock.
func (as *AddressSpace) freePageLocked(va int) {
	as.pt.Lock()
	defer as.pt.Unlock()
	pte, ok := as.pt.MappingFind(va)
	if !ok || !pte.Present {
		panic("mm: used-range page has no present mapping")
	}
	as.frames.Free(pte.Frame)
	as.pt.MappingRemove(va)
}

// AreaResize changes the size of the area at addr (spec §4.4
// "area_resize"). Per the resolved Open Question (SPEC_FULL §5), the new
// page count is computed as ceil((addr-base+new_size)/PageSize): passing
// addr != area.Base() resizes the area's tail starting at addr, not
// "from base" — callers wanting the latter must pass addr ==
// area.Base().
func (as *AddressSpace) AreaResize(addr, newSize int) error {
	ipl := RaiseIPL()
	defer ipl.Restore()
	as.mu.Lock()
	defer as.mu.Unlock()

	area, ok := as.areas.Find(addr)
	if !ok {
		return ErrNoEnt
	}
	area.Lock()
	defer area.Unlock()

	if area.flags&Device != 0 {
		return ErrNotSup
	}

	newPages := ceilDiv((addr-area.base)+newSize, PageSize)
	if newPages == 0 {
		return ErrPerm
	}

	switch {
	case newPages < area.pages:
		boundaryPgn := area.base/PageSize + newPages
		oldEndPgn := area.base/PageSize + area.pages
		for _, r := range area.used.Runs() {
			p, c := r[0], r[1]
			end := p + c
			if end <= boundaryPgn {
				continue
			}
			freeFrom := p
			if freeFrom < boundaryPgn {
				freeFrom = boundaryPgn
			}
			for pg := freeFrom; pg < end; pg++ {
				as.freePageLocked(pg * PageSize)
			}
			area.used.Remove(p, c)
			if p < boundaryPgn {
				area.used.Insert(p, boundaryPgn-p)
			}
		}
		area.pages = newPages
		Shootdown(as.tlb, as.asid, boundaryPgn*PageSize, oldEndPgn-boundaryPgn)

	case newPages > area.pages:
		if as.areas.ConflictCheck(area.base, newPages*PageSize, area) {
			return ErrAddrNotAvail
		}
		area.pages = newPages
		// fault-in on first touch: no mappings created here.

	default:
		// no-op: same size.
	}
	return nil
}

// AreaDestroy destroys the area at addr (spec §4.4 "area_destroy").
func (as *AddressSpace) AreaDestroy(addr int) error {
	ipl := RaiseIPL()
	defer ipl.Restore()
	as.mu.Lock()
	defer as.mu.Unlock()

	area, ok := as.areas.Find(addr)
	if !ok {
		return ErrNoEnt
	}
	area.Lock()
	if area.flags&Device == 0 {
		for _, r := range area.used.Runs() {
			p, c := r[0], r[1]
			for pg := p; pg < p+c; pg++ {
				as.freePageLocked(pg * PageSize)
			}
		}
		area.used.Clear()
	}
	area.state = Partial
	pages := area.pages
	base := area.base
	area.Unlock()

	Shootdown(as.tlb, as.asid, base, pages)
	as.areas.Remove(base)
	return nil
}

// AreaChangeFlags changes the protection flags of the area at addr in
// place, issuing a TLB shootdown if the change restricts permissions.
// Supplemented from HelenOS as_area_change_flags (SPEC_FULL §3.4);
// dropped by the distillation but an ordinary sibling of AreaResize.
func (as *AddressSpace) AreaChangeFlags(addr int, newFlags Flags) error {
	if !validFlags(newFlags) {
		return ErrPerm
	}
	ipl := RaiseIPL()
	defer ipl.Restore()
	as.mu.Lock()
	defer as.mu.Unlock()

	area, ok := as.areas.Find(addr)
	if !ok {
		return ErrNoEnt
	}
	if area.flags&Device != 0 {
		return ErrNotSup
	}
	area.Lock()
	defer area.Unlock()

	restricting := (area.flags&Write != 0 && newFlags&Write == 0) ||
		(area.flags&Exec != 0 && newFlags&Exec == 0)
	area.flags = newFlags
	if restricting {
		Shootdown(as.tlb, as.asid, area.base, area.pages)
	}
	return nil
}

// AreaGetMapping translates va to its backing frame, if resident.
// Supplemented from HelenOS as_get_physical_mapping (SPEC_FULL §3.4).
func (as *AddressSpace) AreaGetMapping(va int) (Frame, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	area, ok := as.areas.Find(va)
	if !ok {
		return 0, false
	}
	area.Lock()
	defer area.Unlock()
	as.pt.Lock()
	defer as.pt.Unlock()
	pte, ok := as.pt.MappingFind(va)
	if !ok || !pte.Present {
		return 0, false
	}
	return pte.Frame, true
}

// Task is the minimal collaborator interface AreaSteal needs to reach a
// source task's address space (spec §4.4 "area_steal" step 1). Task
// lifecycle/scheduling bookkeeping is out of scope (spec §1); only this
// narrow accessor is modeled.
type Task interface {
	AddressSpace() *AddressSpace
}

// AreaSteal copies all mappings of the area at srcBase in srcTask's
// address space into a freshly-created area at dstBase in as, sharing
// the underlying frames (spec §4.4 "area_steal").
//
// Both address spaces are locked in a fixed order by creation sequence
// (lower seq first) on every call, resolving the Open Question about
// the source's inconsistent ordering (SPEC_FULL §5 item 1): there is no
// "which branch" to get right because there is only one ordering rule.
func (as *AddressSpace) AreaSteal(srcTask Task, srcBase, expectedSize, dstBase int) (*Area, error) {
	ipl := RaiseIPL()
	defer ipl.Restore()

	srcAS := srcTask.AddressSpace()
	srcAS.mu.Lock()
	srcArea, ok := srcAS.areas.Find(srcBase)
	if !ok {
		srcAS.mu.Unlock()
		return nil, ErrNoEnt
	}
	srcArea.Lock()
	size := srcArea.pages * PageSize
	flags := srcArea.flags
	srcArea.Unlock()
	srcAS.mu.Unlock()

	if size != expectedSize {
		return nil, ErrPerm
	}

	as.mu.Lock()
	dstArea, err := as.createAreaLocked(dstBase, size, flags, Partial)
	as.mu.Unlock()
	if err != nil {
		return nil, ErrNoMem
	}

	first, second := as, srcAS
	if srcAS.seq < as.seq {
		first, second = srcAS, as
	}
	first.mu.Lock()
	if second != first {
		second.mu.Lock()
	}

	pages := dstArea.pages
	basePgnDst := dstArea.base / PageSize
	for i := 0; i < pages; i++ {
		srcVA := srcArea.base + i*PageSize
		srcAS.pt.Lock()
		pte, ok := srcAS.pt.MappingFind(srcVA)
		srcAS.pt.Unlock()
		if !ok || !pte.Present {
			continue
		}
		if flags&Device == 0 {
			as.frames.RefAdd(pte.Frame)
		}
		dstVA := dstArea.base + i*PageSize
		as.pt.Lock()
		as.pt.MappingInsert(dstVA, pte.Frame, flags)
		as.pt.Unlock()
		dstArea.used.Insert(basePgnDst+i, 1)
	}

	if second != first {
		second.mu.Unlock()
	}
	first.mu.Unlock()

	dstArea.Lock()
	dstArea.state = Normal
	dstArea.Unlock()
	return dstArea, nil
}

// FaultResult is the discriminated outcome of PageFault (design note §9:
// "the fault handler returns a discriminated result {FAULT, OK, DEFER}").
type FaultResult int

// Fault outcomes.
const (
	FaultOK FaultResult = iota
	FaultErr
	FaultDefer
)

// CopySlot is the per-thread marker that a user-copy primitive is
// in flight; its Trampoline is the failover address the fault handler
// diverts to instead of signalling a true fault (design note §9).
// PageFaultHook is an explicit extension point for frame reuse on
// non-present mappings in the DEFER path (Open Question 3, SPEC_FULL
// §5 item 3) — left nil; no behavior depends on it yet.
type CopySlot struct {
	Active        bool
	Trampoline    uintptr
	PageFaultHook func()
}

// InterruptState is the minimal register-state view PageFault may
// rewrite to redirect execution to a CopySlot's trampoline.
type InterruptState struct {
	ReturnAddr uintptr
}

// PageFault resolves a page fault at virtual address va (spec §4.4
// "page_fault"). copy may be nil if the faulting context has no
// in-flight user-copy primitive.
func (as *AddressSpace) PageFault(va int, copy *CopySlot, istate *InterruptState) (FaultResult, error) {
	as.mu.Lock()
	area, ok := as.areas.Find(va)
	if !ok || area.State() == Partial {
		as.mu.Unlock()
		if copy != nil && copy.Active {
			copy.Active = false
			if istate != nil {
				istate.ReturnAddr = copy.Trampoline
			}
			return FaultDefer, nil
		}
		return FaultErr, ErrNoEnt
	}
	defer as.mu.Unlock()

	if area.flags&Device != 0 {
		return FaultErr, ErrNotSup
	}

	area.Lock()
	defer area.Unlock()

	as.pt.Lock()
	pte, exists := as.pt.MappingFind(va)
	if exists && pte.Present {
		as.pt.Unlock()
		return FaultOK, nil
	}

	frame, err := as.frames.Alloc(1)
	if err != nil {
		as.pt.Unlock()
		return FaultErr, ErrNoMem
	}
	if ierr := as.pt.MappingInsert(va, frame, area.flags); ierr != nil {
		as.pt.Unlock()
		as.frames.Free(frame)
		return FaultErr, ErrNoMem
	}
	as.pt.Unlock()

	area.used.Insert(va/PageSize, 1)
	return FaultOK, nil
}
