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

	"golang.org/x/sync/semaphore"
)

// ASID is a hardware address-space-identifier tag. The usable range is
// [0, N); ASIDInvalid and ASIDKernel are reserved sentinels (spec §3,
// "Address space").
type ASID int32

// Reserved ASID sentinels.
const (
	ASIDInvalid ASID = -2
	ASIDKernel  ASID = -1
)

// CPU is the per-CPU install surface the ASID allocator drives during a
// context switch (spec §4.2 steps 3 and 5). Architecture-specific
// install sequences live behind this interface, not in this package.
type CPU interface {
	InstallPageTable(pt PageTable)
	InstallASID(asid ASID)
}

// Allocator hands out a small, finite pool of ASIDs to a much larger
// population of address spaces, stealing the least-recently-inactive
// one when the pool is exhausted (component C2).
//
// Lock order: the allocator's mu (the "global ASID lock") is always
// acquired before any AddressSpace's per-AS lock (spec §5).
type Allocator struct {
	mu       sync.Mutex
	free     []ASID
	inactive *list.List // FIFO of *AddressSpace, front = least-recently-inactive
	tlb      TLB

	// slots mirrors len(free): acquiring a slot and popping the free
	// list always happen together under mu, so TryAcquire doubles as
	// the "is there a free ASID" branch instead of a bare length check.
	slots *semaphore.Weighted
}

// NewAllocator returns an allocator managing n ASIDs (0..n-1), using tlb
// to flush stale entries when an ASID is stolen.
func NewAllocator(n int, tlb TLB) *Allocator {
	free := make([]ASID, n)
	for i := range free {
		free[i] = ASID(i)
	}
	return &Allocator{
		free:     free,
		inactive: list.New(),
		tlb:      tlb,
		slots:    semaphore.NewWeighted(int64(n)),
	}
}

// Get returns a free ASID, or steals the least-recently-inactive one if
// none is free: the victim's AS is marked ASIDInvalid, the stale TLB
// entries tagged with its old ASID are flushed on all CPUs, and the
// ASID is returned for immediate reuse (spec §4.2).
func (a *Allocator) Get() ASID {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.slots.TryAcquire(1) {
		n := len(a.free)
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id
	}

	elem := a.inactive.Front()
	if elem == nil {
		panic("mm: asid pool exhausted with no inactive address space to steal from")
	}
	a.inactive.Remove(elem)
	victim := elem.Value.(*AddressSpace)
	victim.inactiveElem = nil
	stolen := victim.asid
	victim.asid = ASIDInvalid

	ShootdownASID(a.tlb, stolen)
	return stolen
}

// Switch implements the context-switch protocol of spec §4.2. old may be
// nil (switching in from no prior address space, e.g. at boot).
func (a *Allocator) Switch(cpu CPU, old, new *AddressSpace) {
	a.mu.Lock()
	if old != nil {
		old.refcount--
		if old.refcount == 0 && old.asid != ASIDKernel {
			if old.asid == ASIDInvalid {
				a.mu.Unlock()
				panic("mm: address space went inactive with an invalid asid")
			}
			old.inactiveElem = a.inactive.PushBack(old)
		}
	}

	needsASID := false
	new.refcount++
	if new.refcount == 1 && new.asid != ASIDKernel {
		if new.inactiveElem != nil {
			a.inactive.Remove(new.inactiveElem)
			new.inactiveElem = nil
		} else {
			needsASID = true
		}
	}
	a.mu.Unlock()

	cpu.InstallPageTable(new.pt)

	if needsASID {
		// The per-AS lock is never held across Get(), which itself
		// takes the global ASID lock: holding it here would invert
		// the lock order (spec §4.2 step 4, §5).
		asid := a.Get()
		lockActive(&new.mu)
		new.asid = asid
		new.mu.Unlock()
	}

	cpu.InstallASID(new.asid)
}
