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

// fakePageTable is an in-memory VAT stand-in for tests: a plain map from
// va to PTE, guarded by its own lock.
type fakePageTable struct {
	mu sync.Mutex
	m  map[int]PTE
}

func newFakePageTable(Flags) PageTable {
	return &fakePageTable{m: make(map[int]PTE)}
}

func (p *fakePageTable) Lock()   { p.mu.Lock() }
func (p *fakePageTable) Unlock() { p.mu.Unlock() }

func (p *fakePageTable) MappingInsert(va int, frame Frame, flags Flags) error {
	p.m[va] = PTE{Frame: frame, Flags: flags, Present: true}
	return nil
}

func (p *fakePageTable) MappingFind(va int) (PTE, bool) {
	pte, ok := p.m[va]
	return pte, ok
}

func (p *fakePageTable) MappingRemove(va int) {
	delete(p.m, va)
}

// fakeFrameAllocator hands out sequential frame numbers and tracks
// reference counts so tests can assert on steal/free behavior.
type fakeFrameAllocator struct {
	mu     sync.Mutex
	next   Frame
	refs   map[Frame]int32
	freed  []Frame
	failOn Frame // Alloc fails once next == failOn, if nonzero
}

func newFakeFrameAllocator() *fakeFrameAllocator {
	return &fakeFrameAllocator{next: 1, refs: make(map[Frame]int32)}
}

func (f *fakeFrameAllocator) Alloc(n int) (Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != 0 && f.next >= f.failOn {
		return 0, ErrNoMem
	}
	fr := f.next
	f.next += Frame(n)
	f.refs[fr] = 1
	return fr, nil
}

func (f *fakeFrameAllocator) Free(fr Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[fr]--
	if f.refs[fr] <= 0 {
		delete(f.refs, fr)
		f.freed = append(f.freed, fr)
	}
}

func (f *fakeFrameAllocator) RefAdd(fr Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[fr]++
}

func (f *fakeFrameAllocator) refCount(fr Frame) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[fr]
}

// fakeCPU records the installs the ASID allocator drives during Switch.
type fakeCPU struct {
	mu        sync.Mutex
	installed []PageTable
	asids     []ASID
}

func (c *fakeCPU) InstallPageTable(pt PageTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installed = append(c.installed, pt)
}

func (c *fakeCPU) InstallASID(asid ASID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asids = append(c.asids, asid)
}

func (c *fakeCPU) lastASID() ASID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asids[len(c.asids)-1]
}

// fakeTask adapts a bare *AddressSpace to the Task collaborator
// interface for AreaSteal tests.
type fakeTask struct{ as *AddressSpace }

func (t fakeTask) AddressSpace() *AddressSpace { return t.as }
