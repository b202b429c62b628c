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

// ShootdownKind distinguishes the two collective invalidation protocols
// the core issues (spec §4.5).
type ShootdownKind int

// Shootdown kinds.
const (
	// InvlPages invalidates a page range within one address space.
	InvlPages ShootdownKind = iota
	// InvlASID flushes every TLB entry tagged with a stolen ASID.
	InvlASID
)

// TLB is the cross-CPU shootdown collaborator interface consumed by the
// address-space and ASID cores (spec §4.5, §6). A round is always the
// three-step collective: ShootdownStart, a local invalidate, then
// ShootdownFinalize.
type TLB interface {
	// ShootdownStart broadcasts a shootdown request and blocks until
	// every other CPU has acknowledged and paused.
	ShootdownStart(kind ShootdownKind, asid ASID, base, pages int)

	// InvalidatePages performs the local invalidation for InvlPages
	// rounds.
	InvalidatePages(asid ASID, base, pages int)

	// InvalidateASID performs the local invalidation for InvlASID
	// rounds.
	InvalidateASID(asid ASID)

	// ShootdownFinalize releases the paused remote CPUs.
	ShootdownFinalize()
}

// Shootdown runs the full three-step collective for a page-range
// invalidation. It is a no-op for zero-length ranges, matching the
// area_resize/area_destroy call sites that may compute an empty range.
func Shootdown(t TLB, asid ASID, base, pages int) {
	if t == nil || pages == 0 {
		return
	}
	t.ShootdownStart(InvlPages, asid, base, pages)
	t.InvalidatePages(asid, base, pages)
	t.ShootdownFinalize()
}

// ShootdownASID runs the full three-step collective for an ASID-wide
// flush, used when C2 steals an ASID from an inactive address space.
func ShootdownASID(t TLB, asid ASID) {
	if t == nil {
		return
	}
	t.ShootdownStart(InvlASID, asid, 0, 0)
	t.InvalidateASID(asid)
	t.ShootdownFinalize()
}

// SoftwareTLB is a software model of the shootdown protocol: it has no
// real remote CPUs to pause, but serializes rounds and records an
// invalidation log, which is enough to drive the core's synchronous
// cost model (spec §5) and to assert shootdown coverage in tests.
type SoftwareTLB struct {
	mu  sync.Mutex
	log []Invalidation
}

// Invalidation records one completed shootdown round.
type Invalidation struct {
	Kind  ShootdownKind
	ASID  ASID
	Base  int
	Pages int
}

// NewSoftwareTLB returns an empty software TLB model.
func NewSoftwareTLB() *SoftwareTLB { return &SoftwareTLB{} }

// ShootdownStart implements TLB.
func (s *SoftwareTLB) ShootdownStart(kind ShootdownKind, asid ASID, base, pages int) {
	s.mu.Lock()
}

// InvalidatePages implements TLB.
func (s *SoftwareTLB) InvalidatePages(asid ASID, base, pages int) {
	s.log = append(s.log, Invalidation{Kind: InvlPages, ASID: asid, Base: base, Pages: pages})
}

// InvalidateASID implements TLB.
func (s *SoftwareTLB) InvalidateASID(asid ASID) {
	s.log = append(s.log, Invalidation{Kind: InvlASID, ASID: asid})
}

// ShootdownFinalize implements TLB.
func (s *SoftwareTLB) ShootdownFinalize() {
	s.mu.Unlock()
}

// Log returns the invalidation history, in issue order. Intended for
// tests.
func (s *SoftwareTLB) Log() []Invalidation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invalidation, len(s.log))
	copy(out, s.log)
	return out
}
