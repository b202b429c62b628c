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

// Package mm implements the address-space management core: per-process
// areas, their used-page bookkeeping, ASID assignment and TLB shootdown
// coordination.
package mm

import (
	"github.com/google/btree"
)

// run is a single resident interval: pages [Page, Page+Count) are
// resident. Runs in a UsedRangeSet are sorted by Page and are never
// adjacent (Page_i+Count_i < Page_{i+1}).
type run struct {
	Page  int
	Count int
}

func (r run) end() int { return r.Page + r.Count }

func runLess(a, b run) bool { return a.Page < b.Page }

// UsedRangeSet is the ordered run-length set of resident pages inside a
// single area (component C1). It is not safe for concurrent use; callers
// hold the owning area's lock.
type UsedRangeSet struct {
	t *btree.BTreeG[run]
}

// NewUsedRangeSet returns an empty used-range set.
func NewUsedRangeSet() *UsedRangeSet {
	return &UsedRangeSet{t: btree.NewG(32, runLess)}
}

// predecessor returns the run with the greatest Page strictly less than
// key, if any.
func (s *UsedRangeSet) predecessor(key int) (run, bool) {
	var found run
	var ok bool
	if key <= 0 {
		return run{}, false
	}
	s.t.DescendLessOrEqual(run{Page: key - 1}, func(item run) bool {
		found, ok = item, true
		return false
	})
	return found, ok
}

// successor returns the run with the smallest Page strictly greater than
// key, if any.
func (s *UsedRangeSet) successor(key int) (run, bool) {
	var found run
	var ok bool
	s.t.AscendGreaterOrEqual(run{Page: key + 1}, func(item run) bool {
		found, ok = item, true
		return false
	})
	return found, ok
}

// Insert records pages [p, p+c) as resident, merging with adjacent runs.
// It returns false (and mutates nothing) if the interval overlaps an
// existing run.
func (s *UsedRangeSet) Insert(p, c int) bool {
	if c <= 0 {
		return false
	}
	end := p + c

	if s.t.Has(run{Page: p}) {
		return false // overlaps a run starting at p
	}
	l, hasL := s.predecessor(p)
	if hasL && l.end() > p {
		return false // overlaps left neighbour
	}
	r, hasR := s.successor(p)
	if hasR && end > r.Page {
		return false // overlaps right neighbour
	}

	switch {
	case hasL && l.end() == p && hasR && r.Page == end:
		// merge L and R through the new interval.
		s.t.Delete(r)
		l.Count += c + r.Count
		s.t.ReplaceOrInsert(l)
	case hasL && l.end() == p:
		l.Count += c
		s.t.ReplaceOrInsert(l)
	case hasR && r.Page == end:
		s.t.Delete(r)
		r.Page = p
		r.Count += c
		s.t.ReplaceOrInsert(r)
	default:
		s.t.ReplaceOrInsert(run{Page: p, Count: c})
	}
	return true
}

// containing returns the run whose [Page, Page+Count) contains key, if
// any.
func (s *UsedRangeSet) containing(key int) (run, bool) {
	var found run
	var ok bool
	s.t.DescendLessOrEqual(run{Page: key}, func(item run) bool {
		if item.Page <= key && key < item.end() {
			found, ok = item, true
		}
		return false
	})
	return found, ok
}

// Remove clears pages [p, p+c) from the resident set, splitting or
// shrinking the containing run as needed. It returns false (and mutates
// nothing) if no single run contains the whole interval.
func (s *UsedRangeSet) Remove(p, c int) bool {
	if c <= 0 {
		return false
	}
	b, ok := s.containing(p)
	if !ok {
		return false
	}
	n := b.Count
	if c > b.end()-p {
		return false
	}

	switch {
	case p == b.Page && c == n:
		s.t.Delete(b)
	case p == b.Page:
		s.t.Delete(b)
		b.Page += c
		b.Count -= c
		s.t.ReplaceOrInsert(b)
	case p+c == b.end():
		b.Count -= c
		s.t.ReplaceOrInsert(b)
	default:
		upper := run{Page: p + c, Count: b.end() - (p + c)}
		b.Count = p - b.Page
		s.t.ReplaceOrInsert(b)
		s.t.ReplaceOrInsert(upper)
	}
	return true
}

// Len returns the number of disjoint runs currently tracked.
func (s *UsedRangeSet) Len() int { return s.t.Len() }

// Runs returns the runs in ascending order of page number, as (page,
// count) pairs. Intended for tests and introspection only.
func (s *UsedRangeSet) Runs() [][2]int {
	out := make([][2]int, 0, s.t.Len())
	s.t.Ascend(func(item run) bool {
		out = append(out, [2]int{item.Page, item.Count})
		return true
	})
	return out
}

// Clear empties the set.
func (s *UsedRangeSet) Clear() {
	s.t.Clear(false)
}

// descendFrom walks runs with Page <= key in descending order, invoking
// fn until it returns false.
func (s *UsedRangeSet) descendFrom(key int, fn func(run) bool) {
	s.t.DescendLessOrEqual(run{Page: key}, fn)
}

// ascendFrom walks runs with Page >= key in ascending order, invoking fn
// until it returns false.
func (s *UsedRangeSet) ascendFrom(key int, fn func(run) bool) {
	s.t.AscendGreaterOrEqual(run{Page: key}, fn)
}
