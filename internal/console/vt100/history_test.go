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

package vt100

import "testing"

func rowWith(glyph rune) Row {
	return Row{Cells: []Cell{{Glyph: glyph}}}
}

func TestHistoryPushAndAt(t *testing.T) {
	h := NewHistory(3)
	h.Push(rowWith('a'))
	h.Push(rowWith('b'))
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	if row, ok := h.At(0); !ok || row.Cells[0].Glyph != 'a' {
		t.Errorf("At(0) = %+v, %v, want row 'a'", row, ok)
	}
	if row, ok := h.At(1); !ok || row.Cells[0].Glyph != 'b' {
		t.Errorf("At(1) = %+v, %v, want row 'b'", row, ok)
	}
}

func TestHistoryEvictsOldestWhenFull(t *testing.T) {
	h := NewHistory(2)
	h.Push(rowWith('a'))
	h.Push(rowWith('b'))
	h.Push(rowWith('c'))
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (capacity-bounded)", h.Len())
	}
	row, _ := h.At(0)
	if row.Cells[0].Glyph != 'b' {
		t.Errorf("oldest retained row = %q, want 'b' ('a' should have been evicted)", row.Cells[0].Glyph)
	}
}

func TestHistoryScrollClipsAtBothEnds(t *testing.T) {
	h := NewHistory(10)
	for _, r := range "abcde" {
		h.Push(rowWith(r))
	}
	if n := h.Scroll(-100); n != 0 {
		t.Errorf("Scroll(-100) from viewport 0 = %d, want 0 (already at the oldest row)", n)
	}
	if n := h.Scroll(100); n != 5 {
		t.Errorf("Scroll(100) = %d, want clipped to 5 (history length)", n)
	}
	if n := h.Scroll(100); n != 0 {
		t.Errorf("Scroll(100) again = %d, want 0 (already at the newest end)", n)
	}
}

func TestHistoryReflowNoOpSameCols(t *testing.T) {
	h := NewHistory(10)
	h.Push(rowWith('a'))
	h.Scroll(1)
	before := h.ViewportTop()
	h.Reflow(80, 80)
	if h.ViewportTop() != before {
		t.Errorf("Reflow with unchanged cols moved viewport from %d to %d", before, h.ViewportTop())
	}
}

func TestHistoryReflowScalesViewport(t *testing.T) {
	h := NewHistory(100)
	for i := 0; i < 40; i++ {
		h.Push(rowWith('x'))
	}
	h.Scroll(40)
	h.Reflow(80, 40) // columns halved -> twice as many rows per line
	if got := h.ViewportTop(); got != 80 {
		t.Errorf("ViewportTop() after halving cols = %d, want 80", got)
	}
}
