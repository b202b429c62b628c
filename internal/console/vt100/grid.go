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

// Package vt100 implements a VT100-class cell-grid terminal emulator with
// scrollback history, grounded on HelenOS's termui/history libraries:
// an active cols x rows grid of cells, wide-glyph handling on the write
// path, and a two-segment ring buffer for evicted rows.
package vt100

// Attr is a bitmask of cell rendering attributes.
type Attr uint8

const (
	AttrBold Attr = 1 << iota
	AttrUnderline
	AttrInverse
	AttrBlink
)

// RGB is a 24-bit color; used only when an Emulator has the RGB
// capability enabled, per spec §4.6 "capability mode".
type RGB struct {
	R, G, B uint8
}

// Cell is one character position in the active grid or in scrollback.
// Both an indexed and an RGB color are kept side by side so a session
// can downgrade RGB to indexed when the RGB capability is disabled
// without re-rendering from the application.
type Cell struct {
	Glyph    rune
	FgIndex  uint8
	BgIndex  uint8
	FgRGB    RGB
	BgRGB    RGB
	Attrs    Attr
	Padding  bool // second+ cell of a wide glyph
	HasRGB   bool
}

// Row is one line of the active grid plus its overflow flag: Overflow
// is set when a putchar wrapped mid-row, and is used to stitch a
// multi-row logical line back together when the row is evicted into
// history (see termui_put_glyph / _termui_evict_row).
type Row struct {
	Cells    []Cell
	Overflow bool
}

func blankCell() Cell {
	return Cell{Glyph: ' '}
}

func newRow(cols int) Row {
	r := Row{Cells: make([]Cell, cols)}
	for i := range r.Cells {
		r.Cells[i] = blankCell()
	}
	return r
}

// Grid is the active cols x rows screen buffer with a logical cursor.
type Grid struct {
	cols, rows int
	rows_      []Row
	curCol     int
	curRow     int
}

// NewGrid allocates a blank cols x rows grid.
func NewGrid(cols, rows int) *Grid {
	g := &Grid{cols: cols, rows: rows}
	g.rows_ = make([]Row, rows)
	for i := range g.rows_ {
		g.rows_[i] = newRow(cols)
	}
	return g
}

func (g *Grid) Cols() int { return g.cols }
func (g *Grid) Rows() int { return g.rows }

func (g *Grid) CursorCol() int { return g.curCol }
func (g *Grid) CursorRow() int { return g.curRow }

func (g *Grid) Row(i int) *Row { return &g.rows_[i] }

func (g *Grid) SetCursor(col, row int) {
	g.curCol = col
	g.curRow = row
}

// glyphWidth is a simplified East-Asian-width classifier: glyphs in the
// common CJK wide ranges occupy two cells, everything else occupies one.
// A full Unicode width table is out of scope; this matches the set of
// widths termui.c's glyph_width actually has to handle for the emulator
// to exercise wide-glyph padding at all.
func glyphWidth(r rune) int {
	switch {
	case r >= 0x1100 && r <= 0x115F,
		r >= 0x2E80 && r <= 0xA4CF,
		r >= 0xAC00 && r <= 0xD7A3,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0xFF00 && r <= 0xFF60,
		r >= 0x20000 && r <= 0x3FFFD:
		return 2
	default:
		return 1
	}
}

// putResult reports what a Putchar call did to the grid, so the
// Emulator can decide whether a row was evicted into history and what
// update/refresh callback to fire.
type putResult struct {
	evictedRow  *Row // nil unless advancing past the last row evicted one
	wroteCol    int
	wroteRow    int
	wroteWidth  int
}

// putchar writes one glyph at the cursor, advancing it. It implements
// spec §4.7's write path: wide glyphs that would split the row edge are
// deferred to the next row with the remainder padded; advancing past
// the right edge sets Overflow and wraps; advancing past the last row
// evicts the top row and shifts the rest up (the caller is responsible
// for pushing the evicted row into history).
func (g *Grid) putchar(r rune) putResult {
	w := glyphWidth(r)
	var evicted *Row
	if g.curCol+w > g.cols {
		for i := g.curCol; i < g.cols; i++ {
			g.rows_[g.curRow].Cells[i] = Cell{Padding: true}
		}
		g.rows_[g.curRow].Overflow = true
		evicted = g.advanceRow()
	}

	row := g.curRow
	col := g.curCol
	cell := Cell{Glyph: r}
	g.rows_[row].Cells[col] = cell
	for i := 1; i < w; i++ {
		g.rows_[row].Cells[col+i] = Cell{Padding: true}
	}
	g.curCol += w

	if g.curCol >= g.cols {
		g.rows_[row].Overflow = true
		if ev := g.advanceRow(); ev != nil {
			evicted = ev
		}
	}

	return putResult{evictedRow: evicted, wroteCol: col, wroteRow: row, wroteWidth: w}
}

// advanceRow moves the cursor to the start of the next row, evicting
// the current top row of the grid (and shifting every row up by one)
// when the cursor was already on the last row. The evicted row is
// returned so the caller can push it into scrollback history.
func (g *Grid) advanceRow() *Row {
	g.curCol = 0
	if g.curRow+1 < g.rows {
		g.curRow++
		return nil
	}

	evicted := g.rows_[0]
	copy(g.rows_, g.rows_[1:])
	g.rows_[g.rows-1] = newRow(g.cols)
	return &evicted
}

// Clear blanks every cell and resets the cursor to the origin.
func (g *Grid) Clear() {
	for i := range g.rows_ {
		g.rows_[i] = newRow(g.cols)
	}
	g.curCol, g.curRow = 0, 0
}

// Resize changes the grid's dimensions in place. Rows beyond the new
// row count are returned to the caller (top, oldest row first) so the
// Emulator can push them into history before truncating, matching
// §4.7's resize/reflow contract; rows within the new bounds are
// preserved, extra columns are blank-padded, and an excess column
// width truncates trailing cells.
func (g *Grid) Resize(cols, rows int) []Row {
	var overflow []Row
	newRows := make([]Row, rows)
	for i := 0; i < rows; i++ {
		newRows[i] = newRow(cols)
	}

	oldRows := g.rows_
	if rows < len(oldRows) {
		overflow = append(overflow, oldRows[:len(oldRows)-rows]...)
		oldRows = oldRows[len(oldRows)-rows:]
	}

	destStart := rows - len(oldRows)
	for i, r := range oldRows {
		n := cols
		if n > len(r.Cells) {
			n = len(r.Cells)
		}
		copy(newRows[destStart+i].Cells, r.Cells[:n])
		newRows[destStart+i].Overflow = r.Overflow
	}

	g.cols, g.rows = cols, rows
	g.rows_ = newRows
	if g.curCol > cols {
		g.curCol = cols
	}
	if g.curRow > rows-1 {
		g.curRow = rows - 1
	}
	return overflow
}
