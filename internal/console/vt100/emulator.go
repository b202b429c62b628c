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

// KeyMod is a bitmask of modifier keys held during a keystroke.
type KeyMod uint8

const (
	ModShift KeyMod = 1 << iota
	ModCtrl
	ModAlt
)

// Callbacks is the byte-oriented interface an Emulator drives, grounded
// on remcons.c's remcons_vt_* hooks: Putchar/ControlPuts/Flush push
// rendered output toward the telnet client, Key/PosEvent report decoded
// client input, and Update/Refresh drive the owning session's repaint.
type Callbacks interface {
	Putchar(r rune)
	ControlPuts(seq string)
	Flush()
	Key(mods KeyMod, ch rune)
	PosEvent(col, row int, pressed bool)
	Update(col, row int, cells []Cell)
	Refresh()
}

// Emulator ties the active Grid, the History scrollback ring, and the
// session's capability flags together, per spec §4.7.
type Emulator struct {
	grid *Grid
	hist *History
	cb   Callbacks

	ctl bool // control-sequence capability
	rgb bool // RGB color advertisement capability

	// input-decode state for RcvdChar (input.go).
	rcvState    recvState
	mouseButton byte
	mouseX      byte
}

// NewEmulator builds an emulator over a cols x rows grid with the given
// scrollback depth. ctl/rgb mirror the session's capability-mode flags
// (spec §4.6 "capability mode"): with ctl disabled the emulator behaves
// as a 100x1 dumb terminal (ControlPuts becomes a no-op and Resize is
// pinned to 100x1).
func NewEmulator(cols, rows, historyLines int, ctl, rgb bool, cb Callbacks) *Emulator {
	if !ctl {
		cols, rows = 100, 1
	}
	return &Emulator{
		grid: NewGrid(cols, rows),
		hist: NewHistory(historyLines),
		cb:   cb,
		ctl:  ctl,
		rgb:  rgb,
	}
}

func (e *Emulator) Grid() *Grid       { return e.grid }
func (e *Emulator) History() *History { return e.hist }
func (e *Emulator) ControlCapable() bool { return e.ctl }
func (e *Emulator) RGBCapable() bool     { return e.rgb }

// downgrade clears RGB color fields from a copy of cells when the RGB
// capability is disabled, per §4.6 "with RGB disabled, only indexed
// colors are advertised".
func (e *Emulator) downgrade(cells []Cell) []Cell {
	if e.rgb {
		return cells
	}
	out := make([]Cell, len(cells))
	for i, c := range cells {
		c.HasRGB = false
		c.FgRGB, c.BgRGB = RGB{}, RGB{}
		out[i] = c
	}
	return out
}

// Putchar is the write path (spec §4.7): write one glyph at the
// cursor, advance it, wrap/evict as the grid dictates, and fire Update
// for the affected cells (or Refresh if a row was scrolled off).
func (e *Emulator) Putchar(r rune) {
	res := e.grid.putchar(r)
	if res.evictedRow != nil {
		e.hist.Push(*res.evictedRow)
		e.cb.Refresh()
		return
	}
	row := e.grid.Row(res.wroteRow)
	cells := row.Cells[res.wroteCol : res.wroteCol+res.wroteWidth]
	e.cb.Update(res.wroteCol, res.wroteRow, e.downgrade(cells))
}

// ControlPuts forwards a raw control sequence to the client, suppressed
// entirely when the control capability is disabled.
func (e *Emulator) ControlPuts(seq string) {
	if !e.ctl {
		return
	}
	e.cb.ControlPuts(seq)
}

func (e *Emulator) Flush() { e.cb.Flush() }

// Key decodes one client keystroke into a callback invocation. The
// session (session.go, via events.go's PushKey) is responsible for
// turning this into a press+release pair of cons-events, per §4.6.
func (e *Emulator) Key(mods KeyMod, ch rune) {
	e.cb.Key(mods, ch)
}

// PosEvent reports a decoded mouse report from the client.
func (e *Emulator) PosEvent(col, row int, pressed bool) {
	e.cb.PosEvent(col, row, pressed)
}

// Clear blanks the active grid; a no-op on history.
func (e *Emulator) Clear() {
	e.grid.Clear()
	e.ControlPuts("\x1b[2J\x1b[H")
}

// Resize changes the active grid's dimensions and reflows history, per
// §4.7's resize/reflow contract. With the control capability disabled
// the emulator is pinned at 100x1 and Resize is a no-op, matching
// §4.6's dumb-terminal behavior.
func (e *Emulator) Resize(cols, rows int) {
	if !e.ctl {
		return
	}
	oldCols := e.grid.Cols()
	overflow := e.grid.Resize(cols, rows)
	for _, row := range overflow {
		e.hist.Push(row)
	}
	e.hist.Reflow(oldCols, cols)
	e.cb.Refresh()
}

// Scroll moves the scrollback viewport by delta rows and returns the
// number of rows actually scrolled (clipped at both ends), then
// requests a refresh if anything moved.
func (e *Emulator) Scroll(delta int) int {
	n := e.hist.Scroll(delta)
	if n != 0 {
		e.cb.Refresh()
	}
	return n
}
