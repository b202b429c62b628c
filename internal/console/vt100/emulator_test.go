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

// recordingCallbacks is a test double for Callbacks that records every
// invocation instead of talking to a real telnet connection.
type recordingCallbacks struct {
	chars       []rune
	controls    []string
	flushes     int
	keys        []rune
	posEvents   int
	updates     int
	refreshes   int
	lastUpdate  []Cell
}

func (r *recordingCallbacks) Putchar(c rune)          { r.chars = append(r.chars, c) }
func (r *recordingCallbacks) ControlPuts(s string)    { r.controls = append(r.controls, s) }
func (r *recordingCallbacks) Flush()                  { r.flushes++ }
func (r *recordingCallbacks) Key(_ KeyMod, ch rune)   { r.keys = append(r.keys, ch) }
func (r *recordingCallbacks) PosEvent(_, _ int, _ bool) { r.posEvents++ }
func (r *recordingCallbacks) Update(_, _ int, cells []Cell) {
	r.updates++
	r.lastUpdate = cells
}
func (r *recordingCallbacks) Refresh() { r.refreshes++ }

func TestEmulatorPutcharFiresUpdate(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(10, 5, 100, true, true, cb)
	e.Putchar('a')
	if cb.updates != 1 {
		t.Fatalf("updates = %d, want 1", cb.updates)
	}
	if len(cb.lastUpdate) != 1 || cb.lastUpdate[0].Glyph != 'a' {
		t.Errorf("last update cells = %+v, want single 'a' cell", cb.lastUpdate)
	}
}

func TestEmulatorEvictionFiresRefreshNotUpdate(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(2, 2, 100, true, true, cb)
	for _, r := range "abcd" {
		e.Putchar(r)
	}
	if cb.refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1 (the 4th char evicts row 0)", cb.refreshes)
	}
	if e.History().Len() != 1 {
		t.Errorf("history length = %d, want 1", e.History().Len())
	}
}

func TestEmulatorControlPutsSuppressedWithoutCtl(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(80, 24, 100, false, true, cb)
	e.ControlPuts("\x1b[2J")
	if len(cb.controls) != 0 {
		t.Error("ControlPuts should be suppressed when the control capability is disabled")
	}
}

func TestEmulatorNoCtlPinsDumbTerminalSize(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(80, 24, 100, false, true, cb)
	if e.Grid().Cols() != 100 || e.Grid().Rows() != 1 {
		t.Errorf("grid = %dx%d, want 100x1 dumb terminal", e.Grid().Cols(), e.Grid().Rows())
	}
	e.Resize(40, 10)
	if e.Grid().Cols() != 100 || e.Grid().Rows() != 1 {
		t.Error("Resize should be a no-op when the control capability is disabled")
	}
}

func TestEmulatorRGBDowngrade(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(10, 5, 100, true, false, cb)
	in := []Cell{{Glyph: 'y', HasRGB: true, FgRGB: RGB{R: 200}}}
	out := e.downgrade(in)
	if out[0].HasRGB {
		t.Error("downgrade should clear HasRGB when the RGB capability is disabled")
	}
	if in[0].HasRGB != true {
		t.Error("downgrade must not mutate the caller's slice")
	}
}

func TestEmulatorKeyAndPosEventForwarded(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(10, 5, 100, true, true, cb)
	e.Key(ModCtrl, 'c')
	e.PosEvent(3, 4, true)
	if len(cb.keys) != 1 || cb.keys[0] != 'c' {
		t.Errorf("keys = %v, want ['c']", cb.keys)
	}
	if cb.posEvents != 1 {
		t.Errorf("posEvents = %d, want 1", cb.posEvents)
	}
}

func TestRcvdCharPlainByteFiresKey(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(10, 5, 100, true, true, cb)
	e.RcvdChar('x')
	if len(cb.keys) != 1 || cb.keys[0] != 'x' {
		t.Fatalf("keys = %v, want ['x']", cb.keys)
	}
	if cb.posEvents != 0 {
		t.Error("a plain byte should not fire PosEvent")
	}
}

func TestRcvdCharDecodesMouseReport(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(10, 5, 100, true, true, cb)
	// ESC [ M <button=0, press> <x=5+32+1> <y=3+32+1>
	for _, b := range []byte{0x1b, '[', 'M', 0x20, 0x20 + 6, 0x20 + 4} {
		e.RcvdChar(b)
	}
	if cb.posEvents != 1 {
		t.Fatalf("posEvents = %d, want 1", cb.posEvents)
	}
	if len(cb.keys) != 0 {
		t.Error("a full mouse report should not also fire Key")
	}
}

func TestRcvdCharReplaysAbandonedEscapeAsKeys(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(10, 5, 100, true, true, cb)
	// ESC 'q' is not a CSI sequence at all: both bytes must surface as
	// plain keys instead of being silently swallowed.
	e.RcvdChar(0x1b)
	e.RcvdChar('q')
	if len(cb.keys) != 2 || cb.keys[0] != 0x1b || cb.keys[1] != 'q' {
		t.Fatalf("keys = %v, want [ESC, 'q']", cb.keys)
	}
}

func TestEmulatorResizePushesOverflowIntoHistory(t *testing.T) {
	cb := &recordingCallbacks{}
	e := NewEmulator(4, 4, 100, true, true, cb)
	e.Resize(4, 2)
	if cb.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1 after resize", cb.refreshes)
	}
	if e.History().Len() != 2 {
		t.Errorf("history length = %d, want 2 (rows cut off by shrinking 4 -> 2)", e.History().Len())
	}
}
