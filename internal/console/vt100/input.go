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

// recvState drives RcvdChar's decoder for bytes arriving from the
// client, grounded on remcons.c's remcons_get_event loop feeding each
// received byte to vt100_rcvd_char: plain bytes are decoded keystrokes,
// and an X10-style mouse report (ESC [ M button x y) is decoded into a
// single pos-event instead.
type recvState int

const (
	rcvIdle recvState = iota
	rcvESC
	rcvCSI
	rcvMouseButton
	rcvMouseX
	rcvMouseY
)

// mouseCoordOffset is the X10 mouse-report encoding bias: the button
// and both coordinate bytes are transmitted as value+32.
const mouseCoordOffset = 32

// RcvdChar decodes one byte of client input, per spec §4.6 "Input
// events": every decoded keystroke fires Key (the session turns that
// into a press+release pair of cons-events), and a complete mouse
// report fires PosEvent instead. An escape sequence that turns out not
// to be a mouse report is replayed byte-by-byte as plain keys as soon
// as that's known, so no input is ever silently dropped.
func (e *Emulator) RcvdChar(b byte) {
	switch e.rcvState {
	case rcvIdle:
		if b == 0x1b {
			e.rcvState = rcvESC
			return
		}
		e.Key(0, rune(b))

	case rcvESC:
		if b == '[' {
			e.rcvState = rcvCSI
			return
		}
		e.rcvState = rcvIdle
		e.Key(0, 0x1b)
		e.RcvdChar(b)

	case rcvCSI:
		if b == 'M' {
			e.rcvState = rcvMouseButton
			return
		}
		e.rcvState = rcvIdle
		e.Key(0, 0x1b)
		e.Key(0, '[')
		e.RcvdChar(b)

	case rcvMouseButton:
		e.mouseButton = b
		e.rcvState = rcvMouseX

	case rcvMouseX:
		e.mouseX = b
		e.rcvState = rcvMouseY

	case rcvMouseY:
		e.rcvState = rcvIdle
		col := int(e.mouseX) - mouseCoordOffset - 1
		row := int(b) - mouseCoordOffset - 1
		pressed := e.mouseButton&0x03 != 3
		e.PosEvent(col, row, pressed)
	}
}
