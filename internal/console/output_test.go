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

package console

import (
	"bytes"
	"testing"
)

func TestOutputFlushWritesBufferedBytes(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutput(&buf, true)
	o.Write([]byte("hello"))
	if buf.Len() != 0 {
		t.Fatal("bytes should stay buffered until Flush")
	}
	if err := o.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if buf.String() != "hello" {
		t.Errorf("flushed = %q, want %q", buf.String(), "hello")
	}
}

func TestOutputSetCursorEmitsEscapeOnlyWithCtl(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutput(&buf, true)
	o.SetCursor(4, 2)
	o.Flush()
	if buf.Len() == 0 {
		t.Error("expected a cursor-position escape sequence with ctl enabled")
	}

	var buf2 bytes.Buffer
	o2 := NewOutput(&buf2, false)
	o2.SetCursor(4, 2)
	o2.Flush()
	if buf2.Len() != 0 {
		t.Error("SetCursor should emit nothing when the control capability is disabled")
	}
	col, row := o2.Cursor()
	if col != 4 || row != 2 {
		t.Errorf("logical cursor = (%d,%d), want (4,2) even without ctl", col, row)
	}
}

func TestOutputHideShowCursorIdempotent(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutput(&buf, true)
	o.HideCursor()
	o.HideCursor() // idempotent: only one escape sequence
	o.Flush()
	first := buf.String()
	if first != "\x1b[?25l" {
		t.Fatalf("hide-cursor output = %q, want exactly one %q", first, "\x1b[?25l")
	}

	buf.Reset()
	o.ShowCursor()
	o.Flush()
	if buf.Len() == 0 {
		t.Error("expected a show-cursor escape sequence")
	}
}

func TestOutputWriteFlushesOnFullSegment(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutput(&buf, true)
	big := bytes.Repeat([]byte{'x'}, outputSegment+10)
	o.Write(big)
	if buf.Len() != outputSegment {
		t.Errorf("buffered writer flushed %d bytes mid-write, want exactly %d", buf.Len(), outputSegment)
	}
}
