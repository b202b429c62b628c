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

import "testing"

func TestTelnetStripsIACOptions(t *testing.T) {
	tn := NewTelnet()
	raw := []byte{'h', 'i', telnetIAC, telnetWill, telnetEcho, '!'}
	got := tn.Feed(raw)
	if string(got) != "hi!" {
		t.Errorf("Feed() = %q, want %q", got, "hi!")
	}
}

func TestTelnetCollapsesCRLF(t *testing.T) {
	tn := NewTelnet()
	got := tn.Feed([]byte("ab\r\ncd"))
	if string(got) != "ab\ncd" {
		t.Errorf("Feed() = %q, want %q", got, "ab\ncd")
	}
}

func TestTelnetCollapsesCRNul(t *testing.T) {
	tn := NewTelnet()
	got := tn.Feed([]byte{'a', '\r', 0, 'b'})
	if string(got) != "a\nb" {
		t.Errorf("Feed() = %q, want %q", got, "a\nb")
	}
}

func TestTelnetDecodesNAWS(t *testing.T) {
	tn := NewTelnet()
	var gotCols, gotRows int
	tn.OnWindowSize = func(cols, rows int) { gotCols, gotRows = cols, rows }

	// IAC SB NAWS <cols hi><cols lo><rows hi><rows lo> IAC SE
	raw := []byte{
		telnetIAC, telnetSB, telnetNAWS,
		0, 80, 0, 24,
		telnetIAC, telnetSE,
	}
	out := tn.Feed(raw)
	if len(out) != 0 {
		t.Errorf("NAWS subnegotiation leaked %d application bytes", len(out))
	}
	if gotCols != 80 || gotRows != 24 {
		t.Errorf("window size = %dx%d, want 80x24", gotCols, gotRows)
	}
}

func TestTelnetIgnoresZeroNAWS(t *testing.T) {
	tn := NewTelnet()
	called := false
	tn.OnWindowSize = func(int, int) { called = true }
	raw := []byte{
		telnetIAC, telnetSB, telnetNAWS,
		0, 0, 0, 24,
		telnetIAC, telnetSE,
	}
	tn.Feed(raw)
	if called {
		t.Error("OnWindowSize should not fire when cols==0")
	}
}

func TestTelnetSplitAcrossFeedCalls(t *testing.T) {
	tn := NewTelnet()
	var gotCols, gotRows int
	tn.OnWindowSize = func(cols, rows int) { gotCols, gotRows = cols, rows }

	tn.Feed([]byte{'h', telnetIAC, telnetSB, telnetNAWS, 0, 100})
	tn.Feed([]byte{0, 40, telnetIAC, telnetSE, 'i'})

	if gotCols != 100 || gotRows != 40 {
		t.Errorf("window size after split feed = %dx%d, want 100x40", gotCols, gotRows)
	}
}

func TestTelnetEscapedIACInData(t *testing.T) {
	tn := NewTelnet()
	got := tn.Feed([]byte{'a', telnetIAC, telnetIAC, 'b'})
	if string(got) != "a\xffb" {
		t.Errorf("Feed() = %q, want literal 0xFF preserved", got)
	}
}

func TestTelnetNegotiateCallback(t *testing.T) {
	tn := NewTelnet()
	var gotOpt byte
	tn.OnNegotiate = func(cmd, opt byte) { gotOpt = opt }
	tn.Feed([]byte{telnetIAC, telnetWill, telnetNAWS})
	if gotOpt != telnetNAWS {
		t.Errorf("negotiated opt = %d, want telnetNAWS", gotOpt)
	}
}
