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

import "testing"

func TestShootdownNoopOnZeroPages(t *testing.T) {
	tlb := NewSoftwareTLB()
	Shootdown(tlb, 0, 0x1000, 0)
	if len(tlb.Log()) != 0 {
		t.Error("Shootdown with zero pages issued a round")
	}
}

func TestShootdownRecordsInvalidation(t *testing.T) {
	tlb := NewSoftwareTLB()
	Shootdown(tlb, ASID(3), 0x1000, 2)
	log := tlb.Log()
	if len(log) != 1 {
		t.Fatalf("log = %v, want 1 entry", log)
	}
	want := Invalidation{Kind: InvlPages, ASID: 3, Base: 0x1000, Pages: 2}
	if log[0] != want {
		t.Errorf("log[0] = %+v, want %+v", log[0], want)
	}
}
