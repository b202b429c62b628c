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

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Lock order, enforced by convention in this package: ASID-global -> AS
// -> area -> page-table (spec §5). Violating it is a bug; there is no
// runtime lock-order checker and there are no lock guard types: the
// locks are plain sync.Mutex values and each acquisition site keeps the
// order itself.

// IPL models the "interrupt priority level" the real kernel saves and
// restores around every area/AS operation. There is exactly one virtual
// IPL in this software model (not one per CPU); it is enough to express
// "interrupts are disabled across this critical section" and assert
// nesting discipline in tests.
type IPL int32

var currentIPL atomic.Int32

// RaiseIPL disables interrupts (raises to the highest level) and
// returns the previous level so it can be restored. Callers must defer
// the returned scope's Restore.
func RaiseIPL() IPL {
	prev := currentIPL.Swap(1)
	return IPL(prev)
}

// Restore lowers the IPL back to the level saved by RaiseIPL.
func (prev IPL) Restore() {
	currentIPL.Store(int32(prev))
}

// lockActive acquires mu via the "active" variant: a non-yielding spin
// loop instead of a blocking Lock. It is used only for the per-AS lock
// acquisition inside a context switch, where sleeping would recurse into
// the scheduler (spec §4.2 step 4, §5 "Suspension points").
func lockActive(mu *sync.Mutex) {
	for !mu.TryLock() {
		runtime.Gosched()
	}
}
