// Copyright 2026 The OS Experiment Authors.
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

// Package kasan implements the shadow-memory access checker behind the
// compiler-inserted load and store hooks.
//
// One shadow byte tracks an aligned 8-byte granule of real memory: 0
// means the whole granule is addressable, a value 1 through 7 means only
// that many leading bytes are, and any other value poisons the granule
// entirely. The shadow window lives at (addr >> 3) + offset; the memory
// manager must have it mapped for every address instrumented code can
// touch before the first hook runs, since the lookup itself must never
// fault.
//
// A flagged access is never survivable. The report path prints and parks
// the processor: past a detected corruption there is no state worth
// saving.
package kasan

import (
	"runtime"
	"unsafe"

	"github.com/tinted-software/os-experiment/pkg/console"
	"github.com/tinted-software/os-experiment/pkg/ring0"
)

// DefaultShadowOffset is the usual x86-64 placement of the shadow window.
const DefaultShadowOffset uintptr = 0xdffffc0000000000

var shadowOffset = DefaultShadowOffset

// Init repositions the shadow window. Call at boot before the first
// instrumented access, or not at all to keep the default placement.
func Init(offset uintptr) {
	shadowOffset = offset
}

// ShadowAddress returns the address of the shadow byte describing the
// granule holding addr.
//
//go:nosplit
func ShadowAddress(addr uintptr) uintptr {
	return (addr >> 3) + shadowOffset
}

// shadowFor returns the shadow byte describing the granule holding addr.
//
//go:nosplit
func shadowFor(addr uintptr) int8 {
	return *(*int8)(unsafe.Pointer(ShadowAddress(addr)))
}

// checkAccess is the slow-path gate shared by every hook. An access is
// flagged when its shadow byte is nonzero and (addr mod 8) + size meets
// or exceeds that byte's value: a positive value admits only accesses
// that fall strictly inside the valid prefix it describes, and any other
// nonzero value admits nothing. skip counts the frames between here and
// the instrumented call site.
//
//go:nosplit
func checkAccess(addr, size uintptr, write bool, skip int) {
	if !Poisoned(shadowFor(addr), addr, size) {
		return
	}
	pc, _, _, _ := runtime.Caller(skip)
	report(addr, size, write, pc)
}

// Poisoned reports whether an access of size bytes at addr trips shadow
// value s. Pure; shared with offline dump decoding.
//
//go:nosplit
func Poisoned(s int8, addr, size uintptr) bool {
	return s != 0 && int8(addr&7+size) >= s
}

// CheckLoad validates a load of size bytes at addr.
//
//go:nosplit
func CheckLoad(addr, size uintptr) {
	checkAccess(addr, size, false, 2)
}

// CheckStore validates a store of size bytes at addr.
//
//go:nosplit
func CheckStore(addr, size uintptr) {
	checkAccess(addr, size, true, 2)
}

// Fixed-size hooks.

//go:nosplit
func CheckLoad1(addr uintptr) { checkAccess(addr, 1, false, 2) }

//go:nosplit
func CheckLoad2(addr uintptr) { checkAccess(addr, 2, false, 2) }

//go:nosplit
func CheckLoad4(addr uintptr) { checkAccess(addr, 4, false, 2) }

//go:nosplit
func CheckLoad8(addr uintptr) { checkAccess(addr, 8, false, 2) }

//go:nosplit
func CheckLoad16(addr uintptr) { checkAccess(addr, 16, false, 2) }

//go:nosplit
func CheckStore1(addr uintptr) { checkAccess(addr, 1, true, 2) }

//go:nosplit
func CheckStore2(addr uintptr) { checkAccess(addr, 2, true, 2) }

//go:nosplit
func CheckStore4(addr uintptr) { checkAccess(addr, 4, true, 2) }

//go:nosplit
func CheckStore8(addr uintptr) { checkAccess(addr, 8, true, 2) }

//go:nosplit
func CheckStore16(addr uintptr) { checkAccess(addr, 16, true, 2) }

// halt parks the processor. Overridable by tests, which observe the
// fatal path instead of spinning.
var halt = func() {
	for {
		ring0.Halt()
	}
}

// report prints the diagnostic banner and parks the processor. Does not
// return. The write flag and size are part of the hook contract even
// though the report only echoes the address and call site.
//
//go:nosplit
func report(addr, size uintptr, write bool, ip uintptr) {
	console.Print("\nKASAN: Use-after-free or out-of-bounds access\n")
	console.Print("Addr: ")
	console.PrintHex64(uint64(addr))
	console.Print(" IP: ")
	console.PrintHex64(uint64(ip))
	console.Print("\n")
	halt()
}

// HandleNoReturn is an inert hook the instrumented build links against
// for functions that never return.
func HandleNoReturn() {}

// BeforeDynamicInit is an inert module-initialization marker.
func BeforeDynamicInit(module string) {}

// AfterDynamicInit is an inert module-initialization marker.
func AfterDynamicInit() {}
