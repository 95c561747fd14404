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

//go:build amd64
// +build amd64

package ring0

import (
	"unsafe"

	"github.com/tinted-software/os-experiment/pkg/console"
)

// TrapFrame is the register state captured on the trap stack, in memory
// order: the general-purpose registers pushed by the trampoline, the
// synthetic vector and error slots, then the hardware-pushed interrupt
// frame. entry_amd64.s pushes this layout; the two must change together.
type TrapFrame struct {
	Rax uint64
	Rbx uint64
	Rcx uint64
	Rdx uint64
	Rsi uint64
	Rdi uint64
	Rbp uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	Vector uint64
	Error  uint64

	// Hardware-pushed frame, consumed by IRETQ on resume.
	Rip    uint64
	Cs     uint64
	Rflags uint64
	Rsp    uint64
	Ss     uint64
}

const trapFrameSize = unsafe.Sizeof(TrapFrame{})

var (
	_ [trapFrameSize - 176]byte
	_ [176 - trapFrameSize]byte
)

// TrapFrameAt interprets a trap-time stack image as a TrapFrame. The
// address must reference at least trapFrameSize valid bytes. This is the
// view a layered recoverable handler inspects before deciding whether the
// fatal path below runs.
//
//go:nosplit
func TrapFrameAt(addr uintptr) *TrapFrame {
	return (*TrapFrame)(unsafe.Pointer(addr))
}

// vectorNames are the architectural names for vectors 0 through 20.
var vectorNames = [exceptionVectors]string{
	"#DE Divide Error",
	"#DB Debug",
	"NMI Interrupt",
	"#BP Breakpoint",
	"#OF Overflow",
	"#BR BOUND Range Exceeded",
	"#UD Invalid Opcode",
	"#NM Device Not Available",
	"#DF Double Fault",
	"Coprocessor Segment Overrun",
	"#TS Invalid TSS",
	"#NP Segment Not Present",
	"#SS Stack-Segment Fault",
	"#GP General Protection Fault",
	"#PF Page Fault",
	"Reserved",
	"#MF x87 FPU Floating-Point Error",
	"#AC Alignment Check",
	"#MC Machine Check",
	"#XM SIMD Floating-Point Exception",
	"#VE Virtualization Exception",
}

// minCodeAddress is the lowest RIP the diagnostic will dereference when
// echoing the faulting instruction bytes.
const minCodeAddress = 0x1000

// readFaultAddress returns the page-fault address register. Overridable
// by tests, which cannot execute the privileged read.
var readFaultAddress = readCR2

// halt parks the processor permanently. Overridable by tests, which
// observe the fatal paths instead of spinning.
var halt = func() {
	for {
		Halt()
	}
}

// trapHandler is the generic fault reporter, called from the trampoline
// with the trapped context. Every vector lands here and every vector is
// fatal: this core's dispatch is a diagnostic backstop, not a recovery
// mechanism. It prints the full trapped state over the console and parks
// the processor. Does not return.
//
//go:nosplit
func trapHandler(vector, errorCode, rip, cs, rflags, rsp, ss uint64) {
	console.Print("\n=== EXCEPTION ===\n")
	if vector < uint64(exceptionVectors) {
		console.Print("  Name:   ")
		console.Print(vectorNames[vector])
		console.Print("\n")
	} else {
		console.Print("  Vector: ")
		console.PrintHex64(vector)
		console.Print("\n")
	}
	console.Print("  Error:  ")
	console.PrintHex64(errorCode)
	console.Print("\n  RIP:    0x")
	console.PrintHex64(rip)
	console.Print("\n  CS:     0x")
	console.PrintHex64(cs)
	console.Print("\n  RFLAGS: 0x")
	console.PrintHex64(rflags)
	console.Print("\n  RSP:    0x")
	console.PrintHex64(rsp)
	console.Print("\n  SS:     0x")
	console.PrintHex64(ss)
	console.Print("\n")

	console.Print("  CR2:    0x")
	console.PrintHex64(uint64(readFaultAddress()))
	console.Print("\n")

	if rip >= minCodeAddress {
		// A plausible-looking RIP can still be unmapped, in which case
		// this read traps recursively and the nested trap halts without
		// the rest of the report. Tolerated: the processor is about to
		// park either way.
		console.Print("  Code at RIP: ")
		console.PrintHex64(*(*uint64)(unsafe.Pointer(uintptr(rip))))
		console.Print("\n")
	}

	if Vector(vector) == PageFault {
		console.Print("  Fault:  ")
		if errorCode&pageFaultPresent != 0 {
			console.Print("protection ")
		} else {
			console.Print("not-present ")
		}
		if errorCode&pageFaultWrite != 0 {
			console.Print("write ")
		} else {
			console.Print("read ")
		}
		if errorCode&pageFaultUser != 0 {
			console.Print("user ")
		} else {
			console.Print("supervisor ")
		}
		console.Print("\n")
	}

	halt()
}
