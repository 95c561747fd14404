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

// wrmsr writes value to the given model-specific register.
func wrmsr(reg, value uintptr)

// rdmsr reads the given model-specific register.
func rdmsr(reg uintptr) uintptr

// readCR2 reads the page-fault address register.
func readCR2() uintptr

// readCR4 reads the CR4 control register.
func readCR4() uintptr

// writeCR4 writes the CR4 control register.
func writeCR4(value uintptr)

// ReadCR3 returns the current page-table root.
//
//go:nosplit
func ReadCR3() uintptr {
	return readCR3()
}

// WriteCR3 installs a page-table root, flushing non-global TLB entries.
//
//go:nosplit
func WriteCR3(addr uintptr) {
	writeCR3(addr)
}

func readCR3() uintptr

func writeCR3(addr uintptr)

// Invlpg invalidates the TLB entry for the page holding addr.
func Invlpg(addr uintptr)

// Halt stops the processor until the next interrupt arrives.
func Halt()

// Pause is the spin-wait hint.
func Pause()

// MemoryBarrier is a full hardware memory fence.
func MemoryBarrier()

// cpuid executes CPUID with the given leaf and subleaf.
func cpuid(eax, ecx uint32) (a, b, c, d uint32)

// lgdt loads the GDT register from a 10-byte table operand.
func lgdt(ptr *tableRegister)

// lidt loads the IDT register from a 10-byte table operand.
func lidt(ptr *tableRegister)

// loadTR loads the task register with the given selector.
func loadTR(sel Selector)

// jumpToUser builds the first ring-3 IRETQ frame and executes it.
func jumpToUser(rip, rsp uint64)
