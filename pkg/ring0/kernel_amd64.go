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

// Useful bits.
const (
	_CR4_FSGSBASE = 1 << 16

	_RFLAGS_IF = 1 << 9

	_EFER_SCE = 0x001

	_MSR_EFER           = 0xc0000080
	_MSR_STAR           = 0xc0000081
	_MSR_LSTAR          = 0xc0000082
	_MSR_SYSCALL_MASK   = 0xc0000084
	_MSR_KERNEL_GS_BASE = 0xc0000102
)

// CPU holds the per-core state: the GDT and the TSS it describes. There is
// exactly one core today; a multi-core port instantiates one of these per
// core and addresses it through a core-local base instead of adding locks.
type CPU struct {
	gdt descriptorTable
	tss TaskState64
}

// bsp is the bootstrap processor.
var bsp CPU

// globalIDT is the interrupt descriptor table, shared by all vectors.
var globalIDT idt64

// GDT returns the GDT base and limit.
func (c *CPU) GDT() (uint64, uint16) {
	return uint64(uintptr(unsafe.Pointer(&c.gdt[0]))), uint16(8*segLast - 1)
}

// TSS returns the TSS base, limit and descriptor slot.
func (c *CPU) TSS() (uint64, uint16, *SegmentDescriptor) {
	return uint64(uintptr(unsafe.Pointer(&c.tss))), uint16(taskState64Size - 1), &c.gdt[segTss]
}

// IDT returns the IDT base and limit.
func IDT() (uint64, uint16) {
	return uint64(uintptr(unsafe.Pointer(&globalIDT[0]))), uint16(idt64Size - 1)
}

// InstallGDTAndTSS builds and activates the GDT and TSS.
//
// ring0StackTop is the stack the processor loads on a privilege-raising
// trap; the syscall entry stub loads the same value. It must point at
// mapped kernel memory with conventional alignment. A bad value is
// undefined at the hardware level and is not checked here.
//
// Must run before InstallIDT arms any gate and before InstallSyscallMSRs
// publishes the TSS address through KERNEL_GS_BASE.
func InstallGDTAndTSS(ring0StackTop uint64) {
	console.Print("GDT init with stack: 0x")
	console.PrintHex64(ring0StackTop)
	console.Print("\n")

	c := &bsp
	c.buildGDTAndTSS(ring0StackTop)

	var ptr tableRegister
	base, limit := c.GDT()
	ptr.set(base, limit)
	lgdt(&ptr)
	console.Print("GDT loaded\n")

	loadTR(Tss)
	console.Print("TSS loaded\n")
}

// buildGDTAndTSS fills in the TSS and descriptor table without touching
// the descriptor-table registers.
func (c *CPU) buildGDTAndTSS(ring0StackTop uint64) {
	c.tss = TaskState64{}
	c.tss.setRSP0(ring0StackTop)

	tssBase, tssLimit, _ := c.TSS()

	// Point the I/O bitmap base past the segment limit to block the whole
	// port range: addresses not spanned by the map behave as if their
	// bits were set (Intel SDM Vol 1, 19.5.2).
	c.tss.ioPerm = tssLimit + 1

	c.gdt[0].setNull()
	c.gdt[segKcode] = KernelCodeSegment
	c.gdt[segKdata] = KernelDataSegment
	c.gdt[segUcode32] = UserCodeSegment32
	c.gdt[segUdata] = UserDataSegment
	c.gdt[segUcode64] = UserCodeSegment64

	// The TSS descriptor is twice the width of a normal descriptor and
	// spans two slots, with the upper 32 address bits in the second.
	// Access|Execute encodes the available 64-bit TSS type; LTR would
	// fault on a descriptor already marked busy.
	c.gdt[segTss].set(
		uint32(tssBase),
		uint32(tssLimit),
		0,
		SegmentDescriptorPresent|
			SegmentDescriptorAccess|
			SegmentDescriptorExecute)
	c.gdt[segTssHi].setHi(uint32(tssBase >> 32))
}

// InstallIDT builds and activates the interrupt descriptor table.
//
// Vectors 0 through 20 get their architecture-defined stubs; every other
// vector shares the catch-all stub, so an interrupt that was never wired
// up still reports through the normal fatal path instead of escalating to
// a double fault on a missing gate.
//
// The only ordering requirement is that selector Kcode must be valid,
// i.e. InstallGDTAndTSS has run.
func InstallIDT() {
	buildIDT(&globalIDT)

	var ptr tableRegister
	base, limit := IDT()
	ptr.set(base, limit)
	lidt(&ptr)
	console.Print("IDT loaded\n")
}

// buildIDT fills every gate without touching the IDT register.
func buildIDT(idt *idt64) {
	*idt = idt64{}

	for v := Vector(0); v < exceptionVectors; v++ {
		idt[v].setInterrupt(Kcode, uint64(handlers[v]), 0, 0)
	}
	catchAll := addrOfCatchAll()
	for v := Vector(exceptionVectors); v < vectorCount; v++ {
		idt[v].setInterrupt(Kcode, uint64(catchAll), 0, 0)
	}
}

// DispatchSyscall is the system call dispatcher. The owning kernel sets it
// before the first user instruction runs; the syscall entry stub forwards
// every call here with the fast-syscall register convention already
// unpacked. The dispatcher must not itself execute SYSCALL.
var DispatchSyscall func(num, a1, a2, a3, a4, a5, a6 uint64) uint64

// syscallHandler runs on the ring-0 stack installed by InstallGDTAndTSS,
// called from the entry stub.
//
//go:nosplit
func syscallHandler(num, a1, a2, a3, a4, a5, a6 uint64) uint64 {
	return DispatchSyscall(num, a1, a2, a3, a4, a5, a6)
}

// InstallSyscallMSRs programs the fast-syscall machinery.
//
// LSTAR takes the entry stub address. STAR packs the selector bases used
// on entry and return; SYSRET reconstructs the 64-bit user code and stack
// selectors from the 32-bit user code base, which is what pins the GDT
// ordering. The flag mask clears IF so entry runs with interrupts off
// until the stub is on a kernel stack. KERNEL_GS_BASE takes the TSS
// address so the stub reaches the ring-0 stack and the scratch slot
// through swapgs. Finally EFER.SCE enables the instruction pair,
// preserving every other EFER bit.
//
// InstallGDTAndTSS must have run first.
func InstallSyscallMSRs() {
	wrmsr(_MSR_LSTAR, addrOfSyscallEntry())
	wrmsr(_MSR_STAR, uintptr(uint64(Kcode)<<32|uint64(Ucode32)<<48))
	wrmsr(_MSR_SYSCALL_MASK, _RFLAGS_IF)

	tssBase, _, _ := bsp.TSS()
	wrmsr(_MSR_KERNEL_GS_BASE, uintptr(tssBase))

	wrmsr(_MSR_EFER, rdmsr(_MSR_EFER)|_EFER_SCE)
	console.Print("Syscall MSRs configured\n")
}

// setCR4FSGSBase flips the CR4 enable bit. Overridable by tests, which
// cannot execute the privileged read-modify-write.
var setCR4FSGSBase = func() {
	writeCR4(readCR4() | _CR4_FSGSBASE)
}

// EnableFSGSBase turns on the user-level FS/GS base access instructions
// when the processor reports them (CPUID.(EAX=7,ECX=0):EBX bit 0), and
// reports whether it did.
func EnableFSGSBase() bool {
	_, ebx, _, _ := cpuid(7, 0)
	if ebx&1 == 0 {
		return false
	}
	setCR4FSGSBase()
	console.Print("FSGSBASE enabled\n")
	return true
}

// JumpToUser performs the first transition to ring 3 through an IRETQ
// frame carrying the user selectors. Interrupts stay disabled in user
// mode; the program re-enters the kernel only via SYSCALL.
//
// InstallGDTAndTSS, InstallIDT and InstallSyscallMSRs must all have run.
// Does not return.
func JumpToUser(rip, rsp uint64) {
	console.Print("Jumping to user: RIP=0x")
	console.PrintHex64(rip)
	console.Print(" RSP=0x")
	console.PrintHex64(rsp)
	console.Print("\n")
	jumpToUser(rip, rsp)
}
