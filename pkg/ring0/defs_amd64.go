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
)

// Selector is a segment selector.
type Selector uint16

// SegmentDescriptor is an 8-byte GDT entry.
type SegmentDescriptor struct {
	bits [2]uint32
}

// descriptorTable is the GDT storage.
type descriptorTable [segLast]SegmentDescriptor

// SegmentDescriptorFlags are typed flags within a descriptor.
type SegmentDescriptorFlags uint32

// SegmentDescriptorFlag declarations.
const (
	SegmentDescriptorAccess     SegmentDescriptorFlags = 1 << 8  // Access bit (always set).
	SegmentDescriptorWrite      SegmentDescriptorFlags = 1 << 9  // Write permission.
	SegmentDescriptorExpandDown SegmentDescriptorFlags = 1 << 10 // Grows down, not used.
	SegmentDescriptorExecute    SegmentDescriptorFlags = 1 << 11 // Execute permission.
	SegmentDescriptorSystem     SegmentDescriptorFlags = 1 << 12 // Zero => system, 1 => user code/data.
	SegmentDescriptorPresent    SegmentDescriptorFlags = 1 << 15 // Present.
	SegmentDescriptorAVL        SegmentDescriptorFlags = 1 << 20 // Available.
	SegmentDescriptorLong       SegmentDescriptorFlags = 1 << 21 // Long mode.
	SegmentDescriptorDB         SegmentDescriptorFlags = 1 << 22 // 16 or 32-bit.
	SegmentDescriptorG          SegmentDescriptorFlags = 1 << 23 // Granularity: page or byte.
)

// SegmentDescriptorFromRaw reassembles a descriptor from its raw 64-bit
// image, as captured from a table dump.
func SegmentDescriptorFromRaw(raw uint64) SegmentDescriptor {
	return SegmentDescriptor{bits: [2]uint32{uint32(raw), uint32(raw >> 32)}}
}

// Base returns the descriptor's base linear address.
func (d *SegmentDescriptor) Base() uint32 {
	return d.bits[1]&0xFF000000 | (d.bits[1]&0x000000FF)<<16 | d.bits[0]>>16
}

// Limit returns the descriptor size.
func (d *SegmentDescriptor) Limit() uint32 {
	l := d.bits[0]&0xFFFF | d.bits[1]&0xF0000
	if d.bits[1]&uint32(SegmentDescriptorG) != 0 {
		l <<= 12
		l |= 0xFFF
	}
	return l
}

// Flags returns descriptor flags.
func (d *SegmentDescriptor) Flags() SegmentDescriptorFlags {
	return SegmentDescriptorFlags(d.bits[1] & 0x00F09F00)
}

// DPL returns the descriptor privilege level.
func (d *SegmentDescriptor) DPL() int {
	return int((d.bits[1] >> 13) & 3)
}

func (d *SegmentDescriptor) setNull() {
	d.bits[0] = 0
	d.bits[1] = 0
}

func (d *SegmentDescriptor) set(base, limit uint32, dpl int, flags SegmentDescriptorFlags) {
	flags |= SegmentDescriptorPresent
	if limit>>12 != 0 {
		limit >>= 12
		flags |= SegmentDescriptorG
	}
	d.bits[0] = base<<16 | limit&0xFFFF
	d.bits[1] = base&0xFF000000 | (base>>16)&0xFF | limit&0x000F0000 | uint32(flags) | uint32(dpl)<<13
}

func (d *SegmentDescriptor) setCode64(base, limit uint32, dpl int) {
	d.set(base, limit, dpl,
		SegmentDescriptorG|
			SegmentDescriptorLong|
			SegmentDescriptorExecute|
			SegmentDescriptorSystem)
}

func (d *SegmentDescriptor) setData(base, limit uint32, dpl int) {
	d.set(base, limit, dpl,
		SegmentDescriptorWrite|
			SegmentDescriptorSystem)
}

// setHi is only used for the TSS segment, which is magically 64-bits.
func (d *SegmentDescriptor) setHi(base uint32) {
	d.bits[0] = base
	d.bits[1] = 0
}

// hi returns the raw second word, the upper 32 base bits of a TSS
// descriptor pair.
func (d *SegmentDescriptor) hi() uint32 {
	return d.bits[0]
}

// Segment indices. The user segments must keep this order: SYSRET derives
// the 64-bit user code and data selectors from the 32-bit user code base
// in STAR, so the 64-bit entries have to follow it.
const (
	_          = iota // Null descriptor first.
	segKcode          // Kernel code (64-bit).
	segKdata          // Kernel data.
	segUcode32        // User code (32-bit compatibility).
	segUdata          // User data.
	segUcode64        // User code (64-bit).
	segTss            // Task segment descriptor.
	segTssHi          // Upper bits for TSS.
	segLast           // Last segment (terminal, not included).
)

// Selectors.
const (
	Kcode   Selector = segKcode << 3
	Kdata   Selector = segKdata << 3
	Ucode32 Selector = (segUcode32 << 3) | 3
	Udata   Selector = (segUdata << 3) | 3
	Ucode64 Selector = (segUcode64 << 3) | 3
	Tss     Selector = segTss << 3
)

// Standard segments.
var (
	UserCodeSegment32 SegmentDescriptor
	UserDataSegment   SegmentDescriptor
	UserCodeSegment64 SegmentDescriptor
	KernelCodeSegment SegmentDescriptor
	KernelDataSegment SegmentDescriptor
)

func init() {
	KernelCodeSegment.setCode64(0, 0, 0)
	KernelDataSegment.setData(0, 0xffffffff, 0)
	UserCodeSegment32.setCode64(0, 0, 3)
	UserDataSegment.setData(0, 0xffffffff, 3)
	UserCodeSegment64.setCode64(0, 0, 3)
}

// Vector is an exception vector.
type Vector uintptr

// Exception vectors.
const (
	DivideByZero Vector = iota
	Debug
	NMI
	Breakpoint
	Overflow
	BoundRangeExceeded
	InvalidOpcode
	DeviceNotAvailable
	DoubleFault
	CoprocessorSegmentOverrun
	InvalidTSS
	SegmentNotPresent
	StackSegmentFault
	GeneralProtectionFault
	PageFault
	reservedVector
	X87FloatingPointException
	AlignmentCheck
	MachineCheck
	SIMDFloatingPointException
	VirtualizationException

	// exceptionVectors is the number of architecture-defined vectors with
	// dedicated entry stubs.
	exceptionVectors

	// catchAllVector is the synthetic vector number the shared stub
	// pushes for every gate past the architecture-defined set.
	catchAllVector Vector = 255

	// vectorCount is the size of the IDT.
	vectorCount = 256
)

// Page-fault error code bits.
const (
	pageFaultPresent = 1 << 0
	pageFaultWrite   = 1 << 1
	pageFaultUser    = 1 << 2
)

// Gate64 is a 64-bit interrupt gate.
type Gate64 struct {
	bits [4]uint32
}

// idt64 is a 64-bit interrupt descriptor table.
type idt64 [vectorCount]Gate64

// Gate64FromRaw reassembles a gate from its two raw 64-bit words, low
// word first, as captured from a table dump.
func Gate64FromRaw(lo, hi uint64) Gate64 {
	return Gate64{bits: [4]uint32{
		uint32(lo), uint32(lo >> 32),
		uint32(hi), uint32(hi >> 32),
	}}
}

func (g *Gate64) setInterrupt(cs Selector, rip uint64, dpl int, ist int) {
	g.bits[0] = uint32(cs)<<16 | uint32(rip)&0xFFFF
	g.bits[1] = uint32(rip)&0xFFFF0000 | uint32(SegmentDescriptorPresent) | uint32(dpl)<<13 | 14<<8 | uint32(ist)&0x7
	g.bits[2] = uint32(rip >> 32)
	g.bits[3] = 0
}

// Target returns the gate's entry address, reassembled from its three
// split fields.
func (g *Gate64) Target() uint64 {
	return uint64(g.bits[2])<<32 | uint64(g.bits[1]&0xFFFF0000) | uint64(g.bits[0]&0xFFFF)
}

// CS returns the code segment selector loaded on entry.
func (g *Gate64) CS() Selector {
	return Selector(g.bits[0] >> 16)
}

// IST returns the interrupt-stack-table index.
func (g *Gate64) IST() int {
	return int(g.bits[1] & 0x7)
}

// DPL returns the gate privilege level.
func (g *Gate64) DPL() int {
	return int((g.bits[1] >> 13) & 3)
}

// Present returns whether the gate is marked present.
func (g *Gate64) Present() bool {
	return g.bits[1]&uint32(SegmentDescriptorPresent) != 0
}

// IsInterruptGate returns whether the type field marks a 64-bit interrupt
// gate.
func (g *Gate64) IsInterruptGate() bool {
	return (g.bits[1]>>8)&0xF == 14
}

// TaskState64 is the 64-bit task state segment, hardware layout.
//
// The syscall entry stub reaches rsp0 and the scratch slot through the
// KERNEL_GS_BASE pointer installed by InstallSyscallMSRs; the field
// offsets are pinned in offsets_amd64.go.
type TaskState64 struct {
	_              uint32
	rsp0Lo, rsp0Hi uint32
	// rsp1 is never used as a ring-1 stack. It is scratch storage for the
	// user stack pointer between syscall entry and the matching return.
	rsp1Lo, rsp1Hi uint32
	rsp2Lo, rsp2Hi uint32
	_              [2]uint32
	ist1Lo, ist1Hi uint32
	ist2Lo, ist2Hi uint32
	ist3Lo, ist3Hi uint32
	ist4Lo, ist4Hi uint32
	ist5Lo, ist5Hi uint32
	ist6Lo, ist6Hi uint32
	ist7Lo, ist7Hi uint32
	_              [2]uint32
	_              uint16
	ioPerm         uint16
}

// setRSP0 sets the stack loaded on a privilege-raising trap.
func (t *TaskState64) setRSP0(addr uint64) {
	t.rsp0Lo = uint32(addr)
	t.rsp0Hi = uint32(addr >> 32)
}

// RSP0 returns the ring-0 trap stack.
func (t *TaskState64) RSP0() uint64 {
	return uint64(t.rsp0Hi)<<32 | uint64(t.rsp0Lo)
}

// setScratchRSP stores a user stack pointer in the scratch slot. The
// syscall entry stub writes the same field through the GS segment.
func (t *TaskState64) setScratchRSP(addr uint64) {
	t.rsp1Lo = uint32(addr)
	t.rsp1Hi = uint32(addr >> 32)
}

// ScratchRSP returns the stashed user stack pointer.
func (t *TaskState64) ScratchRSP() uint64 {
	return uint64(t.rsp1Hi)<<32 | uint64(t.rsp1Lo)
}

// tableRegister is the 10-byte LGDT/LIDT memory operand: a 16-bit limit
// followed immediately by a 64-bit base, no padding.
type tableRegister [10]byte

func (r *tableRegister) set(base uint64, limit uint16) {
	r[0] = byte(limit)
	r[1] = byte(limit >> 8)
	for i := 0; i < 8; i++ {
		r[2+i] = byte(base >> (8 * uint(i)))
	}
}

// Hardware-mandated layout checks. A negative array length means the Go
// layout has drifted from the architected one.
const (
	segmentDescriptorSize = unsafe.Sizeof(SegmentDescriptor{})
	gate64Size            = unsafe.Sizeof(Gate64{})
	taskState64Size       = unsafe.Sizeof(TaskState64{})
	idt64Size             = unsafe.Sizeof(idt64{})
)

var (
	_ [segmentDescriptorSize - 8]byte
	_ [8 - segmentDescriptorSize]byte
	_ [gate64Size - 16]byte
	_ [16 - gate64Size]byte
	_ [taskState64Size - 104]byte
	_ [104 - taskState64Size]byte
	_ [idt64Size - 4096]byte
	_ [4096 - idt64Size]byte
)
