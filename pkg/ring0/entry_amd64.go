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

// Exception stubs, defined in entry_amd64.s.
//
// Each stub normalizes the trap stack (synthesizing a zero error code for
// the vectors where the hardware pushes none), pushes its vector number
// and joins the common trampoline. The stubs are generated by assembler
// macros so the save/restore sequence exists exactly once.
func divideByZero()
func debug()
func nmi()
func breakpoint()
func overflow()
func boundRangeExceeded()
func invalidOpcode()
func deviceNotAvailable()
func doubleFault()
func coprocessorSegmentOverrun()
func invalidTSS()
func segmentNotPresent()
func stackSegmentFault()
func generalProtectionFault()
func pageFault()
func reservedException()
func x87FloatingPointException()
func alignmentCheck()
func machineCheck()
func simdFloatingPointException()
func virtualizationException()

// catchAll is the shared stub installed on every vector past the
// architecture-defined set. It reports with the synthetic vector number
// 255: by the time it runs, the real vector is no longer recoverable.
func catchAll()

// trapCommon is the common trampoline the stubs jump to. It captures the
// trapped register state, calls trapHandler and, were the handler ever to
// return, restores that state exactly and resumes via IRETQ.
func trapCommon()

// syscallEntry is the fast-syscall entry point programmed into LSTAR.
func syscallEntry()

// These return the start addresses of the stubs above.
//
// In Go 1.17+, Go references to assembly functions resolve to an
// ABIInternal wrapper function rather than the function itself. We must
// reference from assembly to get the ABI0 (i.e., primary) address.
func addrOfDivideByZero() uintptr
func addrOfDebug() uintptr
func addrOfNMI() uintptr
func addrOfBreakpoint() uintptr
func addrOfOverflow() uintptr
func addrOfBoundRangeExceeded() uintptr
func addrOfInvalidOpcode() uintptr
func addrOfDeviceNotAvailable() uintptr
func addrOfDoubleFault() uintptr
func addrOfCoprocessorSegmentOverrun() uintptr
func addrOfInvalidTSS() uintptr
func addrOfSegmentNotPresent() uintptr
func addrOfStackSegmentFault() uintptr
func addrOfGeneralProtectionFault() uintptr
func addrOfPageFault() uintptr
func addrOfReservedException() uintptr
func addrOfX87FloatingPointException() uintptr
func addrOfAlignmentCheck() uintptr
func addrOfMachineCheck() uintptr
func addrOfSimdFloatingPointException() uintptr
func addrOfVirtualizationException() uintptr
func addrOfCatchAll() uintptr
func addrOfSyscallEntry() uintptr

// handlers hold the stub addresses for the architecture-defined vectors.
var handlers = [exceptionVectors]uintptr{
	DivideByZero:               addrOfDivideByZero(),
	Debug:                      addrOfDebug(),
	NMI:                        addrOfNMI(),
	Breakpoint:                 addrOfBreakpoint(),
	Overflow:                   addrOfOverflow(),
	BoundRangeExceeded:         addrOfBoundRangeExceeded(),
	InvalidOpcode:              addrOfInvalidOpcode(),
	DeviceNotAvailable:         addrOfDeviceNotAvailable(),
	DoubleFault:                addrOfDoubleFault(),
	CoprocessorSegmentOverrun:  addrOfCoprocessorSegmentOverrun(),
	InvalidTSS:                 addrOfInvalidTSS(),
	SegmentNotPresent:          addrOfSegmentNotPresent(),
	StackSegmentFault:          addrOfStackSegmentFault(),
	GeneralProtectionFault:     addrOfGeneralProtectionFault(),
	PageFault:                  addrOfPageFault(),
	reservedVector:             addrOfReservedException(),
	X87FloatingPointException:  addrOfX87FloatingPointException(),
	AlignmentCheck:             addrOfAlignmentCheck(),
	MachineCheck:               addrOfMachineCheck(),
	SIMDFloatingPointException: addrOfSimdFloatingPointException(),
	VirtualizationException:    addrOfVirtualizationException(),
}
