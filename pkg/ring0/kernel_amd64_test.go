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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildGDT(t *testing.T) {
	var c CPU
	c.buildGDTAndTSS(0xffff800000200000)

	var null SegmentDescriptor
	want := []struct {
		name string
		seg  SegmentDescriptor
	}{
		{"null", null},
		{"kernel code", KernelCodeSegment},
		{"kernel data", KernelDataSegment},
		{"user code32", UserCodeSegment32},
		{"user data", UserDataSegment},
		{"user code64", UserCodeSegment64},
	}
	for i, w := range want {
		if diff := cmp.Diff(w.seg, c.gdt[i], cmp.AllowUnexported(SegmentDescriptor{})); diff != "" {
			t.Errorf("slot %d (%s) mismatch (-want +got):\n%s", i, w.name, diff)
		}
	}
}

func TestBuildTSS(t *testing.T) {
	var c CPU
	const stackTop = 0xffff800000200000
	c.buildGDTAndTSS(stackTop)

	if got := c.tss.RSP0(); got != stackTop {
		t.Errorf("rsp0: got %#x want %#x", got, uint64(stackTop))
	}

	tssBase, tssLimit, desc := c.TSS()
	if want := uint16(taskState64Size - 1); tssLimit != want {
		t.Errorf("tss limit: got %#x want %#x", tssLimit, want)
	}

	// An I/O map base past the limit leaves no bitmap bytes inside the
	// segment, so every port is denied to user code.
	if got, want := c.tss.ioPerm, tssLimit+1; got != want {
		t.Errorf("io map base: got %#x want %#x", got, want)
	}

	// The descriptor pair must reassemble to the in-memory TSS address.
	gotBase := uint64(desc.Base()) | uint64(c.gdt[segTssHi].hi())<<32
	if gotBase != tssBase {
		t.Errorf("tss descriptor base: got %#x want %#x", gotBase, tssBase)
	}
	if got := desc.Limit(); got != uint32(tssLimit) {
		t.Errorf("tss descriptor limit: got %#x want %#x", got, tssLimit)
	}
	if got := desc.DPL(); got != 0 {
		t.Errorf("tss descriptor dpl: got %d want 0", got)
	}

	// Access|Execute without System encodes type 9, an available 64-bit
	// TSS. LTR refuses a busy descriptor, so the type must stay 9.
	want := SegmentDescriptorPresent |
		SegmentDescriptorAccess |
		SegmentDescriptorExecute
	if got := desc.Flags(); got != want {
		t.Errorf("tss descriptor flags: got %#x want %#x", got, want)
	}
}

func TestBuildIDT(t *testing.T) {
	var idt idt64
	buildIDT(&idt)

	catchAll := uint64(addrOfCatchAll())
	for v := 0; v < vectorCount; v++ {
		g := &idt[v]
		if !g.Present() {
			t.Fatalf("vector %d: gate not present", v)
		}
		if !g.IsInterruptGate() {
			t.Errorf("vector %d: not an interrupt gate", v)
		}
		if got := g.CS(); got != Kcode {
			t.Errorf("vector %d: cs got %#x want %#x", v, got, Kcode)
		}
		if got := g.IST(); got != 0 {
			t.Errorf("vector %d: ist got %d want 0", v, got)
		}
		if got := g.DPL(); got != 0 {
			t.Errorf("vector %d: dpl got %d want 0", v, got)
		}
		want := catchAll
		if Vector(v) < exceptionVectors {
			want = uint64(handlers[v])
		}
		if got := g.Target(); got != want {
			t.Errorf("vector %d: target got %#x want %#x", v, got, want)
		}
	}
}

// Each architecture-defined vector gets its own stub so the pushed vector
// number disambiguates them; sharing an address would misreport faults.
func TestHandlersDistinct(t *testing.T) {
	seen := make(map[uintptr]Vector)
	for v, h := range handlers {
		if h == 0 {
			t.Fatalf("vector %d: no stub", v)
		}
		if prev, ok := seen[h]; ok {
			t.Errorf("vector %d shares a stub with vector %d", v, prev)
		}
		seen[h] = Vector(v)
	}
}

func TestSyscallDispatch(t *testing.T) {
	old := DispatchSyscall
	defer func() { DispatchSyscall = old }()

	var got [7]uint64
	DispatchSyscall = func(num, a1, a2, a3, a4, a5, a6 uint64) uint64 {
		got = [7]uint64{num, a1, a2, a3, a4, a5, a6}
		return num + a6
	}

	ret := syscallHandler(60, 1, 2, 3, 4, 5, 6)
	want := [7]uint64{60, 1, 2, 3, 4, 5, 6}
	if got != want {
		t.Errorf("dispatch args: got %v want %v", got, want)
	}
	if ret != 66 {
		t.Errorf("dispatch result: got %d want 66", ret)
	}
}

// STAR carries the kernel selector base in bits 32..47 and the 32-bit
// user code selector base in bits 48..63.
func TestStarValue(t *testing.T) {
	star := uint64(Kcode)<<32 | uint64(Ucode32)<<48
	if star != 0x001b000800000000 {
		t.Errorf("star: got %#x want 0x001b000800000000", star)
	}
}

func TestCPUIDExecutes(t *testing.T) {
	eax, _, _, _ := cpuid(0, 0)
	if eax == 0 {
		t.Errorf("max basic leaf: got 0 want nonzero")
	}
}

func TestSyscallEntryAddress(t *testing.T) {
	if addrOfSyscallEntry() == 0 {
		t.Errorf("syscall entry stub has no address")
	}
}

// EnableFSGSBase must track the CPUID feature bit: write CR4 exactly when
// the processor reports the instructions.
func TestEnableFSGSBaseGating(t *testing.T) {
	old := setCR4FSGSBase
	defer func() { setCR4FSGSBase = old }()

	wrote := false
	setCR4FSGSBase = func() { wrote = true }

	_, ebx, _, _ := cpuid(7, 0)
	want := ebx&1 != 0
	if got := EnableFSGSBase(); got != want {
		t.Errorf("enabled=%v, cpuid reports %v", got, want)
	}
	if wrote != want {
		t.Errorf("cr4 written=%v, cpuid reports %v", wrote, want)
	}
}
