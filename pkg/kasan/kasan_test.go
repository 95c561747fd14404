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

package kasan

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/tinted-software/os-experiment/pkg/console"
)

// haltSentinel is the panic value the overridden halt throws so tests can
// observe the fatal path.
type haltSentinel struct{}

// shadowRegion aliases a heap-backed shadow window over a small aligned
// data region, so shadow lookups resolve inside ordinary test memory
// instead of the fixed kernel placement. It returns the data region base
// and the shadow bytes, one per 8-byte granule.
func shadowRegion(t *testing.T) (uintptr, []int8) {
	t.Helper()

	// uint64 backing guarantees granule alignment of the base.
	region := make([]uint64, 16)
	base := uintptr(unsafe.Pointer(&region[0]))
	shadow := make([]int8, len(region))

	Init(uintptr(unsafe.Pointer(&shadow[0])) - base>>3)
	t.Cleanup(func() { Init(DefaultShadowOffset) })

	// Keep both alive for the duration of the test.
	t.Cleanup(func() {
		_ = region[0]
		_ = shadow[0]
	})
	return base, shadow
}

// flagged reports whether an access trips the checker, with the report
// output and parking intercepted.
func flagged(t *testing.T, check func(), out *string) bool {
	t.Helper()

	var buf []byte
	oldEmit := console.Emit
	console.Emit = func(b byte) { buf = append(buf, b) }
	oldHalt := halt
	halt = func() { panic(haltSentinel{}) }
	defer func() {
		console.Emit = oldEmit
		halt = oldHalt
	}()

	tripped := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(haltSentinel); !ok {
					panic(r)
				}
				tripped = true
			}
		}()
		check()
	}()
	if out != nil {
		*out = string(buf)
	}
	return tripped
}

func TestCleanGranulePasses(t *testing.T) {
	base, _ := shadowRegion(t)
	for size := uintptr(1); size <= 8; size++ {
		if flagged(t, func() { CheckLoad(base, size) }, nil) {
			t.Errorf("load of %d at clean granule flagged", size)
		}
		if flagged(t, func() { CheckStore(base+8-size, size) }, nil) {
			t.Errorf("store of %d at clean granule flagged", size)
		}
	}
}

// A shadow value k in 1..7 admits an access only when (addr mod 8) + size
// stays strictly below k. The boundary is inclusive on the flagged side:
// touching byte k-1 of the granule already trips.
func TestPartialGranuleBoundary(t *testing.T) {
	base, shadow := shadowRegion(t)

	for _, tc := range []struct {
		k    int8
		off  uintptr
		size uintptr
		want bool
	}{
		{1, 0, 1, true}, // even the first byte of a 1-valid granule trips
		{4, 0, 3, false},
		{4, 0, 4, true},
		{4, 2, 1, false},
		{4, 3, 1, true},
		{7, 0, 6, false},
		{7, 0, 7, true},
		{7, 6, 1, true},
		{7, 5, 1, false},
	} {
		shadow[0] = tc.k
		got := flagged(t, func() { CheckLoad(base+tc.off, tc.size) }, nil)
		if got != tc.want {
			t.Errorf("k=%d off=%d size=%d: flagged=%v want %v", tc.k, tc.off, tc.size, got, tc.want)
		}
		shadow[0] = 0
	}
}

func TestPoisonValueFlagsEverything(t *testing.T) {
	base, shadow := shadowRegion(t)
	shadow[1] = -1
	for size := uintptr(1); size <= 8; size++ {
		if !flagged(t, func() { CheckLoad(base+8, size) }, nil) {
			t.Errorf("load of %d at poisoned granule passed", size)
		}
	}
	shadow[1] = 0
}

func TestFixedSizeHooks(t *testing.T) {
	base, shadow := shadowRegion(t)
	shadow[2] = -1
	addr := base + 16

	for _, tc := range []struct {
		name  string
		check func()
	}{
		{"CheckLoad1", func() { CheckLoad1(addr) }},
		{"CheckLoad2", func() { CheckLoad2(addr) }},
		{"CheckLoad4", func() { CheckLoad4(addr) }},
		{"CheckLoad8", func() { CheckLoad8(addr) }},
		{"CheckLoad16", func() { CheckLoad16(addr) }},
		{"CheckStore1", func() { CheckStore1(addr) }},
		{"CheckStore2", func() { CheckStore2(addr) }},
		{"CheckStore4", func() { CheckStore4(addr) }},
		{"CheckStore8", func() { CheckStore8(addr) }},
		{"CheckStore16", func() { CheckStore16(addr) }},
	} {
		if !flagged(t, tc.check, nil) {
			t.Errorf("%s at poisoned granule passed", tc.name)
		}
	}
	shadow[2] = 0
}

func TestReportFormat(t *testing.T) {
	base, shadow := shadowRegion(t)
	shadow[0] = -1

	var out string
	if !flagged(t, func() { CheckStore8(base) }, &out) {
		t.Fatalf("store at poisoned granule passed")
	}
	shadow[0] = 0

	if !strings.Contains(out, "\nKASAN: Use-after-free or out-of-bounds access\n") {
		t.Errorf("report missing banner:\n%s", out)
	}
	if !strings.Contains(out, "Addr: ") || !strings.Contains(out, " IP: ") {
		t.Errorf("report missing address or call site:\n%s", out)
	}

	// The echoed address is the faulting one, not its shadow.
	var hex [16]byte
	for i := 0; i < 16; i++ {
		hex[i] = "0123456789ABCDEF"[(uint64(base)>>uint(60-4*i))&0xF]
	}
	if !strings.Contains(out, "Addr: "+string(hex[:])) {
		t.Errorf("report echoes wrong address:\n%s", out)
	}
}

func TestShadowAddress(t *testing.T) {
	Init(DefaultShadowOffset)
	const addr = uintptr(0xffff800000201238)
	if got, want := ShadowAddress(addr), addr>>3+DefaultShadowOffset; got != want {
		t.Errorf("shadow address: got %#x want %#x", got, want)
	}
}

func TestInertHooks(t *testing.T) {
	// Must be callable and do nothing.
	HandleNoReturn()
	BeforeDynamicInit("core")
	AfterDynamicInit()
}
