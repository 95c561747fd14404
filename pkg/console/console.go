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

// Package console provides the diagnostic text output used by the trap,
// syscall and shadow-memory paths.
//
// All output funnels through a single byte-emit primitive supplied by the
// platform, typically a UART transmit routine. Everything here must be
// callable from an interrupt stack: no allocation, no formatting machinery,
// just fixed strings and hex.
package console

// Emit is the byte output primitive. The platform wires it during early
// boot; until then output is dropped.
var Emit func(b byte)

// Print writes s through the emit primitive.
//
//go:nosplit
func Print(s string) {
	if Emit == nil {
		return
	}
	for i := 0; i < len(s); i++ {
		Emit(s[i])
	}
}

const hexDigits = "0123456789ABCDEF"

// PrintHex64 writes v as 16 uppercase hex digits, most significant nibble
// first.
//
//go:nosplit
func PrintHex64(v uint64) {
	if Emit == nil {
		return
	}
	for i := 60; i >= 0; i -= 4 {
		Emit(hexDigits[(v>>uint(i))&0xF])
	}
}
