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

// Offsets reached by the assembly entry points through the KERNEL_GS_BASE
// pointer, which InstallSyscallMSRs aims at the TSS. The #define values in
// entry_amd64.s must match these.
const (
	// tssRSP0Offset is the ring-0 stack field.
	tssRSP0Offset = 4

	// tssScratchOffset is the rsp1 field, repurposed as the saved user
	// stack pointer for the duration of a syscall.
	tssScratchOffset = 12
)

var (
	_ [unsafe.Offsetof(TaskState64{}.rsp0Lo) - tssRSP0Offset]byte
	_ [tssRSP0Offset - unsafe.Offsetof(TaskState64{}.rsp0Lo)]byte
	_ [unsafe.Offsetof(TaskState64{}.rsp1Lo) - tssScratchOffset]byte
	_ [tssScratchOffset - unsafe.Offsetof(TaskState64{}.rsp1Lo)]byte
)
