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

// Package ring0 owns the privileged bring-up of a single x86-64 core: the
// segment and task descriptor tables, the exception and interrupt entry
// paths, and the fast system call protocol.
//
// The boot-time contract is a fixed ordering:
//
//	InstallGDTAndTSS(stackTop)
//	InstallIDT()
//	InstallSyscallMSRs()
//	EnableFSGSBase()   // optional
//	JumpToUser(rip, rsp)
//
// The TSS must exist before the interrupt and syscall entry stubs can use
// its ring-0 stack and scratch fields, so InstallGDTAndTSS always runs
// first. After boot the entry paths are reached only by hardware traps and
// the SYSCALL instruction, never by direct calls.
package ring0
