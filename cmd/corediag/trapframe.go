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

package main

import (
	"context"
	"flag"
	"fmt"
	"unsafe"

	"github.com/google/subcommands"
	"github.com/tinted-software/os-experiment/pkg/ring0"
)

// trapframeCmd implements subcommands.Command for the "trapframe" command.
type trapframeCmd struct{}

// Name implements subcommands.Command.
func (*trapframeCmd) Name() string {
	return "trapframe"
}

// Synopsis implements subcommands.Command.
func (*trapframeCmd) Synopsis() string {
	return "decodes a raw trap-stack image into named registers"
}

// Usage implements subcommands.Command.
func (*trapframeCmd) Usage() string {
	return `trapframe <word>...

Takes the 22 stack words of a trapped context in memory order, lowest
address first, exactly as a stack dump prints them.
`
}

// SetFlags implements subcommands.Command.
func (*trapframeCmd) SetFlags(f *flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*trapframeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	var image [22]uint64
	if f.NArg() != len(image) {
		f.Usage()
		return subcommands.ExitUsageError
	}
	for n := range image {
		v, err := parseHex64(f.Arg(n))
		if err != nil {
			fatalf("%v", err)
		}
		image[n] = v
	}

	tf := ring0.TrapFrameAt(uintptr(unsafe.Pointer(&image[0])))
	for _, reg := range []struct {
		name string
		v    uint64
	}{
		{"vector", tf.Vector},
		{"error", tf.Error},
		{"rip", tf.Rip},
		{"cs", tf.Cs},
		{"rflags", tf.Rflags},
		{"rsp", tf.Rsp},
		{"ss", tf.Ss},
		{"rax", tf.Rax},
		{"rbx", tf.Rbx},
		{"rcx", tf.Rcx},
		{"rdx", tf.Rdx},
		{"rsi", tf.Rsi},
		{"rdi", tf.Rdi},
		{"rbp", tf.Rbp},
		{"r8", tf.R8},
		{"r9", tf.R9},
		{"r10", tf.R10},
		{"r11", tf.R11},
		{"r12", tf.R12},
		{"r13", tf.R13},
		{"r14", tf.R14},
		{"r15", tf.R15},
	} {
		fmt.Printf("%-6s %016x\n", reg.name, reg.v)
	}
	return subcommands.ExitSuccess
}
