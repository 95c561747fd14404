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

	"github.com/google/subcommands"
	"github.com/tinted-software/os-experiment/pkg/ring0"
)

// idtCmd implements subcommands.Command for the "idt" command.
type idtCmd struct {
	vector int
}

// Name implements subcommands.Command.
func (*idtCmd) Name() string {
	return "idt"
}

// Synopsis implements subcommands.Command.
func (*idtCmd) Synopsis() string {
	return "decodes raw IDT gate pairs from a table dump"
}

// Usage implements subcommands.Command.
func (*idtCmd) Usage() string {
	return `idt [-vector N] <low> <high> [<low> <high>...]

Each gate is two raw 64-bit words as dumped, low word first. -vector
numbers the output starting at N.
`
}

// SetFlags implements subcommands.Command.
func (i *idtCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&i.vector, "vector", 0, "vector number of the first gate.")
}

// Execute implements subcommands.Command.Execute.
func (i *idtCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 || f.NArg()%2 != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	for n := 0; n < f.NArg(); n += 2 {
		lo, err := parseHex64(f.Arg(n))
		if err != nil {
			fatalf("%v", err)
		}
		hi, err := parseHex64(f.Arg(n + 1))
		if err != nil {
			fatalf("%v", err)
		}
		printGate(i.vector+n/2, lo, hi)
	}
	return subcommands.ExitSuccess
}

func printGate(vector int, lo, hi uint64) {
	g := ring0.Gate64FromRaw(lo, hi)
	if !g.Present() {
		fmt.Printf("[%3d] not present\n", vector)
		return
	}
	kind := "non-interrupt"
	if g.IsInterruptGate() {
		kind = "interrupt"
	}
	fmt.Printf("[%3d] target=%#x cs=%#x ist=%d dpl=%d %s\n",
		vector, g.Target(), g.CS(), g.IST(), g.DPL(), kind)
}
