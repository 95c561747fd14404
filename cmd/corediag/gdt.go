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

// gdtCmd implements subcommands.Command for the "gdt" command.
type gdtCmd struct {
	tss bool
}

// Name implements subcommands.Command.
func (*gdtCmd) Name() string {
	return "gdt"
}

// Synopsis implements subcommands.Command.
func (*gdtCmd) Synopsis() string {
	return "decodes raw GDT descriptor values from a table dump"
}

// Usage implements subcommands.Command.
func (*gdtCmd) Usage() string {
	return `gdt [-tss] <descriptor>...

Each argument is one raw 64-bit descriptor as dumped, index order. With
-tss the last two arguments are treated as a TSS descriptor pair.
`
}

// SetFlags implements subcommands.Command.
func (g *gdtCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&g.tss, "tss", false, "treat the final two values as a TSS low/high pair.")
}

// Execute implements subcommands.Command.Execute.
func (g *gdtCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	raws := make([]uint64, 0, f.NArg())
	for _, arg := range f.Args() {
		v, err := parseHex64(arg)
		if err != nil {
			fatalf("%v", err)
		}
		raws = append(raws, v)
	}

	last := len(raws)
	if g.tss {
		if len(raws) < 2 {
			fatalf("-tss needs a low and a high descriptor value")
		}
		last = len(raws) - 2
	}
	for i, raw := range raws[:last] {
		printDescriptor(i, raw)
	}
	if g.tss {
		printTSSDescriptor(last, raws[last], raws[last+1])
	}
	return subcommands.ExitSuccess
}

func printDescriptor(index int, raw uint64) {
	d := ring0.SegmentDescriptorFromRaw(raw)
	if raw == 0 {
		fmt.Printf("[%d] %016x null\n", index, raw)
		return
	}
	fmt.Printf("[%d] %016x base=%#x limit=%#x dpl=%d %s\n",
		index, raw, d.Base(), d.Limit(), d.DPL(), flagNames(d.Flags()))
}

func printTSSDescriptor(index int, lo, hi uint64) {
	d := ring0.SegmentDescriptorFromRaw(lo)
	base := uint64(d.Base()) | hi<<32
	fmt.Printf("[%d] %016x/%016x tss base=%#x limit=%#x dpl=%d %s\n",
		index, lo, hi, base, d.Limit(), d.DPL(), flagNames(d.Flags()))
}

func flagNames(flags ring0.SegmentDescriptorFlags) string {
	var names []string
	for _, fl := range []struct {
		bit  ring0.SegmentDescriptorFlags
		name string
	}{
		{ring0.SegmentDescriptorPresent, "present"},
		{ring0.SegmentDescriptorSystem, "codedata"},
		{ring0.SegmentDescriptorExecute, "execute"},
		{ring0.SegmentDescriptorWrite, "write"},
		{ring0.SegmentDescriptorAccess, "accessed"},
		{ring0.SegmentDescriptorExpandDown, "expanddown"},
		{ring0.SegmentDescriptorLong, "long"},
		{ring0.SegmentDescriptorDB, "db"},
		{ring0.SegmentDescriptorG, "4k"},
	} {
		if flags&fl.bit != 0 {
			names = append(names, fl.name)
		}
	}
	if names == nil {
		return "-"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += "," + n
	}
	return out
}
