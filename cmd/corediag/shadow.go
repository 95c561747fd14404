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

	"github.com/BurntSushi/toml"
	"github.com/google/subcommands"
	"github.com/tinted-software/os-experiment/pkg/kasan"
)

// layoutConfig mirrors the memory-layout file a target build ships next to
// its serial logs. Addresses are hex strings since TOML integers cannot
// carry the high shadow offset.
type layoutConfig struct {
	ShadowOffset string `toml:"shadow_offset"`
}

// loadLayout reads the layout file and returns the shadow offset.
func loadLayout(path string) (uintptr, error) {
	var cfg layoutConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return 0, fmt.Errorf("layout config %s: %w", path, err)
	}
	if cfg.ShadowOffset == "" {
		return 0, fmt.Errorf("layout config %s: shadow_offset missing", path)
	}
	v, err := parseHex64(cfg.ShadowOffset)
	if err != nil {
		return 0, fmt.Errorf("layout config %s: %w", path, err)
	}
	return uintptr(v), nil
}

// shadowCmd implements subcommands.Command for the "shadow" command.
type shadowCmd struct {
	config string
	size   uint
}

// Name implements subcommands.Command.
func (*shadowCmd) Name() string {
	return "shadow"
}

// Synopsis implements subcommands.Command.
func (*shadowCmd) Synopsis() string {
	return "maps addresses to shadow bytes and judges dumped shadow values"
}

// Usage implements subcommands.Command.
func (*shadowCmd) Usage() string {
	return `shadow [-config layout.toml] [-size N] <addr> [<shadowbyte>]

Prints the shadow byte address for addr. Given a dumped shadow byte value
as well, also reports whether an access of -size bytes at addr trips the
checker.
`
}

// SetFlags implements subcommands.Command.
func (s *shadowCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.config, "config", "", "memory-layout TOML file; default shadow placement if empty.")
	f.UintVar(&s.size, "size", 8, "access size in bytes for the verdict.")
}

// Execute implements subcommands.Command.Execute.
func (s *shadowCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() < 1 || f.NArg() > 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	offset := kasan.DefaultShadowOffset
	if s.config != "" {
		var err error
		offset, err = loadLayout(s.config)
		if err != nil {
			fatalf("%v", err)
		}
	}
	kasan.Init(offset)

	addr, err := parseHex64(f.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("shadow(%#x) = %#x\n", addr, kasan.ShadowAddress(uintptr(addr)))

	if f.NArg() == 2 {
		sb, err := parseHex64(f.Arg(1))
		if err != nil {
			fatalf("%v", err)
		}
		verdict := "passes"
		if kasan.Poisoned(int8(sb), uintptr(addr), uintptr(s.size)) {
			verdict = "trips"
		}
		fmt.Printf("access of %d at %#x under shadow %#02x: %s\n", s.size, addr, int8(sb), verdict)
	}
	return subcommands.ExitSuccess
}
