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

// Binary corediag decodes raw descriptor-table, trap-frame and shadow-byte
// dumps captured from the kernel's serial log, so a crash can be analyzed
// on the host without re-deriving the bit layouts by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(gdtCmd), "decode")
	subcommands.Register(new(idtCmd), "decode")
	subcommands.Register(new(trapframeCmd), "decode")
	subcommands.Register(new(shadowCmd), "decode")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// fatalf prints an error in a consistent format and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "corediag: "+format+"\n", args...)
	os.Exit(128)
}

// parseHex64 parses a serial-dump hex value, with or without 0x.
func parseHex64(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad hex value %q: %w", s, err)
	}
	return v, nil
}
