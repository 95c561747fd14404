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
	"os"
	"path/filepath"
	"testing"

	"github.com/tinted-software/os-experiment/pkg/ring0"
)

func TestParseHex64(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0x1b", 0x1b, true},
		{"DEADBEEF", 0xdeadbeef, true},
		{"0xFFFFFFFFFFFFFFFF", ^uint64(0), true},
		{"", 0, false},
		{"xyz", 0, false},
	} {
		got, err := parseHex64(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("parseHex64(%q): err = %v, want ok=%v", tc.in, err, tc.ok)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("parseHex64(%q): got %#x want %#x", tc.in, got, tc.want)
		}
	}
}

func TestFlagNames(t *testing.T) {
	flags := ring0.SegmentDescriptorPresent |
		ring0.SegmentDescriptorSystem |
		ring0.SegmentDescriptorExecute |
		ring0.SegmentDescriptorLong |
		ring0.SegmentDescriptorG
	if got, want := flagNames(flags), "present,codedata,execute,long,4k"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if got := flagNames(0); got != "-" {
		t.Errorf("empty flags: got %q want -", got)
	}
}

func TestLoadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte("shadow_offset = \"0xdffffc0000000000\"\n"), 0644); err != nil {
		t.Fatalf("writing layout: %v", err)
	}
	offset, err := loadLayout(path)
	if err != nil {
		t.Fatalf("loadLayout: %v", err)
	}
	if offset != 0xdffffc0000000000 {
		t.Errorf("offset: got %#x want 0xdffffc0000000000", offset)
	}
}

func TestLoadLayoutMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("writing layout: %v", err)
	}
	if _, err := loadLayout(path); err == nil {
		t.Errorf("empty layout accepted")
	}
}
