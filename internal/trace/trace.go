// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package trace is the ambient diagnostic logger shared by ir, model,
// buffer, tensor, and runtime. It mirrors vm.Trace
// (github.com/SnellerInc/sneller/vm/trace.go): disabled by default,
// enabled by calling Enable with an io.Writer and a flag set, and
// cheap to probe from a hot path via Enabled.
package trace

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Flags selects which diagnostic categories are emitted.
type Flags uint

const (
	// Loader traces model decode and inter-module resolution (C8).
	Loader Flags = 1 << iota
	// VM traces stack VM opcode dispatch (C10).
	VM
	// Buffer traces buffer map/sync/allocate calls (C11).
	Buffer
)

var (
	mu     sync.Mutex
	out    io.Writer
	active atomic.Uint32
)

func init() {
	if env := os.Getenv("NNCASE_TRACE"); env != "" {
		parsed := parseEnv(env)
		Enable(os.Stderr, parsed)
	}
}

func parseEnv(env string) Flags {
	var f Flags
	for _, tok := range splitComma(env) {
		switch tok {
		case "loader":
			f |= Loader
		case "vm":
			f |= VM
		case "buffer":
			f |= Buffer
		case "all":
			f |= Loader | VM | Buffer
		}
	}
	return f
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// Enable turns tracing on for the given flag set, writing to w. A nil
// w with flags == 0 disables tracing.
func Enable(w io.Writer, flags Flags) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	active.Store(uint32(flags))
}

// Enabled reports whether any of flags is currently active, without
// taking the lock; callers should guard expensive argument formatting
// with this check.
func Enabled(flags Flags) bool {
	return Flags(active.Load())&flags != 0
}

// Logf writes a formatted trace line if flags is active. It is a
// no-op otherwise.
func Logf(flags Flags, format string, args ...any) {
	if !Enabled(flags) {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	fmt.Fprintf(out, format+"\n", args...)
}
