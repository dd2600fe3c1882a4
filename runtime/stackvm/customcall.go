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

package stackvm

import (
	"github.com/dchest/siphash"

	"github.com/nncase-go/runtime/kerr"
)

// customCallKey0/customCallKey1 are the fixed siphash key halves used
// to fingerprint custom-call names, chosen the same way the teacher
// picks a process-wide siphash key for its symbol table
// (github.com/SnellerInc/sneller/vm/radix64.go uses a per-table
// random key; this registry instead uses a fixed key since its
// entries must be addressable by name across separately compiled
// modules that never share VM state).
const (
	customCallKey0 = 0x6e6e636173652d67 // "nncase-g"
	customCallKey1 = 0x6f2d72756e74696d // "o-runtim"
)

// CustomCallKey hashes a dialect-qualified custom-call name into the
// 64-bit key a `call` instruction's custom-call descriptor carries
// (spec section 4.9, "Custom calls").
func CustomCallKey(qualifiedName string) uint64 {
	return siphash.Hash(customCallKey0, customCallKey1, []byte(qualifiedName))
}

// CustomCallFunc is a module-registered native extension, reached from
// the VM loop's OpCustomCall instruction.
type CustomCallFunc func(ctx *KernelContext, args []Cell) ([]Cell, *kerr.Error)

// CustomCallRegistry is the per-module-kind table of registered
// extensions, populated at module-creation time (spec section 4.9).
type CustomCallRegistry struct {
	funcs map[uint64]CustomCallFunc
}

// NewCustomCallRegistry returns an empty registry.
func NewCustomCallRegistry() *CustomCallRegistry {
	return &CustomCallRegistry{funcs: make(map[uint64]CustomCallFunc)}
}

// Register installs fn under the siphash key of name.
func (r *CustomCallRegistry) Register(name string, fn CustomCallFunc) {
	r.funcs[CustomCallKey(name)] = fn
}

func (r *CustomCallRegistry) lookup(key uint64) (CustomCallFunc, bool) {
	fn, ok := r.funcs[key]
	return fn, ok
}
