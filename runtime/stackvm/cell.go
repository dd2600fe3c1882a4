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
	"math"

	"github.com/nncase-go/runtime/tensor"
)

// CellKind tags the evaluation stack's cells (spec section 4.9,
// "tagged cells {scalar | tensor | tuple | ref}").
type CellKind uint8

const (
	CellScalar CellKind = iota
	CellTensor
	CellTuple
	CellRef
)

// Cell is one evaluation-stack slot. Scalars are carried as raw bits:
// integer opcodes interpret Bits as an i32/i64, float opcodes as an
// f32 via math.Float32bits, matching the untyped stack-slot idiom
// (the opcode, not the cell, determines width/signedness).
type Cell struct {
	Kind   CellKind
	Bits   uint64
	Tensor *tensor.Tensor
	Tuple  []Cell
}

func scalarI32(v int32) Cell  { return Cell{Kind: CellScalar, Bits: uint64(uint32(v))} }
func scalarF32(v float32) Cell { return Cell{Kind: CellScalar, Bits: uint64(math.Float32bits(v))} }

func (c Cell) asI32() int32    { return int32(uint32(c.Bits)) }
func (c Cell) asU32() uint32   { return uint32(c.Bits) }
func (c Cell) asF32() float32  { return math.Float32frombits(uint32(c.Bits)) }
func (c Cell) asBool() bool    { return c.Bits != 0 }

func boolCell(b bool) Cell {
	if b {
		return scalarI32(1)
	}
	return scalarI32(0)
}
