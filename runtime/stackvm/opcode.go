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

// Package stackvm implements the default module kind named in spec
// section 4.9 (component C10): opcode decode, an evaluation stack,
// call frames, and dispatch into opaque tensor kernels.
//
// The instruction table shape (a single-byte opcode, unaligned
// little-endian immediates decoded per fixed per-opcode layout) is
// grounded on the teacher's own bytecode package
// (github.com/SnellerInc/sneller/vm/bytecode.go), though the teacher's
// actual opcode set is SIMD-lane-oriented for row batches; this
// rewrite's opcodes are the stack-machine set spec section 4.9 names
// verbatim.
package stackvm

// Opcode is a single-byte instruction tag (spec section 4.9).
type Opcode uint8

const (
	OpNop Opcode = iota

	// Constants
	OpLdcI4   // i32 immediate
	OpLdcR4   // f32 immediate
	OpLdcR4_0 // push 0.0f
	OpLdcR4_1 // push 1.0f

	// Local/arg
	OpLdArg // u8 index: push parameter
	OpLdLoc // u8 index: push local
	OpStLoc // u8 index: pop into local

	// Stack housekeeping
	OpDup
	OpPop

	// Arithmetic (pop two scalars, push one)
	OpNeg
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpDivU
	OpRem
	OpRemU

	// Comparison (pop two scalars, push i32 boolean)
	OpClt
	OpCle
	OpCeq
	OpCge
	OpCgt
	OpCne

	// Control flow
	OpBr      // i24 signed offset
	OpBrTrue  // i24 signed offset
	OpBrFalse // i24 signed offset
	OpCall    // u16 function index, u8 arg count
	OpRet

	// Tensor ops: u8 tensor-op-kind selecting the descriptor decoder,
	// descriptor bytes follow (see descriptor.go).
	OpTensorOp

	// Custom calls: u64 siphash key into the process-wide
	// CustomCallRegistry, u8 arg count.
	OpCustomCall

	// Error
	OpThrow

	opcodeCount
)

var opcodeNames = [...]string{
	OpNop:        "nop",
	OpLdcI4:      "ldc.i4",
	OpLdcR4:      "ldc.r4",
	OpLdcR4_0:    "ldc.r4.0",
	OpLdcR4_1:    "ldc.r4.1",
	OpLdArg:      "ldarg",
	OpLdLoc:      "ldloc",
	OpStLoc:      "stloc",
	OpDup:        "dup",
	OpPop:        "pop",
	OpNeg:        "neg",
	OpNot:        "not",
	OpAdd:        "add",
	OpSub:        "sub",
	OpMul:        "mul",
	OpDiv:        "div",
	OpDivU:       "div.u",
	OpRem:        "rem",
	OpRemU:       "rem.u",
	OpClt:        "clt",
	OpCle:        "cle",
	OpCeq:        "ceq",
	OpCge:        "cge",
	OpCgt:        "cgt",
	OpCne:        "cne",
	OpBr:         "br",
	OpBrTrue:     "br.true",
	OpBrFalse:    "br.false",
	OpCall:       "call",
	OpRet:        "ret",
	OpTensorOp:   "tensor.op",
	OpCustomCall: "custom.call",
	OpThrow:      "throw",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "unknown"
}

func (op Opcode) valid() bool { return op < opcodeCount }

// TensorOpKind selects which descriptor OpTensorOp decodes (spec
// section 4.9, "the family is fixed"). Only TensorAdd, TensorSub and
// TensorMul are dispatched through the kernel registry; OpTensorOp
// returns NotSupported for every other kind.
type TensorOpKind uint8

const (
	TensorAdd TensorOpKind = iota
	TensorSub
	TensorMul
	TensorTranspose
	TensorSlice
	TensorReshape
	TensorPad
	TensorSortAsc
	TensorSortDesc
	TensorConvert
	TensorBroadcast
	TensorQuantize
	TensorDequantize
	TensorClamp

	tensorOpKindCount
)

var tensorOpKindNames = [...]string{
	TensorAdd:       "add_t",
	TensorSub:       "sub_t",
	TensorMul:       "mul_t",
	TensorTranspose: "transpose_t",
	TensorSlice:     "slice_t",
	TensorReshape:   "reshape_t",
	TensorPad:       "pad_t",
	TensorSortAsc:   "sort_asc_t",
	TensorSortDesc:  "sort_desc_t",
	TensorConvert:   "convert_t",
	TensorBroadcast: "broadcast_t",
	TensorQuantize:  "quantize_t",
	TensorDequantize: "dequantize_t",
	TensorClamp:     "clamp_t",
}

func (k TensorOpKind) String() string {
	if int(k) < len(tensorOpKindNames) && tensorOpKindNames[k] != "" {
		return tensorOpKindNames[k]
	}
	return "unknown"
}
