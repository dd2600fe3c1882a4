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
	"encoding/binary"
	"math"

	"github.com/nncase-go/runtime/buffer"
	"github.com/nncase-go/runtime/internal/trace"
	"github.com/nncase-go/runtime/kerr"
)

// DefaultMaxStackDepth is the fixed evaluation-stack ceiling named in
// spec section 4.9 ("64 is a safe default, configurable at build
// time").
const DefaultMaxStackDepth = 64

// FunctionEntry describes one callable function for intra-module
// `call` instructions: its own text bytes and the entrypoint offset
// within them. Each function record on disk carries its own text
// (spec section 4.7, "sections per-function section records, then the
// function text"), so a `call` crosses into a different text buffer
// rather than a different offset of a shared one.
type FunctionEntry struct {
	Text       []byte
	Entrypoint int
	NumParams  int
	NumLocals  int
}

// frame is one call frame: where to resume (text + IP) once this
// frame's `ret` fires, the parameter window, and a fixed-size local
// slot array (spec section 4.9, "call frames holding return IP, base
// of locals, and parameter window").
type frame struct {
	returnText []byte
	returnIP   int
	params     []Cell
	locals     []Cell
}

// VM executes stack-VM module-kind functions (spec section 4.9,
// component C10). A VM value is reused across invocations; each Run
// call starts with a fresh stack and frame set.
type VM struct {
	Functions   []FunctionEntry
	Kernels     *KernelRegistry
	CustomCalls *CustomCallRegistry
	Host        *buffer.HostAllocator

	MaxStackDepth int

	stack  []Cell
	frames []frame
}

// New builds a VM ready to execute against the given intra-module
// function table, kernel registry, custom-call registry, and host
// allocator.
func New(functions []FunctionEntry, kernels *KernelRegistry, customCalls *CustomCallRegistry, host *buffer.HostAllocator) *VM {
	return &VM{
		Functions:     functions,
		Kernels:       kernels,
		CustomCalls:   customCalls,
		Host:          host,
		MaxStackDepth: DefaultMaxStackDepth,
	}
}

func (vm *VM) push(c Cell) *kerr.Error {
	if len(vm.stack) >= vm.MaxStackDepth {
		return kerr.New(kerr.InvalidProgram, "evaluation stack overflow (max depth %d)", vm.MaxStackDepth)
	}
	vm.stack = append(vm.stack, c)
	return nil
}

func (vm *VM) pop() (Cell, *kerr.Error) {
	if len(vm.stack) == 0 {
		return Cell{}, kerr.New(kerr.InvalidProgram, "evaluation stack underflow")
	}
	c := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return c, nil
}

// Run executes the function whose text is text starting at entrypoint
// with the given parameters, and returns the value left on the stack
// by the matching `ret` (spec section 4.8, step 3: "the stack-VM
// implementation enters the VM's main loop from the function's
// entrypoint offset in the text section").
func (vm *VM) Run(text []byte, entrypoint int, params []Cell, numLocals int) (Cell, *kerr.Error) {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.frames = append(vm.frames, frame{
		params: params,
		locals: make([]Cell, numLocals),
	})
	ip := entrypoint

	for {
		if ip < 0 || ip >= len(text) {
			return Cell{}, kerr.New(kerr.InvalidProgram, "ip %d out of bounds (text size %d)", ip, len(text))
		}
		op := Opcode(text[ip])
		if !op.valid() {
			return Cell{}, kerr.New(kerr.InvalidProgram, "opcode %d out of range at ip %d", op, ip)
		}
		trace.Logf(trace.VM, "vm: ip=%d op=%s depth=%d", ip, op, len(vm.stack))
		nextIP := ip + 1

		switch op {
		case OpNop:

		case OpLdcI4:
			v, err := readI32(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			if err := vm.push(scalarI32(v)); err != nil {
				return Cell{}, err
			}
			nextIP += 4

		case OpLdcR4:
			v, err := readF32(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			if err := vm.push(scalarF32(v)); err != nil {
				return Cell{}, err
			}
			nextIP += 4

		case OpLdcR4_0:
			if err := vm.push(scalarF32(0)); err != nil {
				return Cell{}, err
			}

		case OpLdcR4_1:
			if err := vm.push(scalarF32(1)); err != nil {
				return Cell{}, err
			}

		case OpLdArg:
			idx, err := readU8(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			f := vm.top()
			if int(idx) >= len(f.params) {
				return Cell{}, kerr.New(kerr.InvalidProgram, "ldarg index %d out of range (%d params)", idx, len(f.params))
			}
			if err := vm.push(f.params[idx]); err != nil {
				return Cell{}, err
			}
			nextIP++

		case OpLdLoc:
			idx, err := readU8(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			f := vm.top()
			if int(idx) >= len(f.locals) {
				return Cell{}, kerr.New(kerr.InvalidProgram, "ldloc index %d out of range (%d locals)", idx, len(f.locals))
			}
			if err := vm.push(f.locals[idx]); err != nil {
				return Cell{}, err
			}
			nextIP++

		case OpStLoc:
			idx, err := readU8(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			v, perr := vm.pop()
			if perr != nil {
				return Cell{}, perr
			}
			f := vm.top()
			if int(idx) >= len(f.locals) {
				return Cell{}, kerr.New(kerr.InvalidProgram, "stloc index %d out of range (%d locals)", idx, len(f.locals))
			}
			f.locals[idx] = v
			nextIP++

		case OpDup:
			v, err := vm.pop()
			if err != nil {
				return Cell{}, err
			}
			if err := vm.push(v); err != nil {
				return Cell{}, err
			}
			if err := vm.push(v); err != nil {
				return Cell{}, err
			}

		case OpPop:
			if _, err := vm.pop(); err != nil {
				return Cell{}, err
			}

		case OpNeg, OpNot:
			v, err := vm.pop()
			if err != nil {
				return Cell{}, err
			}
			var r Cell
			if op == OpNeg {
				r = scalarI32(-v.asI32())
			} else {
				r = boolCell(!v.asBool())
			}
			if err := vm.push(r); err != nil {
				return Cell{}, err
			}

		case OpAdd, OpSub, OpMul, OpDiv, OpDivU, OpRem, OpRemU:
			r, err := vm.binaryScalar(op)
			if err != nil {
				return Cell{}, err
			}
			if err := vm.push(r); err != nil {
				return Cell{}, err
			}

		case OpClt, OpCle, OpCeq, OpCge, OpCgt, OpCne:
			r, err := vm.compareScalar(op)
			if err != nil {
				return Cell{}, err
			}
			if err := vm.push(r); err != nil {
				return Cell{}, err
			}

		case OpBr:
			off, err := readI24(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			nextIP = ip + 1 + 3 + off

		case OpBrTrue, OpBrFalse:
			off, err := readI24(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			target := ip + 1 + 3 + off
			v, perr := vm.pop()
			if perr != nil {
				return Cell{}, perr
			}
			nextIP += 3
			if (op == OpBrTrue) == v.asBool() {
				nextIP = target
			}

		case OpCall:
			fnIdx, err := readU16(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			argc, err := readU8(text, nextIP+2)
			if err != nil {
				return Cell{}, err
			}
			nextIP += 3
			if int(fnIdx) >= len(vm.Functions) {
				return Cell{}, kerr.New(kerr.InvalidProgram, "call target %d out of range", fnIdx)
			}
			fe := vm.Functions[fnIdx]
			if int(argc) != fe.NumParams {
				return Cell{}, kerr.New(kerr.InvalidProgram, "call to function %d expected %d args, got %d", fnIdx, fe.NumParams, argc)
			}
			args := make([]Cell, argc)
			for i := int(argc) - 1; i >= 0; i-- {
				v, perr := vm.pop()
				if perr != nil {
					return Cell{}, perr
				}
				args[i] = v
			}
			vm.frames = append(vm.frames, frame{
				returnText: text,
				returnIP:   nextIP,
				params:     args,
				locals:     make([]Cell, fe.NumLocals),
			})
			text = fe.Text
			nextIP = fe.Entrypoint

		case OpRet:
			f := vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				return vm.pop()
			}
			text = f.returnText
			nextIP = f.returnIP

		case OpTensorOp:
			kind, err := readU8(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			n, rerr := vm.execTensorOp(kind, text, nextIP+1)
			if rerr != nil {
				return Cell{}, rerr
			}
			nextIP = n

		case OpCustomCall:
			key, err := readU64(text, nextIP)
			if err != nil {
				return Cell{}, err
			}
			argc, err := readU8(text, nextIP+8)
			if err != nil {
				return Cell{}, err
			}
			nextIP += 9
			fn, ok := vm.CustomCalls.lookup(key)
			if !ok {
				return Cell{}, kerr.New(kerr.NotFound, "no custom call registered for key %#x", key)
			}
			args := make([]Cell, argc)
			for i := int(argc) - 1; i >= 0; i-- {
				v, perr := vm.pop()
				if perr != nil {
					return Cell{}, perr
				}
				args[i] = v
			}
			results, cerr := fn(&KernelContext{Host: vm.Host}, args)
			if cerr != nil {
				return Cell{}, cerr
			}
			for _, r := range results {
				if err := vm.push(r); err != nil {
					return Cell{}, err
				}
			}

		case OpThrow:
			return Cell{}, kerr.New(kerr.InvalidProgram, "throw instruction reached at ip %d", ip)

		default:
			return Cell{}, kerr.New(kerr.InvalidProgram, "unhandled opcode %s at ip %d", op, ip)
		}

		ip = nextIP
	}
}

func (vm *VM) top() *frame { return &vm.frames[len(vm.frames)-1] }

func (vm *VM) execTensorOp(kindByte byte, text []byte, off int) (int, *kerr.Error) {
	kind := TensorOpKind(kindByte)
	switch kind {
	case TensorAdd, TensorSub, TensorMul:
		desc, n, err := decodeBinaryTensorDescriptor(text[off:])
		if err != nil {
			return 0, err
		}
		rhs, perr := vm.pop()
		if perr != nil {
			return 0, perr
		}
		lhs, perr := vm.pop()
		if perr != nil {
			return 0, perr
		}
		if lhs.Kind != CellTensor || rhs.Kind != CellTensor {
			return 0, kerr.New(kerr.InvalidProgram, "%s requires two tensor operands", kind)
		}
		kernel, ok := vm.Kernels.lookup(kind)
		if !ok {
			return 0, kerr.New(kerr.NotSupported, "no kernel registered for %s", kind)
		}
		result, kerr2 := kernel(&KernelContext{Host: vm.Host}, desc, lhs.Tensor, rhs.Tensor)
		if kerr2 != nil {
			return 0, kerr2
		}
		if err := vm.push(Cell{Kind: CellTensor, Tensor: result}); err != nil {
			return 0, err
		}
		return off + n, nil
	default:
		return 0, kerr.New(kerr.NotSupported, "tensor op %s has no registered kernel in this build", kind)
	}
}

func (vm *VM) binaryScalar(op Opcode) (Cell, *kerr.Error) {
	rhs, err := vm.pop()
	if err != nil {
		return Cell{}, err
	}
	lhs, err := vm.pop()
	if err != nil {
		return Cell{}, err
	}
	a, b := lhs.asI32(), rhs.asI32()
	switch op {
	case OpAdd:
		return scalarI32(a + b), nil
	case OpSub:
		return scalarI32(a - b), nil
	case OpMul:
		return scalarI32(a * b), nil
	case OpDiv:
		if b == 0 {
			return Cell{}, kerr.New(kerr.InvalidProgram, "division by zero")
		}
		return scalarI32(a / b), nil
	case OpDivU:
		ua, ub := lhs.asU32(), rhs.asU32()
		if ub == 0 {
			return Cell{}, kerr.New(kerr.InvalidProgram, "division by zero")
		}
		return scalarI32(int32(ua / ub)), nil
	case OpRem:
		if b == 0 {
			return Cell{}, kerr.New(kerr.InvalidProgram, "division by zero")
		}
		return scalarI32(a % b), nil
	case OpRemU:
		ua, ub := lhs.asU32(), rhs.asU32()
		if ub == 0 {
			return Cell{}, kerr.New(kerr.InvalidProgram, "division by zero")
		}
		return scalarI32(int32(ua % ub)), nil
	}
	return Cell{}, kerr.New(kerr.InvalidProgram, "unreachable binary op %s", op)
}

func (vm *VM) compareScalar(op Opcode) (Cell, *kerr.Error) {
	rhs, err := vm.pop()
	if err != nil {
		return Cell{}, err
	}
	lhs, err := vm.pop()
	if err != nil {
		return Cell{}, err
	}
	a, b := lhs.asI32(), rhs.asI32()
	switch op {
	case OpClt:
		return boolCell(a < b), nil
	case OpCle:
		return boolCell(a <= b), nil
	case OpCeq:
		return boolCell(a == b), nil
	case OpCge:
		return boolCell(a >= b), nil
	case OpCgt:
		return boolCell(a > b), nil
	case OpCne:
		return boolCell(a != b), nil
	}
	return Cell{}, kerr.New(kerr.InvalidProgram, "unreachable compare op %s", op)
}

func readU8(text []byte, off int) (byte, *kerr.Error) {
	if off < 0 || off >= len(text) {
		return 0, kerr.New(kerr.InvalidProgram, "read u8 out of bounds at %d", off)
	}
	return text[off], nil
}

func readU16(text []byte, off int) (uint16, *kerr.Error) {
	if off < 0 || off+2 > len(text) {
		return 0, kerr.New(kerr.InvalidProgram, "read u16 out of bounds at %d", off)
	}
	return binary.LittleEndian.Uint16(text[off:]), nil
}

func readU64(text []byte, off int) (uint64, *kerr.Error) {
	if off < 0 || off+8 > len(text) {
		return 0, kerr.New(kerr.InvalidProgram, "read u64 out of bounds at %d", off)
	}
	return binary.LittleEndian.Uint64(text[off:]), nil
}

func readI32(text []byte, off int) (int32, *kerr.Error) {
	if off < 0 || off+4 > len(text) {
		return 0, kerr.New(kerr.InvalidProgram, "read i32 out of bounds at %d", off)
	}
	return int32(binary.LittleEndian.Uint32(text[off:])), nil
}

func readF32(text []byte, off int) (float32, *kerr.Error) {
	v, err := readI32(text, off)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// readI24 decodes a 24-bit signed little-endian offset (spec section
// 4.9: "br and br_true/br_false use a 24-bit signed offset").
func readI24(text []byte, off int) (int, *kerr.Error) {
	if off < 0 || off+3 > len(text) {
		return 0, kerr.New(kerr.InvalidProgram, "read i24 out of bounds at %d", off)
	}
	raw := uint32(text[off]) | uint32(text[off+1])<<8 | uint32(text[off+2])<<16
	if raw&0x800000 != 0 {
		raw |= 0xFF000000
	}
	return int(int32(raw)), nil
}
