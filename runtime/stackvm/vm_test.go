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
	"testing"

	"github.com/nncase-go/runtime/buffer"
	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/tensor"
	"github.com/nncase-go/runtime/types"
)

func newTestVM(t *testing.T, fns []FunctionEntry) (*VM, *buffer.HostAllocator) {
	t.Helper()
	host, err := buffer.NewHostAllocator(4 << 20)
	if err != nil {
		t.Fatalf("NewHostAllocator: %v", err)
	}
	return New(fns, NewKernelRegistry(), NewCustomCallRegistry(), host), host
}

func putF32(dst []byte, v float32) { binary.LittleEndian.PutUint32(dst, math.Float32bits(v)) }
func putI32(dst []byte, v int32)   { binary.LittleEndian.PutUint32(dst, uint32(v)) }

func TestFloatLiteralsRoundTripBits(t *testing.T) {
	text := make([]byte, 0, 16)
	text = append(text, byte(OpLdcR4))
	text = appendF32(text, 2.5)
	text = append(text, byte(OpPop))
	text = append(text, byte(OpLdcR4_1))
	text = append(text, byte(OpRet))

	vm, _ := newTestVM(t, nil)
	result, err := vm.Run(text, 0, nil, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.asF32() != 1.0 {
		t.Fatalf("result = %v, want 1.0", result.asF32())
	}
}

func TestIntegerArithmeticAndBranch(t *testing.T) {
	// locals[0] = 2, locals[1] = 3; if locals[0] < locals[1] push 100 else push 200; ret
	text := []byte{
		byte(OpLdcI4), 0, 0, 0, 0,
		byte(OpStLoc), 0,
		byte(OpLdcI4), 0, 0, 0, 0,
		byte(OpStLoc), 1,
	}
	putI32(text[1:5], 2)
	putI32(text[8:12], 3)
	text = append(text,
		byte(OpLdLoc), 0,
		byte(OpLdLoc), 1,
		byte(OpClt),
		byte(OpBrFalse), 0, 0, 0,
	)
	brFalseOperandAt := len(text) - 3
	thenStart := len(text)
	text = append(text, byte(OpLdcI4), 0, 0, 0, 0, byte(OpBr), 0, 0, 0)
	putI32(text[thenStart+1:thenStart+5], 100)
	brAt := thenStart + 5
	elseStart := len(text)
	text = append(text, byte(OpLdcI4), 0, 0, 0, 0)
	putI32(text[elseStart+1:elseStart+5], 200)
	endStart := len(text)
	text = append(text, byte(OpRet))

	// patch br_false target: branches to elseStart, offset relative to
	// instruction-end per the VM's i24 convention.
	patchI24(text, brFalseOperandAt, elseStart-(brFalseOperandAt+3))
	// patch br target: jumps over the else branch to endStart.
	patchI24(text, brAt+1, endStart-(brAt+4))

	vm, _ := newTestVM(t, nil)
	result, err := vm.Run(text, 0, nil, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.asI32() != 100 {
		t.Fatalf("result = %d, want 100", result.asI32())
	}
}

func TestCallAndReturn(t *testing.T) {
	// main: ldarg 0; call #1 (double, 1 arg); ret
	// double(x): ldarg 0; ldarg 0; add; ret
	main := []byte{byte(OpLdArg), 0, byte(OpCall), 1, 0, 1, byte(OpRet)}
	double := []byte{byte(OpLdArg), 0, byte(OpLdArg), 0, byte(OpAdd), byte(OpRet)}

	fns := []FunctionEntry{
		{}, // index 0 unused
		{Text: double, Entrypoint: 0, NumParams: 1, NumLocals: 0},
	}

	vm, _ := newTestVM(t, fns)
	result, err := vm.Run(main, 0, []Cell{scalarI32(21)}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.asI32() != 42 {
		t.Fatalf("result = %d, want 42", result.asI32())
	}
}

// TestVMBranchesOnFalseCondition exercises a function-local conditional
// branch end to end: 1 + 2 does not equal 3, so the false branch pushes
// 200 and returns it instead of the true branch's 100.
func TestVMBranchesOnFalseCondition(t *testing.T) {
	text := []byte{
		byte(OpLdcI4), 0, 0, 0, 0,
		byte(OpLdcI4), 0, 0, 0, 0,
		byte(OpAdd),
		byte(OpLdcI4), 0, 0, 0, 0,
		byte(OpCeq),
		byte(OpBrFalse), 0, 0, 0,
	}
	putI32(text[1:5], 1)
	putI32(text[6:10], 2)
	putI32(text[11:15], 3)
	brFalseOperandAt := len(text) - 3

	thenStart := len(text)
	text = append(text, byte(OpLdcI4), 0, 0, 0, 0, byte(OpRet))
	putI32(text[thenStart+1:thenStart+5], 100)

	elseStart := len(text)
	text = append(text, byte(OpLdcI4), 0, 0, 0, 0, byte(OpRet))
	putI32(text[elseStart+1:elseStart+5], 200)

	patchI24(text, brFalseOperandAt, elseStart-(brFalseOperandAt+3))

	vm, _ := newTestVM(t, nil)
	result, err := vm.Run(text, 0, nil, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.asI32() != 200 {
		t.Fatalf("result = %d, want 200", result.asI32())
	}
}

func TestStackOverflowIsInvalidProgram(t *testing.T) {
	text := []byte{}
	for i := 0; i < DefaultMaxStackDepth+1; i++ {
		text = append(text, byte(OpLdcI4), 0, 0, 0, 0)
	}
	text = append(text, byte(OpRet))
	vm, _ := newTestVM(t, nil)
	_, err := vm.Run(text, 0, nil, 0)
	if err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestCustomCallDispatch(t *testing.T) {
	text := []byte{byte(OpLdcI4), 0, 0, 0, 0}
	putI32(text[1:5], 7)
	text = append(text, byte(OpCustomCall))
	keyOff := len(text)
	text = append(text, make([]byte, 8)...)
	binary.LittleEndian.PutUint64(text[keyOff:], CustomCallKey("nncase.test.increment"))
	text = append(text, 1, byte(OpRet))

	vm, _ := newTestVM(t, nil)
	called := false
	vm.CustomCalls.Register("nncase.test.increment", func(ctx *KernelContext, args []Cell) ([]Cell, *kerr.Error) {
		called = true
		if len(args) != 1 || args[0].asI32() != 7 {
			t.Fatalf("unexpected args: %+v", args)
		}
		return []Cell{scalarI32(args[0].asI32() + 1)}, nil
	})
	result, err := vm.Run(text, 0, nil, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatalf("custom call was not invoked")
	}
	if result.asI32() != 8 {
		t.Fatalf("result = %d, want 8", result.asI32())
	}
}

// TestTensorSubBroadcast exercises a broadcasting binary tensor op
// end to end: lhs f32[2,1,3] minus rhs f32[1,2,3] broadcasts to shape
// [2,2,3].
func TestTensorSubBroadcast(t *testing.T) {
	host, err := buffer.NewHostAllocator(4 << 20)
	if err != nil {
		t.Fatalf("NewHostAllocator: %v", err)
	}

	lhs := makeF32Tensor(t, host, types.Shape{2, 1, 3}, []float32{1, 2, 3, 4, 5, 6})
	rhs := makeF32Tensor(t, host, types.Shape{1, 2, 3}, []float32{10, 20, 30, 40, 50, 60})

	text := []byte{byte(OpLdArg), 0, byte(OpLdArg), 1, byte(OpTensorOp), byte(TensorSub)}
	text = EncodeBinaryTensorDescriptor(text, BinaryTensorDescriptor{
		DT: types.Float32, LHSShape: types.Shape{2, 1, 3}, RHSShape: types.Shape{1, 2, 3},
	})
	text = append(text, byte(OpRet))

	kernels := NewKernelRegistry()
	customCalls := NewCustomCallRegistry()
	vm := New(nil, kernels, customCalls, host)
	params := []Cell{
		{Kind: CellTensor, Tensor: lhs},
		{Kind: CellTensor, Tensor: rhs},
	}

	result, rerr := vm.Run(text, 0, params, 0)
	if rerr != nil {
		t.Fatalf("Run: %v", rerr)
	}
	if result.Kind != CellTensor {
		t.Fatalf("result kind = %v, want tensor", result.Kind)
	}
	want := types.Shape{2, 2, 3}
	if !result.Tensor.Shape.Equal(want) {
		t.Fatalf("result shape = %v, want %v", result.Tensor.Shape, want)
	}

	got := readF32Tensor(t, result.Tensor)
	wantVals := []float32{-9, -18, -27, -39, -48, -57, -6, -15, -24, -36, -45, -54}
	for i := range wantVals {
		if got[i] != wantVals[i] {
			t.Fatalf("element %d = %v, want %v", i, got[i], wantVals[i])
		}
	}
}

func appendF32(dst []byte, v float32) []byte {
	var b [4]byte
	putF32(b[:], v)
	return append(dst, b[:]...)
}

// patchI24 overwrites the 3-byte signed little-endian offset at text[at:at+3].
func patchI24(text []byte, at int, off int) {
	u := uint32(int32(off)) & 0xFFFFFF
	text[at] = byte(u)
	text[at+1] = byte(u >> 8)
	text[at+2] = byte(u >> 16)
}

func makeF32Tensor(t *testing.T, host *buffer.HostAllocator, shape types.Shape, values []float32) *tensor.Tensor {
	t.Helper()
	r := host.Allocate(shape.Elements()*4, buffer.Options{})
	if r.IsErr() {
		t.Fatalf("Allocate: %v", r.UnwrapErr())
	}
	buf := r.Unwrap()
	mr := buf.Map(buffer.Write)
	if mr.IsErr() {
		t.Fatalf("Map: %v", mr.UnwrapErr())
	}
	bytes := mr.Unwrap().Bytes()
	for i, v := range values {
		putF32(bytes[i*4:], v)
	}
	if err := buf.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	tn, terr := tensor.NewContiguous(types.Float32, shape, buf)
	if terr != nil {
		t.Fatalf("NewContiguous: %v", terr)
	}
	return tn
}

func readF32Tensor(t *testing.T, tn *tensor.Tensor) []float32 {
	t.Helper()
	mr := tn.Slice.Buf.Map(buffer.Read)
	if mr.IsErr() {
		t.Fatalf("Map: %v", mr.UnwrapErr())
	}
	defer tn.Slice.Buf.Unmap()
	bytes := tn.Slice.Bytes(mr.Unwrap())
	n := tn.Shape.Elements()
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(bytes[i*4:]))
	}
	return out
}
