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

package runtime

import (
	"math"
	"testing"

	"github.com/nncase-go/runtime/model"
	"github.com/nncase-go/runtime/runtime/stackvm"
	"github.com/nncase-go/runtime/types"
)

func putF32(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

// constantFoldAddProgram builds a stack-VM function body that pushes
// the float32 literals 2 and 3 and applies OpAdd. OpAdd adds the two
// cells as int32 values, so the returned bits are not float32 5.
func constantFoldAddProgram() []byte {
	prog := make([]byte, 0, 16)
	prog = append(prog, byte(stackvm.OpLdcR4), 0, 0, 0, 0)
	putF32(prog[1:5], 2)
	lhsEnd := len(prog)
	prog = append(prog, byte(stackvm.OpLdcR4), 0, 0, 0, 0)
	putF32(prog[lhsEnd+1:lhsEnd+5], 3)
	prog = append(prog, byte(stackvm.OpAdd))
	prog = append(prog, byte(stackvm.OpRet))
	return prog
}

func oneModuleModel(t *testing.T, fn model.Function) *model.Model {
	t.Helper()
	return &model.Model{
		Header: model.Header{
			EntryModule:   0,
			EntryFunction: 0,
		},
		Modules: []model.Module{
			{
				Kind:      StackVMModuleKind,
				Version:   1,
				Functions: []model.Function{fn},
			},
		},
	}
}

func TestInterpreterLoadsAndInvokesEntryFunction(t *testing.T) {
	fn := model.Function{
		ReturnType: types.Tensor{DT: types.Float32, Shape: types.Scalar()},
		Entrypoint: 0,
		Text:       constantFoldAddProgram(),
	}
	m := oneModuleModel(t, fn)

	it := NewInterpreter()
	if err := it.LoadModel(m.Encode()); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}

	entry := it.EntryFunction()
	if entry.IsErr() {
		t.Fatalf("EntryFunction: %v", entry.UnwrapErr())
	}

	res := entry.Unwrap().Invoke(nil, nil)
	if res.IsErr() {
		t.Fatalf("Invoke: %v", res.UnwrapErr())
	}
	v := res.Unwrap()
	if !v.IsTensor() {
		t.Fatalf("expected a tensor result, got %#v", v)
	}
	got := v.Tensor()
	if got.Datatype != types.Float32 {
		t.Fatalf("expected float32 result, got %s", got.Datatype)
	}
	if !got.Shape.IsScalar() {
		t.Fatalf("expected a scalar result shape, got %v", got.Shape)
	}
}

func TestInvokeRejectsWrongParameterCardinality(t *testing.T) {
	fn := model.Function{
		ParameterTypes: []types.Type{types.Tensor{DT: types.Float32, Shape: types.Scalar()}},
		ReturnType:     types.Tensor{DT: types.Float32, Shape: types.Scalar()},
		Entrypoint:     0,
		Text:           []byte{byte(stackvm.OpRet)}, // never reached
	}
	m := oneModuleModel(t, fn)

	it := NewInterpreter()
	if err := it.LoadModel(m.Encode()); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}

	entry := it.EntryFunction().Unwrap()
	var out Value
	res := entry.Invoke(nil, &out)
	if res.IsOk() {
		t.Fatalf("expected cardinality mismatch to fail, got %#v", res.Unwrap())
	}
	if got := res.UnwrapErr().Kind.String(); got != "InvalidArgument" {
		t.Fatalf("expected InvalidArgument, got %s", got)
	}
	if out.IsTensor() || out.IsTuple() {
		t.Fatalf("return_value out-parameter must be untouched on error, got %#v", out)
	}
}

func TestLoadModelRejectsUnknownModuleKind(t *testing.T) {
	m := &model.Model{
		Header: model.Header{EntryModule: model.NoEntry, EntryFunction: model.NoEntry},
		Modules: []model.Module{
			{Kind: "some-other-backend", Version: 1},
		},
	}
	it := NewInterpreter()
	err := it.LoadModel(m.Encode())
	if err == nil {
		t.Fatalf("expected an unknown module kind to fail loading")
	}
	if it.modules != nil {
		t.Fatalf("failed LoadModel must leave the interpreter in its pre-load state")
	}
}
