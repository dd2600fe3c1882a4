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
	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/types"
)

// TensorDesc is input_desc/output_desc's return value (spec section
// 6.2): the datatype plus the byte range of the tensor within its
// backing buffer. start is always 0 in this rewrite — nothing here
// sub-allocates multiple tensors out of one shared buffer the way a
// compiler-emitted model might — but the field is kept so a future
// allocator that does pack tensors has somewhere to report it.
type TensorDesc struct {
	Datatype types.Datatype
	Start    int
	Size     int
}

func descOf(t types.Type) TensorDesc {
	switch tt := t.(type) {
	case types.Tensor:
		return TensorDesc{Datatype: tt.DT, Size: tt.DT.ByteWidth() * shapeElements(tt.Shape)}
	case types.Prim:
		return TensorDesc{Datatype: tt.DT, Size: tt.DT.ByteWidth()}
	default:
		return TensorDesc{}
	}
}

func shapeOf(t types.Type) types.Shape {
	if tt, ok := t.(types.Tensor); ok {
		return tt.Shape
	}
	return types.Scalar()
}

func shapeElements(s types.Shape) int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// outputTypes flattens the entry function's return type into a
// positional list: a Tuple return becomes one output per field, any
// other return type is a single output (spec section 6.2's V1 API is
// positional, but the V2 return type may be a tuple).
func (it *Interpreter) outputTypes() ([]types.Type, *kerr.Error) {
	f, err := it.entryRuntimeFunction()
	if err != nil {
		return nil, err
	}
	if tup, ok := f.ReturnType().(types.Tuple); ok {
		return tup.Fields, nil
	}
	return []types.Type{f.ReturnType()}, nil
}

// InputsSize returns the entry function's parameter count.
func (it *Interpreter) InputsSize() int {
	f, err := it.entryRuntimeFunction()
	if err != nil {
		return 0
	}
	return f.ParametersSize()
}

// OutputsSize returns the entry function's flattened output count.
func (it *Interpreter) OutputsSize() int {
	outs, err := it.outputTypes()
	if err != nil {
		return 0
	}
	return len(outs)
}

// InputDesc returns input i's descriptor.
func (it *Interpreter) InputDesc(i int) kerr.Result[TensorDesc] {
	f, err := it.entryRuntimeFunction()
	if err != nil {
		return kerr.Err[TensorDesc](err)
	}
	if i < 0 || i >= f.ParametersSize() {
		return kerr.Err[TensorDesc](kerr.New(kerr.InvalidArgument, "input index %d out of range", i))
	}
	return kerr.Ok(descOf(f.ParameterType(i)))
}

// InputShape returns input i's declared shape.
func (it *Interpreter) InputShape(i int) kerr.Result[types.Shape] {
	f, err := it.entryRuntimeFunction()
	if err != nil {
		return kerr.Err[types.Shape](err)
	}
	if i < 0 || i >= f.ParametersSize() {
		return kerr.Err[types.Shape](kerr.New(kerr.InvalidArgument, "input index %d out of range", i))
	}
	return kerr.Ok(shapeOf(f.ParameterType(i)))
}

// InputTensor returns the Value currently bound to input i.
func (it *Interpreter) InputTensor(i int) kerr.Result[Value] {
	if i < 0 || i >= len(it.inputs) {
		return kerr.Err[Value](kerr.New(kerr.InvalidArgument, "input index %d out of range", i))
	}
	return kerr.Ok(it.inputs[i])
}

// SetInputTensor binds v to input i for the next Run.
func (it *Interpreter) SetInputTensor(i int, v Value) *kerr.Error {
	if i < 0 || i >= len(it.inputs) {
		return kerr.New(kerr.InvalidArgument, "input index %d out of range", i)
	}
	it.inputs[i] = v
	return nil
}

// OutputDesc returns output i's descriptor.
func (it *Interpreter) OutputDesc(i int) kerr.Result[TensorDesc] {
	outs, err := it.outputTypes()
	if err != nil {
		return kerr.Err[TensorDesc](err)
	}
	if i < 0 || i >= len(outs) {
		return kerr.Err[TensorDesc](kerr.New(kerr.InvalidArgument, "output index %d out of range", i))
	}
	return kerr.Ok(descOf(outs[i]))
}

// OutputShape returns output i's declared shape.
func (it *Interpreter) OutputShape(i int) kerr.Result[types.Shape] {
	outs, err := it.outputTypes()
	if err != nil {
		return kerr.Err[types.Shape](err)
	}
	if i < 0 || i >= len(outs) {
		return kerr.Err[types.Shape](kerr.New(kerr.InvalidArgument, "output index %d out of range", i))
	}
	return kerr.Ok(shapeOf(outs[i]))
}

// OutputTensor returns the Value bound to output i after the last Run.
func (it *Interpreter) OutputTensor(i int) kerr.Result[Value] {
	if i < 0 || i >= len(it.outputs) {
		return kerr.Err[Value](kerr.New(kerr.InvalidArgument, "output index %d out of range", i))
	}
	return kerr.Ok(it.outputs[i])
}

// SetOutputTensor pre-binds output i so Run writes its result in
// place instead of allocating a fresh Value (spec section 4.8's
// invoke(parameters, return_value) out-parameter, exposed positionally
// here).
func (it *Interpreter) SetOutputTensor(i int, v Value) *kerr.Error {
	if i < 0 || i >= len(it.outputs) {
		return kerr.New(kerr.InvalidArgument, "output index %d out of range", i)
	}
	it.outputs[i] = v
	return nil
}

// Run invokes the entry function with the currently bound inputs and
// stores its result(s) into the bound outputs (spec section 6.2:
// "invokes the entry function with bound tensors").
func (it *Interpreter) Run() *kerr.Error {
	f, err := it.entryRuntimeFunction()
	if err != nil {
		return err
	}
	for i, v := range it.inputs {
		if !v.IsTensor() && !v.IsTuple() {
			return kerr.New(kerr.InvalidArgument, "input %d is not bound", i)
		}
	}

	params := append([]Value(nil), it.inputs...)
	res := f.Invoke(params, nil)
	if res.IsErr() {
		return res.UnwrapErr()
	}
	result := res.Unwrap()

	if result.IsTuple() {
		fields := result.Fields()
		if len(fields) != len(it.outputs) {
			return kerr.New(kerr.InvalidProgram, "entry function returned %d outputs, expected %d", len(fields), len(it.outputs))
		}
		copy(it.outputs, fields)
		return nil
	}
	if len(it.outputs) != 1 {
		return kerr.New(kerr.InvalidProgram, "entry function returned a single value, outputs_size() is %d", len(it.outputs))
	}
	it.outputs[0] = result
	return nil
}
