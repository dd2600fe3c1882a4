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

// Package runtime implements the model loader (component C8),
// RuntimeFunction (component C9), and the Interpreter facade
// (component C14) from spec sections 4.7, 4.8, and 6.2.
package runtime

import (
	"github.com/nncase-go/runtime/buffer"
	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/runtime/stackvm"
	"github.com/nncase-go/runtime/tensor"
	"github.com/nncase-go/runtime/types"
)

// Value is the public, module-kind-agnostic carrier the V2 invoke API
// trades in (spec section 4.8: "invoke(parameters: &[Value],
// return_value) -> Result<Value>"). It is the boundary type between
// callers of RuntimeFunction.Invoke and whatever internal cell
// representation a particular module kind uses; the stack-VM module
// kind converts to/from stackvm.Cell at that boundary.
type Value struct {
	typ    types.Type
	tensor *tensor.Tensor
	tuple  []Value
}

// ValueOfTensor wraps t as a tensor-kind Value whose type is inferred
// from t's datatype and shape.
func ValueOfTensor(t *tensor.Tensor) Value {
	return Value{typ: types.Tensor{DT: t.Datatype, Shape: t.Shape}, tensor: t}
}

// ValueOfTuple wraps a fixed-arity sequence of values as a tuple-kind
// Value.
func ValueOfTuple(fields []Value) Value {
	ftypes := make([]types.Type, len(fields))
	for i, f := range fields {
		ftypes[i] = f.typ
	}
	return Value{typ: types.Tuple{Fields: ftypes}, tuple: fields}
}

// Type reports the value's inferred type.
func (v Value) Type() types.Type { return v.typ }

// Tensor returns the backing tensor for a tensor-kind Value, or nil.
func (v Value) Tensor() *tensor.Tensor { return v.tensor }

// Fields returns the backing value list for a tuple-kind Value, or
// nil.
func (v Value) Fields() []Value { return v.tuple }

// IsTensor reports whether v carries a tensor.
func (v Value) IsTensor() bool { return v.tensor != nil }

// IsTuple reports whether v carries a tuple.
func (v Value) IsTuple() bool { return v.tuple != nil }

// conforms checks parameter conformance against the declared Type,
// per spec section 4.8 step 2: a tensor value must have matching
// datatype and either equal shape or satisfy the declared shape
// pattern (AnyType always matches); a tuple value must match
// field-by-field; a scalar parameter is a zero-dim tensor.
func conforms(v Value, declared types.Type) bool {
	switch d := declared.(type) {
	case types.Any:
		return true
	case types.Tensor:
		if !v.IsTensor() {
			return false
		}
		vt, ok := v.typ.(types.Tensor)
		if !ok || vt.DT != d.DT {
			return false
		}
		return vt.Shape.Equal(d.Shape)
	case types.Prim:
		vt, ok := v.typ.(types.Tensor)
		return ok && vt.IsScalar() && vt.DT == d.DT
	case types.Tuple:
		if !v.IsTuple() || len(v.tuple) != len(d.Fields) {
			return false
		}
		for i, f := range v.tuple {
			if !conforms(f, d.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// valueToCell converts a Value into the stack VM's tagged evaluation
// cell, the representation the stackvm module kind's invoke_core
// actually pushes as a parameter (spec section 4.9, "A reference to
// the enclosing RuntimeFunction (for parameter access)").
func valueToCell(v Value) (stackvm.Cell, *kerr.Error) {
	switch {
	case v.IsTensor():
		return stackvm.Cell{Kind: stackvm.CellTensor, Tensor: v.tensor}, nil
	case v.IsTuple():
		cells := make([]stackvm.Cell, len(v.tuple))
		for i, f := range v.tuple {
			c, err := valueToCell(f)
			if err != nil {
				return stackvm.Cell{}, err
			}
			cells[i] = c
		}
		return stackvm.Cell{Kind: stackvm.CellTuple, Tuple: cells}, nil
	default:
		return stackvm.Cell{}, kerr.New(kerr.InvalidArgument, "value has neither tensor nor tuple payload")
	}
}

// cellToValue is valueToCell's inverse, used to translate a function's
// returned cell back into the public Value type. Scalar cells are
// materialized as a freshly allocated zero-dim host tensor so every
// Value the facade hands back, scalar or not, can be read through the
// same Tensor() accessor (spec section 8, invariant 2: "a value whose
// type matches return_type()" — a scalar return_type is TensorType
// with an empty shape).
func cellToValue(c stackvm.Cell, dt types.Datatype, host *buffer.HostAllocator) (Value, *kerr.Error) {
	switch c.Kind {
	case stackvm.CellTensor:
		return ValueOfTensor(c.Tensor), nil
	case stackvm.CellTuple:
		fields := make([]Value, len(c.Tuple))
		for i, cell := range c.Tuple {
			v, err := cellToValue(cell, dt, host)
			if err != nil {
				return Value{}, err
			}
			fields[i] = v
		}
		return ValueOfTuple(fields), nil
	case stackvm.CellScalar:
		t, err := materializeScalar(c, dt, host)
		if err != nil {
			return Value{}, err
		}
		return ValueOfTensor(t), nil
	default:
		return Value{}, kerr.New(kerr.InvalidProgram, "function returned an unrepresentable cell kind %d", c.Kind)
	}
}

// materializeScalar allocates a one-element host tensor holding c's
// raw bits reinterpreted as dt, so scalar results (spec scenario S1's
// float32 5.0) surface through the same Value/Tensor API as tensor
// results.
func materializeScalar(c stackvm.Cell, dt types.Datatype, host *buffer.HostAllocator) (*tensor.Tensor, *kerr.Error) {
	r := host.Allocate(dt.ByteWidth(), buffer.Options{})
	if r.IsErr() {
		return nil, r.UnwrapErr()
	}
	buf := r.Unwrap()
	mr := buf.Map(buffer.Write)
	if mr.IsErr() {
		return nil, mr.UnwrapErr()
	}
	bytes := mr.Unwrap().Bytes()
	bits := c.Bits
	switch dt {
	case types.Float32:
		putU32(bytes, uint32(bits))
	case types.Float64:
		putU64(bytes, bits)
	case types.Int8, types.Uint8, types.Bool:
		bytes[0] = byte(bits)
	case types.Int16, types.Uint16:
		putU16(bytes, uint16(bits))
	case types.Int32, types.Uint32:
		putU32(bytes, uint32(bits))
	case types.Int64, types.Uint64:
		putU64(bytes, bits)
	default:
		if err := buf.Unmap(); err != nil {
			return nil, err
		}
		return nil, kerr.New(kerr.NotSupported, "scalar materialization of %s is not supported", dt)
	}
	if err := buf.Unmap(); err != nil {
		return nil, err
	}
	return tensor.NewContiguous(dt, types.Scalar(), buf)
}

func putU16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
