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

// Package dialect provides the "math" dialect named in the glossary: a
// small namespaced set of operator kinds (add, sub, reshape) with their
// type inferencers, registered at package init the way spec section 9
// describes ("New operators register themselves at startup").
//
// This is IR-side only — it is the compiler's view of an operator, used
// by ir/infer during type inference. It is a distinct layer from the
// stack VM's opcode table (runtime/stackvm), which is what a compiled
// function's text section actually dispatches at run time; spec
// section 1 treats the mapping from one to the other as an
// out-of-scope lowering pass.
package dialect

import (
	"sync"

	"github.com/nncase-go/runtime/ir"
	"github.com/nncase-go/runtime/types"
)

var (
	registryMu sync.Mutex
	registry   = map[uint32]*ir.Op{}
	nextID     uint32
)

func register(name string, params []ir.ParameterInfo, inferencer ir.Inferencer) *ir.Op {
	registryMu.Lock()
	defer registryMu.Unlock()
	nextID++
	op := &ir.Op{
		Opcode:     ir.NodeKind{ID: nextID, Name: name},
		Parameters: params,
		Inferencer: inferencer,
	}
	registry[op.Opcode.ID] = op
	return op
}

// Lookup returns the registered Op with the given NodeKind ID, or nil.
func Lookup(id uint32) *ir.Op {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[id]
}

// asTensor implements the assertion macro described in spec section
// 4.4: short-circuit to Any if the argument is Any, to Invalid if it
// isn't a tensor or is itself Invalid, and otherwise return the
// concrete Tensor type for the caller to reason about further.
func asTensor(ctx ir.Context, param string) (types.Tensor, types.Type, bool) {
	t := ctx.ArgType(param)
	if types.IsAny(t) {
		return types.Tensor{}, types.Any{}, false
	}
	if types.IsInvalid(t) {
		return types.Tensor{}, t, false
	}
	tt, ok := t.(types.Tensor)
	if !ok {
		return types.Tensor{}, types.Invalid{Reason: param + " is not a tensor"}, false
	}
	return tt, nil, true
}

var (
	// Add is the element-wise binary addition operator (spec
	// scenario S1 uses this).
	Add = register("add", binaryParams, broadcastInferencer)
	// Sub is element-wise binary subtraction (spec scenario S2).
	Sub = register("sub", binaryParams, broadcastInferencer)
	// Mul is element-wise binary multiplication.
	Mul = register("mul", binaryParams, broadcastInferencer)
)

var binaryParams = []ir.ParameterInfo{
	{Name: "lhs", Index: 0},
	{Name: "rhs", Index: 1},
}

func broadcastInferencer(ctx ir.Context) types.Type {
	lhs, shortCircuit, ok := asTensor(ctx, "lhs")
	if !ok {
		return shortCircuit
	}
	rhs, shortCircuit, ok := asTensor(ctx, "rhs")
	if !ok {
		return shortCircuit
	}
	return types.Broadcast(lhs, rhs, false, false)
}

// Reshape infers its result shape from a *constant* second argument
// (spec section 4.1: "some operators infer result shape from a
// constant argument, e.g., a reshape target"), so its inferencer
// reaches for ArgExpr rather than (only) ArgType.
var Reshape = register("reshape", []ir.ParameterInfo{
	{Name: "input", Index: 0},
	{Name: "shape", Index: 1},
}, reshapeInferencer)

func reshapeInferencer(ctx ir.Context) types.Type {
	input, shortCircuit, ok := asTensor(ctx, "input")
	if !ok {
		return shortCircuit
	}
	shapeExpr, ok := ctx.ArgExpr("shape")
	if !ok {
		return types.Invalid{Reason: "reshape requires a shape argument"}
	}
	shapeConst, ok := shapeExpr.(*ir.Constant)
	if !ok || shapeConst.IsSymbolic() {
		return types.Invalid{Reason: "reshape target must be a constant"}
	}
	dims, ok := decodeShapeConstant(shapeConst)
	if !ok {
		return types.Invalid{Reason: "reshape target is not an integer vector"}
	}
	dims, ok = resolveInferredDim(dims, input.Shape)
	if !ok {
		return types.Invalid{Reason: "reshape target does not match input element count"}
	}
	return types.Tensor{DT: input.DT, Shape: dims}
}

func decodeShapeConstant(c *ir.Constant) (types.Shape, bool) {
	tt, ok := c.ValueType.(types.Tensor)
	if !ok || tt.DT != types.Int32 {
		return nil, false
	}
	n := tt.Shape.Elements()
	if len(c.Bytes) != n*4 {
		return nil, false
	}
	dims := make(types.Shape, n)
	for i := 0; i < n; i++ {
		v, _ := (&ir.Constant{ValueType: types.Tensor{DT: types.Int32}, Bytes: c.Bytes[i*4 : i*4+4]}).Int32()
		dims[i] = int(v)
	}
	return dims, true
}

// resolveInferredDim handles a single -1 placeholder dimension, the
// usual reshape convention: it is replaced by whatever value makes the
// output element count match the input.
func resolveInferredDim(dims, inputShape types.Shape) (types.Shape, bool) {
	inferIdx := -1
	knownProduct := 1
	for i, d := range dims {
		if d == -1 {
			if inferIdx >= 0 {
				return nil, false
			}
			inferIdx = i
			continue
		}
		knownProduct *= d
	}
	total := inputShape.Elements()
	if inferIdx < 0 {
		return dims, total == dims.Elements()
	}
	if knownProduct == 0 || total%knownProduct != 0 {
		return nil, false
	}
	out := dims.Clone()
	out[inferIdx] = total / knownProduct
	return out, true
}
