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

// Package infer implements the type inference pass from spec section
// 4.4 (component C4): InferType walks a Function's body bottom-up with
// memoization and computes each node's Type, propagating Invalid and
// Any per the rules in spec sections 4.1 and 4.4.
//
// This plays the same role expr.Check/expr.TypeOf play in the teacher
// (github.com/SnellerInc/sneller/expr/check.go): a single pass that
// assigns (or rejects) a type to every node of an expression tree. The
// teacher threads a TypeSet bitmask and accumulates *TypeError values
// in a slice; we instead store a concrete types.Type per node (since
// tensor shapes, not SQL column types, are what must be inferred).
// Inference does not stop at the first Invalid: every node is visited,
// an Invalid is propagated to the calls that use it, and InferType
// reports false, matching spec section 4.4's "propagate upward and
// mark the function unfit" contract.
package infer

import (
	"github.com/nncase-go/runtime/ir"
	"github.com/nncase-go/runtime/types"
)

// Types holds the inferred type of every node visited during an
// InferType run, keyed by node identity exactly like ir.Traversal.
type Types struct {
	m map[ir.Node]types.Type
}

// Of returns the inferred type of n, or (nil, false) if n was not part
// of the inferred function body.
func (t *Types) Of(n ir.Node) (types.Type, bool) {
	ty, ok := t.m[n]
	return ty, ok
}

// callContext implements ir.Context for one Call site: it maps each
// declared parameter of the call's target Op to the corresponding
// argument's inferred type and expression (spec section 4.4 step 5).
type callContext struct {
	op    *ir.Op
	args  []ir.Node
	types *Types
}

func (c *callContext) argIndex(param string) int {
	return c.op.ParamIndex(param)
}

func (c *callContext) ArgType(param string) types.Type {
	i := c.argIndex(param)
	if i < 0 || i >= len(c.args) {
		return types.Invalid{Reason: "missing argument " + param}
	}
	ty, ok := c.types.Of(c.args[i])
	if !ok {
		return types.Invalid{Reason: "argument " + param + " has no inferred type"}
	}
	return ty
}

func (c *callContext) ArgExpr(param string) (ir.Node, bool) {
	i := c.argIndex(param)
	if i < 0 || i >= len(c.args) {
		return nil, false
	}
	return c.args[i], true
}

// InferType walks fn.Body bottom-up with memoization (spec section
// 4.4) and returns (types, true) if every node resolved to a type
// other than Invalid, or (types, false) otherwise — types still holds
// whatever was computed, including the Invalid node(s), for
// diagnostics.
func InferType(fn *ir.Function) (*Types, bool) {
	result := &Types{m: make(map[ir.Node]types.Type)}
	if fn.Body == nil {
		return result, true
	}
	ok := true
	tr := ir.NewTraversal()
	tr.Walk(fn.Body, func(n ir.Node) {
		ty := inferNode(n, result)
		result.m[n] = ty
		if types.IsInvalid(ty) {
			ok = false
		}
	})
	return result, ok
}

func inferNode(n ir.Node, result *Types) types.Type {
	switch t := n.(type) {
	case *ir.Var:
		return t.TypeAnnotation

	case *ir.Constant:
		return t.ValueType

	case *ir.Tuple:
		fields := make([]types.Type, len(t.Fields))
		for i, f := range t.Fields {
			ty, ok := result.Of(f)
			if !ok {
				ty = types.Invalid{Reason: "tuple field has no inferred type"}
			}
			fields[i] = ty
		}
		return types.Tuple{Fields: fields}

	case *ir.Call:
		return inferCall(t, result)

	case *ir.Function:
		// A nested Function used as a higher-order value carries
		// no tensor type of its own; its type is resolved by the
		// Call that applies it. AnyType is the conservative top
		// of the lattice for "not a tensor value" positions.
		return types.Any{}

	case *ir.Op:
		return types.Any{}

	default:
		return types.Invalid{Reason: "unknown node kind"}
	}
}

func inferCall(c *ir.Call, result *Types) types.Type {
	for _, a := range c.Arguments {
		ty, ok := result.Of(a)
		if !ok {
			return types.Invalid{Reason: "argument has no inferred type"}
		}
		if types.IsInvalid(ty) {
			return ty
		}
	}

	switch target := c.Target.(type) {
	case *ir.Op:
		if target.Inferencer == nil {
			return types.Invalid{Reason: "op " + target.Opcode.Name + " has no inferencer"}
		}
		ctx := &callContext{op: target, args: c.Arguments, types: result}
		return target.Inferencer(ctx)

	case *ir.Function:
		return inferApplication(target, c.Arguments, result)

	default:
		return types.Invalid{Reason: "call target is neither an Op nor a Function"}
	}
}

// inferApplication resolves the result type of calling a Function
// target: the callee's parameters take on the caller's argument
// types, the callee's body is inferred under that substitution, and
// the call's type is the callee body's type.
func inferApplication(target *ir.Function, args []ir.Node, result *Types) types.Type {
	if len(args) != len(target.Parameters) {
		return types.Invalid{Reason: "argument count does not match target's parameter count"}
	}
	for i, p := range target.Parameters {
		ty, ok := result.Of(args[i])
		if !ok {
			ty = types.Invalid{Reason: "argument has no inferred type"}
		}
		p.SetTypeAnnotation(ty)
	}
	calleeTypes, ok := InferType(target)
	if !ok {
		ty, _ := calleeTypes.Of(target.Body)
		return ty
	}
	ty, _ := calleeTypes.Of(target.Body)
	return ty
}
