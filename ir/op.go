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

package ir

import (
	"github.com/nncase-go/runtime/internal/obj"
	"github.com/nncase-go/runtime/types"
)

// Context is the inference-context lookup described in spec section
// 4.1: parameter -> Type and parameter -> Expr (the latter needed
// because some operators, like reshape, infer their result shape from
// a constant argument rather than its type). A missing argument is
// treated as an Invalid type.
//
// This generalizes the teacher's Hint interface
// (github.com/SnellerInc/sneller/expr/check.go), which only maps a
// node to a TypeSet; our operators sometimes need the argument
// expression itself, not just its type.
type Context interface {
	// ArgType returns the inferred type of the argument bound to
	// the named parameter, or Invalid if no such argument was
	// supplied.
	ArgType(param string) types.Type
	// ArgExpr returns the argument expression bound to the named
	// parameter, when present.
	ArgExpr(param string) (Node, bool)
}

// Inferencer computes an Op's result type given a Context built from
// one Call's arguments (spec section 3, "Op").
type Inferencer func(Context) types.Type

// Op is an operator descriptor: stateless with respect to any
// particular Call's arguments (spec section 3).
type Op struct {
	Opcode     NodeKind
	Parameters []ParameterInfo
	Inferencer Inferencer
}

func (*Op) Kind() obj.ObjectKind { return obj.KindExprOp }
func (o *Op) children() []Node   { return nil }
func (o *Op) String() string     { return o.Opcode.Name }

// ParamIndex returns the declared index of the parameter with the
// given name, or -1 if the Op has no such parameter.
func (o *Op) ParamIndex(name string) int {
	for _, p := range o.Parameters {
		if p.Name == name {
			return p.Index
		}
	}
	return -1
}
