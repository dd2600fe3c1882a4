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

// Package ir implements the typed expression graph (spec section 4.3,
// component C3): Var, Constant, Call, Function, Tuple and Op nodes
// sharing a single DAG via pointer identity, plus the visitor/traversal
// machinery (C5) and the module/function container (C6).
//
// The node-per-type shape, the unexported children() hook per node,
// and the top-level Walk entry point are adapted directly from
// github.com/SnellerInc/sneller/expr/node.go; what changes is the
// closed node set (six variants instead of a few dozen AST kinds) and
// that children can be args/body/fields (a tensor IR) rather than SQL
// clauses.
package ir

import (
	"github.com/nncase-go/runtime/internal/obj"
	"github.com/nncase-go/runtime/types"
)

// Node is the closed sum of expression variants from spec section 3.
// Every concrete node is used through a pointer, and pointer identity
// is what the visitor's memoization map and the "shared strong
// reference" DAG semantics key on (spec section 3, "Ownership").
type Node interface {
	obj.Object

	// children returns this node's direct children in declared
	// order, used by the traversal package (C5) for memoized
	// post-order DFS without needing a type switch at every call
	// site.
	children() []Node

	// String renders the node for diagnostics.
	String() string
}

// NodeKind identifies an operator within a dialect (spec section 3).
// It is compared by ID; Name is for diagnostics only.
type NodeKind struct {
	ID   uint32
	Name string
}

func (k NodeKind) String() string { return k.Name }

// ParameterInfo describes one declared parameter of an Op (spec
// section 3).
type ParameterInfo struct {
	Name       string
	Index      int
	Constraint types.Type // optional_type_constraint; nil means unconstrained
}
