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

// Visitor is the dispatch interface from spec section 4.5: a generic
// visitor takes the dynamic variant of a Node and calls one of
// VisitVar, VisitConstant, VisitCall, VisitFunction, VisitTuple,
// VisitOp. Embed BaseVisitor to get no-op defaults and override only
// the arms a concrete visitor cares about, the way the teacher's
// Visitor/Rewriter pair lets callers override only Visit or Walk
// (github.com/SnellerInc/sneller/expr/node.go).
type Visitor interface {
	VisitVar(*Var)
	VisitConstant(*Constant)
	VisitCall(*Call)
	VisitFunction(*Function)
	VisitTuple(*Tuple)
	VisitOp(*Op)
}

// BaseVisitor implements Visitor with no-op arms; embed it to avoid
// writing out every method for a visitor that only cares about one or
// two node kinds.
type BaseVisitor struct{}

func (BaseVisitor) VisitVar(*Var)           {}
func (BaseVisitor) VisitConstant(*Constant) {}
func (BaseVisitor) VisitCall(*Call)         {}
func (BaseVisitor) VisitFunction(*Function) {}
func (BaseVisitor) VisitTuple(*Tuple)       {}
func (BaseVisitor) VisitOp(*Op)             {}

// dispatch calls the Visitor arm matching n's dynamic type.
func dispatch(v Visitor, n Node) {
	switch t := n.(type) {
	case *Var:
		v.VisitVar(t)
	case *Constant:
		v.VisitConstant(t)
	case *Call:
		v.VisitCall(t)
	case *Function:
		v.VisitFunction(t)
	case *Tuple:
		v.VisitTuple(t)
	case *Op:
		v.VisitOp(t)
	}
}

// Walk traverses the DAG rooted at n in depth-first post-order (spec
// section 4.5's default strategy): children are visited before their
// parent, and a node already seen during this Walk is not visited
// again. This is the single-visit traversal every later pass builds
// on; see Traversal for the variant that also records a stable visit
// order, which ir/infer.InferType needs for memoization.
func Walk(v Visitor, n Node) {
	t := NewTraversal()
	t.Walk(n, func(visited Node) { dispatch(v, visited) })
}
