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
	"testing"

	"github.com/nncase-go/runtime/types"
)

func TestTraversalVisitsSharedNodeOnce(t *testing.T) {
	shared := NewFloat32Constant(2.0, false)
	add := &Op{Opcode: NodeKind{ID: 1, Name: "add"}}
	call := NewCall(add, shared, shared)

	var constVisits int
	tr := NewTraversal()
	tr.Walk(call, func(n Node) {
		if _, ok := n.(*Constant); ok {
			constVisits++
		}
	})
	if constVisits != 1 {
		t.Fatalf("shared constant visited %d times, want 1", constVisits)
	}
}

func TestTraversalPostOrder(t *testing.T) {
	a := NewFloat32Constant(1, false)
	b := NewFloat32Constant(2, false)
	add := &Op{Opcode: NodeKind{ID: 1, Name: "add"}}
	call := NewCall(add, a, b)

	var order []Node
	tr := NewTraversal()
	tr.Walk(call, func(n Node) { order = append(order, n) })

	if len(order) != 4 {
		t.Fatalf("got %d nodes, want 4 (op, a, b, call)", len(order))
	}
	if order[len(order)-1] != Node(call) {
		t.Fatalf("call should be visited last (post-order), got %v last", order[len(order)-1])
	}
}

type countingVisitor struct {
	BaseVisitor
	calls int
}

func (c *countingVisitor) VisitCall(*Call) { c.calls++ }

func TestWalkDispatchesToOverriddenArm(t *testing.T) {
	v := NewVar("x", types.Tensor{DT: types.Float32, Shape: types.Shape{2}})
	add := &Op{Opcode: NodeKind{ID: 1, Name: "add"}}
	call := NewCall(add, v, v)

	cv := &countingVisitor{}
	Walk(cv, call)
	if cv.calls != 1 {
		t.Fatalf("VisitCall called %d times, want 1", cv.calls)
	}
}

func TestModuleEntryInvariant(t *testing.T) {
	m := NewModule()
	f := NewFunction("f", nil, NewFloat32Constant(1, false))
	if err := m.SetEntry(f); err == nil {
		t.Fatal("SetEntry should fail before f is added to the module")
	}
	m.AddFunction(f)
	if err := m.SetEntry(f); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}
	if m.Entry() != f {
		t.Fatal("Entry() should return the function just set")
	}
}
