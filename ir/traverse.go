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

// Traversal implements the memoized depth-first post-order walk from
// spec section 4.5 (component C5). It keys its visited set on Node
// pointer identity (Go interface equality over pointer-typed nodes is
// exactly the "address or stable id" memoization key spec section 9
// calls for), so a node reachable through more than one path in the
// DAG — a shared sub-expression — is only ever visited once.
type Traversal struct {
	visited map[Node]int
	order   int
}

// NewTraversal returns an empty Traversal ready to walk one or more
// roots; reuse across roots to share the memoization set, or start a
// fresh one per root to re-visit shared nodes.
func NewTraversal() *Traversal {
	return &Traversal{visited: make(map[Node]int)}
}

// Visited reports whether n has already been recorded by this
// Traversal, and if so, its recorded visit order.
func (t *Traversal) Visited(n Node) (int, bool) {
	order, ok := t.visited[n]
	return order, ok
}

// Walk recurses into n's children first (in declared order), then
// invokes visit(n) exactly once, recording n's position in the
// traversal order. If n was already visited by this Traversal, visit
// is not called again.
func (t *Traversal) Walk(n Node, visit func(Node)) int {
	if n == nil {
		return -1
	}
	if order, ok := t.visited[n]; ok {
		return order
	}
	for _, c := range n.children() {
		t.Walk(c, visit)
	}
	order := t.order
	t.visited[n] = order
	t.order++
	visit(n)
	return order
}
