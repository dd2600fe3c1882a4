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

package types

// Broadcast implements the NumPy-style broadcasting rule from spec
// section 4.1: align shapes by their trailing (right) dimensions; each
// pair of aligned dimensions must either be equal or one of them must
// be 1. Datatypes must match.
//
// If either input is Any, the result is Any (propagate the top of the
// lattice before attempting to reason about shapes at all, per the
// operator-inference contract in section 4.1).
func Broadcast(lhs, rhs Tensor, lhsAny, rhsAny bool) Type {
	if lhsAny || rhsAny {
		return Any{}
	}
	if lhs.DT != rhs.DT {
		return Invalid{Reason: "datatype mismatch"}
	}
	shape, ok := broadcastShapes(lhs.Shape, rhs.Shape)
	if !ok {
		return Invalid{Reason: "shapes not broadcastable"}
	}
	return Tensor{DT: lhs.DT, Shape: shape}
}

func broadcastShapes(a, b Shape) (Shape, bool) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(Shape, n)
	for i := 0; i < n; i++ {
		da := dimAt(a, i, n)
		db := dimAt(b, i, n)
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
		case db == 1:
			out[n-1-i] = da
		default:
			return nil, false
		}
	}
	return out, true
}

// dimAt fetches the i-th dimension counting from the right (i=0 is the
// last dimension), treating missing leading dimensions as size 1, with
// n the number of dimensions being considered across both shapes.
func dimAt(s Shape, i, n int) int {
	idx := len(s) - 1 - i
	if idx < 0 {
		return 1
	}
	return s[idx]
}
