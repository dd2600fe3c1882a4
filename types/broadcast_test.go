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

import "testing"

func TestBroadcastInvariant(t *testing.T) {
	// spec section 8, invariant 6
	lhs := Tensor{DT: Float32, Shape: Shape{3, 1, 16}}
	rhs := Tensor{DT: Float32, Shape: Shape{1, 4, 16}}
	got := Broadcast(lhs, rhs, false, false)
	want := Tensor{DT: Float32, Shape: Shape{3, 4, 16}}
	tt, ok := got.(Tensor)
	if !ok || !tt.Equal(want) {
		t.Fatalf("Broadcast(%v, %v) = %v, want %v", lhs, rhs, got, want)
	}
}

func TestBroadcastS2(t *testing.T) {
	// spec section 9, scenario S2
	lhs := Tensor{DT: Float32, Shape: Shape{2, 1, 3}}
	rhs := Tensor{DT: Float32, Shape: Shape{1, 2, 3}}
	got := Broadcast(lhs, rhs, false, false)
	want := Tensor{DT: Float32, Shape: Shape{2, 2, 3}}
	tt, ok := got.(Tensor)
	if !ok || !tt.Equal(want) {
		t.Fatalf("Broadcast(%v, %v) = %v, want %v", lhs, rhs, got, want)
	}
}

func TestBroadcastDatatypeMismatch(t *testing.T) {
	lhs := Tensor{DT: Float32, Shape: Shape{2, 2}}
	rhs := Tensor{DT: Int32, Shape: Shape{2, 2}}
	got := Broadcast(lhs, rhs, false, false)
	if !IsInvalid(got) {
		t.Fatalf("Broadcast with mismatched dtype = %v, want Invalid", got)
	}
	if InvalidReason(got) != "datatype mismatch" {
		t.Fatalf("reason = %q", InvalidReason(got))
	}
}

func TestBroadcastShapeConflict(t *testing.T) {
	lhs := Tensor{DT: Float32, Shape: Shape{2, 3}}
	rhs := Tensor{DT: Float32, Shape: Shape{2, 4}}
	got := Broadcast(lhs, rhs, false, false)
	if !IsInvalid(got) {
		t.Fatalf("Broadcast with incompatible shapes = %v, want Invalid", got)
	}
	if InvalidReason(got) != "shapes not broadcastable" {
		t.Fatalf("reason = %q", InvalidReason(got))
	}
}

func TestBroadcastAny(t *testing.T) {
	lhs := Tensor{DT: Float32, Shape: Shape{2, 3}}
	rhs := Tensor{DT: Int32, Shape: Shape{9, 9}}
	got := Broadcast(lhs, rhs, true, false)
	if !IsAny(got) {
		t.Fatalf("Broadcast with Any lhs = %v, want Any", got)
	}
}

func TestTensorIsScalar(t *testing.T) {
	if !(Tensor{DT: Float32, Shape: Scalar()}).IsScalar() {
		t.Fatal("scalar tensor should report IsScalar")
	}
	if (Tensor{DT: Float32, Shape: Shape{1}}).IsScalar() {
		t.Fatal("shape [1] is not a scalar")
	}
}

func TestTypeEqualityIsStructural(t *testing.T) {
	a := Tuple{Fields: []Type{Tensor{DT: Int32, Shape: Shape{2}}, Any{}}}
	b := Tuple{Fields: []Type{Tensor{DT: Int32, Shape: Shape{2}}, Any{}}}
	if !a.Equal(b) {
		t.Fatal("structurally identical tuples should compare equal")
	}
	c := Tuple{Fields: []Type{Tensor{DT: Int32, Shape: Shape{3}}, Any{}}}
	if a.Equal(c) {
		t.Fatal("tuples with differing field types should not compare equal")
	}
}
