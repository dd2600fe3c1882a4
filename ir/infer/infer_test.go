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

package infer

import (
	"testing"

	"github.com/nncase-go/runtime/ir"
	"github.com/nncase-go/runtime/ir/dialect"
	"github.com/nncase-go/runtime/types"
)

// TestScalarAddConstantFold is spec section 9, scenario S1.
func TestScalarAddConstantFold(t *testing.T) {
	body := ir.NewCall(dialect.Add, ir.NewFloat32Constant(2.0, false), ir.NewFloat32Constant(3.0, false))
	fn := ir.NewFunction("f", nil, body)

	result, ok := InferType(fn)
	if !ok {
		t.Fatalf("InferType failed")
	}
	got, ok := result.Of(fn.Body)
	if !ok {
		t.Fatalf("no inferred type for body")
	}
	want := types.Tensor{DT: types.Float32, Shape: types.Scalar()}
	if !got.Equal(want) {
		t.Fatalf("body type = %v, want %v", got, want)
	}
}

// TestBroadcastSubtract is spec section 9, scenario S2 (type-level
// part; value evaluation is covered by the VM tests).
func TestBroadcastSubtract(t *testing.T) {
	lhs := ir.NewVar("lhs", types.Tensor{DT: types.Float32, Shape: types.Shape{2, 1, 3}})
	rhs := ir.NewVar("rhs", types.Tensor{DT: types.Float32, Shape: types.Shape{1, 2, 3}})
	body := ir.NewCall(dialect.Sub, lhs, rhs)
	fn := ir.NewFunction("f", []*ir.Var{lhs, rhs}, body)

	result, ok := InferType(fn)
	if !ok {
		t.Fatalf("InferType failed")
	}
	got, _ := result.Of(body)
	want := types.Tensor{DT: types.Float32, Shape: types.Shape{2, 2, 3}}
	if !got.Equal(want) {
		t.Fatalf("body type = %v, want %v", got, want)
	}
}

func TestInferPropagatesInvalid(t *testing.T) {
	lhs := ir.NewVar("lhs", types.Tensor{DT: types.Float32, Shape: types.Shape{2, 3}})
	rhs := ir.NewVar("rhs", types.Tensor{DT: types.Int32, Shape: types.Shape{2, 3}})
	body := ir.NewCall(dialect.Add, lhs, rhs)
	fn := ir.NewFunction("f", []*ir.Var{lhs, rhs}, body)

	_, ok := InferType(fn)
	if ok {
		t.Fatal("InferType should fail on a datatype mismatch")
	}
}

func TestInferIsIdempotent(t *testing.T) {
	// spec section 8, invariant 5
	lhs := ir.NewVar("lhs", types.Tensor{DT: types.Float32, Shape: types.Shape{2, 1, 3}})
	rhs := ir.NewVar("rhs", types.Tensor{DT: types.Float32, Shape: types.Shape{1, 2, 3}})
	body := ir.NewCall(dialect.Sub, lhs, rhs)
	fn := ir.NewFunction("f", []*ir.Var{lhs, rhs}, body)

	r1, ok1 := InferType(fn)
	r2, ok2 := InferType(fn)
	if ok1 != ok2 {
		t.Fatalf("idempotence: ok1=%v ok2=%v", ok1, ok2)
	}
	t1, _ := r1.Of(body)
	t2, _ := r2.Of(body)
	if !t1.Equal(t2) {
		t.Fatalf("idempotence: %v != %v", t1, t2)
	}
}

func TestInferAnyPropagation(t *testing.T) {
	lhs := ir.NewVar("lhs", types.Any{})
	rhs := ir.NewVar("rhs", types.Tensor{DT: types.Float32, Shape: types.Shape{2}})
	body := ir.NewCall(dialect.Add, lhs, rhs)
	fn := ir.NewFunction("f", []*ir.Var{lhs, rhs}, body)

	result, ok := InferType(fn)
	if !ok {
		t.Fatalf("InferType with an Any argument should not fail")
	}
	got, _ := result.Of(body)
	if !types.IsAny(got) {
		t.Fatalf("body type = %v, want Any", got)
	}
}
