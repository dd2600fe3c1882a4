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

import "strings"

// Type is the sum described in spec section 3: AnyType | InvalidType
// | PrimType | TensorType | TupleType. Every concrete type below
// implements Type and is comparable with Equal.
//
// Unlike expr.Node in the teacher (an interface satisfied by dozens of
// AST node kinds plus a private marker method), Type only needs five
// variants, so each variant is its own small value type rather than
// going through a visitor dispatch table; equality and formatting are
// implemented directly per variant the way expr.Integer/expr.Float do
// it for their narrower value domains.
type Type interface {
	// isType is unexported so Type is a closed sum: no package
	// outside types can add a sixth variant.
	isType()
	// Equal does a structural comparison against another Type.
	Equal(Type) bool
	// String renders the type for diagnostics.
	String() string
}

// Any is the top of the type lattice (spec section 3/9): used before
// inference resolves a concrete type, and as the result of any
// operation whose inputs include an unresolved type.
type Any struct{}

func (Any) isType()        {}
func (Any) String() string { return "any" }
func (Any) Equal(o Type) bool {
	_, ok := o.(Any)
	return ok
}

// Invalid is the bottom of the lattice: it signals a failed inference
// step and carries a human-readable reason (spec section 3, 9).
type Invalid struct {
	Reason string
}

func (Invalid) isType() {}
func (i Invalid) String() string {
	return "invalid(" + i.Reason + ")"
}
func (i Invalid) Equal(o Type) bool {
	oi, ok := o.(Invalid)
	return ok && oi.Reason == i.Reason
}

// Prim is a bare scalar type with no tensor shape wrapped around it
// (used for non-tensor operator metadata such as axis indices).
type Prim struct {
	DT Datatype
}

func (Prim) isType() {}
func (p Prim) String() string {
	return p.DT.String()
}
func (p Prim) Equal(o Type) bool {
	op, ok := o.(Prim)
	return ok && op.DT == p.DT
}

// Tensor is a datatype plus a shape. A Tensor with an empty shape is a
// scalar tensor (spec section 3 invariant).
type Tensor struct {
	DT    Datatype
	Shape Shape
}

func (Tensor) isType() {}

// IsScalar reports whether this tensor type has no dimensions.
func (t Tensor) IsScalar() bool { return t.Shape.IsScalar() }

func (t Tensor) String() string {
	if t.Shape.IsScalar() {
		return t.DT.String()
	}
	var b strings.Builder
	b.WriteString(t.DT.String())
	b.WriteByte('[')
	for i, d := range t.Shape {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(itoa(d))
	}
	b.WriteByte(']')
	return b.String()
}

func (t Tensor) Equal(o Type) bool {
	ot, ok := o.(Tensor)
	return ok && ot.DT == t.DT && ot.Shape.Equal(t.Shape)
}

// Tuple is a fixed-arity product of types; TupleType may nest (spec
// section 3).
type Tuple struct {
	Fields []Type
}

func (Tuple) isType() {}
func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, f := range t.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (t Tuple) Equal(o Type) bool {
	ot, ok := o.(Tuple)
	if !ok || len(ot.Fields) != len(t.Fields) {
		return false
	}
	for i := range t.Fields {
		if !t.Fields[i].Equal(ot.Fields[i]) {
			return false
		}
	}
	return true
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// IsAny reports whether t is the Any type.
func IsAny(t Type) bool {
	_, ok := t.(Any)
	return ok
}

// IsInvalid reports whether t is an Invalid type.
func IsInvalid(t Type) bool {
	_, ok := t.(Invalid)
	return ok
}

// InvalidReason returns the reason string of an Invalid type, or ""
// if t is not Invalid.
func InvalidReason(t Type) string {
	if i, ok := t.(Invalid); ok {
		return i.Reason
	}
	return ""
}
