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

// Package types implements the type system described in spec section
// 4.1 (component C1): scalar Datatype, Shape, and the Type sum
// (AnyType, InvalidType, PrimType, TensorType, TupleType), plus
// structural equality and NumPy-style broadcasting.
//
// The sum-of-small-value-types shape is grounded on how the teacher
// represents its own closed value sums, e.g. expr.Bool/expr.String/
// expr.Integer/expr.Float in github.com/SnellerInc/sneller/expr/node.go,
// each a small struct or alias implementing a shared interface rather
// than one tagged struct with a discriminant field.
package types

import "fmt"

// Datatype is the closed enum of scalar kinds from spec section 3.
type Datatype uint8

const (
	InvalidDatatype Datatype = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	BFloat16
	Float32
	Float64
	Bool
)

var datatypeNames = [...]string{
	InvalidDatatype: "invalid",
	Int8:            "int8",
	Int16:           "int16",
	Int32:           "int32",
	Int64:           "int64",
	Uint8:           "uint8",
	Uint16:          "uint16",
	Uint32:          "uint32",
	Uint64:          "uint64",
	Float16:         "float16",
	BFloat16:        "bfloat16",
	Float32:         "float32",
	Float64:         "float64",
	Bool:            "bool",
}

func (d Datatype) String() string {
	if int(d) < len(datatypeNames) && datatypeNames[d] != "" {
		return datatypeNames[d]
	}
	return fmt.Sprintf("Datatype(%d)", uint8(d))
}

// widths holds the fixed byte width of every scalar kind, per spec
// section 3 ("Each has a fixed byte width").
var widths = [...]uint8{
	InvalidDatatype: 0,
	Int8:            1,
	Int16:           2,
	Int32:           4,
	Int64:           8,
	Uint8:           1,
	Uint16:          2,
	Uint32:          4,
	Uint64:          8,
	Float16:         2,
	BFloat16:        2,
	Float32:         4,
	Float64:         8,
	Bool:            1,
}

// ByteWidth returns the fixed size in bytes of one scalar of this
// Datatype.
func (d Datatype) ByteWidth() int {
	if int(d) < len(widths) {
		return int(widths[d])
	}
	return 0
}

// IsValid reports whether d is one of the thirteen declared scalar
// kinds.
func (d Datatype) IsValid() bool {
	return d > InvalidDatatype && int(d) < len(datatypeNames)
}
