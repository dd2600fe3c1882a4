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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nncase-go/runtime/internal/obj"
	"github.com/nncase-go/runtime/types"
)

// Constant is an immutable literal tensor (spec section 3). bytes.len
// must equal elem_bytes(dt) * product(shape), except for a symbolic
// constant (IsSymbolic), which carries no backing bytes.
type Constant struct {
	ValueType types.Type
	Bytes     []byte
	symbolic  bool
}

func (*Constant) Kind() obj.ObjectKind { return obj.KindExprConstant }
func (c *Constant) children() []Node   { return nil }
func (c *Constant) String() string {
	return fmt.Sprintf("const<%s>", c.ValueType)
}

// IsSymbolic reports whether this constant stands in for a value whose
// bytes are not known at IR-construction time (spec section 3: "or
// marker for symbolic").
func (c *Constant) IsSymbolic() bool { return c.symbolic }

// NewSymbolicConstant builds a Constant with a declared type but no
// backing bytes.
func NewSymbolicConstant(t types.Type) *Constant {
	return &Constant{ValueType: t, symbolic: true}
}

// NewConstant builds a Constant from raw bytes and validates the
// length invariant from spec section 3.
func NewConstant(t types.Type, bytes []byte) (*Constant, error) {
	tt, ok := t.(types.Tensor)
	if !ok {
		return nil, fmt.Errorf("ir: NewConstant requires a tensor type, got %T", t)
	}
	want := tt.DT.ByteWidth() * tt.Shape.Elements()
	if len(bytes) != want {
		return nil, fmt.Errorf("ir: NewConstant: %d bytes, want %d for %s", len(bytes), want, t)
	}
	return &Constant{ValueType: t, Bytes: bytes}, nil
}

// newScalarBytes encodes the low dt.ByteWidth() bytes of bits as one
// little-endian scalar of dt.
func newScalarBytes(dt types.Datatype, bits uint64) []byte {
	buf := make([]byte, dt.ByteWidth())
	switch dt.ByteWidth() {
	case 1:
		buf[0] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(bits))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(buf, bits)
	}
	return buf
}

// NewFloat32Constant builds a scalar float32 constant, used throughout
// the VM's ldc_r4 family and in the S1 constant-fold scenario (spec
// section 9).
func NewFloat32Constant(v float32, asOneElementTensor bool) *Constant {
	shape := types.Scalar()
	if asOneElementTensor {
		shape = types.Shape{1}
	}
	bytes := newScalarBytes(types.Float32, uint64(math.Float32bits(v)))
	return &Constant{ValueType: types.Tensor{DT: types.Float32, Shape: shape}, Bytes: bytes}
}

// NewInt32Constant builds a scalar int32 constant.
func NewInt32Constant(v int32, asOneElementTensor bool) *Constant {
	shape := types.Scalar()
	if asOneElementTensor {
		shape = types.Shape{1}
	}
	bytes := newScalarBytes(types.Int32, uint64(uint32(v)))
	return &Constant{ValueType: types.Tensor{DT: types.Int32, Shape: shape}, Bytes: bytes}
}

// Float32 decodes this constant as a scalar float32, for tests and
// constant folding of literal arithmetic (spec scenario S1).
func (c *Constant) Float32() (float32, bool) {
	tt, ok := c.ValueType.(types.Tensor)
	if !ok || tt.DT != types.Float32 || len(c.Bytes) < 4 {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(c.Bytes)), true
}

// Int32 decodes this constant as a scalar int32.
func (c *Constant) Int32() (int32, bool) {
	tt, ok := c.ValueType.(types.Tensor)
	if !ok || tt.DT != types.Int32 || len(c.Bytes) < 4 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(c.Bytes)), true
}
