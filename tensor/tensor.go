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

// Package tensor implements RuntimeTensor (spec section 3/4.11,
// component C12): a datatype, shape, and strides layered over a
// buffer.BufferSlice, plus the layout-aware copy_to precedence rules.
package tensor

import (
	"github.com/nncase-go/runtime/buffer"
	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/types"
)

// BufferSlice is a strong reference to a region of a buffer.Buffer,
// mirroring spec section 3's `buffer_slice = (buffer_handle,
// start_bytes, length_bytes)`.
type BufferSlice struct {
	Buf    *buffer.Buffer
	Start  int
	Length int
}

// Bytes returns the slice's view of the underlying buffer; the buffer
// must currently be mapped by the caller.
func (s BufferSlice) Bytes(mapped *buffer.MappedBuffer) []byte {
	return mapped.Bytes()[s.Start : s.Start+s.Length]
}

// Tensor is RuntimeTensor from spec section 3/4.11.
type Tensor struct {
	Datatype types.Datatype
	Shape    types.Shape
	Strides  types.Strides
	Slice    BufferSlice
}

// maxAddressable returns, in elements, one past the highest index
// reachable under shape/strides (spec section 3 invariant:
// `length_bytes >= max_addressable(shape, strides) * elem_bytes(dt)`).
func maxAddressable(shape types.Shape, strides types.Strides) int {
	if len(shape) == 0 {
		return 1
	}
	max := 0
	for i, dim := range shape {
		if dim == 0 {
			return 0
		}
		max += (dim - 1) * strides[i]
	}
	return max + 1
}

// New validates the invariant and constructs a Tensor.
func New(dt types.Datatype, shape types.Shape, strides types.Strides, slice BufferSlice) (*Tensor, *kerr.Error) {
	if len(strides) != len(shape) {
		return nil, kerr.New(kerr.InvalidArgument, "strides cardinality %d != shape cardinality %d", len(strides), len(shape))
	}
	need := maxAddressable(shape, strides) * dt.ByteWidth()
	if slice.Length < need {
		return nil, kerr.New(kerr.InvalidArgument, "buffer slice too small: have %d bytes, need %d", slice.Length, need)
	}
	return &Tensor{Datatype: dt, Shape: shape, Strides: strides, Slice: slice}, nil
}

// NewContiguous builds a Tensor with row-major strides covering all of
// buf starting at byte 0.
func NewContiguous(dt types.Datatype, shape types.Shape, buf *buffer.Buffer) (*Tensor, *kerr.Error) {
	strides := shape.RowMajorStrides()
	return New(dt, shape, strides, BufferSlice{Buf: buf, Start: 0, Length: buf.Size()})
}

// IsContiguous reports whether Strides equals the row-major strides
// derived from Shape (spec section 4.11).
func (t *Tensor) IsContiguous() bool {
	return types.IsRowMajor(t.Shape, t.Strides)
}

// isHost reports whether the tensor's backing buffer is a host
// buffer, as opposed to a device buffer.
func (t *Tensor) isHost() bool {
	return t.Slice.Buf.DeviceType() == ""
}

// CopyTo implements spec section 4.11's precedence rules:
//  1. same datatype + identical strides + contiguous: a single memcpy.
//  2. same datatype + different layout: a strided copy over Shape.
//  3. different datatypes: NotSupported (no narrowing/widening impl
//     is registered in this rewrite).
//  4. host<->device: delegate to buffer.Buffer.CopyTo, which copies
//     the buffer bytes directly.
func (t *Tensor) CopyTo(dest *Tensor) *kerr.Error {
	if !t.isHost() || !dest.isHost() {
		return t.Slice.Buf.CopyTo(dest.Slice.Buf)
	}
	if t.Datatype != dest.Datatype {
		return kerr.New(kerr.NotSupported, "cross-datatype copy %s -> %s is not supported", t.Datatype, dest.Datatype)
	}
	if !t.Shape.Equal(dest.Shape) {
		return kerr.New(kerr.InvalidArgument, "shape mismatch: %v vs %v", t.Shape, dest.Shape)
	}

	srcMap := t.Slice.Buf.Map(buffer.Read)
	if srcMap.IsErr() {
		return srcMap.UnwrapErr()
	}
	defer t.Slice.Buf.Unmap()
	dstMap := dest.Slice.Buf.Map(buffer.Write)
	if dstMap.IsErr() {
		return dstMap.UnwrapErr()
	}
	defer dest.Slice.Buf.Unmap()

	src := t.Slice.Bytes(srcMap.Unwrap())
	dst := dest.Slice.Bytes(dstMap.Unwrap())

	if t.IsContiguous() && dest.IsContiguous() && t.Strides.Equal(dest.Strides) {
		copy(dst, src)
		return nil
	}
	return stridedCopy(src, dst, t.Shape, t.Strides, dest.Strides, t.Datatype.ByteWidth())
}

// stridedCopy walks every index in shape, copying one element at a
// time from src (addressed by srcStrides) to dst (addressed by
// dstStrides). This is the nested-loop shape used by nncase's own
// tensor copy routines
// (_examples/original_source/src/Native/src/runtime/nncase/runtime_tensor.cpp,
// copy_tensor) rather than a recursive formulation, since the
// dimension count is small and bounded (spec section 3: "most shapes
// <=4 dims").
func stridedCopy(src, dst []byte, shape types.Shape, srcStrides, dstStrides types.Strides, elemBytes int) *kerr.Error {
	if len(shape) == 0 {
		copy(dst[:elemBytes], src[:elemBytes])
		return nil
	}
	index := make([]int, len(shape))
	for {
		srcOff, dstOff := 0, 0
		for i, ix := range index {
			srcOff += ix * srcStrides[i] * elemBytes
			dstOff += ix * dstStrides[i] * elemBytes
		}
		copy(dst[dstOff:dstOff+elemBytes], src[srcOff:srcOff+elemBytes])

		i := len(shape) - 1
		for ; i >= 0; i-- {
			index[i]++
			if index[i] < shape[i] {
				break
			}
			index[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// ToHost returns a tensor backed by a host buffer: t itself if it
// already is one, or a freshly allocated host copy otherwise (spec
// section 4.11, to_host()).
func ToHost(t *Tensor, host *buffer.HostAllocator) (*Tensor, *kerr.Error) {
	if t.isHost() {
		return t, nil
	}
	r := host.Allocate(t.Slice.Length, buffer.Options{})
	if r.IsErr() {
		return nil, r.UnwrapErr()
	}
	dest, err := New(t.Datatype, t.Shape.Clone(), append(types.Strides(nil), t.Strides...), BufferSlice{
		Buf: r.Unwrap(), Start: 0, Length: t.Slice.Length,
	})
	if err != nil {
		return nil, err
	}
	if err := t.CopyTo(dest); err != nil {
		return nil, err
	}
	return dest, nil
}
