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

package tensor

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/nncase-go/runtime/buffer"
	"github.com/nncase-go/runtime/types"
)

func newHost(t *testing.T) *buffer.HostAllocator {
	t.Helper()
	h, err := buffer.NewHostAllocator(4 << 20)
	if err != nil {
		t.Fatalf("NewHostAllocator: %v", err)
	}
	return h
}

func float32Tensor(t *testing.T, h *buffer.HostAllocator, shape types.Shape, values []float32) *Tensor {
	t.Helper()
	size := shape.Elements() * types.Float32.ByteWidth()
	buf := h.Allocate(size, buffer.Options{}).Unwrap()
	mb := buf.Map(buffer.Write).Unwrap()
	for i, v := range values {
		binary.LittleEndian.PutUint32(mb.Bytes()[i*4:], math.Float32bits(v))
	}
	buf.Unmap()
	tn, err := NewContiguous(types.Float32, shape, buf)
	if err != nil {
		t.Fatalf("NewContiguous: %v", err)
	}
	return tn
}

func readFloat32s(t *testing.T, tn *Tensor) []float32 {
	t.Helper()
	mb := tn.Slice.Buf.Map(buffer.Read).Unwrap()
	defer tn.Slice.Buf.Unmap()
	raw := tn.Slice.Bytes(mb)
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func TestCopyToContiguousSameLayout(t *testing.T) {
	h := newHost(t)
	src := float32Tensor(t, h, types.Shape{2, 2}, []float32{1, 2, 3, 4})
	dstBuf := h.Allocate(16, buffer.Options{}).Unwrap()
	dst, err := NewContiguous(types.Float32, types.Shape{2, 2}, dstBuf)
	if err != nil {
		t.Fatalf("NewContiguous: %v", err)
	}

	if cerr := src.CopyTo(dst); cerr != nil {
		t.Fatalf("CopyTo: %v", cerr)
	}
	got := readFloat32s(t, dst)
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCopyToStridedTransposeView(t *testing.T) {
	h := newHost(t)
	// mem stores the 2x2 matrix [[1,2],[3,4]] in column-major order;
	// strides {1,2} make it readable as the logical row-major matrix.
	src := float32Tensor(t, h, types.Shape{2, 2}, []float32{1, 3, 2, 4})
	src.Strides = types.Strides{1, 2}

	dstBuf := h.Allocate(16, buffer.Options{}).Unwrap()
	dst, err := NewContiguous(types.Float32, types.Shape{2, 2}, dstBuf)
	if err != nil {
		t.Fatalf("NewContiguous: %v", err)
	}

	if cerr := src.CopyTo(dst); cerr != nil {
		t.Fatalf("CopyTo: %v", cerr)
	}
	got := readFloat32s(t, dst)
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCopyToRejectsDatatypeMismatch(t *testing.T) {
	h := newHost(t)
	src := float32Tensor(t, h, types.Shape{1}, []float32{1})
	dstBuf := h.Allocate(4, buffer.Options{}).Unwrap()
	dst, err := NewContiguous(types.Int32, types.Shape{1}, dstBuf)
	if err != nil {
		t.Fatalf("NewContiguous: %v", err)
	}
	if cerr := src.CopyTo(dst); cerr == nil {
		t.Fatalf("expected NotSupported error for datatype mismatch")
	}
}

func TestIsContiguous(t *testing.T) {
	h := newHost(t)
	tn := float32Tensor(t, h, types.Shape{2, 2}, []float32{1, 2, 3, 4})
	if !tn.IsContiguous() {
		t.Fatalf("expected row-major tensor to be contiguous")
	}
	tn.Strides = types.Strides{1, 2}
	if tn.IsContiguous() {
		t.Fatalf("expected swapped strides to be non-contiguous")
	}
}

func TestNewRejectsUndersizedSlice(t *testing.T) {
	h := newHost(t)
	buf := h.Allocate(4, buffer.Options{}).Unwrap()
	_, err := New(types.Float32, types.Shape{2, 2}, types.Shape{2, 2}.RowMajorStrides(), BufferSlice{Buf: buf, Start: 0, Length: 4})
	if err == nil {
		t.Fatalf("expected error for undersized buffer slice")
	}
}

func TestToHostIsNoopForHostTensor(t *testing.T) {
	h := newHost(t)
	tn := float32Tensor(t, h, types.Shape{1}, []float32{7})
	got, err := ToHost(tn, h)
	if err != nil {
		t.Fatalf("ToHost: %v", err)
	}
	if got != tn {
		t.Fatalf("ToHost on a host tensor should return the same handle")
	}
}

func TestToHostCopiesFromDevice(t *testing.T) {
	host := newHost(t)
	dev, derr := buffer.NewDeviceAllocator("test-accel", 0, 1<<20)
	if derr != nil {
		t.Fatalf("NewDeviceAllocator: %v", derr)
	}
	devBuf := dev.Allocate(4, buffer.Options{}).Unwrap()
	mb := devBuf.Map(buffer.Write).Unwrap()
	binary.LittleEndian.PutUint32(mb.Bytes(), math.Float32bits(9))
	devBuf.Unmap()

	devTensor, err := NewContiguous(types.Float32, types.Shape{1}, devBuf)
	if err != nil {
		t.Fatalf("NewContiguous: %v", err)
	}

	hostTensor, herr := ToHost(devTensor, host)
	if herr != nil {
		t.Fatalf("ToHost: %v", herr)
	}
	got := readFloat32s(t, hostTensor)
	if got[0] != 9 {
		t.Fatalf("got %v, want [9]", got)
	}
}
