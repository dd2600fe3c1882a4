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

package stackvm

import (
	"encoding/binary"

	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/types"
)

// BinaryTensorDescriptor is the decoded immediate payload for
// element-wise binary tensor ops (add_t/sub_t/mul_t): "each tensor-op
// immediate carries the descriptor needed to compute the result"
// (spec section 4.9).
type BinaryTensorDescriptor struct {
	DT       types.Datatype
	LHSShape types.Shape
	RHSShape types.Shape
}

func encodeShape(dst []byte, s types.Shape) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(s)))
	dst = append(dst, hdr[:]...)
	for _, d := range s {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(d))
		dst = append(dst, b[:]...)
	}
	return dst
}

func decodeShape(src []byte) (types.Shape, int, *kerr.Error) {
	if len(src) < 4 {
		return nil, 0, kerr.New(kerr.InvalidProgram, "truncated shape descriptor")
	}
	count := binary.LittleEndian.Uint32(src)
	need := 4 + int(count)*4
	if len(src) < need {
		return nil, 0, kerr.New(kerr.InvalidProgram, "truncated shape dims")
	}
	shape := make(types.Shape, count)
	off := 4
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint32(src[off:]))
		off += 4
	}
	return shape, off, nil
}

// EncodeBinaryTensorDescriptor appends d's wire form to dst, for tests
// and any in-process assembler that hand-builds stack VM text.
func EncodeBinaryTensorDescriptor(dst []byte, d BinaryTensorDescriptor) []byte {
	dst = append(dst, byte(d.DT))
	dst = encodeShape(dst, d.LHSShape)
	dst = encodeShape(dst, d.RHSShape)
	return dst
}

func decodeBinaryTensorDescriptor(src []byte) (BinaryTensorDescriptor, int, *kerr.Error) {
	if len(src) < 1 {
		return BinaryTensorDescriptor{}, 0, kerr.New(kerr.InvalidProgram, "truncated descriptor tag")
	}
	dt := types.Datatype(src[0])
	off := 1
	lhs, n, err := decodeShape(src[off:])
	if err != nil {
		return BinaryTensorDescriptor{}, 0, err
	}
	off += n
	rhs, n, err := decodeShape(src[off:])
	if err != nil {
		return BinaryTensorDescriptor{}, 0, err
	}
	off += n
	return BinaryTensorDescriptor{DT: dt, LHSShape: lhs, RHSShape: rhs}, off, nil
}
