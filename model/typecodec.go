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

package model

import (
	"encoding/binary"

	"github.com/nncase-go/runtime/types"
)

// Type tags for the inline parameter/return type encoding (spec
// section 6.1: "A shape is encoded as {count: u32, dims: u32 * count}
// inline after a function's parameter-type encoding").
const (
	typeTagAny uint8 = iota
	typeTagInvalid
	typeTagPrim
	typeTagTensor
	typeTagTuple
)

// encodeType appends the encoding of t to dst and returns the result.
func encodeType(dst []byte, t types.Type) []byte {
	switch tt := t.(type) {
	case types.Any:
		return append(dst, typeTagAny)
	case types.Invalid:
		dst = append(dst, typeTagInvalid)
		return appendString(dst, tt.Reason)
	case types.Prim:
		return append(dst, typeTagPrim, byte(tt.DT))
	case types.Tensor:
		dst = append(dst, typeTagTensor, byte(tt.DT))
		return appendShape(dst, tt.Shape)
	case types.Tuple:
		dst = append(dst, typeTagTuple)
		dst = appendU32(dst, uint32(len(tt.Fields)))
		for _, f := range tt.Fields {
			dst = encodeType(dst, f)
		}
		return dst
	default:
		// unreachable: types.Type is a closed sum
		return append(dst, typeTagInvalid)
	}
}

func appendU32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func appendString(dst []byte, s string) []byte {
	dst = appendU32(dst, uint32(len(s)))
	return append(dst, s...)
}

func appendShape(dst []byte, shape types.Shape) []byte {
	dst = appendU32(dst, uint32(len(shape)))
	for _, d := range shape {
		dst = appendU32(dst, uint32(d))
	}
	return dst
}

// decodeType reads one encoded Type from src, returning the type and
// the number of bytes consumed.
func decodeType(src []byte) (types.Type, int, error) {
	if len(src) < 1 {
		return nil, 0, errShortBuffer("type tag", 1, len(src))
	}
	tag := src[0]
	rest := src[1:]
	switch tag {
	case typeTagAny:
		return types.Any{}, 1, nil
	case typeTagInvalid:
		s, n, err := readString(rest)
		if err != nil {
			return nil, 0, err
		}
		return types.Invalid{Reason: s}, 1 + n, nil
	case typeTagPrim:
		if len(rest) < 1 {
			return nil, 0, errShortBuffer("prim datatype", 1, len(rest))
		}
		return types.Prim{DT: types.Datatype(rest[0])}, 2, nil
	case typeTagTensor:
		if len(rest) < 1 {
			return nil, 0, errShortBuffer("tensor datatype", 1, len(rest))
		}
		dt := types.Datatype(rest[0])
		shape, n, err := readShape(rest[1:])
		if err != nil {
			return nil, 0, err
		}
		return types.Tensor{DT: dt, Shape: shape}, 2 + n, nil
	case typeTagTuple:
		count, n, err := readU32(rest)
		if err != nil {
			return nil, 0, err
		}
		off := n
		fields := make([]types.Type, count)
		for i := range fields {
			f, fn, err := decodeType(rest[off:])
			if err != nil {
				return nil, 0, err
			}
			fields[i] = f
			off += fn
		}
		return types.Tuple{Fields: fields}, 1 + off, nil
	default:
		return nil, 0, errShortBuffer("unknown type tag", 0, 0)
	}
}

func readU32(src []byte) (uint32, int, error) {
	if len(src) < 4 {
		return 0, 0, errShortBuffer("u32", 4, len(src))
	}
	return binary.LittleEndian.Uint32(src[:4]), 4, nil
}

func readString(src []byte) (string, int, error) {
	n, hn, err := readU32(src)
	if err != nil {
		return "", 0, err
	}
	if len(src) < hn+int(n) {
		return "", 0, errShortBuffer("string body", hn+int(n), len(src))
	}
	return string(src[hn : hn+int(n)]), hn + int(n), nil
}

func readShape(src []byte) (types.Shape, int, error) {
	count, hn, err := readU32(src)
	if err != nil {
		return nil, 0, err
	}
	need := hn + int(count)*4
	if len(src) < need {
		return nil, 0, errShortBuffer("shape dims", need, len(src))
	}
	shape := make(types.Shape, count)
	off := hn
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint32(src[off : off+4]))
		off += 4
	}
	return shape, off, nil
}
