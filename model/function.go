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

// functionHeaderSize is function_header's encoded size: five uint32
// fields (spec section 4.7).
const functionHeaderSize = 5 * 4

// functionHeader is function_header from spec section 4.7, followed
// on disk by: `parameters` encoded parameter types, one encoded
// return type, `sections` per-function section records, then the
// function text.
type functionHeader struct {
	Parameters uint32
	Sections   uint32
	Entrypoint uint32
	TextSize   uint32
	Size       uint32
}

func (h functionHeader) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Parameters)
	binary.LittleEndian.PutUint32(dst[4:8], h.Sections)
	binary.LittleEndian.PutUint32(dst[8:12], h.Entrypoint)
	binary.LittleEndian.PutUint32(dst[12:16], h.TextSize)
	binary.LittleEndian.PutUint32(dst[16:20], h.Size)
}

func decodeFunctionHeader(src []byte) (functionHeader, error) {
	if len(src) < functionHeaderSize {
		return functionHeader{}, errShortBuffer("function header", functionHeaderSize, len(src))
	}
	return functionHeader{
		Parameters: binary.LittleEndian.Uint32(src[0:4]),
		Sections:   binary.LittleEndian.Uint32(src[4:8]),
		Entrypoint: binary.LittleEndian.Uint32(src[8:12]),
		TextSize:   binary.LittleEndian.Uint32(src[12:16]),
		Size:       binary.LittleEndian.Uint32(src[16:20]),
	}, nil
}

// Function is the parsed, in-memory form of a function_header plus
// its parameter/return types, per-function sections, and text bytes.
type Function struct {
	ParameterTypes []types.Type
	ReturnType     types.Type
	Entrypoint     uint32
	Sections       []SectionHeader
	Text           []byte
}
