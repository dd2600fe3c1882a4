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

import "github.com/nncase-go/runtime/types"

// Model is the fully parsed in-memory form of a 'KMDL' model file
// (spec section 3/4.7). Decode produces one from raw bytes; Encode
// does the reverse, and the two round-trip bit-exactly for any Model
// built from well-formed component values (spec section 8, invariant
// 1, adapted: the compiler/save side is out of scope per spec section
// 1, but the loader's encode/decode pair must still preserve every
// semantically observable field so this round trip can be tested in
// isolation from a real compiler).
type Model struct {
	Header  Header
	RData   []byte
	Modules []Module
}

// Encode serializes m to its binary form.
func (m *Model) Encode() []byte {
	var buf []byte

	hdr := m.Header
	hdr.Identifier = Identifier
	hdr.Version = Version
	hdr.Modules = uint32(len(m.Modules))
	hdrBytes := make([]byte, headerSize)
	hdr.encode(hdrBytes)
	buf = append(buf, hdrBytes...)

	buf = appendU32(buf, uint32(len(m.RData)))
	buf = append(buf, m.RData...)

	for i := range m.Modules {
		buf = encodeModule(buf, &m.Modules[i])
	}
	return buf
}

func encodeModule(buf []byte, mod *Module) []byte {
	start := len(buf)

	nameBuf := make([]byte, nameSize)
	encodeName(nameBuf, mod.Kind)
	buf = append(buf, nameBuf...)

	mh := moduleHeader{
		Version:   mod.Version,
		Sections:  uint32(len(mod.Sections)),
		Functions: uint32(len(mod.Functions)),
	}
	mhOff := len(buf)
	mhBytes := make([]byte, moduleHeaderSize-nameSize)
	mh.encode(mhBytes)
	buf = append(buf, mhBytes...)

	for _, sh := range mod.Sections {
		shBytes := make([]byte, sectionHeaderSize)
		sh.encode(shBytes)
		buf = append(buf, shBytes...)
	}

	for _, fn := range mod.Functions {
		buf = encodeFunction(buf, fn)
	}

	buf = appendU32(buf, uint32(len(mod.data)))
	buf = append(buf, mod.data...)

	size := uint32(len(buf) - start)
	mh.Size = size
	mhBytes = make([]byte, moduleHeaderSize-nameSize)
	mh.encode(mhBytes)
	copy(buf[mhOff:mhOff+len(mhBytes)], mhBytes)

	return buf
}

func encodeFunction(buf []byte, fn Function) []byte {
	start := len(buf)
	fh := functionHeader{
		Parameters: uint32(len(fn.ParameterTypes)),
		Sections:   uint32(len(fn.Sections)),
		Entrypoint: fn.Entrypoint,
		TextSize:   uint32(len(fn.Text)),
	}
	fhOff := len(buf)
	fhBytes := make([]byte, functionHeaderSize)
	fh.encode(fhBytes)
	buf = append(buf, fhBytes...)

	for _, pt := range fn.ParameterTypes {
		buf = encodeType(buf, pt)
	}
	buf = encodeType(buf, fn.ReturnType)

	for _, sh := range fn.Sections {
		shBytes := make([]byte, sectionHeaderSize)
		sh.encode(shBytes)
		buf = append(buf, shBytes...)
	}

	buf = append(buf, fn.Text...)

	fh.Size = uint32(len(buf) - start)
	fhBytes = make([]byte, functionHeaderSize)
	fh.encode(fhBytes)
	copy(buf[fhOff:fhOff+len(fhBytes)], fhBytes)

	return buf
}

// Decode parses a 'KMDL' model file from data (spec section 4.7,
// loader algorithm step 1-2). It does not instantiate runtime
// modules — that cross-module wiring is component C8, implemented in
// package runtime, which calls Decode and then walks the resulting
// Model.
func Decode(data []byte) (*Model, error) {
	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	off := headerSize

	rdataLen, n, err := readU32(data[off:])
	if err != nil {
		return nil, err
	}
	off += n
	if off+int(rdataLen) > len(data) {
		return nil, errShortBuffer("rdata", off+int(rdataLen), len(data))
	}
	rdata := data[off : off+int(rdataLen)]
	off += int(rdataLen)

	modules := make([]Module, 0, hdr.Modules)
	for i := uint32(0); i < hdr.Modules; i++ {
		mod, consumed, err := decodeModule(data[off:])
		if err != nil {
			return nil, err
		}
		modules = append(modules, mod)
		off += consumed
	}

	return &Model{Header: hdr, RData: rdata, Modules: modules}, nil
}

func decodeModule(src []byte) (Module, int, error) {
	if len(src) < nameSize {
		return Module{}, 0, errShortBuffer("module kind", nameSize, len(src))
	}
	kind := decodeName(src[0:nameSize])
	off := nameSize

	mh, err := decodeModuleHeader(src[off:])
	if err != nil {
		return Module{}, 0, err
	}
	off += moduleHeaderSize - nameSize

	sections := make([]SectionHeader, 0, mh.Sections)
	for i := uint32(0); i < mh.Sections; i++ {
		sh, err := decodeSectionHeader(src[off:])
		if err != nil {
			return Module{}, 0, err
		}
		sections = append(sections, sh)
		off += sectionHeaderSize
	}

	functions := make([]Function, 0, mh.Functions)
	for i := uint32(0); i < mh.Functions; i++ {
		fn, consumed, err := decodeFunction(src[off:])
		if err != nil {
			return Module{}, 0, err
		}
		functions = append(functions, fn)
		off += consumed
	}

	dataLen, n, err := readU32(src[off:])
	if err != nil {
		return Module{}, 0, err
	}
	off += n
	if off+int(dataLen) > len(src) {
		return Module{}, 0, errShortBuffer("module data", off+int(dataLen), len(src))
	}
	data := src[off : off+int(dataLen)]
	off += int(dataLen)

	return Module{
		Kind:      kind,
		Version:   mh.Version,
		Sections:  sections,
		Functions: functions,
		data:      data,
	}, off, nil
}

func decodeFunction(src []byte) (Function, int, error) {
	fh, err := decodeFunctionHeader(src)
	if err != nil {
		return Function{}, 0, err
	}
	off := functionHeaderSize

	params := make([]types.Type, 0, fh.Parameters)
	for i := uint32(0); i < fh.Parameters; i++ {
		t, n, err := decodeType(src[off:])
		if err != nil {
			return Function{}, 0, err
		}
		params = append(params, t)
		off += n
	}

	ret, n, err := decodeType(src[off:])
	if err != nil {
		return Function{}, 0, err
	}
	off += n

	sections := make([]SectionHeader, 0, fh.Sections)
	for i := uint32(0); i < fh.Sections; i++ {
		sh, err := decodeSectionHeader(src[off:])
		if err != nil {
			return Function{}, 0, err
		}
		sections = append(sections, sh)
		off += sectionHeaderSize
	}

	if off+int(fh.TextSize) > len(src) {
		return Function{}, 0, errShortBuffer("function text", off+int(fh.TextSize), len(src))
	}
	text := src[off : off+int(fh.TextSize)]
	off += int(fh.TextSize)

	return Function{
		ParameterTypes: params,
		ReturnType:     ret,
		Entrypoint:     fh.Entrypoint,
		Sections:       sections,
		Text:           text,
	}, off, nil
}
