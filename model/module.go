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

import "encoding/binary"

// moduleHeaderSize is module_header's encoded size: a 16-byte kind
// name plus five uint32 fields (spec section 4.7).
const moduleHeaderSize = nameSize + 5*4

type moduleHeader struct {
	Version   uint32
	Sections  uint32
	Functions uint32
	Reserved0 uint32
	Size      uint32
}

func (h moduleHeader) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Version)
	binary.LittleEndian.PutUint32(dst[4:8], h.Sections)
	binary.LittleEndian.PutUint32(dst[8:12], h.Functions)
	binary.LittleEndian.PutUint32(dst[12:16], h.Reserved0)
	binary.LittleEndian.PutUint32(dst[16:20], h.Size)
}

func decodeModuleHeader(src []byte) (moduleHeader, error) {
	if len(src) < moduleHeaderSize-nameSize {
		return moduleHeader{}, errShortBuffer("module header", moduleHeaderSize-nameSize, len(src))
	}
	return moduleHeader{
		Version:   binary.LittleEndian.Uint32(src[0:4]),
		Sections:  binary.LittleEndian.Uint32(src[4:8]),
		Functions: binary.LittleEndian.Uint32(src[8:12]),
		Reserved0: binary.LittleEndian.Uint32(src[12:16]),
		Size:      binary.LittleEndian.Uint32(src[16:20]),
	}, nil
}

// Module is the parsed, in-memory form of one module_header plus its
// module-global sections and functions (spec section 4.7). Kind picks
// the runtime factory (component C8) that will instantiate a
// RuntimeModule for it.
type Module struct {
	Kind      string
	Version   uint32
	Sections  []SectionHeader
	Functions []Function

	// data holds the trailing blob of section bytes for this module
	// that were not merged into the shared rdata region — see
	// SectionBytes. Function text is carried in each Function record.
	data []byte
}

// SectionBytes resolves a SectionHeader to its backing bytes, routing
// through the model's global rdata blob when the section's
// SECTION_MERGED_INTO_RDATA flag is set (spec section 4.7, "Sections
// may be pinned ... or streamed").
func (m *Module) SectionBytes(rdata []byte, h SectionHeader) ([]byte, error) {
	src := m.data
	if h.MergedIntoRdata() {
		src = rdata
	}
	end := int(h.BodyStart) + int(h.BodySize)
	if end > len(src) {
		return nil, errShortBuffer("section body "+h.Name, end, len(src))
	}
	return src[h.BodyStart:end], nil
}

// SectionByName returns the first module-global section with the
// given name.
func (m *Module) SectionByName(name string) (SectionHeader, bool) {
	for _, s := range m.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return SectionHeader{}, false
}
