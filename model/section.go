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

// nameSize is the fixed width of a section or module kind name
// (char[16] in spec section 4.7).
const nameSize = 16

// sectionHeaderSize is SectionHeader's encoded size: a 16-byte name
// plus six uint32 fields.
const sectionHeaderSize = nameSize + 6*4

// Section header flags (spec section 6.1).
const (
	// SectionMergedIntoRdata marks a section whose bytes live in
	// the model's global rdata blob rather than in this module's
	// own trailing data.
	SectionMergedIntoRdata uint32 = 1 << 0
	// SectionCompressed marks a section whose body bytes are
	// zstd-compressed (domain-stack addition, see SPEC_FULL.md:
	// wires in github.com/klauspost/compress the way the teacher's
	// ion/compress.go does for its own chunk bodies).
	SectionCompressed uint32 = 1 << 1
)

// SectionHeader is section_header from spec section 4.7.
type SectionHeader struct {
	Name       string // up to 15 bytes + NUL, like module_header.kind
	Flags      uint32
	Reserved0  uint32
	Size       uint32 // encoded size, excluding this header
	BodyStart  uint32 // offset of bytes within the owning blob
	BodySize   uint32 // on-disk byte length
	MemorySize uint32 // memory footprint once loaded (>= BodySize)
}

// MergedIntoRdata reports whether this section's bytes live in the
// model's rdata blob.
func (s SectionHeader) MergedIntoRdata() bool {
	return s.Flags&SectionMergedIntoRdata != 0
}

// Compressed reports whether this section's body is zstd-compressed.
func (s SectionHeader) Compressed() bool {
	return s.Flags&SectionCompressed != 0
}

func encodeName(dst []byte, name string) {
	n := copy(dst, name)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func decodeName(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

func (s SectionHeader) encode(dst []byte) {
	encodeName(dst[0:nameSize], s.Name)
	off := nameSize
	binary.LittleEndian.PutUint32(dst[off:off+4], s.Flags)
	binary.LittleEndian.PutUint32(dst[off+4:off+8], s.Reserved0)
	binary.LittleEndian.PutUint32(dst[off+8:off+12], s.Size)
	binary.LittleEndian.PutUint32(dst[off+12:off+16], s.BodyStart)
	binary.LittleEndian.PutUint32(dst[off+16:off+20], s.BodySize)
	binary.LittleEndian.PutUint32(dst[off+20:off+24], s.MemorySize)
}

func decodeSectionHeader(src []byte) (SectionHeader, error) {
	if len(src) < sectionHeaderSize {
		return SectionHeader{}, errShortBuffer("section header", sectionHeaderSize, len(src))
	}
	off := nameSize
	return SectionHeader{
		Name:       decodeName(src[0:nameSize]),
		Flags:      binary.LittleEndian.Uint32(src[off : off+4]),
		Reserved0:  binary.LittleEndian.Uint32(src[off+4 : off+8]),
		Size:       binary.LittleEndian.Uint32(src[off+8 : off+12]),
		BodyStart:  binary.LittleEndian.Uint32(src[off+12 : off+16]),
		BodySize:   binary.LittleEndian.Uint32(src[off+16 : off+20]),
		MemorySize: binary.LittleEndian.Uint32(src[off+20 : off+24]),
	}, nil
}
