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

// Package model implements the on-disk binary model format from spec
// section 4.7 and 6.1 (component C7): a bit-exact, little-endian
// header/section/function layout that the runtime loader (component
// C8, package runtime) reads without needing to understand the
// IR — the compiler side that produces this format is an external
// collaborator per spec section 1.
//
// The fixed-size record + explicit length-prefixed variable section
// shape is grounded on how the teacher's own on-disk format
// (github.com/SnellerInc/sneller/ion) separates a small typed header
// from symbol-table and payload sections; what's different here is
// that nncase's format (see
// _examples/original_source/include/nncase/runtime/model.h) is a
// fixed-layout binary container rather than ion's self-describing TLV
// encoding, so this package reads/writes raw struct fields with
// encoding/binary instead of ion's Buffer/Symtab machinery.
package model

import "encoding/binary"

// Identifier is the four-byte magic 'KMDL' read little-endian (spec
// section 6.1).
const Identifier uint32 = 0x4C444D4B

// Version is the model format version this package reads and writes.
// nncase's original sources define two coexisting header versions (5
// and 7); per spec section 9's open question, this rewrite targets
// version 7 only.
const Version uint32 = 7

// NoEntry is the sentinel entry_module/entry_function value meaning
// "this model declares no entry point".
const NoEntry uint32 = 0xFFFFFFFF

// headerSize is the encoded size of Header in bytes: 8 uint32 fields.
const headerSize = 32

// Header is model_header from spec section 3/6.1.
type Header struct {
	Identifier    uint32
	Version       uint32
	Flags         uint32
	Alignment     uint32
	Modules       uint32
	EntryModule   uint32
	EntryFunction uint32
	Reserved0     uint32
}

// HasEntry reports whether this model declares an entry function.
func (h Header) HasEntry() bool {
	return h.EntryModule != NoEntry
}

func (h Header) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Identifier)
	binary.LittleEndian.PutUint32(dst[4:8], h.Version)
	binary.LittleEndian.PutUint32(dst[8:12], h.Flags)
	binary.LittleEndian.PutUint32(dst[12:16], h.Alignment)
	binary.LittleEndian.PutUint32(dst[16:20], h.Modules)
	binary.LittleEndian.PutUint32(dst[20:24], h.EntryModule)
	binary.LittleEndian.PutUint32(dst[24:28], h.EntryFunction)
	binary.LittleEndian.PutUint32(dst[28:32], h.Reserved0)
}

func decodeHeader(src []byte) (Header, error) {
	if len(src) < headerSize {
		return Header{}, errShortBuffer("model header", headerSize, len(src))
	}
	h := Header{
		Identifier:    binary.LittleEndian.Uint32(src[0:4]),
		Version:       binary.LittleEndian.Uint32(src[4:8]),
		Flags:         binary.LittleEndian.Uint32(src[8:12]),
		Alignment:     binary.LittleEndian.Uint32(src[12:16]),
		Modules:       binary.LittleEndian.Uint32(src[16:20]),
		EntryModule:   binary.LittleEndian.Uint32(src[20:24]),
		EntryFunction: binary.LittleEndian.Uint32(src[24:28]),
		Reserved0:     binary.LittleEndian.Uint32(src[28:32]),
	}
	if h.Identifier != Identifier {
		return Header{}, errBadIdentifier(h.Identifier)
	}
	if h.Version != Version {
		return Header{}, errBadVersion(h.Version)
	}
	return h, nil
}
