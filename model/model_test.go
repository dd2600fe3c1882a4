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
	"bytes"
	"testing"

	"github.com/nncase-go/runtime/types"
)

func sampleModel() *Model {
	rdata := []byte("shared constant pool bytes")
	return &Model{
		Header: Header{
			Alignment:     8,
			EntryModule:   0,
			EntryFunction: 0,
		},
		RData: rdata,
		Modules: []Module{
			{
				Kind:    "stackvm",
				Version: 1,
				Sections: []SectionHeader{
					{
						Name:       "rdata",
						Flags:      SectionMergedIntoRdata,
						BodyStart:  0,
						BodySize:   uint32(len(rdata)),
						MemorySize: uint32(len(rdata)),
					},
				},
				Functions: []Function{
					{
						ParameterTypes: []types.Type{
							types.Tensor{DT: types.Float32, Shape: types.Shape{1, 3}},
							types.Tensor{DT: types.Float32, Shape: types.Shape{1, 3}},
						},
						ReturnType: types.Tensor{DT: types.Float32, Shape: types.Shape{1, 3}},
						Entrypoint: 0,
						Sections: []SectionHeader{
							{
								Name:       "text",
								Flags:      0,
								BodyStart:  0,
								BodySize:   4,
								MemorySize: 4,
							},
						},
						Text: []byte{0x01, 0x02, 0x03, 0x04},
					},
				},
				data: []byte{0xAA, 0xBB, 0xCC, 0xDD},
			},
		},
	}
}

func TestModelRoundTrip(t *testing.T) {
	want := sampleModel()
	encoded := want.Encode()

	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Header.Alignment != want.Header.Alignment {
		t.Errorf("Alignment = %d, want %d", got.Header.Alignment, want.Header.Alignment)
	}
	if !bytes.Equal(got.RData, want.RData) {
		t.Errorf("RData = %q, want %q", got.RData, want.RData)
	}
	if len(got.Modules) != len(want.Modules) {
		t.Fatalf("Modules count = %d, want %d", len(got.Modules), len(want.Modules))
	}

	gm, wm := got.Modules[0], want.Modules[0]
	if gm.Kind != wm.Kind {
		t.Errorf("Kind = %q, want %q", gm.Kind, wm.Kind)
	}
	if len(gm.Functions) != 1 {
		t.Fatalf("Functions count = %d, want 1", len(gm.Functions))
	}
	gf, wf := gm.Functions[0], wm.Functions[0]
	if !bytes.Equal(gf.Text, wf.Text) {
		t.Errorf("Text = %v, want %v", gf.Text, wf.Text)
	}
	if len(gf.ParameterTypes) != 2 {
		t.Fatalf("ParameterTypes count = %d, want 2", len(gf.ParameterTypes))
	}
	if !gf.ParameterTypes[0].Equal(wf.ParameterTypes[0]) {
		t.Errorf("ParameterTypes[0] = %v, want %v", gf.ParameterTypes[0], wf.ParameterTypes[0])
	}
	if !gf.ReturnType.Equal(wf.ReturnType) {
		t.Errorf("ReturnType = %v, want %v", gf.ReturnType, wf.ReturnType)
	}

	// Re-encoding the decoded model must reproduce the exact same
	// bytes (spec section 8, invariant 1: bit-exact round trip).
	reencoded := got.Encode()
	if !bytes.Equal(reencoded, encoded) {
		t.Errorf("re-encoded bytes differ from original encoding (len %d vs %d)", len(reencoded), len(encoded))
	}
}

func TestModelSectionBytesRoutesThroughRdata(t *testing.T) {
	m := sampleModel()
	encoded := m.Encode()
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	mod := &got.Modules[0]
	sh, ok := mod.SectionByName("rdata")
	if !ok {
		t.Fatalf("rdata section not found")
	}
	if !sh.MergedIntoRdata() {
		t.Fatalf("expected SectionMergedIntoRdata flag set")
	}
	body, err := mod.SectionBytes(got.RData, sh)
	if err != nil {
		t.Fatalf("SectionBytes: %v", err)
	}
	if string(body) != "shared constant pool bytes" {
		t.Errorf("section body = %q", body)
	}
}

func TestDecodeRejectsBadIdentifier(t *testing.T) {
	m := sampleModel()
	encoded := m.Encode()
	corrupt := append([]byte(nil), encoded...)
	corrupt[0] ^= 0xFF

	if _, err := Decode(corrupt); err == nil {
		t.Fatalf("Decode succeeded on corrupted identifier, want error")
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	m := sampleModel()
	encoded := m.Encode()

	if _, err := Decode(encoded[:headerSize+2]); err == nil {
		t.Fatalf("Decode succeeded on truncated buffer, want error")
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	m := sampleModel()
	m.Header.Version = 0
	encoded := m.Encode()
	// force an out-of-range version past what Encode pins.
	encoded[4] = 99
	encoded[5] = 0
	encoded[6] = 0
	encoded[7] = 0

	if _, err := Decode(encoded); err == nil {
		t.Fatalf("Decode succeeded with bad version, want error")
	}
}
