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

package runtime

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/model"
)

// RuntimeSectionContext resolves a module's named sections either
// pinned (read whole into memory, decompressing in place if the
// section is zstd-compressed) or streamed (an io.Reader the caller
// pulls from incrementally), per spec section 4.7: "Sections may be
// pinned ... or streamed". A RuntimeModule's BeforeFunctions/
// MakeFunction hooks receive raw rdata/Module values directly for the
// common in-memory case; RuntimeSectionContext exists for module kinds
// that want the streamed path instead of reading a whole section up
// front.
type RuntimeSectionContext struct {
	rdata []byte
	mod   *model.Module
}

// NewRuntimeSectionContext builds a section context over one module's
// sections plus the model's shared rdata blob.
func NewRuntimeSectionContext(rdata []byte, mod *model.Module) *RuntimeSectionContext {
	return &RuntimeSectionContext{rdata: rdata, mod: mod}
}

// Section resolves name's bytes fully into memory, the pinned path:
// decompresses with zstd if the section is flagged compressed.
func (c *RuntimeSectionContext) Section(name string) ([]byte, *kerr.Error) {
	sh, ok := c.mod.SectionByName(name)
	if !ok {
		return nil, kerr.New(kerr.NotFound, "no section named %q", name)
	}
	raw, err := c.mod.SectionBytes(c.rdata, sh)
	if err != nil {
		return nil, kerr.Wrap(kerr.IOError, err, "reading section %q", name)
	}
	if !sh.Compressed() {
		return raw, nil
	}
	return decompressSection(raw, int(sh.MemorySize))
}

// SeekSection resolves name to a reader over its body, the streamed
// path: a compressed section is wrapped in a zstd decoder, an
// uncompressed one is a plain byte reader over the section's slice.
func (c *RuntimeSectionContext) SeekSection(name string) (io.Reader, model.SectionHeader, *kerr.Error) {
	sh, ok := c.mod.SectionByName(name)
	if !ok {
		return nil, model.SectionHeader{}, kerr.New(kerr.NotFound, "no section named %q", name)
	}
	raw, err := c.mod.SectionBytes(c.rdata, sh)
	if err != nil {
		return nil, model.SectionHeader{}, kerr.Wrap(kerr.IOError, err, "reading section %q", name)
	}
	if !sh.Compressed() {
		return bytes.NewReader(raw), sh, nil
	}
	zr, zerr := zstd.NewReader(bytes.NewReader(raw))
	if zerr != nil {
		return nil, model.SectionHeader{}, kerr.Wrap(kerr.IOError, zerr, "opening compressed section %q", name)
	}
	return zr, sh, nil
}

// GetOrReadSection is a convenience wrapper spec section 4.7 names
// (`get_or_read_section`): equivalent to Section, but an absent
// section is reported through the false bool result with a nil error
// rather than as a NotFound error, since callers at this level usually
// treat an optional section's absence as "use a zero default" rather
// than a failure to propagate.
func (c *RuntimeSectionContext) GetOrReadSection(name string) ([]byte, bool, *kerr.Error) {
	if _, ok := c.mod.SectionByName(name); !ok {
		return nil, false, nil
	}
	b, err := c.Section(name)
	if err != nil {
		return nil, true, err
	}
	return b, true, nil
}

func decompressSection(raw []byte, expectedSize int) ([]byte, *kerr.Error) {
	zr, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, kerr.Wrap(kerr.IOError, err, "opening zstd section")
	}
	defer zr.Close()
	out := make([]byte, 0, expectedSize)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, zr); err != nil {
		return nil, kerr.Wrap(kerr.IOError, err, "decompressing zstd section")
	}
	return buf.Bytes(), nil
}
