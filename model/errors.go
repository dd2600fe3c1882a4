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

import "github.com/nncase-go/runtime/kerr"

func errShortBuffer(what string, want, got int) *kerr.Error {
	return kerr.New(kerr.InvalidProgram, "%s: need %d bytes, have %d", what, want, got)
}

func errBadIdentifier(got uint32) *kerr.Error {
	return kerr.New(kerr.InvalidProgram, "bad model identifier 0x%08x, want 0x%08x ('KMDL')", got, Identifier)
}

func errBadVersion(got uint32) *kerr.Error {
	return kerr.New(kerr.InvalidProgram, "unsupported model version %d, this loader targets version %d", got, Version)
}
