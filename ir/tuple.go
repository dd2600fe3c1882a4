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

package ir

import (
	"strings"

	"github.com/nncase-go/runtime/internal/obj"
)

// Tuple is a fixed-arity product of expressions (spec section 3).
type Tuple struct {
	Fields []Node
}

// NewTuple constructs a Tuple node from its fields.
func NewTuple(fields ...Node) *Tuple {
	return &Tuple{Fields: fields}
}

func (*Tuple) Kind() obj.ObjectKind { return obj.KindExprTuple }

func (t *Tuple) children() []Node {
	return t.Fields
}

func (t *Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, f := range t.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.String())
	}
	b.WriteByte(')')
	return b.String()
}
