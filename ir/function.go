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

// Function is a lambda whose Parameters shadow any outer name of the
// same spelling (spec section 3). Note spec section 4.3: "Var names do
// not guarantee uniqueness globally; parameter binding is by position
// within a Function, not by name" — so two Functions may each declare
// a parameter named "x" without conflict.
type Function struct {
	Name       string
	Parameters []*Var
	Body       Node
}

// NewFunction constructs a Function node.
func NewFunction(name string, params []*Var, body Node) *Function {
	return &Function{Name: name, Parameters: params, Body: body}
}

func (*Function) Kind() obj.ObjectKind { return obj.KindExprFunction }

func (f *Function) children() []Node {
	out := make([]Node, 0, len(f.Parameters)+1)
	for _, p := range f.Parameters {
		out = append(out, p)
	}
	if f.Body != nil {
		out = append(out, f.Body)
	}
	return out
}

func (f *Function) String() string {
	var b strings.Builder
	b.WriteString("fn ")
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") ")
	if f.Body != nil {
		b.WriteString(f.Body.String())
	}
	return b.String()
}

// SetBody mutates the function's body, one of the limited mutator
// hooks named in spec section 4.3. Only safe while no traversal is in
// progress.
func (f *Function) SetBody(body Node) {
	f.Body = body
}
