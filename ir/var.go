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
	"github.com/nncase-go/runtime/internal/obj"
	"github.com/nncase-go/runtime/types"
)

// Var is a formal parameter or a let-bound name (spec section 3).
// Var names do not guarantee uniqueness globally: parameter binding is
// by position within a Function, not by name (spec section 4.3).
type Var struct {
	Name           string
	TypeAnnotation types.Type
}

// NewVar constructs a Var with the given name and declared type.
func NewVar(name string, t types.Type) *Var {
	return &Var{Name: name, TypeAnnotation: t}
}

func (*Var) Kind() obj.ObjectKind { return obj.KindExprVar }
func (v *Var) children() []Node   { return nil }
func (v *Var) String() string     { return v.Name }

// SetTypeAnnotation mutates the var's declared type. This is one of
// the limited mutator hooks spec section 4.3 allows, and is only safe
// to call while no traversal is in progress (spec section 3,
// "Ownership").
func (v *Var) SetTypeAnnotation(t types.Type) {
	v.TypeAnnotation = t
}
