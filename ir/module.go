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
	"fmt"

	"github.com/nncase-go/runtime/internal/obj"
)

// Module holds named functions; one of them is the entry point invoked
// by the runtime (spec section 3, component C6).
type Module struct {
	functions []*Function
	entry     *Function
}

// NewModule returns an empty Module.
func NewModule() *Module {
	return &Module{}
}

func (*Module) Kind() obj.ObjectKind { return obj.KindModule }

// AddFunction appends f to the module's function list.
func (m *Module) AddFunction(f *Function) {
	m.functions = append(m.functions, f)
}

// Functions returns the module's functions in declaration order.
func (m *Module) Functions() []*Function {
	return m.functions
}

// SetEntry designates f as the module's public entry symbol. f must
// already have been added via AddFunction (spec section 4.6 invariant:
// "entry is in functions").
func (m *Module) SetEntry(f *Function) error {
	for _, fn := range m.functions {
		if fn == f {
			m.entry = f
			return nil
		}
	}
	return fmt.Errorf("ir: SetEntry: function %q is not a member of this module", f.Name)
}

// Entry returns the module's entry function, or nil if none has been
// set.
func (m *Module) Entry() *Function {
	return m.entry
}

// FunctionByName returns the first function with the given name, or
// nil.
func (m *Module) FunctionByName(name string) *Function {
	for _, fn := range m.functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}
