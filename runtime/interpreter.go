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

import "github.com/nncase-go/runtime/kerr"

// loadedModule pairs one RuntimeModule with the RuntimeFunctions its
// factory built for it, in function_header declaration order.
type loadedModule struct {
	runtimeModule RuntimeModule
	functions     []*RuntimeFunction
}

// Interpreter is component C14 (spec section 6.2): the facade a host
// program constructs once, loads a model into, and drives through
// either the V1 positional tensor API or the V2 value API. Grounded on
// the teacher's top-level driver shape (cmd/sdb's single long-lived
// handle wrapping a backing store) generalized to a model loader
// instead of a table store.
type Interpreter struct {
	options *OptionsDict
	modules []*loadedModule

	hasEntry      bool
	entryModule   int
	entryFunction int

	inputs  []Value
	outputs []Value
}

// NewInterpreter returns an Interpreter with no model loaded.
func NewInterpreter() *Interpreter {
	return &Interpreter{options: NewOptionsDict()}
}

// Options returns the interpreter's mutable options dict.
func (it *Interpreter) Options() *OptionsDict { return it.options }

// FindModuleByID returns the loaded module at index, spec section 6.2.
func (it *Interpreter) FindModuleByID(index int) kerr.Result[RuntimeModule] {
	if index < 0 || index >= len(it.modules) {
		return kerr.Err[RuntimeModule](kerr.New(kerr.NotFound, "module index %d out of range", index))
	}
	return kerr.Ok(it.modules[index].runtimeModule)
}

func (it *Interpreter) entryRuntimeFunction() (*RuntimeFunction, *kerr.Error) {
	if !it.hasEntry {
		return nil, kerr.New(kerr.NotFound, "model declares no entry function")
	}
	if it.entryModule < 0 || it.entryModule >= len(it.modules) {
		return nil, kerr.New(kerr.NotFound, "entry module index %d out of range", it.entryModule)
	}
	fns := it.modules[it.entryModule].functions
	if it.entryFunction < 0 || it.entryFunction >= len(fns) {
		return nil, kerr.New(kerr.NotFound, "entry function index %d out of range", it.entryFunction)
	}
	return fns[it.entryFunction], nil
}

// EntryFunction returns the model's declared entry function (V2 API).
func (it *Interpreter) EntryFunction() kerr.Result[*RuntimeFunction] {
	f, err := it.entryRuntimeFunction()
	if err != nil {
		return kerr.Err[*RuntimeFunction](err)
	}
	return kerr.Ok(f)
}

// FindFunctionByName looks a function up by symbol name across every
// loaded module (V2 API).
func (it *Interpreter) FindFunctionByName(name string) kerr.Result[*RuntimeFunction] {
	for _, lm := range it.modules {
		for _, f := range lm.functions {
			if f.Name() == name {
				return kerr.Ok(f)
			}
		}
	}
	return kerr.Err[*RuntimeFunction](kerr.New(kerr.NotFound, "no function named %q", name))
}
