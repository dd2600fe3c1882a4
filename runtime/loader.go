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
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/model"
)

// LoadModel is the loader (component C8, spec section 4.7): decode the
// binary container, then for each module look up its kind's factory,
// build every function through the module's BeforeFunctions/
// MakeFunction/AfterFunctions hooks, then run the inter-module
// resolution pass, then record the entry function.
//
// Per spec section 7 ("load_model failure leaves the interpreter in
// its pre-load state"), every fallible step operates on locals; `it`
// is only mutated once the whole sequence has succeeded.
func (it *Interpreter) LoadModel(data []byte) *kerr.Error {
	m, err := model.Decode(data)
	if err != nil {
		return kerr.Wrap(kerr.InvalidProgram, err, "decoding model")
	}

	modules := make([]*loadedModule, len(m.Modules))
	for i := range m.Modules {
		mod := &m.Modules[i]
		factory, ok := lookupModuleFactory(mod.Kind)
		if !ok {
			return kerr.New(kerr.NotSupported, "module %d: unknown module kind %q", i, mod.Kind)
		}
		rm := factory()
		if err := rm.BeforeFunctions(m.RData, mod); err != nil {
			return err
		}
		fns := make([]*RuntimeFunction, len(mod.Functions))
		for j, fn := range mod.Functions {
			rf, ferr := rm.MakeFunction(m.RData, mod, fn, j)
			if ferr != nil {
				return ferr
			}
			fns[j] = rf
		}
		if err := rm.AfterFunctions(); err != nil {
			return err
		}
		modules[i] = &loadedModule{runtimeModule: rm, functions: fns}
	}

	others := make([]*RuntimeModule, len(modules))
	for i, lm := range modules {
		others[i] = &lm.runtimeModule
	}
	for _, lm := range modules {
		if err := lm.runtimeModule.ResolveCrossModule(others); err != nil {
			return err
		}
	}

	hasEntry := m.Header.HasEntry()
	entryModule := int(m.Header.EntryModule)
	entryFunction := int(m.Header.EntryFunction)
	var inputs, outputs []Value
	if hasEntry {
		if entryModule < 0 || entryModule >= len(modules) {
			return kerr.New(kerr.InvalidProgram, "entry_module %d out of range", entryModule)
		}
		fns := modules[entryModule].functions
		if entryFunction < 0 || entryFunction >= len(fns) {
			return kerr.New(kerr.InvalidProgram, "entry_function %d out of range", entryFunction)
		}
		entry := fns[entryFunction]
		inputs = make([]Value, entry.ParametersSize())
	}

	it.modules = modules
	it.hasEntry = hasEntry
	it.entryModule = entryModule
	it.entryFunction = entryFunction
	it.inputs = inputs
	it.outputs = nil
	if hasEntry {
		outs, _ := it.outputTypes()
		outputs = make([]Value, len(outs))
	}
	it.outputs = outputs

	if buildID, uerr := uuid.NewRandom(); uerr == nil {
		Set(it.options, "build_id", buildID.String())
	}
	fingerprint := blake2b.Sum256(data)
	Set(it.options, "model_fingerprint", fingerprint)

	return nil
}
