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
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/nncase-go/runtime/buffer"
	"github.com/nncase-go/runtime/internal/obj"
	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/model"
	"github.com/nncase-go/runtime/runtime/stackvm"
	"github.com/nncase-go/runtime/types"
)

// StackVMModuleKind is the module_header.kind name the stack-VM
// runtime module registers under.
const StackVMModuleKind = "stackvm"

func init() {
	RegisterModuleFactory(StackVMModuleKind, newStackVMModule)
}

var (
	kernelsOnce     sync.Once
	sharedKernels   *stackvm.KernelRegistry
	customCallsOnce sync.Once
	sharedCustomCalls *stackvm.CustomCallRegistry
)

// defaultKernels and defaultCustomCalls are the process-wide,
// read-only-after-init registries spec section 5 describes: "the
// allocator registry and custom-call registry are process-wide and
// initialized once before any Interpreter is constructed".
func defaultKernels() *stackvm.KernelRegistry {
	kernelsOnce.Do(func() { sharedKernels = stackvm.NewKernelRegistry() })
	return sharedKernels
}

func defaultCustomCalls() *stackvm.CustomCallRegistry {
	customCallsOnce.Do(func() { sharedCustomCalls = stackvm.NewCustomCallRegistry() })
	return sharedCustomCalls
}

// stackVMModule is the RuntimeModule implementation backing the stack
// VM module kind (component C10): one *stackvm.VM shared by every
// function in the module, since OpCall dispatch needs the whole
// module's function table resolved regardless of which function entry
// a caller happened to invoke first.
type stackVMModule struct {
	vm  *stackvm.VM
	fns []stackvm.FunctionEntry
}

func newStackVMModule() RuntimeModule {
	return &stackVMModule{}
}

func (*stackVMModule) Kind() obj.ObjectKind { return obj.KindRuntimeModule }

func (m *stackVMModule) BeforeFunctions(rdata []byte, mod *model.Module) *kerr.Error {
	m.vm = stackvm.New(nil, defaultKernels(), defaultCustomCalls(), buffer.DefaultHost())
	return nil
}

func (m *stackVMModule) MakeFunction(rdata []byte, mod *model.Module, fn model.Function, index int) (*RuntimeFunction, *kerr.Error) {
	numLocals, err := functionLocalsCount(rdata, mod, fn)
	if err != nil {
		return nil, err
	}
	name, err := functionName(rdata, mod, fn, index)
	if err != nil {
		return nil, err
	}

	entry := stackvm.FunctionEntry{
		Text:       fn.Text,
		Entrypoint: int(fn.Entrypoint),
		NumParams:  len(fn.ParameterTypes),
		NumLocals:  numLocals,
	}
	for len(m.fns) <= index {
		m.fns = append(m.fns, stackvm.FunctionEntry{})
	}
	m.fns[index] = entry
	m.vm.Functions = m.fns

	returnDT := scalarDatatype(fn.ReturnType)
	vm := m.vm
	rt := &RuntimeFunction{
		name:       name,
		paramTypes: fn.ParameterTypes,
		returnType: fn.ReturnType,
	}
	rt.invoke = func(params []Value) (Value, *kerr.Error) {
		cells := make([]stackvm.Cell, len(params))
		for i, p := range params {
			c, cerr := valueToCell(p)
			if cerr != nil {
				return Value{}, cerr
			}
			cells[i] = c
		}
		result, rerr := vm.Run(entry.Text, entry.Entrypoint, cells, entry.NumLocals)
		if rerr != nil {
			return Value{}, rerr
		}
		return cellToValue(result, returnDT, buffer.DefaultHost())
	}
	return rt, nil
}

func (m *stackVMModule) AfterFunctions() *kerr.Error { return nil }

func (m *stackVMModule) ResolveCrossModule(modules []*RuntimeModule) *kerr.Error {
	return nil
}

// scalarDatatype extracts the Datatype a function's declared return
// type carries, used to materialize a bare CellScalar result into a
// concrete host tensor (see cellToValue).
func scalarDatatype(t types.Type) types.Datatype {
	switch tt := t.(type) {
	case types.Tensor:
		return tt.DT
	case types.Prim:
		return tt.DT
	default:
		return types.Float32
	}
}

// sectionBody looks up a function- or module-level section by name and
// resolves its bytes, following the same rdata/module-data routing
// SectionBytes uses for module-global sections.
func sectionBody(rdata []byte, mod *model.Module, sections []model.SectionHeader, name string) ([]byte, bool, *kerr.Error) {
	for _, sh := range sections {
		if sh.Name == name {
			b, err := mod.SectionBytes(rdata, sh)
			if err != nil {
				return nil, true, kerr.Wrap(kerr.IOError, err, "reading section %q", name)
			}
			return b, true, nil
		}
	}
	return nil, false, nil
}

// functionLocalsCount resolves a function's local-slot count from its
// own "locals" section (a single little-endian u32), since
// function_header itself has no dedicated locals-count field (spec
// section 4.7's function_header lists parameters/sections/entrypoint/
// text_size/size only — locals are left to a per-function section,
// the same extensibility mechanism module-global sections use).
// Absent the section, a function declares zero locals.
func functionLocalsCount(rdata []byte, mod *model.Module, fn model.Function) (int, *kerr.Error) {
	body, ok, err := sectionBody(rdata, mod, fn.Sections, "locals")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if len(body) < 4 {
		return 0, kerr.New(kerr.InvalidProgram, "locals section is shorter than one u32")
	}
	return int(binary.LittleEndian.Uint32(body)), nil
}

// functionName resolves a function's symbol from its own "name"
// section (a UTF-8 blob), falling back to a positional placeholder
// when the section is absent — symbol names are metadata the compiler
// side may or may not emit, not something invoke needs to operate.
func functionName(rdata []byte, mod *model.Module, fn model.Function, index int) (string, *kerr.Error) {
	body, ok, err := sectionBody(rdata, mod, fn.Sections, "name")
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("fn%d", index), nil
	}
	return string(body), nil
}
