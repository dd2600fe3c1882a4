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
	"github.com/nncase-go/runtime/internal/obj"
	"github.com/nncase-go/runtime/kerr"
	"github.com/nncase-go/runtime/model"
)

// RuntimeModule is the per-module-kind factory contract loaders
// dispatch through (spec section 4.7, loader algorithm step 2: "look
// up a factory by kind in a registry; construct an empty runtime
// module"). Exactly one concrete RuntimeModule exists in this
// rewrite — the stack-VM kind, whose factory newStackVMModule is
// registered from stackvm_module.go's init — but
// the interface is the seam spec section 1 describes other module
// kinds (an accelerator codegen backend, say) as plugging into.
type RuntimeModule interface {
	obj.Object

	// BeforeFunctions initializes module-global state from the
	// module's own sections, before any function is constructed
	// (spec section 4.7 step 2).
	BeforeFunctions(rdata []byte, mod *model.Module) *kerr.Error
	// MakeFunction builds one RuntimeFunction from a decoded
	// model.Function belonging to this module.
	MakeFunction(rdata []byte, mod *model.Module, fn model.Function, index int) (*RuntimeFunction, *kerr.Error)
	// AfterFunctions runs once every function in the module has been
	// constructed (spec section 4.7 step 2).
	AfterFunctions() *kerr.Error
	// ResolveCrossModule runs the inter-module resolution pass (spec
	// section 4.7 step 3), with access to every other already-loaded
	// module by index.
	ResolveCrossModule(modules []*RuntimeModule) *kerr.Error
}

// ModuleFactory constructs an empty RuntimeModule for one module kind.
type ModuleFactory func() RuntimeModule

var moduleFactories = map[string]ModuleFactory{}

// RegisterModuleFactory installs the factory for a module kind name
// (the 16-byte kind field in module_header, spec section 4.7). Module
// kinds register themselves at init() time, the same convention spec
// section 9 describes for IR operators ("new operators register
// themselves at startup").
func RegisterModuleFactory(kind string, factory ModuleFactory) {
	moduleFactories[kind] = factory
}

func lookupModuleFactory(kind string) (ModuleFactory, bool) {
	f, ok := moduleFactories[kind]
	return f, ok
}
