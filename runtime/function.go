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
	"github.com/nncase-go/runtime/types"
)

// RuntimeFunction is component C9 (spec section 4.8): the public,
// module-kind-agnostic view of one callable entry in a loaded model.
// invoke is set by whichever RuntimeModule built this function
// (invoke_core, in spec terms) and closes over that module kind's own
// execution state (for the stack-VM kind, a *stackvm.VM plus the
// function's own text and entrypoint).
type RuntimeFunction struct {
	name       string
	paramTypes []types.Type
	returnType types.Type
	invoke     func(params []Value) (Value, *kerr.Error)
}

func (*RuntimeFunction) Kind() obj.ObjectKind { return obj.KindRuntimeFunction }

// Name returns the function's symbol name.
func (f *RuntimeFunction) Name() string { return f.name }

// ParametersSize returns the declared parameter count.
func (f *RuntimeFunction) ParametersSize() int { return len(f.paramTypes) }

// ParameterType returns the declared type of parameter index.
func (f *RuntimeFunction) ParameterType(index int) types.Type { return f.paramTypes[index] }

// ReturnType returns the function's declared return type.
func (f *RuntimeFunction) ReturnType() types.Type { return f.returnType }

// Invoke runs the function (spec section 4.8's four-step protocol):
// cardinality check, per-parameter conformance check, invoke_core
// dispatch, then fill-in-place-or-allocate the return value.
func (f *RuntimeFunction) Invoke(parameters []Value, returnValue *Value) kerr.Result[Value] {
	if len(parameters) != len(f.paramTypes) {
		return kerr.Err[Value](kerr.New(kerr.InvalidArgument,
			"function %q expects %d parameters, got %d", f.name, len(f.paramTypes), len(parameters)))
	}
	for i, p := range parameters {
		if !conforms(p, f.paramTypes[i]) {
			return kerr.Err[Value](kerr.New(kerr.InvalidArgument,
				"function %q parameter %d (%s) does not conform to declared type %s", f.name, i, p.Type(), f.paramTypes[i]))
		}
	}

	result, err := f.invoke(parameters)
	if err != nil {
		return kerr.Err[Value](err)
	}
	if err := checkReturnConformance(result, f.returnType); err != nil {
		return kerr.Err[Value](err)
	}

	if returnValue == nil {
		return kerr.Ok(result)
	}
	if returnValue.IsTensor() && result.IsTensor() {
		if err := result.tensor.CopyTo(returnValue.tensor); err != nil {
			return kerr.Err[Value](err)
		}
		return kerr.Ok(*returnValue)
	}
	*returnValue = result
	return kerr.Ok(*returnValue)
}

// checkReturnConformance guards spec section 8 invariant 2: invoke
// must return a value whose type matches return_type().
func checkReturnConformance(v Value, declared types.Type) *kerr.Error {
	if !conforms(v, declared) {
		return kerr.New(kerr.InvalidProgram, "function returned %s, declared return type is %s", v.Type(), declared)
	}
	return nil
}
