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

// Package obj implements the object/handle layer shared by the IR and
// the runtime: every heap node in either subsystem carries an ObjectKind
// tag, and downcasting goes through As, a Go type assertion on the
// object's dynamic type. Is answers kind-hierarchy questions on the
// tags.
package obj

// ObjectKind tags every node in the IR and every buffer in the runtime.
// The zero value is never assigned to a real object.
type ObjectKind uint32

const (
	KindInvalid ObjectKind = iota

	// expr.Node kinds
	KindExprVar
	KindExprConstant
	KindExprCall
	KindExprFunction
	KindExprTuple
	KindExprOp

	// runtime container kinds
	KindModule
	KindRuntimeModule
	KindRuntimeFunction

	// buffer kinds
	KindBuffer
	KindHostBuffer
	KindDeviceBuffer
)

var names = map[ObjectKind]string{
	KindInvalid:         "invalid",
	KindExprVar:         "expr.Var",
	KindExprConstant:    "expr.Constant",
	KindExprCall:        "expr.Call",
	KindExprFunction:    "expr.Function",
	KindExprTuple:       "expr.Tuple",
	KindExprOp:          "expr.Op",
	KindModule:          "module",
	KindRuntimeModule:   "runtime.Module",
	KindRuntimeFunction: "runtime.Function",
	KindBuffer:          "buffer.Buffer",
	KindHostBuffer:      "buffer.HostBuffer",
	KindDeviceBuffer:    "buffer.DeviceBuffer",
}

func (k ObjectKind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// parent records the kind hierarchy used by Is: host and device buffer
// kinds have KindBuffer as parent. Each expr kind maps to itself; there
// is no common expr parent kind, so an expr kind has no ancestor but
// itself. A kind is its own ancestor.
var parent = map[ObjectKind]ObjectKind{
	KindExprVar:      KindExprVar,
	KindExprConstant: KindExprConstant,
	KindExprCall:     KindExprCall,
	KindExprFunction: KindExprFunction,
	KindExprTuple:    KindExprTuple,
	KindExprOp:       KindExprOp,
	KindHostBuffer:   KindBuffer,
	KindDeviceBuffer: KindBuffer,
}

// Is reports whether kind is ancestor, or a descendant of ancestor in
// the parent table above: buffer -> host/device. Expr kinds are
// reported only against themselves.
func Is(kind, ancestor ObjectKind) bool {
	if kind == ancestor {
		return true
	}
	for k := kind; ; {
		p, ok := parent[k]
		if !ok || p == k {
			return false
		}
		if p == ancestor {
			return true
		}
		k = p
	}
}

// Object is satisfied by every node the IR and runtime hand out as a
// shared handle.
type Object interface {
	Kind() ObjectKind
}

// As downcasts o to T, succeeding when o's dynamic type is T (or
// implements T, when T is an interface type). It is a plain Go type
// assertion; o's ObjectKind tag is not consulted.
func As[T Object](o Object) (T, bool) {
	var zero T
	if o == nil {
		return zero, false
	}
	t, ok := o.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
