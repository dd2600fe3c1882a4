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

// Call is an application of an Op or a Function (spec section 3).
// Cardinality of Arguments against the target's declared parameter
// count is checked at inference time, not at construction (spec
// section 4.3).
type Call struct {
	Target    Node // *Op or *Function
	Arguments []Node
}

// NewCall constructs a Call node. It does not validate target's
// parameter arity; ir/infer.InferType does that when it visits the
// call (spec section 4.3).
func NewCall(target Node, args ...Node) *Call {
	return &Call{Target: target, Arguments: args}
}

func (*Call) Kind() obj.ObjectKind { return obj.KindExprCall }

func (c *Call) children() []Node {
	out := make([]Node, 0, 1+len(c.Arguments))
	out = append(out, c.Target)
	out = append(out, c.Arguments...)
	return out
}

func (c *Call) String() string {
	var b strings.Builder
	b.WriteString(c.Target.String())
	b.WriteByte('(')
	for i, a := range c.Arguments {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// SetTarget mutates the call's target, one of the limited mutator
// hooks named in spec section 4.3. Only safe while no traversal is in
// progress.
func (c *Call) SetTarget(target Node) {
	c.Target = target
}
