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
	"sigs.k8s.io/yaml"

	"github.com/nncase-go/runtime/kerr"
)

// OptionsDict is the interpreter's typed key->scalar map (spec section
// 6.2), grounded on sneller's small typed-map idiom
// (ion/symtab.go's string interning) generalized here with Go 1.18
// generics instead of a single concrete value type.
type OptionsDict struct {
	values map[string]any
}

// NewOptionsDict returns an empty dict.
func NewOptionsDict() *OptionsDict {
	return &OptionsDict{values: make(map[string]any)}
}

// Get retrieves the value stored under name as T. It returns
// ErrorKind::NotFound if the key is absent, and
// ErrorKind::InvalidArgument if the stored value is not a T (spec
// section 6.2: "unknown key returns NotFound").
func Get[T any](d *OptionsDict, name string) kerr.Result[T] {
	raw, ok := d.values[name]
	if !ok {
		return kerr.Err[T](kerr.New(kerr.NotFound, "option %q is not set", name))
	}
	v, ok := raw.(T)
	if !ok {
		return kerr.Err[T](kerr.New(kerr.InvalidArgument, "option %q has a different type than requested", name))
	}
	return kerr.Ok(v)
}

// Set stores value under name, replacing any previous value (of any
// type) stored there.
func Set[T any](d *OptionsDict, name string, value T) {
	d.values[name] = value
}

// Has reports whether name is currently set.
func (d *OptionsDict) Has(name string) bool {
	_, ok := d.values[name]
	return ok
}

// LoadOptionsYAML bulk-populates the dict from a YAML document mapping
// option names to scalar values: an optional, off-the-hot-path
// convenience layered over the typed map, using the same
// sigs.k8s.io/yaml the teacher's go.mod already pins for its own
// config-manifest parsing.
func (d *OptionsDict) LoadOptionsYAML(data []byte) *kerr.Error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return kerr.Wrap(kerr.InvalidArgument, err, "parsing options YAML")
	}
	for k, v := range raw {
		d.values[k] = v
	}
	return nil
}
