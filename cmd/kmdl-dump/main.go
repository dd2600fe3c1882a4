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

// Command kmdl-dump prints a 'KMDL' model file's header, modules, and
// sections, for manually inspecting a model during development. It is
// deliberately small: a compiler front end producing these files is
// out of scope, so this is the loader's one hand-operated collaborator
// rather than a full tool.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nncase-go/runtime/model"
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for _, arg := range args {
		if err := dumpOne(out, arg); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", arg, err)
			os.Exit(1)
		}
	}
}

func dumpOne(out io.Writer, arg string) error {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return err
	}

	m, err := model.Decode(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "model: version=%d flags=0x%x alignment=%d modules=%d\n",
		m.Header.Version, m.Header.Flags, m.Header.Alignment, len(m.Modules))
	if m.Header.HasEntry() {
		fmt.Fprintf(out, "entry: module=%d function=%d\n", m.Header.EntryModule, m.Header.EntryFunction)
	} else {
		fmt.Fprintf(out, "entry: none\n")
	}
	fmt.Fprintf(out, "rdata: %d bytes\n", len(m.RData))

	for i, mod := range m.Modules {
		fmt.Fprintf(out, "module[%d]: kind=%q version=%d sections=%d functions=%d\n",
			i, mod.Kind, mod.Version, len(mod.Sections), len(mod.Functions))
		for _, sh := range mod.Sections {
			fmt.Fprintf(out, "  section %q: size=%d body_size=%d memory_size=%d merged=%v compressed=%v\n",
				sh.Name, sh.Size, sh.BodySize, sh.MemorySize, sh.MergedIntoRdata(), sh.Compressed())
		}
		for j, fn := range mod.Functions {
			fmt.Fprintf(out, "  function[%d]: params=%d return=%s entrypoint=%d text=%d bytes sections=%d\n",
				j, len(fn.ParameterTypes), fn.ReturnType, fn.Entrypoint, len(fn.Text), len(fn.Sections))
		}
	}
	return nil
}
