// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package parse is parse subcommand for debugging dependency manifests.
package parse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/cmakedeps/toolsupport/makeutil"
)

const usage = `parse a dependency manifest and dump records

 $ cmakedeps parse [-json] <compiler_depend.make|*.d>

prints each rule as

<object>:
  <dep>
  ...

or as json array of {"object": <object>, "deps": [<dep>...]}.
malformed line is reported with its line number.
`

// Cmd returns the Command for the `parse` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "parse [-json] <manifest>",
		ShortDesc: "parse a dependency manifest",
		LongDesc:  usage,
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &run{stdout: os.Stdout}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	json bool

	stdout io.Writer
}

func (c *run) init() {
	c.Flags.BoolVar(&c.json, "json", false, "output in json")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("want 1 manifest, got %d: %w", len(args), flag.ErrHelp)
	}
	fname := args[0]
	fsys := os.DirFS(filepath.Dir(fname))
	base := filepath.Base(fname)
	var records []makeutil.Record
	if strings.HasSuffix(base, ".d") {
		rec, err := makeutil.ParseDepsFile(ctx, fsys, base)
		if err != nil {
			return fmt.Errorf("%s: %w", fname, err)
		}
		records = []makeutil.Record{rec}
	} else {
		var err error
		records, err = makeutil.ParseManifestFile(ctx, fsys, base)
		if err != nil {
			return fmt.Errorf("%s: %w", fname, err)
		}
	}
	if c.json {
		if records == nil {
			records = []makeutil.Record{}
		}
		for i := range records {
			if records[i].Deps == nil {
				records[i].Deps = []string{}
			}
		}
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", " ")
		return enc.Encode(records)
	}
	w := bufio.NewWriter(c.stdout)
	for _, rec := range records {
		fmt.Fprintf(w, "%s:\n", rec.Object)
		for _, dep := range rec.Deps {
			fmt.Fprintf(w, "  %s\n", dep)
		}
	}
	return w.Flush()
}
