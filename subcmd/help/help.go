// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package help provides help subcommand.
package help

import (
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/maruel/subcommands"
)

// Cmd returns the Command for the `help` subcommand provided by this package.
// Global flags in fs are printed in top-level help.
func Cmd(fs *flag.FlagSet) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "help [<command>|-advanced]",
		ShortDesc: "prints help about a command",
		LongDesc:  "Prints commands, globally-available flags and environment variables, or help about a specific command.\nUse -advanced to display all commands.",
		CommandRun: func() subcommands.CommandRun {
			ret := &helpCmdRun{global: fs}
			ret.Flags.BoolVar(&ret.advanced, "advanced", false, "show advanced commands")
			return ret
		},
	}
}

type helpCmdRun struct {
	subcommands.CommandRunBase
	global   *flag.FlagSet
	advanced bool
}

func (h *helpCmdRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	// For top-level help, print subcommands.Usage. Then print flags and envs.
	if len(args) == 0 {
		out := a.GetOut()
		subcommands.Usage(out, a, h.advanced)
		if h.global != nil {
			fmt.Fprintln(out, "Common flags accepted by all commands:")
			h.global.SetOutput(out)
			h.global.PrintDefaults()
		}
		printEnvVars(out, a.GetEnvVars())
		return 0
	}

	// Use default subcommands.CmdHelp for all other cases.
	helpInit := subcommands.CmdHelp.CommandRun()
	result := helpInit.Run(a, args, env)
	return result
}

func printEnvVars(w io.Writer, envVars map[string]subcommands.EnvVarDefinition) {
	if len(envVars) == 0 {
		return
	}
	fmt.Fprintln(w, "\nEnvironment variables:")
	for _, name := range slices.Sorted(maps.Keys(envVars)) {
		def := envVars[name]
		fmt.Fprintf(w, "  %s\n    \t%s\n", name, def.ShortDesc)
	}
}
