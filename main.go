// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Cmakedeps lists project files that CMake build objects depend on.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/cmakedeps/o11y/clog"
	"go.chromium.org/infra/build/cmakedeps/subcmd/help"
	"go.chromium.org/infra/build/cmakedeps/subcmd/parse"
	"go.chromium.org/infra/build/cmakedeps/subcmd/paths"
	"go.chromium.org/infra/build/cmakedeps/subcmd/version"
)

const executableVersion = "v1.0.0"

var logLevel = flag.String("log_level", "info", "log level. debug, info, warn or error")

func main() {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(out, "global flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	os.Exit(cmakedepsMain(flag.Args()))
}

func cmakedepsMain(args []string) (exitCode int) {
	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -log_level: %v\n", err)
		return 2
	}
	logger := clog.New(os.Stderr, level)

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Errorf("panic: %v\n%s", r, buf)
			exitCode = 1
		}
	}()

	// Print build information to the log.
	if buildinfo, ok := debug.ReadBuildInfo(); ok {
		logger.Debugf("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
	}
	return subcommands.Run(getApplication(logger), args)
}

func getApplication(logger *clog.Logger) *cli.Application {
	return &cli.Application{
		Name:  "cmakedeps",
		Title: "tool to list project files that CMake build objects depend on",
		Context: func(ctx context.Context) context.Context {
			return clog.NewContext(ctx, logger)
		},
		EnvVars: map[string]subcommands.EnvVarDefinition{
			paths.ProjectRootEnv: {
				ShortDesc: "default of -project_root of paths subcommand",
			},
		},
		Commands: []*subcommands.Command{
			paths.Cmd(),
			parse.Cmd(),
			help.Cmd(flag.CommandLine),
			version.Cmd(executableVersion),
		},
	}
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}
