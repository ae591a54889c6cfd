// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package paths is paths subcommand to list project files that CMake
// objects depend on.
package paths

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/cmakedeps/depscan"
	"go.chromium.org/infra/build/cmakedeps/o11y/clog"
)

// ProjectRootEnv is the environment variable for the default of -project_root.
const ProjectRootEnv = "CMAKEDEPS_PROJECT_ROOT"

const usage = `list project files that objects depend on

 $ find out -name compiler_depend.make | \
     cmakedeps paths -project_root <dir> -relative_to out

reads compiler_depend.make (or *.d) filenames from stdin, one per line,
or from args. prints sorted, deduplicated paths relative to
-project_root, dropping files outside of the project.
The output can be used to generate rules:changes:paths of .gitlab-ci.yml.
`

// Cmd returns the Command for the `paths` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "paths -project_root <dir> [<manifest>...]",
		ShortDesc: "list project files that objects depend on",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{
				stdin:  os.Stdin,
				stdout: os.Stdout,
			}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	projectRoot string
	relativeTo  string
	wildcards   int
	jobs        int
	keepGoing   bool
	quote       bool
	runID       string

	stdin  io.Reader
	stdout io.Writer
}

func (c *run) init() {
	c.Flags.StringVar(&c.projectRoot, "project_root", "", "path to the CMake project root. output paths are relative to it, and paths outside of it are removed. default to $"+ProjectRootEnv)
	c.Flags.StringVar(&c.relativeTo, "relative_to", ".", "directory that relative paths in manifests are relative to (i.e. build directory)")
	c.Flags.IntVar(&c.wildcards, "reduce_with_wildcards", 0, "attempt to reduce the number of paths below this with wildcards. 0 disables")
	c.Flags.IntVar(&c.jobs, "j", 0, "number of manifests parsed in parallel. default to the number of CPUs")
	c.Flags.BoolVar(&c.keepGoing, "keep_going", false, "skip malformed manifests with warning, instead of failing")
	c.Flags.BoolVar(&c.quote, "quote", true, "print paths as quoted strings")
	c.Flags.StringVar(&c.runID, "run_id", "", "id to label log entries. default to random uuid")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if c.projectRoot == "" {
		c.projectRoot = env[ProjectRootEnv].Value
	}
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
	ctx, cancel := context.WithCancel(ctx)
	defer signals.HandleInterrupt(cancel)()

	if c.projectRoot == "" {
		return fmt.Errorf("missing -project_root: %w", flag.ErrHelp)
	}
	if c.wildcards < 0 {
		return fmt.Errorf("negative -reduce_with_wildcards=%d: %w", c.wildcards, flag.ErrHelp)
	}
	if c.runID == "" {
		c.runID = uuid.New().String()
	}
	ctx = clog.NewSpan(ctx, map[string]string{"run": c.runID})

	filter, err := depscan.ProjectFilter(c.projectRoot, c.relativeTo)
	if err != nil {
		return err
	}
	fnames := args
	if len(fnames) == 0 {
		fnames, err = readLines(c.stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}
	if len(fnames) == 0 {
		return errors.New("no input files received on stdin")
	}
	fsnames := make([]string, 0, len(fnames))
	for _, fname := range fnames {
		clog.Infof(ctx, "parsing file: %s", fname)
		fsname, err := rootRelative(fname)
		if err != nil {
			return err
		}
		fsnames = append(fsnames, fsname)
	}

	s := depscan.New(os.DirFS("/"), depscan.Option{
		Filter:    filter,
		Jobs:      c.jobs,
		KeepGoing: c.keepGoing,
	})
	result, err := s.Scan(ctx, fsnames)
	if err != nil {
		return err
	}
	clog.Infof(ctx, "finished parsing all input files: %d files, %d records, %d skipped", result.Files, result.Records, len(result.Skipped))
	clog.Infof(ctx, "depends on %d files", len(result.Paths))

	paths := result.Paths
	if c.wildcards > 0 {
		root, err := filepath.Abs(c.projectRoot)
		if err != nil {
			return err
		}
		paths = depscan.MergeWildcards(ctx, os.DirFS(root), paths, c.wildcards)
		clog.Infof(ctx, "reduced path count to %d", len(paths))
	}
	return c.print(paths)
}

func (c *run) print(paths []string) error {
	w := bufio.NewWriter(c.stdout)
	for _, p := range paths {
		if c.quote {
			fmt.Fprintf(w, "%q\n", p)
			continue
		}
		fmt.Fprintln(w, p)
	}
	return w.Flush()
}

// readLines reads non-empty lines from r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, s.Err()
}

// rootRelative returns fname as a path on os.DirFS("/").
func rootRelative(fname string) (string, error) {
	abs, err := filepath.Abs(fname)
	if err != nil {
		return "", err
	}
	abs = filepath.ToSlash(abs)
	if vol := filepath.VolumeName(abs); vol != "" {
		return "", fmt.Errorf("%s: paths on volume %s are not supported", fname, vol)
	}
	return strings.TrimPrefix(abs, "/"), nil
}
