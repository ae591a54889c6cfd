// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package depscan collects project files that build objects depend on,
// from dependency manifests generated by build systems.
package depscan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/cmakedeps/o11y/clog"
	"go.chromium.org/infra/build/cmakedeps/sync/semaphore"
	"go.chromium.org/infra/build/cmakedeps/toolsupport/makeutil"
)

// ManifestName is the name of dependency manifest generated by CMake.
const ManifestName = "compiler_depend.make"

var (
	// ErrNoInput is returned when no manifest is given.
	ErrNoInput = errors.New("no input files")

	// ErrAllFailed is returned in keep-going mode when no manifest
	// could be parsed.
	ErrAllFailed = errors.New("all input files failed")
)

// Option is an option of Scanner.
type Option struct {
	// Filter filters and rewrites dependencies.
	// nil keeps all dependencies as is.
	Filter Filter

	// Jobs is the number of manifests parsed concurrently.
	// Default to runtime.NumCPU().
	Jobs int

	// KeepGoing skips manifests that failed to parse, instead of
	// failing the scan.
	KeepGoing bool
}

// Scanner scans dependency manifests.
type Scanner struct {
	fsys fs.FS
	opt  Option
	sema *semaphore.Semaphore
}

// Result is a result of Scan.
type Result struct {
	// Paths are filtered dependencies, sorted and deduplicated.
	Paths []string

	// Files is the number of manifests parsed.
	Files int

	// Records is the number of rules in the parsed manifests.
	Records int

	// Skipped are errors of skipped manifests in keep-going mode.
	Skipped []error
}

// New creates a new Scanner to read manifests on fsys.
func New(fsys fs.FS, opt Option) *Scanner {
	if opt.Jobs <= 0 {
		opt.Jobs = runtime.NumCPU()
	}
	return &Scanner{
		fsys: fsys,
		opt:  opt,
		sema: semaphore.New("manifest", opt.Jobs),
	}
}

type fileResult struct {
	deps    []string
	records int
	err     error
}

// Scan parses manifests in fnames and collects the dependencies.
// fnames are paths on the fs.FS given to New.
// Unless KeepGoing, it fails with the error of the first failed manifest
// in fnames order.
func (s *Scanner) Scan(ctx context.Context, fnames []string) (Result, error) {
	if len(fnames) == 0 {
		return Result{}, ErrNoInput
	}
	results := make([]fileResult, len(fnames))
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var eg errgroup.Group
	for i, fname := range fnames {
		ctx := clog.NewSpan(sctx, map[string]string{"manifest": fname})
		ctx, done, err := s.sema.WaitAcquire(ctx)
		if err != nil {
			break
		}
		eg.Go(func() error {
			defer done()
			clog.Debugf(ctx, "parsing file")
			r := s.scanFile(ctx, fname)
			if r.err != nil {
				r.err = fmt.Errorf("%s: %w", fname, r.err)
				if !s.opt.KeepGoing {
					// manifests before i are already started,
					// so they still report their errors.
					cancel()
				} else {
					clog.Warningf(ctx, "skip: %v", r.err)
				}
			}
			results[i] = r
			return nil
		})
	}
	_ = eg.Wait()
	clog.Debugf(ctx, "%s: %d requests served, capacity %d", s.sema.Name(), s.sema.NumRequests(), s.sema.Capacity())
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !s.opt.KeepGoing {
		for _, r := range results {
			if r.err != nil {
				return Result{}, r.err
			}
		}
	}

	// merge results in input order.
	var result Result
	seen := make(map[string]bool)
	for _, r := range results {
		if r.err != nil {
			result.Skipped = append(result.Skipped, r.err)
			continue
		}
		result.Files++
		result.Records += r.records
		for _, dep := range r.deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			result.Paths = append(result.Paths, dep)
		}
	}
	if result.Files == 0 {
		return result, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(result.Skipped...))
	}
	slices.Sort(result.Paths)
	return result, nil
}

func (s *Scanner) scanFile(ctx context.Context, fname string) fileResult {
	var records []makeutil.Record
	switch base := path.Base(fname); {
	case strings.HasSuffix(base, ".d"):
		rec, err := makeutil.ParseDepsFile(ctx, s.fsys, fname)
		if err != nil {
			return fileResult{err: err}
		}
		records = []makeutil.Record{rec}
	default:
		if base != ManifestName {
			clog.Warningf(ctx, "not %s; parse as dependency manifest", ManifestName)
		}
		var err error
		records, err = makeutil.ParseManifestFile(ctx, s.fsys, fname)
		if err != nil {
			return fileResult{err: err}
		}
	}
	r := fileResult{records: len(records)}
	for _, rec := range records {
		for _, dep := range rec.Deps {
			if s.opt.Filter != nil {
				var ok bool
				dep, ok = s.opt.Filter(dep)
				if !ok {
					continue
				}
			}
			r.deps = append(r.deps, dep)
		}
	}
	return r
}
