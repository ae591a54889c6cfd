// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depscan

import (
	"context"
	"io/fs"
	"path"
	"slices"

	"go.chromium.org/infra/build/cmakedeps/o11y/clog"
)

// MergeWildcards tries to reduce paths to at most limit entries by
// replacing files in a directory with "dir/*.ext".
//
// paths are slash separated paths on fsys. A directory is merged only
// when all its dependencies have the same extension and every entry
// in the directory is a file with that extension too. The wildcard may
// match files that are not dependencies, but never files of another kind.
// The result may still be longer than limit.
func MergeWildcards(ctx context.Context, fsys fs.FS, paths []string, limit int) []string {
	paths = slices.Clone(paths)
	slices.Sort(paths)
	paths = slices.Compact(paths)
	if len(paths) <= limit {
		return paths
	}

	dirs := make(map[string][]string)
	var order []string
	for _, p := range paths {
		dir := path.Dir(p)
		if _, ok := dirs[dir]; !ok {
			order = append(order, dir)
		}
		dirs[dir] = append(dirs[dir], p)
	}

	var merged []string
	for _, dir := range order {
		files := dirs[dir]
		ext, ok := commonExt(files)
		if ok {
			ok = dirHasOnlyExt(ctx, fsys, dir, ext)
		}
		if !ok {
			merged = append(merged, files...)
			continue
		}
		merged = append(merged, path.Join(dir, "*"+ext))
	}
	slices.Sort(merged)
	if len(merged) > limit {
		clog.Warningf(ctx, "after merge we still have %d entries, limit=%d", len(merged), limit)
	}
	return merged
}

// commonExt returns the extension shared by all files.
func commonExt(files []string) (string, bool) {
	ext := path.Ext(files[0])
	for _, f := range files[1:] {
		if path.Ext(f) != ext {
			return "", false
		}
	}
	return ext, true
}

func dirHasOnlyExt(ctx context.Context, fsys fs.FS, dir, ext string) bool {
	ents, err := fs.ReadDir(fsys, dir)
	if err != nil {
		clog.Warningf(ctx, "failed to read dir %s: %v", dir, err)
		return false
	}
	for _, ent := range ents {
		if ent.IsDir() || path.Ext(ent.Name()) != ext {
			return false
		}
	}
	return true
}
