// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depscan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filter maps a dependency path found in a manifest to the path to report.
// It returns false to drop the path.
type Filter func(path string) (string, bool)

// ProjectFilter returns a Filter that keeps paths in the project root
// and rewrites them relative to root in slash form.
//
// Relative paths in manifests are resolved from relativeTo, which is
// the directory the build tool ran in (e.g. CMake's build directory).
// Relative paths that don't name a regular file are dropped.
func ProjectFilter(root, relativeTo string) (Filter, error) {
	if root == "" {
		return nil, errors.New("project root is not specified")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	// manifests may use either form of root.
	prefixes := []string{dirPrefix(resolvedRoot)}
	if resolvedRoot != absRoot {
		prefixes = append(prefixes, dirPrefix(absRoot))
	}
	if relativeTo == "" {
		relativeTo = "."
	}
	base, err := filepath.Abs(relativeTo)
	if err != nil {
		return nil, err
	}
	return func(path string) (string, bool) {
		if !filepath.IsAbs(path) {
			p := filepath.Join(base, path)
			if resolved, err := filepath.EvalSymlinks(p); err == nil {
				p = resolved
			}
			fi, err := os.Stat(p)
			if err != nil || !fi.Mode().IsRegular() {
				return "", false
			}
			path = p
		}
		path = filepath.Clean(path)
		for _, prefix := range prefixes {
			rel, ok := strings.CutPrefix(path, prefix)
			if ok && rel != "" {
				return filepath.ToSlash(rel), true
			}
		}
		return "", false
	}, nil
}

// dirPrefix returns dir with a trailing separator.
// dir is clean, so only the file system root already ends with one.
func dirPrefix(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}
