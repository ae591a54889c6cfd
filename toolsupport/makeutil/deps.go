// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package makeutil provides parsers of make style dependency files.
package makeutil

import (
	"bytes"
	"context"
	"io/fs"
	"strings"

	"go.chromium.org/infra/build/cmakedeps/o11y/clog"
)

// ParseDepsFile parses *.d file in fname on fsys.
func ParseDepsFile(ctx context.Context, fsys fs.FS, fname string) (Record, error) {
	b, err := fs.ReadFile(fsys, fname)
	if err != nil {
		return Record{}, err
	}
	rec, err := ParseDeps(b)
	if err != nil {
		return Record{}, err
	}
	clog.Debugf(ctx, "deps %s => %s: %q", fname, rec.Object, rec.Deps)
	return rec, nil
}

// ParseDeps parses a depfile as generated by gcc -MD and returns
// the first rule in it. Phony rules for inputs that follow are ignored.
func ParseDeps(b []byte) (Record, error) {
	// deps contents
	// <output>: <input> ...
	// <input> is space separated
	// '\'+newline is space
	// '\'+space is escaped space (not separator)
	i := indexUnescapedColon(b)
	if i < 0 {
		if len(bytes.TrimSpace(b)) == 0 {
			return Record{}, nil
		}
		line, _, _ := bytes.Cut(b, []byte("\n"))
		return Record{}, &ParseError{Line: 1, Text: string(line), Err: ErrUnrecognizedLine}
	}
	object, _ := nextToken(b[:i])
	rec := Record{Object: object}
	// inputs end at the first blank line, where phony rules start.
	s := b[i+1:]
	if j := bytes.Index(s, []byte("\n\n")); j >= 0 {
		s = s[:j]
	} else if j := bytes.Index(s, []byte("\r\n\r\n")); j >= 0 {
		s = s[:j]
	}
	for len(s) > 0 {
		var token string
		token, s = nextToken(s)
		if token != "" {
			rec.Deps = append(rec.Deps, token)
		}
	}
	return rec, nil
}

// indexUnescapedColon returns index of the first ':' that is not
// preceded by '\', or -1.
func indexUnescapedColon(b []byte) int {
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case ':':
			return i
		}
	}
	return -1
}

func nextToken(s []byte) (string, []byte) {
	var sb strings.Builder
	// skip spaces
skipSpaces:
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\n' {
			i++
			continue
		}
		if s[i] == '\\' && i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n' {
			i += 2
			continue
		}
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			s = s[i:]
			break skipSpaces
		}
	}
	// extract next space not escaped
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case ' ', ':':
				sb.WriteByte(s[i])
			case '\r', '\n':
				// '\'+newline is space
				return sb.String(), s[i+1:]
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
			continue
		}
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			return sb.String(), s[i+1:]
		}
		sb.WriteByte(s[i])
	}
	return sb.String(), nil
}
