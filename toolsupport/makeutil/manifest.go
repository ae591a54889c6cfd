// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package makeutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.chromium.org/infra/build/cmakedeps/o11y/clog"
)

var (
	// ErrUnexpectedEndOfInput is returned when input ends while a rule
	// is continued with a trailing backslash.
	ErrUnexpectedEndOfInput = errors.New("unexpected end of input while a rule was still open")

	// ErrUnrecognizedLine is returned for a line that is neither
	// a rule, a comment nor a blank line.
	ErrUnrecognizedLine = errors.New("line did not match expected pattern")

	// ErrUnexpectedColon is returned when a colon appears in dependency text.
	ErrUnexpectedColon = errors.New("colon found where none expected")
)

// Record is a rule in a dependency manifest.
type Record struct {
	// Object is the file that depends on Deps.
	Object string `json:"object"`

	// Deps are dependencies in the order of appearance.
	Deps []string `json:"deps"`
}

// ParseError is an error of malformed manifest.
type ParseError struct {
	// Line is 1-based line number.
	Line int
	// Text is the offending line.
	Text string
	// Err is one of ErrUnexpectedEndOfInput, ErrUnrecognizedLine
	// or ErrUnexpectedColon.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseManifestFile parses CMake's compiler_depend.make in fname on fsys.
func ParseManifestFile(ctx context.Context, fsys fs.FS, fname string) ([]Record, error) {
	b, err := fs.ReadFile(fsys, fname)
	if err != nil {
		return nil, err
	}
	records, err := ParseManifest(b)
	if err != nil {
		return nil, err
	}
	clog.Debugf(ctx, "manifest %s => %d records", fname, len(records))
	return records, nil
}

// ParseManifest parses dependency manifest (e.g. CMake's compiler_depend.make)
// and returns records in document order.
//
//	# comment
//	<object>: <dep> \
//	  <dep> \
//	  <dep>
//
//	<dep>:
//
// Each physical line holds at most one dependency. '\' at the end of line
// continues the rule on the next line. Paths must not contain ':'.
// A blank line does not close a continued rule; the rule stays open until
// a line without trailing '\'.
func ParseManifest(b []byte) ([]Record, error) {
	var records []Record
	var cur *Record
	var start int
	var startText string

	for lineno := 1; len(b) > 0; lineno++ {
		var line []byte
		line, b, _ = bytes.Cut(b, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))
		s := string(line)

		if cur == nil {
			if strings.HasPrefix(s, "#") || strings.TrimSpace(s) == "" {
				continue
			}
			object, rest, ok := strings.Cut(s, ":")
			if !ok || object == "" {
				return nil, &ParseError{Line: lineno, Text: s, Err: ErrUnrecognizedLine}
			}
			if strings.Contains(rest, ":") {
				return nil, &ParseError{Line: lineno, Text: s, Err: ErrUnexpectedColon}
			}
			dep, cont := cutContinuation(rest)
			rec := Record{Object: object}
			if dep != "" {
				rec.Deps = append(rec.Deps, dep)
			}
			if !cont {
				records = append(records, rec)
				continue
			}
			cur = &rec
			start, startText = lineno, s
			continue
		}

		// in the middle of continuation.
		if strings.Contains(s, ":") {
			return nil, &ParseError{Line: lineno, Text: s, Err: ErrUnexpectedColon}
		}
		if strings.HasPrefix(s, "#") {
			return nil, &ParseError{Line: lineno, Text: s, Err: ErrUnrecognizedLine}
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		dep, cont := cutContinuation(s)
		if dep != "" {
			cur.Deps = append(cur.Deps, dep)
		}
		if !cont {
			records = append(records, *cur)
			cur = nil
		}
	}
	if cur != nil {
		return nil, &ParseError{Line: start, Text: startText, Err: ErrUnexpectedEndOfInput}
	}
	return records, nil
}

// cutContinuation trims s and strips a trailing '\'.
// It reports whether the rule continues on the next line.
func cutContinuation(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s, cont := strings.CutSuffix(s, `\`)
	return strings.TrimSpace(s), cont
}
