// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package makeutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const compilerDependMake = `# CMAKE generated file: DO NOT EDIT!
# Generated by "Unix Makefiles" Generator, CMake Version 3.27

src/utils/CMakeFiles/utils.dir/utils.c.o: /home/user/proj/src/utils/utils.c \
  /home/user/proj/src/utils/include/test_project/utils/utils.h \
  /usr/include/bits/libc-header-start.h \
  /usr/lib/gcc/x86_64-redhat-linux/13/include/stdint.h

src/utils/CMakeFiles/utils.dir/blah.c.o: blah/blah.h

/usr/lib/gcc/x86_64-redhat-linux/13/include/stdint.h:

`

func TestParseManifest(t *testing.T) {
	for _, tc := range []struct {
		name  string
		input string
		want  []Record
	}{
		{
			name:  "compiler_depend",
			input: compilerDependMake,
			want: []Record{
				{
					Object: "src/utils/CMakeFiles/utils.dir/utils.c.o",
					Deps: []string{
						"/home/user/proj/src/utils/utils.c",
						"/home/user/proj/src/utils/include/test_project/utils/utils.h",
						"/usr/include/bits/libc-header-start.h",
						"/usr/lib/gcc/x86_64-redhat-linux/13/include/stdint.h",
					},
				},
				{
					Object: "src/utils/CMakeFiles/utils.dir/blah.c.o",
					Deps:   []string{"blah/blah.h"},
				},
				{
					Object: "/usr/lib/gcc/x86_64-redhat-linux/13/include/stdint.h",
				},
			},
		},
		{
			name:  "continuation",
			input: "a.o: b.c \\\n  d.h \\\n  e.h\n\nf.o: g.h\n\ng.h:\n\n",
			want: []Record{
				{Object: "a.o", Deps: []string{"b.c", "d.h", "e.h"}},
				{Object: "f.o", Deps: []string{"g.h"}},
				{Object: "g.h"},
			},
		},
		{
			name:  "no-blank-separator",
			input: "a.o: b.c\nb.c:\nc.o: \\\n d.h",
			want: []Record{
				{Object: "a.o", Deps: []string{"b.c"}},
				{Object: "b.c"},
				{Object: "c.o", Deps: []string{"d.h"}},
			},
		},
		{
			name:  "crlf",
			input: "a.o: b.c \\\r\n  d.h\r\n\r\n",
			want: []Record{
				{Object: "a.o", Deps: []string{"b.c", "d.h"}},
			},
		},
		{
			name:  "empty-segments",
			input: "a.o: \\\n   \\\n\t b.c  \\\n \\\n  d.h\n",
			want: []Record{
				{Object: "a.o", Deps: []string{"b.c", "d.h"}},
			},
		},
		{
			name:  "blank-in-continuation",
			input: "a.o: b.c \\\n\n  d.h\n",
			want: []Record{
				{Object: "a.o", Deps: []string{"b.c", "d.h"}},
			},
		},
		{
			name:  "duplicates",
			input: "a.o: b.h \\\n b.h\na.o: c.h\n",
			want: []Record{
				{Object: "a.o", Deps: []string{"b.h", "b.h"}},
				{Object: "a.o", Deps: []string{"c.h"}},
			},
		},
		{
			name:  "object-not-trimmed",
			input: "foo.o :bar.c",
			want: []Record{
				{Object: "foo.o ", Deps: []string{"bar.c"}},
			},
		},
		{
			name:  "comments-only",
			input: "# a.o: b.c\n\n#\n",
		},
		{
			name: "empty",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseManifest([]byte(tc.input))
			if err != nil {
				t.Fatalf("ParseManifest(%q)=_, %v; want nil err", tc.input, err)
			}
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ParseManifest(%q) -want +got:\n%s", tc.input, diff)
			}
			for _, r := range got {
				for _, d := range r.Deps {
					if d == "" || strings.TrimSpace(d) != d || strings.HasSuffix(d, `\`) {
						t.Errorf("ParseManifest(%q): bad dep %q in %q", tc.input, d, r.Object)
					}
				}
			}
			again, err := ParseManifest([]byte(tc.input))
			if err != nil {
				t.Fatalf("ParseManifest(%q) again=_, %v; want nil err", tc.input, err)
			}
			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("ParseManifest(%q) not idempotent -first +second:\n%s", tc.input, diff)
			}
		})
	}
}

func TestParseManifest_Error(t *testing.T) {
	for _, tc := range []struct {
		name     string
		input    string
		want     error
		wantLine int
	}{
		{
			name:     "eof-in-continuation",
			input:    `x.o: y.c \`,
			want:     ErrUnexpectedEndOfInput,
			wantLine: 1,
		},
		{
			name:     "eof-after-trailing-blank",
			input:    "a.o: b.c\n\nx.o: y.c \\\n  z.h \\\n\n\n",
			want:     ErrUnexpectedEndOfInput,
			wantLine: 3,
		},
		{
			name:     "rule-after-blank-in-continuation",
			input:    "a.o: b.c \\\n\nc.o: d.c\n",
			want:     ErrUnexpectedColon,
			wantLine: 3,
		},
		{
			name:     "no-colon",
			input:    "malformed line without colon",
			want:     ErrUnrecognizedLine,
			wantLine: 1,
		},
		{
			name:     "no-object",
			input:    "a.o: b.c\n: d.h\n",
			want:     ErrUnrecognizedLine,
			wantLine: 2,
		},
		{
			name:     "comment-in-continuation",
			input:    "a.o: b.c \\\n# comment\n  d.h\n",
			want:     ErrUnrecognizedLine,
			wantLine: 2,
		},
		{
			name:     "second-colon",
			input:    "a.o: b.c : d.c",
			want:     ErrUnexpectedColon,
			wantLine: 1,
		},
		{
			name:     "colon-in-continuation",
			input:    "a.o: b.c \\\n  d.h \\\ne.o: f.h\n",
			want:     ErrUnexpectedColon,
			wantLine: 3,
		},
		{
			name:     "windows-path",
			input:    "a.obj: C:/src/a.c\n",
			want:     ErrUnexpectedColon,
			wantLine: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseManifest([]byte(tc.input))
			if !errors.Is(err, tc.want) {
				t.Fatalf("ParseManifest(%q)=%q, %v; want %v", tc.input, got, err, tc.want)
			}
			if got != nil {
				t.Errorf("ParseManifest(%q)=%q, _; want nil records", tc.input, got)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("ParseManifest(%q)=_, %T; want *ParseError", tc.input, err)
			}
			if perr.Line != tc.wantLine {
				t.Errorf("ParseManifest(%q): line=%d; want %d", tc.input, perr.Line, tc.wantLine)
			}
		})
	}
}

func TestParseManifestFile(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"src/CMakeFiles/foo.dir/compiler_depend.make": &fstest.MapFile{Data: []byte(compilerDependMake)},
		"src/CMakeFiles/bar.dir/compiler_depend.make": &fstest.MapFile{Data: []byte("bar.o: bar.c \\\n")},
	}
	got, err := ParseManifestFile(ctx, fsys, "src/CMakeFiles/foo.dir/compiler_depend.make")
	if err != nil {
		t.Fatalf("ParseManifestFile(foo)=_, %v; want nil err", err)
	}
	if len(got) != 3 {
		t.Errorf("ParseManifestFile(foo)=%d records; want 3", len(got))
	}
	_, err = ParseManifestFile(ctx, fsys, "src/CMakeFiles/bar.dir/compiler_depend.make")
	if !errors.Is(err, ErrUnexpectedEndOfInput) {
		t.Errorf("ParseManifestFile(bar)=_, %v; want %v", err, ErrUnexpectedEndOfInput)
	}
	_, err = ParseManifestFile(ctx, fsys, "src/CMakeFiles/baz.dir/compiler_depend.make")
	if err == nil {
		t.Errorf("ParseManifestFile(baz)=_, nil; want err")
	}
}
