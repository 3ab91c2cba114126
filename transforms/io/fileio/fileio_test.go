// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fileio

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"lostluck.dev/jobsched"
	"lostluck.dev/jobsched/coders"
	"lostluck.dev/jobsched/transforms/anagram"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func names(t *testing.T, src jobsched.Source[string, string]) []string {
	t.Helper()
	jobs, err := src.Emit(context.Background())
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	var out []string
	for j := range jobs {
		out = append(out, jobsched.JobName(j, len(out)))
	}
	return out
}

func TestDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt":       "stop",
		"B.TXT":       "pots",
		"c.csv":       "tops",
		"sub/d.txt":   "spot",
		"sub.txt/e.x": "",
	})
	j := filepath.Join

	tests := []struct {
		name string
		opts []DirOption
		want []string
	}{
		{"default", nil, []string{j(dir, "B.TXT"), j(dir, "a.txt")}},
		{"recursive", []DirOption{Recursive(true)}, []string{j(dir, "B.TXT"), j(dir, "a.txt"), j(dir, "sub", "d.txt")}},
		{"csv", []DirOption{Ext(".CSV")}, []string{j(dir, "c.csv")}},
		{"any", []DirOption{Ext("")}, []string{j(dir, "B.TXT"), j(dir, "a.txt"), j(dir, "c.csv")}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := names(t, Dir(dir, anagram.Factory(), test.opts...))
			if d := cmp.Diff(test.want, got); d != "" {
				t.Errorf("emitted jobs mismatch (-want +got):\n%s", d)
			}
		})
	}
}

func TestDir_DiscoveryErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	writeFiles(t, dir, map[string]string{"plain.txt": "x"})

	for _, path := range []string{filepath.Join(dir, "missing"), file} {
		_, err := Dir(path, anagram.Factory()).Emit(context.Background())
		var serr *jobsched.SourceDiscoveryError
		if !errors.As(err, &serr) {
			t.Errorf("Emit(%q) error %v is not a SourceDiscoveryError", path, err)
			continue
		}
		if serr.Source != path {
			t.Errorf("Emit(%q) error names source %q", path, serr.Source)
		}
	}
}

func TestFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "count_anagrams.csv")
	g := jobsched.NewGrouped(map[string][]string{"opst": {"stop", "pots", "tops", "spot"}})
	sink := File(out, coders.CountCSV[string, string]{})
	if err := sink.Output(context.Background(), g); err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(got), "opst, 4\n"; got != want {
		t.Errorf("output file = %q, want %q", got, want)
	}
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Errorf("output directory holds %v entries, want only the output file", len(entries))
	}
}

func TestFile_Unwritable(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "out.csv")
	err := File(out, coders.CountCSV[string, string]{}).Output(context.Background(), jobsched.NewGrouped[string, string](nil))
	var serr *jobsched.SinkOutputError
	if !errors.As(err, &serr) {
		t.Fatalf("Output error %v is not a SinkOutputError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Output error %v does not wrap %v", err, fs.ErrNotExist)
	}
}

func TestPipeline(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"short words", map[string]string{"in.txt": "cat act tac"}, ""},
		{"anagrams", map[string]string{"in.txt": "stop pots tops spot"}, "opst, 4\n"},
		{"across files", map[string]string{"a.txt": "stop pots", "b.txt": "tops spot Post", "c.md": "opts"}, "opst, 5\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			in, out := t.TempDir(), filepath.Join(t.TempDir(), "count_anagrams.csv")
			writeFiles(t, in, test.files)
			s := jobsched.New(
				Dir(in, anagram.Factory()),
				File(out, coders.CountCSV[string, string]{Order: coders.Sorted[string, string]()}),
				jobsched.Parallelism(2))
			if _, err := s.Run(context.Background()); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != test.want {
				t.Errorf("output file = %q, want %q", got, test.want)
			}
		})
	}
}
