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

// Package fileio reads jobs from and writes results to the local file system.
package fileio

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"lostluck.dev/jobsched"
	"lostluck.dev/jobsched/coders"
)

// DefaultExt is the extension of the files read by default.
const DefaultExt = ".txt"

// DirOption configures a directory source.
type DirOption func(*dirSource)

// Ext restricts the source to files whose names end in ext, ignoring case.
// An empty ext accepts every regular file.
func Ext(ext string) DirOption {
	return func(s *dirSource) { s.ext = strings.ToLower(ext) }
}

// Recursive makes the source descend into subdirectories.
func Recursive(r bool) DirOption {
	return func(s *dirSource) { s.recursive = r }
}

// Dir returns a Source emitting one job per matching regular file in dir.
// By default only files ending in DefaultExt directly inside dir are
// used. Files are emitted in lexical order of their paths.
func Dir[K jobsched.Keys, V any](dir string, factory jobsched.JobFactory[K, V], opts ...DirOption) jobsched.Source[K, V] {
	s := &dirSource{dir: dir, ext: DefaultExt}
	for _, opt := range opts {
		opt(s)
	}
	return jobsched.SourceFunc[K, V](func(ctx context.Context) (iter.Seq[jobsched.Job[K, V]], error) {
		paths, err := s.list(ctx)
		if err != nil {
			return nil, &jobsched.SourceDiscoveryError{Source: dir, Err: err}
		}
		return func(yield func(jobsched.Job[K, V]) bool) {
			for _, p := range paths {
				if !yield(factory(p, openFile(p))) {
					return
				}
			}
		}, nil
	})
}

type dirSource struct {
	dir       string
	ext       string
	recursive bool
}

// list collects every matching path up front so the returned jobs don't
// depend on any open directory handle.
func (s *dirSource) list(ctx context.Context) ([]string, error) {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "fileio")
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("fileio: %s is not a directory", s.dir)
	}

	var paths []string
	visit := func(p string, d fs.DirEntry) {
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), s.ext) {
			return
		}
		// Stat rather than d.Type so symlinks to regular files count.
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			paths = append(paths, p)
		}
	}

	if !s.recursive {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, errors.Wrapf(err, "fileio: listing %s", s.dir)
		}
		for _, d := range entries {
			visit(filepath.Join(s.dir, d.Name()), d)
		}
		return paths, nil
	}

	err = filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		visit(p, d)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fileio: walking %s", s.dir)
	}
	slices.Sort(paths)
	return paths, nil
}

func openFile(path string) jobsched.OpenFunc {
	return func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// File returns a Sink encoding the grouped result with coder into the file
// at path. The file is written to a temporary name and renamed into place,
// so a failed run never leaves a partial output behind.
func File[K jobsched.Keys, V any](path string, coder coders.Coder[K, V]) jobsched.Sink[K, V] {
	return jobsched.SinkFunc[K, V](func(ctx context.Context, g *jobsched.Grouped[K, V]) error {
		if err := writeAtomic(ctx, path, func(w io.Writer) error {
			return coder.Encode(ctx, w, g)
		}); err != nil {
			return &jobsched.SinkOutputError{Sink: path, Err: err}
		}
		return nil
	})
}

func writeAtomic(ctx context.Context, path string, write func(io.Writer) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "fileio")
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err := write(f); err != nil {
		return errors.Wrap(err, "fileio: encoding")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "fileio")
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return errors.Wrap(err, "fileio")
	}
	return errors.Wrap(os.Rename(f.Name(), path), "fileio")
}
