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

// Package anagram groups the words of text inputs by their letters, so
// that words that are anagrams of each other share a key.
package anagram

import (
	"bufio"
	"context"
	"io"
	"iter"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"lostluck.dev/jobsched"
)

// DefaultMinLength is the shortest word counted by default.
const DefaultMinLength = 4

// Key returns the case folded letters of word in ascending order.
// Words are anagrams of each other exactly when their keys are equal.
func Key(word string) string {
	rs := []rune(cases.Fold().String(word))
	slices.Sort(rs)
	return string(rs)
}

// Words yields the words of line that are at least minLen long and
// consist only of letters. Characters other than ASCII letters, digits,
// and whitespace become spaces, and the line is split on spaces only, so
// a tab inside a token makes it fail the letters check.
func Words(line string, minLen int) iter.Seq[string] {
	return func(yield func(string) bool) {
		clean := strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r)) {
				return r
			}
			return ' '
		}, line)
		for _, w := range strings.Split(clean, " ") {
			if w == "" || len(w) < minLen || strings.ContainsFunc(w, func(r rune) bool { return !unicode.IsLetter(r) }) {
				continue
			}
			if !yield(w) {
				return
			}
		}
	}
}

// Option configures jobs built by NewJob and Factory.
type Option func(*job)

// MinLength sets the shortest word counted.
func MinLength(n int) Option {
	return func(j *job) { j.minLen = n }
}

// Encoding decodes inputs from enc instead of reading them as UTF-8.
func Encoding(enc encoding.Encoding) Option {
	return func(j *job) { j.enc = enc }
}

// LookupEncoding returns the encoding for an IANA or WHATWG name such as
// "latin1" or "windows-1252". The empty name means UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "anagram: text encoding %q", name)
	}
	return enc, nil
}

// NewJob returns a job that reads the input opened by open line by line
// and produces one record per counted word, keyed by Key(word) with the
// word itself as the value.
func NewJob(name string, open jobsched.OpenFunc, opts ...Option) jobsched.Job[string, string] {
	j := &job{name: name, open: open, minLen: DefaultMinLength}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Factory returns a JobFactory building anagram jobs with opts.
func Factory(opts ...Option) jobsched.JobFactory[string, string] {
	return func(name string, open jobsched.OpenFunc) jobsched.Job[string, string] {
		return NewJob(name, open, opts...)
	}
}

type job struct {
	name   string
	open   jobsched.OpenFunc
	minLen int
	enc    encoding.Encoding
}

func (j *job) Name() string { return j.name }

func (j *job) Execute(ctx context.Context) iter.Seq2[jobsched.KV[string, string], error] {
	return func(yield func(jobsched.KV[string, string], error) bool) {
		fail := func(err error) {
			yield(jobsched.KV[string, string]{}, &jobsched.JobExecutionError{Job: j.name, Err: err})
		}
		rc, err := j.open(ctx)
		if err != nil {
			fail(errors.Wrap(err, "open"))
			return
		}
		defer rc.Close()

		var r io.Reader = rc
		if j.enc != nil {
			r = transform.NewReader(r, j.enc.NewDecoder())
		}
		sc := bufio.NewScanner(r)
		// Lines have no length limit.
		sc.Buffer(make([]byte, 0, 64*1024), math.MaxInt)
		for sc.Scan() {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			for w := range Words(sc.Text(), j.minLen) {
				if !yield(jobsched.Pair(Key(w), w), nil) {
					return
				}
			}
		}
		if err := sc.Err(); err != nil {
			fail(errors.Wrap(err, "read"))
		}
	}
}
