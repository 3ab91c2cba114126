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

package jobsched

import (
	"context"
	"fmt"
	"io"
	"iter"
)

// Job is a unit of work producing a finite sequence of records.
//
// Execute is called at most once per run, and never concurrently with
// itself. The returned sequence is lazy: no input is read until it is
// ranged over. A job that cannot produce its records yields a single
// final pair with a non-nil error, normally a *JobExecutionError, and
// stops.
type Job[K Keys, V any] interface {
	Execute(ctx context.Context) iter.Seq2[KV[K, V], error]
}

// Named is implemented by jobs that have a human readable name, such as
// the path of the file they read.
type Named interface {
	Name() string
}

// JobName returns the name of j if it has one, or a name derived from its
// position in the emitted sequence.
func JobName(j any, index int) string {
	if n, ok := j.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("job%03d", index)
}

// JobFunc adapts a function into a Job.
type JobFunc[K Keys, V any] func(ctx context.Context) iter.Seq2[KV[K, V], error]

// Execute calls fn.
func (fn JobFunc[K, V]) Execute(ctx context.Context) iter.Seq2[KV[K, V], error] {
	return fn(ctx)
}

// OpenFunc opens the single input resource of a job.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

// JobFactory builds a job for a named input. Sources that discover
// inputs use a factory so the work done per input stays pluggable.
type JobFactory[K Keys, V any] func(name string, open OpenFunc) Job[K, V]

// Records returns a job that yields the given records. It is mostly
// useful in tests.
func Records[K Keys, V any](name string, kvs ...KV[K, V]) Job[K, V] {
	return &recordsJob[K, V]{name: name, kvs: kvs}
}

type recordsJob[K Keys, V any] struct {
	name string
	kvs  []KV[K, V]
}

func (j *recordsJob[K, V]) Name() string { return j.name }

func (j *recordsJob[K, V]) Execute(context.Context) iter.Seq2[KV[K, V], error] {
	return func(yield func(KV[K, V], error) bool) {
		for _, kv := range j.kvs {
			if !yield(kv, nil) {
				return
			}
		}
	}
}

// Map returns a job that applies fn to every input element, producing
// one record per element.
func Map[I any, K Keys, V any](name string, in iter.Seq[I], fn func(I) KV[K, V]) Job[K, V] {
	return &mapper[I, K, V]{name: name, in: in, fn: fn}
}

type mapper[I any, K Keys, V any] struct {
	name string
	in   iter.Seq[I]
	fn   func(I) KV[K, V]
}

func (j *mapper[I, K, V]) Name() string { return j.name }

func (j *mapper[I, K, V]) Execute(ctx context.Context) iter.Seq2[KV[K, V], error] {
	return func(yield func(KV[K, V], error) bool) {
		for e := range j.in {
			if err := ctx.Err(); err != nil {
				yield(KV[K, V]{}, &JobExecutionError{Job: j.name, Err: err})
				return
			}
			if !yield(j.fn(e), nil) {
				return
			}
		}
	}
}
