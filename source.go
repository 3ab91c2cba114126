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
	"iter"
	"slices"
)

// Source produces the jobs of a run.
//
// Emit is called exactly once per run, before any job executes. The
// returned sequence is ranged over once, after Emit returns, so a Source
// must capture whatever state it needs up front rather than hand out a
// sequence backed by a handle it has already closed. Failures to
// enumerate inputs are reported as a *SourceDiscoveryError.
type Source[K Keys, V any] interface {
	Emit(ctx context.Context) (iter.Seq[Job[K, V]], error)
}

// SourceFunc adapts a function into a Source.
type SourceFunc[K Keys, V any] func(ctx context.Context) (iter.Seq[Job[K, V]], error)

// Emit calls fn.
func (fn SourceFunc[K, V]) Emit(ctx context.Context) (iter.Seq[Job[K, V]], error) {
	return fn(ctx)
}

// Jobs returns a Source that emits a fixed set of jobs, in order.
func Jobs[K Keys, V any](jobs ...Job[K, V]) Source[K, V] {
	jobs = slices.Clone(jobs)
	return SourceFunc[K, V](func(context.Context) (iter.Seq[Job[K, V]], error) {
		return slices.Values(jobs), nil
	})
}
