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

// Package jobsched is a small batch job scheduler built around a fixed
// four step skeleton: emit, compute, collect, output.
//
// The emit and output steps are supplied by the caller as a [Source] and a
// [Sink]. The compute and collect steps are shared: every [Job] the source
// emits is executed, the records of all jobs are flattened into one
// sequence, and that sequence is grouped by key into a [Grouped] result
// that is handed to the sink.
//
//	s := jobsched.New(source, sink, jobsched.Parallelism(4))
//	res, err := s.Run(ctx)
//
// Things worth knowing.
//   - Records are typed with generics, so a pipeline is typechecked by Go.
//   - Jobs produce lazy iterators; nothing is buffered before grouping.
//   - Runs are fail fast. The first error from the source, any job, or the
//     sink aborts the run and is returned unchanged.
//   - Resilience belongs to jobs. See [WithTimeout] and [WithRetry].
package jobsched
