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

// Package synthetic produces jobs and load.
// Typically used for load testing, and scale testing.
package synthetic

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"time"

	"lostluck.dev/jobsched"
)

// ErrInjected is the cause of the failure produced by Config.FailJob.
var ErrInjected = errors.New("synthetic: injected failure")

// Config controls the shape of a synthetic run.
type Config struct {
	Jobs          int // Number of jobs emitted.
	RecordsPerJob int
	Keys          int    // Number of distinct keys. Values below one use a single key.
	Seed          uint64 // Seeds key selection so runs are reproducible.

	PerRecordDelay time.Duration
	// FailJob is the 1-based index of a job that fails after emitting
	// half of its records. Zero disables the failure.
	FailJob int
}

// NewSource returns a Source emitting cfg.Jobs jobs. Each job yields
// cfg.RecordsPerJob records whose keys are drawn from a generator seeded
// by cfg.Seed and the job's index, and whose values are the record's
// global sequence number.
func NewSource(cfg Config) jobsched.Source[string, int] {
	return jobsched.SourceFunc[string, int](func(context.Context) (iter.Seq[jobsched.Job[string, int]], error) {
		return func(yield func(jobsched.Job[string, int]) bool) {
			for i := range cfg.Jobs {
				if !yield(&step{cfg: cfg, index: i}) {
					return
				}
			}
		}, nil
	})
}

// step is a single controllable synthetic job.
type step struct {
	cfg   Config
	index int
}

func (s *step) Name() string { return fmt.Sprintf("synthetic-%04d", s.index) }

func (s *step) Execute(ctx context.Context) iter.Seq2[jobsched.KV[string, int], error] {
	return func(yield func(jobsched.KV[string, int], error) bool) {
		rng := rand.New(rand.NewPCG(s.cfg.Seed, uint64(s.index)))
		keys := max(1, s.cfg.Keys)
		failing := s.cfg.FailJob == s.index+1
		for r := range s.cfg.RecordsPerJob {
			if failing && r == s.cfg.RecordsPerJob/2 {
				yield(jobsched.KV[string, int]{}, &jobsched.JobExecutionError{Job: s.Name(), Err: ErrInjected})
				return
			}
			if s.cfg.PerRecordDelay > 0 {
				select {
				case <-time.After(s.cfg.PerRecordDelay):
				case <-ctx.Done():
					yield(jobsched.KV[string, int]{}, &jobsched.JobExecutionError{Job: s.Name(), Err: ctx.Err()})
					return
				}
			}
			kv := jobsched.Pair(fmt.Sprintf("key%03d", rng.IntN(keys)), s.index*s.cfg.RecordsPerJob+r)
			if !yield(kv, nil) {
				return
			}
		}
		if failing && s.cfg.RecordsPerJob == 0 {
			yield(jobsched.KV[string, int]{}, &jobsched.JobExecutionError{Job: s.Name(), Err: ErrInjected})
		}
	}
}
