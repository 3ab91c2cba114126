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
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"lostluck.dev/jobsched/internal/schedopts"
)

// Scheduler runs the fixed emit, compute, collect, output sequence over a
// pluggable Source and Sink.
//
// A Scheduler holds no state between runs: every call to Run asks the
// source for fresh jobs and recomputes the grouping from scratch.
type Scheduler[K Keys, V any] struct {
	source Source[K, V]
	sink   Sink[K, V]
	opts   schedopts.Struct
}

// New returns a Scheduler reading jobs from source and handing the grouped
// result to sink.
func New[K Keys, V any](source Source[K, V], sink Sink[K, V], opts ...Options) *Scheduler[K, V] {
	s := &Scheduler[K, V]{source: source, sink: sink}
	s.opts.Join(opts...)
	if s.opts.Name == "" {
		s.opts.Name = strings.TrimPrefix(fmt.Sprintf("%T", s), "*")
	}
	return s
}

// Result describes a completed run.
type Result struct {
	RunID    string
	Jobs     int // Jobs executed.
	Records  int // Records grouped.
	Keys     int // Distinct keys handed to the sink.
	Duration time.Duration
}

// Run executes one pass of the pipeline.
//
// Errors from the source, from any job, or from the sink are returned
// exactly as produced. The first failure aborts the run: remaining jobs
// are cancelled and the sink is not invoked.
func (s *Scheduler[K, V]) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.NewString()}
	ctx = context.WithValue(ctx, runIDKey{}, res.RunID)

	logger := s.opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("scheduler", s.opts.Name), slog.String("run", res.RunID))
	logger.InfoContext(ctx, "run started", slog.Int("parallelism", max(1, s.opts.Parallelism)))

	// Emit (hot spot).
	jobs, err := s.source.Emit(ctx)
	if err != nil {
		return res, err
	}

	// Compute and collect (frozen spots).
	var acc *partial[K, V]
	if s.opts.Parallelism > 1 {
		acc, res.Jobs, err = s.computeParallel(ctx, logger, jobs)
	} else {
		acc, res.Jobs, err = s.computeSerial(ctx, logger, jobs)
	}
	if err != nil {
		return res, err
	}
	g := acc.grouped()
	res.Records, res.Keys = g.Total(), g.Len()

	// Output (hot spot).
	if err := s.sink.Output(ctx, g); err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	logger.InfoContext(ctx, "run finished",
		slog.Int("jobs", res.Jobs),
		slog.Int("records", res.Records),
		slog.Int("keys", res.Keys),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// computeSerial executes jobs one at a time, in emission order, grouping
// straight into a single accumulator.
func (s *Scheduler[K, V]) computeSerial(ctx context.Context, logger *slog.Logger, jobs iter.Seq[Job[K, V]]) (*partial[K, V], int, error) {
	acc := newPartial[K, V]()
	n := 0
	for job := range jobs {
		if job == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, n, err
		}
		before := acc.recs
		if err := execute(ctx, job, acc); err != nil {
			return nil, n, err
		}
		logger.DebugContext(ctx, "job finished", slog.String("job", JobName(job, n)), slog.Int("records", acc.recs-before))
		n++
	}
	return acc, n, nil
}

// computeParallel executes up to Parallelism jobs at once. Each job
// groups into its own partial, and partials are merged in emission order
// once every job is done, so the values under a key end up in the same
// order as a serial run would produce.
func (s *Scheduler[K, V]) computeParallel(ctx context.Context, logger *slog.Logger, jobs iter.Seq[Job[K, V]]) (*partial[K, V], int, error) {
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(s.opts.Parallelism)

	var parts []*partial[K, V]
	n := 0
	for job := range jobs {
		if job == nil {
			continue
		}
		if ectx.Err() != nil {
			// A job already failed; don't start any more.
			break
		}
		p := newPartial[K, V]()
		parts = append(parts, p)
		name := JobName(job, n)
		n++
		eg.Go(func() error {
			if err := execute(ectx, job, p); err != nil {
				return err
			}
			logger.DebugContext(ectx, "job finished", slog.String("job", name), slog.Int("records", p.recs))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, n, err
	}
	if err := ctx.Err(); err != nil {
		// Cancelled from outside before every job was started.
		return nil, n, err
	}

	acc := newPartial[K, V]()
	for _, p := range parts {
		acc.merge(p)
	}
	return acc, n, nil
}

// execute drains a single job into acc.
func execute[K Keys, V any](ctx context.Context, job Job[K, V], acc *partial[K, V]) error {
	for kv, err := range job.Execute(ctx) {
		if err != nil {
			return err
		}
		acc.add(kv)
	}
	return nil
}

type runIDKey struct{}

// RunID returns the id of the run ctx belongs to, or "" outside of a run.
// Sources, jobs, and sinks can use it to tag what they produce.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
