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
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// describe names a wrapped job for error messages.
func describe(j any) string {
	if n, ok := j.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", j)
}

// WithTimeout bounds a single execution of job to d. If the job has not
// finished by then, the execution fails with a *JobExecutionError
// wrapping context.DeadlineExceeded. The wrapped job sees a context that
// is cancelled at the deadline and should stop promptly.
func WithTimeout[K Keys, V any](job Job[K, V], d time.Duration) Job[K, V] {
	return &timeoutJob[K, V]{job: job, d: d}
}

type timeoutJob[K Keys, V any] struct {
	job Job[K, V]
	d   time.Duration
}

func (j *timeoutJob[K, V]) Name() string { return describe(j.job) }

type result[K Keys, V any] struct {
	kv  KV[K, V]
	err error
}

func (j *timeoutJob[K, V]) Execute(ctx context.Context) iter.Seq2[KV[K, V], error] {
	return func(yield func(KV[K, V], error) bool) {
		ctx, cancel := context.WithTimeout(ctx, j.d)
		defer cancel()

		ch := make(chan result[K, V])
		done := make(chan struct{})
		defer close(done)

		// The inner job runs on its own goroutine so a job that ignores
		// its context can't hold the caller past the deadline.
		go func() {
			defer close(ch)
			for kv, err := range j.job.Execute(ctx) {
				select {
				case ch <- result[K, V]{kv, err}:
				case <-done:
					return
				}
				if err != nil {
					return
				}
			}
		}()

		for {
			select {
			case r, ok := <-ch:
				if !ok {
					return
				}
				if r.err != nil {
					yield(KV[K, V]{}, r.err)
					return
				}
				if !yield(r.kv, nil) {
					return
				}
			case <-ctx.Done():
				yield(KV[K, V]{}, &JobExecutionError{Job: describe(j.job), Err: ctx.Err()})
				return
			}
		}
	}
}

// WithRetry re-executes job while it fails, pausing between attempts as
// dictated by a fresh BackOff from newBackOff. Records are only handed
// on once an attempt succeeds, so a retried job never produces duplicate
// records; the price is that its output is held in memory.
func WithRetry[K Keys, V any](job Job[K, V], newBackOff func() backoff.BackOff) Job[K, V] {
	return &retryJob[K, V]{job: job, newBackOff: newBackOff}
}

type retryJob[K Keys, V any] struct {
	job        Job[K, V]
	newBackOff func() backoff.BackOff
}

func (j *retryJob[K, V]) Name() string { return describe(j.job) }

func (j *retryJob[K, V]) Execute(ctx context.Context) iter.Seq2[KV[K, V], error] {
	return func(yield func(KV[K, V], error) bool) {
		var buf []KV[K, V]
		attempt := func() error {
			buf = buf[:0]
			for kv, err := range j.job.Execute(ctx) {
				if err != nil {
					return err
				}
				buf = append(buf, kv)
			}
			return nil
		}
		if err := backoff.Retry(attempt, backoff.WithContext(j.newBackOff(), ctx)); err != nil {
			var jerr *JobExecutionError
			if !errors.As(err, &jerr) {
				err = &JobExecutionError{Job: describe(j.job), Err: err}
			}
			yield(KV[K, V]{}, err)
			return
		}
		for _, kv := range buf {
			if !yield(kv, nil) {
				return
			}
		}
	}
}
