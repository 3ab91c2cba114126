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

package jobsched_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"lostluck.dev/jobsched"
)

func TestMap(t *testing.T) {
	words := slices.Values([]string{"go", "gopher", "beam", "go"})
	job := jobsched.Map("lengths", words, func(w string) jobsched.KV[int, string] {
		return jobsched.Pair(len(w), w)
	})
	sink := &captureSink[int, string]{}
	if _, err := jobsched.New(jobsched.Jobs(job), sink, quiet).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := map[int][]string{2: {"go", "go"}, 4: {"beam"}, 6: {"gopher"}}
	if d := cmp.Diff(want, sink.got); d != "" {
		t.Errorf("grouped mismatch (-want +got):\n%s", d)
	}
}

func TestMap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := jobsched.Map("upper", slices.Values([]string{"a"}), func(s string) jobsched.KV[string, string] {
		return jobsched.Pair(strings.ToUpper(s), s)
	})
	for _, err := range job.Execute(ctx) {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Execute error: got %v want %v", err, context.Canceled)
		}
		var jerr *jobsched.JobExecutionError
		if !errors.As(err, &jerr) || jerr.Job != "upper" {
			t.Errorf("Execute error: got %v want a JobExecutionError for job upper", err)
		}
		return
	}
	t.Error("Execute yielded nothing on a cancelled context")
}

func TestJobName(t *testing.T) {
	if got, want := jobsched.JobName(jobsched.Records[string, int]("in.txt"), 3), "in.txt"; got != want {
		t.Errorf("JobName(named) = %q, want %q", got, want)
	}
	if got, want := jobsched.JobName(struct{}{}, 3), "job003"; got != want {
		t.Errorf("JobName(unnamed) = %q, want %q", got, want)
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{&jobsched.SourceDiscoveryError{Source: "/in", Err: cause}, "jobsched: discovering jobs in /in: boom"},
		{&jobsched.JobExecutionError{Job: "a.txt", Err: cause}, "jobsched: executing job a.txt: boom"},
		{&jobsched.SinkOutputError{Sink: "out.csv", Err: cause}, "jobsched: writing output to out.csv: boom"},
	}
	for _, test := range tests {
		if got := test.err.Error(); got != test.want {
			t.Errorf("Error() = %q, want %q", got, test.want)
		}
		if !errors.Is(test.err, cause) {
			t.Errorf("%v does not unwrap to its cause", test.err)
		}
	}
}
