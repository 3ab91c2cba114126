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

package coders

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"lostluck.dev/jobsched"
)

func sample() *jobsched.Grouped[string, string] {
	return jobsched.NewGrouped(map[string][]string{
		"opst":   {"stop", "pots", "tops", "spot"},
		"eilnst": {"listen", "silent"},
		"aekl":   {"lake"},
	})
}

func TestCountCSV(t *testing.T) {
	var buf bytes.Buffer
	c := CountCSV[string, string]{Order: Sorted[string, string]()}
	if err := c.Encode(context.Background(), &buf, sample()); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := "aekl, 1\neilnst, 2\nopst, 4\n"
	if got := buf.String(); got != want {
		t.Errorf("Encode = %q, want %q", got, want)
	}
}

func TestCountCSV_Unordered(t *testing.T) {
	var buf bytes.Buffer
	if err := (CountCSV[string, string]{}).Encode(context.Background(), &buf, sample()); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if got, want := len(lines), 3; got != want {
		t.Fatalf("line count: got %v want %v: %q", got, want, buf.String())
	}
	for _, want := range []string{"aekl, 1", "eilnst, 2", "opst, 4"} {
		if !strings.Contains(buf.String(), want+"\n") {
			t.Errorf("output %q is missing line %q", buf.String(), want)
		}
	}
}

func TestCountCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := (CountCSV[string, string]{}).Encode(context.Background(), &buf, jobsched.NewGrouped[string, string](nil)); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Encode of an empty result wrote %q", buf.String())
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	c := JSON[string, string]{Order: Sorted[string, string](), Values: true}
	if err := c.Encode(context.Background(), &buf, sample()); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var got jsonDoc[string]
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal(%s) failed: %v", buf.String(), err)
	}
	want := jsonDoc[string]{Groups: []jsonGroup[string]{
		{Key: "aekl", Count: 1, Values: []string{"lake"}},
		{Key: "eilnst", Count: 2, Values: []string{"listen", "silent"}},
		{Key: "opst", Count: 4, Values: []string{"stop", "pots", "tops", "spot"}},
	}}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("decoded document mismatch (-want +got):\n%s", d)
	}
}

func TestProto(t *testing.T) {
	var buf bytes.Buffer
	if err := (Proto[string, string]{}).Encode(context.Background(), &buf, sample()); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var s structpb.Struct
	if err := proto.Unmarshal(buf.Bytes(), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := map[string]any{"aekl": 1.0, "eilnst": 2.0, "opst": 4.0}
	if d := cmp.Diff(want, s.GetFields()["counts"].GetStructValue().AsMap()); d != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", d)
	}
}

func TestForFormat(t *testing.T) {
	for _, f := range Formats {
		if _, err := ForFormat[string, string](f, nil); err != nil {
			t.Errorf("ForFormat(%q) failed: %v", f, err)
		}
	}
	if _, err := ForFormat[string, string]("xml", nil); err == nil {
		t.Error("ForFormat(xml) succeeded, want error")
	}
}
