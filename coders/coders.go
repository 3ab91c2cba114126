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

// Package coders encodes grouped results into the formats written by sinks.
package coders

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"lostluck.dev/jobsched"
)

// Coder writes a grouped result to w.
type Coder[K jobsched.Keys, V any] interface {
	Encode(ctx context.Context, w io.Writer, g *jobsched.Grouped[K, V]) error
}

// KeyOrder decides the order keys are written in.
type KeyOrder[K jobsched.Keys, V any] func(g *jobsched.Grouped[K, V]) []K

// Unordered writes keys in whatever order the grouped result yields them.
func Unordered[K jobsched.Keys, V any]() KeyOrder[K, V] {
	return func(g *jobsched.Grouped[K, V]) []K {
		return slices.Collect(g.Keys())
	}
}

// Sorted writes keys in ascending order, so output can be diffed across runs.
func Sorted[K interface {
	jobsched.Keys
	constraints.Ordered
}, V any]() KeyOrder[K, V] {
	return jobsched.SortedKeys[K, V]
}

func (o KeyOrder[K, V]) keys(g *jobsched.Grouped[K, V]) []K {
	if o == nil {
		return Unordered[K, V]()(g)
	}
	return o(g)
}

// CountCSV writes one "<key>, <count>" line per key, with no header.
type CountCSV[K jobsched.Keys, V any] struct {
	Order KeyOrder[K, V]
}

func (c CountCSV[K, V]) Encode(_ context.Context, w io.Writer, g *jobsched.Grouped[K, V]) error {
	bw := bufio.NewWriter(w)
	for _, k := range c.Order.keys(g) {
		if _, err := fmt.Fprintf(bw, "%v, %d\n", k, g.Count(k)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type jsonGroup[V any] struct {
	Key    string `json:"key"`
	Count  int    `json:"count"`
	Values []V    `json:"values,omitempty"`
}

type jsonDoc[V any] struct {
	Run    string         `json:"run,omitempty"`
	Groups []jsonGroup[V] `json:"groups"`
}

// JSON writes a single document listing every group and the id of the run
// that produced it. Values are only included when Values is set.
type JSON[K jobsched.Keys, V any] struct {
	Order  KeyOrder[K, V]
	Values bool
}

func (c JSON[K, V]) Encode(ctx context.Context, w io.Writer, g *jobsched.Grouped[K, V]) error {
	doc := jsonDoc[V]{Run: jobsched.RunID(ctx), Groups: []jsonGroup[V]{}}
	for _, k := range c.Order.keys(g) {
		grp := jsonGroup[V]{Key: fmt.Sprint(k), Count: g.Count(k)}
		if c.Values {
			grp.Values, _ = g.Get(k)
		}
		doc.Groups = append(doc.Groups, grp)
	}
	return json.MarshalWrite(w, &doc, json.DefaultOptionsV2(), json.Deterministic(true), jsontext.WithIndent("  "))
}

// Proto writes a binary google.protobuf.Struct with a "run" string field
// and a "counts" struct field mapping each key to its count. Keys are
// rendered with fmt, so distinct keys must print distinctly.
type Proto[K jobsched.Keys, V any] struct{}

func (Proto[K, V]) Encode(ctx context.Context, w io.Writer, g *jobsched.Grouped[K, V]) error {
	counts := make(map[string]any, g.Len())
	for k, vs := range g.All() {
		counts[fmt.Sprint(k)] = len(vs)
	}
	s, err := structpb.NewStruct(map[string]any{
		"run":    jobsched.RunID(ctx),
		"counts": counts,
	})
	if err != nil {
		return err
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Formats lists the names accepted by ForFormat.
var Formats = []string{"csv", "json", "proto"}

// ForFormat returns the coder for the named format.
func ForFormat[K jobsched.Keys, V any](format string, order KeyOrder[K, V]) (Coder[K, V], error) {
	switch format {
	case "", "csv":
		return CountCSV[K, V]{Order: order}, nil
	case "json":
		return JSON[K, V]{Order: order}, nil
	case "proto":
		return Proto[K, V]{}, nil
	}
	return nil, errors.Errorf("coders: unknown format %q, want one of %v", format, Formats)
}
