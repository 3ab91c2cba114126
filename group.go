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
	"iter"
	"slices"

	"golang.org/x/exp/constraints"
)

// Keys is the constraint on record keys. Records with equal keys are
// grouped together.
type Keys interface {
	comparable
}

// KV is a single record produced by a Job.
type KV[K Keys, V any] struct {
	Key   K
	Value V
}

// Pair is a convenience function to build a KV.
func Pair[K Keys, V any](k K, v V) KV[K, V] {
	return KV[K, V]{Key: k, Value: v}
}

// Grouped is the result of grouping every record of a run by key.
//
// Values under a key keep the order their records were produced in.
// The order of keys is unspecified; use SortedKeys when a stable order
// is required. Grouped is read only: sinks must not modify the slices
// it hands out.
type Grouped[K Keys, V any] struct {
	m    map[K][]V
	recs int
}

// Len returns the number of distinct keys.
func (g *Grouped[K, V]) Len() int {
	if g == nil {
		return 0
	}
	return len(g.m)
}

// Total returns the number of grouped records across all keys.
func (g *Grouped[K, V]) Total() int {
	if g == nil {
		return 0
	}
	return g.recs
}

// Get returns the values grouped under k.
func (g *Grouped[K, V]) Get(k K) ([]V, bool) {
	if g == nil {
		return nil, false
	}
	vs, ok := g.m[k]
	return slices.Clip(vs), ok
}

// Count returns the number of values grouped under k.
func (g *Grouped[K, V]) Count(k K) int {
	if g == nil {
		return 0
	}
	return len(g.m[k])
}

// All iterates over every key and its values, in no particular order.
func (g *Grouped[K, V]) All() iter.Seq2[K, []V] {
	return func(yield func(K, []V) bool) {
		if g == nil {
			return
		}
		for k, vs := range g.m {
			if !yield(k, slices.Clip(vs)) {
				return
			}
		}
	}
}

// Keys iterates over the distinct keys, in no particular order.
func (g *Grouped[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range g.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Counts returns the number of values per key.
func (g *Grouped[K, V]) Counts() map[K]int {
	out := make(map[K]int, g.Len())
	for k, vs := range g.All() {
		out[k] = len(vs)
	}
	return out
}

// SortedKeys returns the keys of g in ascending order.
func SortedKeys[K interface {
	Keys
	constraints.Ordered
}, V any](g *Grouped[K, V]) []K {
	return slices.Sorted(g.Keys())
}

// NewGrouped builds a Grouped from already grouped values. It exists so
// sinks can be exercised without running a Scheduler. Empty value lists
// are dropped.
func NewGrouped[K Keys, V any](m map[K][]V) *Grouped[K, V] {
	g := &Grouped[K, V]{m: make(map[K][]V, len(m))}
	for k, vs := range m {
		if len(vs) == 0 {
			continue
		}
		g.m[k] = slices.Clone(vs)
		g.recs += len(vs)
	}
	return g
}

// partial accumulates records by key. A partial has a single writer.
type partial[K Keys, V any] struct {
	m    map[K][]V
	recs int
}

func newPartial[K Keys, V any]() *partial[K, V] {
	return &partial[K, V]{m: map[K][]V{}}
}

func (p *partial[K, V]) add(kv KV[K, V]) {
	p.m[kv.Key] = append(p.m[kv.Key], kv.Value)
	p.recs++
}

// merge appends the values of src after the values already in p.
func (p *partial[K, V]) merge(src *partial[K, V]) {
	for k, vs := range src.m {
		p.m[k] = append(p.m[k], vs...)
	}
	p.recs += src.recs
}

func (p *partial[K, V]) grouped() *Grouped[K, V] {
	return &Grouped[K, V]{m: p.m, recs: p.recs}
}
