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

import "context"

// Sink consumes the grouped result of a run. Its side effects are the
// only externally visible effect of a successful run. Failures are
// reported as a *SinkOutputError.
type Sink[K Keys, V any] interface {
	Output(ctx context.Context, g *Grouped[K, V]) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc[K Keys, V any] func(ctx context.Context, g *Grouped[K, V]) error

// Output calls fn.
func (fn SinkFunc[K, V]) Output(ctx context.Context, g *Grouped[K, V]) error {
	return fn(ctx, g)
}

// Multiplex returns a Sink that hands the grouped result to each of sinks
// in turn, stopping at the first failure.
func Multiplex[K Keys, V any](sinks ...Sink[K, V]) Sink[K, V] {
	return &multiplex[K, V]{outs: sinks}
}

type multiplex[K Keys, V any] struct {
	outs []Sink[K, V]
}

func (s *multiplex[K, V]) Output(ctx context.Context, g *Grouped[K, V]) error {
	for _, out := range s.outs {
		if err := out.Output(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// Discard returns a Sink that drops the grouped result.
func Discard[K Keys, V any]() Sink[K, V] {
	return discard[K, V]{}
}

type discard[K Keys, V any] struct{}

func (discard[K, V]) Output(context.Context, *Grouped[K, V]) error {
	return nil
}
