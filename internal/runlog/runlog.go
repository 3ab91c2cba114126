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

// Package runlog provides the slog handler used by the jobsched command.
package runlog

import (
	"context"
	"log/slog"
	"slices"

	"lostluck.dev/jobsched"
)

// RunKey is the attribute key carrying the run id.
const RunKey = "run"

// Handler filters records below a minimum level and stamps records logged
// during a run with the run's id, taken from the record's context. The id
// is always a top level attribute, even on loggers with open groups.
type Handler struct {
	inner slog.Handler
	level slog.Leveler
	// base is inner before the first WithGroup, and ops replays what was
	// applied since, so the run attribute can be added ahead of any group.
	base    slog.Handler
	ops     []op
	stamped bool // A top level run attribute was already added with WithAttrs.
}

// op is a WithGroup call when group is set, and a WithAttrs call otherwise.
type op struct {
	group string
	attrs []slog.Attr
}

// New returns a Handler passing records at or above level to inner.
// A nil level means slog.LevelInfo.
func New(inner slog.Handler, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{inner: inner, level: level, base: inner}
}

func (h *Handler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.inner.Enabled(ctx, l)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	id := jobsched.RunID(ctx)
	if id == "" || h.stamped {
		return h.inner.Handle(ctx, r)
	}
	if len(h.ops) == 0 {
		r = r.Clone()
		r.AddAttrs(slog.String(RunKey, id))
		return h.inner.Handle(ctx, r)
	}
	stamped := h.base.WithAttrs([]slog.Attr{slog.String(RunKey, id)})
	for _, o := range h.ops {
		if o.group != "" {
			stamped = stamped.WithGroup(o.group)
		} else {
			stamped = stamped.WithAttrs(o.attrs)
		}
	}
	return stamped.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.inner = h.inner.WithAttrs(attrs)
	if len(h.ops) == 0 {
		h2.base = h2.inner
		for _, a := range attrs {
			if a.Key == RunKey {
				h2.stamped = true
			}
		}
	} else {
		h2.ops = append(slices.Clip(h.ops), op{attrs: slices.Clone(attrs)})
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.inner = h.inner.WithGroup(name)
	h2.ops = append(slices.Clip(h.ops), op{group: name})
	return &h2
}
