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

// Package schedopts holds the option plumbing shared by jobsched packages.
package schedopts

import (
	"log/slog"

	"lostluck.dev/jobsched/internal"
)

// Options is the common options type shared across jobsched packages.
type Options interface {
	// SchedulerOptions is exported so related jobsched packages can implement Options.
	SchedulerOptions(internal.NotForPublicUse)
}

// Struct is the combination of all options in struct form.
// This is efficient to pass down the call stack and to query.
type Struct struct {
	Name        string       // The configured name of the scheduler. Otherwise it's autogenerated.
	Parallelism int          // Maximum number of jobs executing at once. Zero or one is serial.
	Logger      *slog.Logger // Destination for progress logs. Nil uses slog.Default.
}

func (dst *Struct) SchedulerOptions(internal.NotForPublicUse) {}

// Join merges srcs into dst. Properties set in later options override
// the value of previously set properties.
func (dst *Struct) Join(srcs ...Options) {
	for _, src := range srcs {
		switch src := src.(type) {
		case *Struct:
			if src.Name != "" {
				dst.Name = src.Name
			}
			if src.Parallelism != 0 {
				dst.Parallelism = src.Parallelism
			}
			if src.Logger != nil {
				dst.Logger = src.Logger
			}
		}
	}
}
