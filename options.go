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
	"log/slog"

	"lostluck.dev/jobsched/internal/schedopts"
)

// Options configure New with specific features.
// Each function takes a variadic list of options, where properties
// set in later options override the value of previously set properties.
type Options = schedopts.Options

// Name sets the name of the scheduler, typically to make its log lines
// easier to tell apart.
func Name(name string) Options {
	return &schedopts.Struct{
		Name: name,
	}
}

// Parallelism bounds the number of jobs executing at the same time.
// Values below two execute jobs one after another in emission order.
func Parallelism(n int) Options {
	return &schedopts.Struct{
		Parallelism: n,
	}
}

// Logger sets the destination for progress logs.
func Logger(l *slog.Logger) Options {
	return &schedopts.Struct{
		Logger: l,
	}
}
