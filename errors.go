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

import "fmt"

// SourceDiscoveryError reports that a Source could not enumerate its inputs.
type SourceDiscoveryError struct {
	Source string // What was being enumerated, such as a directory.
	Err    error
}

func (e *SourceDiscoveryError) Error() string {
	return fmt.Sprintf("jobsched: discovering jobs in %s: %v", e.Source, e.Err)
}

func (e *SourceDiscoveryError) Unwrap() error { return e.Err }

// JobExecutionError reports that a Job could not produce its records.
type JobExecutionError struct {
	Job string // Name of the failing job.
	Err error
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("jobsched: executing job %s: %v", e.Job, e.Err)
}

func (e *JobExecutionError) Unwrap() error { return e.Err }

// SinkOutputError reports that a Sink could not persist the grouped result.
type SinkOutputError struct {
	Sink string // Destination of the output, such as a file path.
	Err  error
}

func (e *SinkOutputError) Error() string {
	return fmt.Sprintf("jobsched: writing output to %s: %v", e.Sink, e.Err)
}

func (e *SinkOutputError) Unwrap() error { return e.Err }
