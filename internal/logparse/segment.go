// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logparse

import "strings"

// StepDescriptor identifies one declared step of a job, in execution order.
type StepDescriptor struct {
	Name   string
	Number int
}

// GroupMarker is the token the Actions runner prints at the start of each
// step's log output. Every line containing it opens a new step segment.
const GroupMarker = "##[group]"

// ParseJobLogs partitions a job's full console log into per-step segments and
// scans each segment for parameter tags.
//
// Step indices are zero-based and assigned purely by marker encounter order;
// the declared step list is consumed only to decide whether segmentation is
// worth doing at all (an empty step list yields an empty result). Lines before
// the first marker belong to no step and are discarded. A marker line is part
// of the segment it opens. The final open segment is flushed when the log
// ends. A segment without any tags is still present in the result, with empty
// scope maps.
func ParseJobLogs(logText string, steps []StepDescriptor) map[int]ParsedStepLogs {
	result := make(map[int]ParsedStepLogs)
	if logText == "" || len(steps) == 0 {
		return result
	}

	stepIndex := -1
	var segment []string

	flush := func() {
		if stepIndex >= 0 && len(segment) > 0 {
			result[stepIndex] = ParseStepLogs(strings.Join(segment, "\n"))
		}
	}

	for _, line := range strings.Split(logText, "\n") {
		if strings.Contains(line, GroupMarker) {
			flush()
			stepIndex++
			segment = nil
		}
		if stepIndex >= 0 {
			segment = append(segment, line)
		}
	}
	flush()

	return result
}
