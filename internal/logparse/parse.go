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

import "regexp"

// ParsedStepLogs holds the parameters extracted from one step's log text,
// separated by the span scope each parameter attaches to.
type ParsedStepLogs struct {
	// StepParameters attach to the step's own span.
	StepParameters map[string]string

	// JobParameters attach to the enclosing job span.
	JobParameters map[string]string

	// WorkflowParameters attach to the workflow root span.
	WorkflowParameters map[string]string
}

// Parameter tags are self-closing, attribute order fixed (key then value),
// values double-quoted. Anything that does not match exactly is ignored.
var (
	spanParamPattern     = regexp.MustCompile(`<span-parameter key="([^"]*)" value="([^"]*)"/>`)
	stepParamPattern     = regexp.MustCompile(`<step-parameter key="([^"]*)" value="([^"]*)"/>`)
	jobParamPattern      = regexp.MustCompile(`<job-parameter key="([^"]*)" value="([^"]*)"/>`)
	workflowParamPattern = regexp.MustCompile(`<workflow-parameter key="([^"]*)" value="([^"]*)"/>`)
)

// ParseStepLogs extracts all well-formed parameter tags from one block of log
// text and classifies them by scope. The text may span multiple lines and
// contain arbitrary unrelated output; malformed tag-like text is silently
// skipped. Within a scope a later occurrence of a key overwrites an earlier
// one. The legacy <span-parameter> shape is scanned before the explicit
// <step-parameter> shape, so the explicit shape wins a key collision.
func ParseStepLogs(text string) ParsedStepLogs {
	parsed := ParsedStepLogs{
		StepParameters:     map[string]string{},
		JobParameters:      map[string]string{},
		WorkflowParameters: map[string]string{},
	}

	collectParams(spanParamPattern, text, parsed.StepParameters)
	collectParams(stepParamPattern, text, parsed.StepParameters)
	collectParams(jobParamPattern, text, parsed.JobParameters)
	collectParams(workflowParamPattern, text, parsed.WorkflowParameters)

	return parsed
}

// collectParams applies one tag pattern globally and records every match into
// dst, last write wins.
func collectParams(pattern *regexp.Regexp, text string, dst map[string]string) {
	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		dst[match[1]] = match[2]
	}
}
