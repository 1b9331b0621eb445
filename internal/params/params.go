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

// Package params models user-supplied span parameters for a workflow run and
// reconciles the two places they can come from: tags scraped out of job logs,
// and a JSON bundle delivered as a run artifact or local file.
package params

// SpanParameters is one run's bundle of user-supplied span attributes,
// grouped by the scope they attach to. Step maps are keyed by step name.
//
// The JSON shape doubles as the artifact/local-file format:
//
//	{"workflow": {...}, "job": {...}, "steps": {"<stepName>": {...}}}
type SpanParameters struct {
	Workflow map[string]string            `json:"workflow"`
	Job      map[string]string            `json:"job"`
	Steps    map[string]map[string]string `json:"steps"`
}

// NewSpanParameters returns an empty, fully-initialized bundle.
func NewSpanParameters() *SpanParameters {
	return &SpanParameters{
		Workflow: map[string]string{},
		Job:      map[string]string{},
		Steps:    map[string]map[string]string{},
	}
}
