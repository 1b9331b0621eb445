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

package params

// Merge reconciles an artifact-origin bundle with a log-derived bundle into
// one authoritative set. Either or both inputs may be nil; a nil side is
// treated as empty. Per scope the result is the key-wise union of both sides,
// and where the same key exists in both the artifact-origin value wins. Step
// maps are merged per step name, independently of other steps.
//
// Merge never fails, never returns nil, and never mutates its arguments.
func Merge(artifact, logDerived *SpanParameters) *SpanParameters {
	merged := NewSpanParameters()

	// Log-derived values go in first so the artifact overlay wins collisions.
	for _, src := range []*SpanParameters{logDerived, artifact} {
		if src == nil {
			continue
		}
		copyInto(merged.Workflow, src.Workflow)
		copyInto(merged.Job, src.Job)
		for step, kv := range src.Steps {
			if merged.Steps[step] == nil {
				merged.Steps[step] = map[string]string{}
			}
			copyInto(merged.Steps[step], kv)
		}
	}

	return merged
}

func copyInto(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
