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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifactBundle() *SpanParameters {
	return &SpanParameters{
		Workflow: map[string]string{"release": "v2", "owner": "platform"},
		Job:      map[string]string{"runner": "self-hosted"},
		Steps: map[string]map[string]string{
			"build": {"cache": "warm"},
			"only-artifact": {"k": "a"},
		},
	}
}

func logBundle() *SpanParameters {
	return &SpanParameters{
		Workflow: map[string]string{"release": "v1", "branch": "main"},
		Job:      map[string]string{"runner": "ubuntu", "os": "linux"},
		Steps: map[string]map[string]string{
			"build":    {"cache": "cold", "duration": "12s"},
			"only-log": {"k": "l"},
		},
	}
}

func TestMerge_BothNil(t *testing.T) {
	merged := Merge(nil, nil)

	require.NotNil(t, merged)
	assert.Empty(t, merged.Workflow)
	assert.Empty(t, merged.Job)
	assert.Empty(t, merged.Steps)
}

func TestMerge_IdentityWhenOneSideNil(t *testing.T) {
	assert.Equal(t, logBundle(), Merge(nil, logBundle()))
	assert.Equal(t, artifactBundle(), Merge(artifactBundle(), nil))
}

func TestMerge_ArtifactWinsKeyCollisions(t *testing.T) {
	merged := Merge(artifactBundle(), logBundle())

	// Collisions resolve to the artifact value; disjoint keys survive.
	assert.Equal(t, map[string]string{
		"release": "v2",
		"owner":   "platform",
		"branch":  "main",
	}, merged.Workflow)
	assert.Equal(t, map[string]string{
		"runner": "self-hosted",
		"os":     "linux",
	}, merged.Job)
}

func TestMerge_StepsMergedPerIdentifier(t *testing.T) {
	merged := Merge(artifactBundle(), logBundle())

	require.Len(t, merged.Steps, 3)
	assert.Equal(t, map[string]string{"cache": "warm", "duration": "12s"}, merged.Steps["build"])
	assert.Equal(t, map[string]string{"k": "a"}, merged.Steps["only-artifact"])
	assert.Equal(t, map[string]string{"k": "l"}, merged.Steps["only-log"])
}

func TestMerge_Idempotent(t *testing.T) {
	merged := Merge(artifactBundle(), logBundle())

	assert.Equal(t, merged, Merge(merged, nil))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	artifact := artifactBundle()
	logDerived := logBundle()

	Merge(artifact, logDerived)

	assert.Equal(t, artifactBundle(), artifact)
	assert.Equal(t, logBundle(), logDerived)
}

func TestMerge_NilScopeMapsTreatedAsEmpty(t *testing.T) {
	merged := Merge(&SpanParameters{}, &SpanParameters{
		Steps: map[string]map[string]string{"s": nil},
	})

	require.NotNil(t, merged)
	assert.Empty(t, merged.Workflow)
	assert.Empty(t, merged.Steps["s"])
}
