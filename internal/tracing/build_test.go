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

package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-github/v84/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/octotrace/internal/logparse"
	"github.com/tombee/octotrace/internal/params"
)

var (
	runStarted  = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	runFinished = runStarted.Add(5 * time.Minute)
)

func fixtureRun() *github.WorkflowRun {
	return &github.WorkflowRun{
		ID:           github.Ptr(int64(42)),
		Name:         github.Ptr("CI"),
		RunNumber:    github.Ptr(7),
		RunAttempt:   github.Ptr(1),
		Event:        github.Ptr("push"),
		Conclusion:   github.Ptr("success"),
		HeadBranch:   github.Ptr("main"),
		HeadSHA:      github.Ptr("abc123"),
		HTMLURL:      github.Ptr("https://github.com/tombee/octotrace/actions/runs/42"),
		RunStartedAt: &github.Timestamp{Time: runStarted},
		UpdatedAt:    &github.Timestamp{Time: runFinished},
	}
}

func fixtureJob() *github.WorkflowJob {
	return &github.WorkflowJob{
		ID:          github.Ptr(int64(100)),
		Name:        github.Ptr("build"),
		Conclusion:  github.Ptr("success"),
		RunnerName:  github.Ptr("ubuntu-22"),
		StartedAt:   &github.Timestamp{Time: runStarted.Add(10 * time.Second)},
		CompletedAt: &github.Timestamp{Time: runFinished},
		Steps: []*github.TaskStep{
			{
				Name:        github.Ptr("Set up job"),
				Number:      github.Ptr(int64(1)),
				Conclusion:  github.Ptr("success"),
				StartedAt:   &github.Timestamp{Time: runStarted.Add(10 * time.Second)},
				CompletedAt: &github.Timestamp{Time: runStarted.Add(20 * time.Second)},
			},
			{
				Name:        github.Ptr("Run build"),
				Number:      github.Ptr(int64(2)),
				Conclusion:  github.Ptr("failure"),
				StartedAt:   &github.Timestamp{Time: runStarted.Add(20 * time.Second)},
				CompletedAt: &github.Timestamp{Time: runFinished},
			},
		},
	}
}

// buildFixture runs BuildRunTrace against an in-memory exporter and returns
// the finished spans indexed by name.
func buildFixture(t *testing.T, in BuildInput) map[string]tracetest.SpanStub {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	_, err := BuildRunTrace(context.Background(), tp.Tracer("test"), in)
	require.NoError(t, err)

	spans := map[string]tracetest.SpanStub{}
	for _, stub := range exporter.GetSpans() {
		spans[stub.Name] = stub
	}
	return spans
}

func attrValue(t *testing.T, stub tracetest.SpanStub, key string) string {
	t.Helper()
	for _, kv := range stub.Attributes {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	t.Fatalf("span %q has no attribute %q", stub.Name, key)
	return ""
}

func TestBuildRunTrace_SpanTree(t *testing.T) {
	spans := buildFixture(t, BuildInput{
		Owner: "tombee",
		Repo:  "octotrace",
		Run:   fixtureRun(),
		Jobs:  []*github.WorkflowJob{fixtureJob()},
	})

	require.Len(t, spans, 4)
	root := spans["workflow.run: CI"]
	job := spans["job: build"]
	step := spans["step: Run build"]

	assert.False(t, root.Parent.IsValid())
	assert.Equal(t, root.SpanContext.SpanID(), job.Parent.SpanID())
	assert.Equal(t, job.SpanContext.SpanID(), step.Parent.SpanID())

	assert.Equal(t, runStarted, root.StartTime)
	assert.Equal(t, runFinished, root.EndTime)
	assert.Equal(t, "github", attrValue(t, root, AttrProviderName))
	assert.Equal(t, "tombee/octotrace", attrValue(t, root, AttrRepository))
	assert.Equal(t, "ubuntu-22", attrValue(t, job, AttrJobRunner))
	assert.Equal(t, "2", attrValue(t, step, AttrStepNumber))
}

func TestBuildRunTrace_ConclusionStatus(t *testing.T) {
	spans := buildFixture(t, BuildInput{
		Run:  fixtureRun(),
		Jobs: []*github.WorkflowJob{fixtureJob()},
	})

	assert.Equal(t, codes.Ok, spans["workflow.run: CI"].Status.Code)
	assert.Equal(t, codes.Error, spans["step: Run build"].Status.Code)
	assert.Equal(t, "failure", spans["step: Run build"].Status.Description)
}

func TestBuildRunTrace_AppliesMergedParameters(t *testing.T) {
	artifact := &params.SpanParameters{
		Workflow: map[string]string{"release": "v2"},
		Steps: map[string]map[string]string{
			"Run build": {"cache": "warm"},
		},
	}
	logParams := map[int64]map[int]logparse.ParsedStepLogs{
		100: {
			0: {
				StepParameters:     map[string]string{"setup": "done"},
				JobParameters:      map[string]string{"os": "linux"},
				WorkflowParameters: map[string]string{"release": "v1", "branch": "main"},
			},
			1: {
				StepParameters:     map[string]string{"cache": "cold", "duration": "12s"},
				JobParameters:      map[string]string{},
				WorkflowParameters: map[string]string{},
			},
		},
	}

	spans := buildFixture(t, BuildInput{
		Owner:          "tombee",
		Repo:           "octotrace",
		Run:            fixtureRun(),
		Jobs:           []*github.WorkflowJob{fixtureJob()},
		ArtifactParams: artifact,
		LogParams:      logParams,
	})

	root := spans["workflow.run: CI"]
	job := spans["job: build"]
	setup := spans["step: Set up job"]
	build := spans["step: Run build"]

	// Artifact value wins the workflow-scope collision; disjoint keys survive.
	assert.Equal(t, "v2", attrValue(t, root, "release"))
	assert.Equal(t, "main", attrValue(t, root, "branch"))

	// Job-scope parameters scraped from step logs land on the job span.
	assert.Equal(t, "linux", attrValue(t, job, "os"))

	// Step index 0 resolves to the first declared step.
	assert.Equal(t, "done", attrValue(t, setup, "setup"))

	// Artifact wins per-step collisions, log-only keys survive.
	assert.Equal(t, "warm", attrValue(t, build, "cache"))
	assert.Equal(t, "12s", attrValue(t, build, "duration"))
}

func TestBuildRunTrace_NilRun(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	_, err := BuildRunTrace(context.Background(), tp.Tracer("test"), BuildInput{})

	assert.Error(t, err)
	assert.Empty(t, exporter.GetSpans())
}

func TestBuildRunTrace_CorrelationIDOnSpans(t *testing.T) {
	spans := buildFixture(t, BuildInput{
		Run:           fixtureRun(),
		Jobs:          []*github.WorkflowJob{fixtureJob()},
		CorrelationID: "corr-1",
	})

	assert.Equal(t, "corr-1", attrValue(t, spans["workflow.run: CI"], AttrCorrelationID))
	assert.Equal(t, "corr-1", attrValue(t, spans["job: build"], AttrCorrelationID))
}

func TestStepDescriptors(t *testing.T) {
	descriptors := StepDescriptors(fixtureJob())

	assert.Equal(t, []logparse.StepDescriptor{
		{Name: "Set up job", Number: 1},
		{Name: "Run build", Number: 2},
	}, descriptors)
}

func TestLogDerivedParams_IndexPastDeclaredSteps(t *testing.T) {
	job := fixtureJob()
	bundle := logDerivedParams(job, map[int]logparse.ParsedStepLogs{
		5: {
			StepParameters:     map[string]string{"lost": "step"},
			JobParameters:      map[string]string{"kept": "job"},
			WorkflowParameters: map[string]string{},
		},
	})

	require.NotNil(t, bundle)
	// No declared step to land on: step-scope parameters are dropped, but
	// job-scope ones still count.
	assert.Empty(t, bundle.Steps)
	assert.Equal(t, "job", bundle.Job["kept"])
}
