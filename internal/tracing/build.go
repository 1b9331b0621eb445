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
	"fmt"
	"sort"
	"time"

	"github.com/google/go-github/v84/github"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/octotrace/internal/logparse"
	"github.com/tombee/octotrace/internal/params"
)

// BuildInput carries everything needed to turn one finished run into spans.
type BuildInput struct {
	Owner string
	Repo  string

	// Run and Jobs come straight from the Actions API.
	Run  *github.WorkflowRun
	Jobs []*github.WorkflowJob

	// ArtifactParams is the artifact-origin parameter bundle; nil when the
	// run produced none.
	ArtifactParams *params.SpanParameters

	// LogParams maps job id to that job's per-step-index parsed log
	// parameters. Jobs whose logs could not be fetched are simply absent.
	LogParams map[int64]map[int]logparse.ParsedStepLogs

	// CorrelationID ties the spans of this export invocation together.
	CorrelationID string
}

// BuildRunTrace emits the span tree for one workflow run: a root span, a
// child per job, and a child per step, each with real timestamps and with
// the reconciled span parameters applied at the right scope. It returns the
// root span's context so callers can report the trace id.
func BuildRunTrace(ctx context.Context, tracer trace.Tracer, in BuildInput) (trace.SpanContext, error) {
	if in.Run == nil {
		return trace.SpanContext{}, fmt.Errorf("tracing: workflow run is required")
	}
	run := in.Run

	rootAttrs := []attribute.KeyValue{
		attribute.String(AttrProviderName, providerName),
		attribute.String(AttrRepository, in.Owner+"/"+in.Repo),
		attribute.String(AttrPipelineName, run.GetName()),
		attribute.Int64(AttrPipelineID, run.GetID()),
		attribute.Int(AttrPipelineNumber, run.GetRunNumber()),
		attribute.Int(AttrPipelineAttempt, run.GetRunAttempt()),
		attribute.String(AttrPipelineURL, run.GetHTMLURL()),
		attribute.String(AttrPipelineEvent, run.GetEvent()),
		attribute.String(AttrPipelineConclusion, run.GetConclusion()),
		attribute.String(AttrGitBranch, run.GetHeadBranch()),
		attribute.String(AttrGitSHA, run.GetHeadSHA()),
	}
	if in.CorrelationID != "" {
		rootAttrs = append(rootAttrs, attribute.String(AttrCorrelationID, in.CorrelationID))
	}

	ctx, root := tracer.Start(ctx, fmt.Sprintf("workflow.run: %s", run.GetName()),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(runStart(run)),
		trace.WithAttributes(rootAttrs...),
	)

	for _, job := range in.Jobs {
		logDerived := logDerivedParams(job, in.LogParams[job.GetID()])
		merged := params.Merge(in.ArtifactParams, logDerived)

		// Workflow-scope parameters accumulate onto the root span; a
		// later job's value for the same key overwrites an earlier one.
		root.SetAttributes(stringAttrs(merged.Workflow)...)

		buildJobSpans(ctx, tracer, job, merged, in.CorrelationID)
	}

	setConclusionStatus(root, run.GetConclusion())
	root.End(trace.WithTimestamp(run.GetUpdatedAt().Time))

	return root.SpanContext(), nil
}

// buildJobSpans emits one job span and its step spans.
func buildJobSpans(ctx context.Context, tracer trace.Tracer, job *github.WorkflowJob, merged *params.SpanParameters, correlationID string) {
	jobAttrs := []attribute.KeyValue{
		attribute.Int64(AttrJobID, job.GetID()),
		attribute.String(AttrJobName, job.GetName()),
		attribute.String(AttrJobURL, job.GetHTMLURL()),
		attribute.String(AttrJobConclusion, job.GetConclusion()),
		attribute.String(AttrJobRunner, job.GetRunnerName()),
	}
	if correlationID != "" {
		jobAttrs = append(jobAttrs, attribute.String(AttrCorrelationID, correlationID))
	}
	jobAttrs = append(jobAttrs, stringAttrs(merged.Job)...)

	jobStart := job.GetStartedAt().Time
	ctx, jobSpan := tracer.Start(ctx, fmt.Sprintf("job: %s", job.GetName()),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(jobStart),
		trace.WithAttributes(jobAttrs...),
	)

	for _, step := range job.Steps {
		stepAttrs := []attribute.KeyValue{
			attribute.String(AttrStepName, step.GetName()),
			attribute.Int64(AttrStepNumber, step.GetNumber()),
			attribute.String(AttrStepConclusion, step.GetConclusion()),
		}
		stepAttrs = append(stepAttrs, stringAttrs(merged.Steps[step.GetName()])...)

		// Skipped steps report no timestamps; fall back to the job's.
		stepStart := step.GetStartedAt().Time
		if stepStart.IsZero() {
			stepStart = jobStart
		}
		stepEnd := step.GetCompletedAt().Time
		if stepEnd.IsZero() {
			stepEnd = stepStart
		}

		_, stepSpan := tracer.Start(ctx, fmt.Sprintf("step: %s", step.GetName()),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithTimestamp(stepStart),
			trace.WithAttributes(stepAttrs...),
		)
		setConclusionStatus(stepSpan, step.GetConclusion())
		stepSpan.End(trace.WithTimestamp(stepEnd))
	}

	setConclusionStatus(jobSpan, job.GetConclusion())
	jobSpan.End(trace.WithTimestamp(job.GetCompletedAt().Time))
}

// logDerivedParams reshapes a job's per-step-index scan results into the
// bundle form the merger consumes. Step indices resolve to step names through
// the job's declared step list; an index past the declared steps has no span
// to land on and only contributes its job/workflow-scope parameters.
func logDerivedParams(job *github.WorkflowJob, stepLogs map[int]logparse.ParsedStepLogs) *params.SpanParameters {
	if len(stepLogs) == 0 {
		return nil
	}

	indices := make([]int, 0, len(stepLogs))
	for idx := range stepLogs {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	bundle := params.NewSpanParameters()
	for _, idx := range indices {
		parsed := stepLogs[idx]
		for k, v := range parsed.WorkflowParameters {
			bundle.Workflow[k] = v
		}
		for k, v := range parsed.JobParameters {
			bundle.Job[k] = v
		}
		if len(parsed.StepParameters) == 0 {
			continue
		}
		if idx >= len(job.Steps) {
			continue
		}
		name := job.Steps[idx].GetName()
		if bundle.Steps[name] == nil {
			bundle.Steps[name] = map[string]string{}
		}
		for k, v := range parsed.StepParameters {
			bundle.Steps[name][k] = v
		}
	}
	return bundle
}

// StepDescriptors converts a job's declared steps into the segmenter's input.
func StepDescriptors(job *github.WorkflowJob) []logparse.StepDescriptor {
	descriptors := make([]logparse.StepDescriptor, 0, len(job.Steps))
	for _, step := range job.Steps {
		descriptors = append(descriptors, logparse.StepDescriptor{
			Name:   step.GetName(),
			Number: int(step.GetNumber()),
		})
	}
	return descriptors
}

func stringAttrs(kv map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(kv))
	for k, v := range kv {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// runStart picks the best available start time for the root span.
func runStart(run *github.WorkflowRun) time.Time {
	if start := run.GetRunStartedAt().Time; !start.IsZero() {
		return start
	}
	return run.GetCreatedAt().Time
}

func setConclusionStatus(span trace.Span, conclusion string) {
	switch conclusion {
	case "success":
		span.SetStatus(codes.Ok, "")
	case "failure", "timed_out", "startup_failure":
		span.SetStatus(codes.Error, conclusion)
	}
}
