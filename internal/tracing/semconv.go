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

// CI attribute keys applied to every exported span. These follow the
// ci.* naming used by CI observability tooling.
const (
	// AttrPipelineName is the workflow name.
	AttrPipelineName = "ci.pipeline.name"
	// AttrPipelineID is the workflow run id.
	AttrPipelineID = "ci.pipeline.run.id"
	// AttrPipelineNumber is the run number within the workflow.
	AttrPipelineNumber = "ci.pipeline.run.number"
	// AttrPipelineAttempt is the retry attempt of the run.
	AttrPipelineAttempt = "ci.pipeline.run.attempt"
	// AttrPipelineURL is the run's HTML URL.
	AttrPipelineURL = "ci.pipeline.run.url"
	// AttrPipelineEvent is the event that triggered the run.
	AttrPipelineEvent = "ci.pipeline.event"
	// AttrPipelineConclusion is the run's final conclusion.
	AttrPipelineConclusion = "ci.pipeline.conclusion"
	// AttrJobID is the numeric job id.
	AttrJobID = "ci.job.id"
	// AttrJobName is the job name.
	AttrJobName = "ci.job.name"
	// AttrJobURL is the job's HTML URL.
	AttrJobURL = "ci.job.url"
	// AttrJobConclusion is the job's final conclusion.
	AttrJobConclusion = "ci.job.conclusion"
	// AttrJobRunner is the runner name that executed the job.
	AttrJobRunner = "ci.job.runner"
	// AttrStepName is the step name.
	AttrStepName = "ci.step.name"
	// AttrStepNumber is the step's declared number within the job.
	AttrStepNumber = "ci.step.number"
	// AttrStepConclusion is the step's final conclusion.
	AttrStepConclusion = "ci.step.conclusion"
	// AttrProviderName identifies the hosting platform.
	AttrProviderName = "ci.provider.name"
	// AttrGitBranch is the head branch of the run.
	AttrGitBranch = "ci.git.branch"
	// AttrGitSHA is the head commit of the run.
	AttrGitSHA = "ci.git.sha"
	// AttrRepository is the owner/repo slug.
	AttrRepository = "ci.repository"
	// AttrCorrelationID ties every span of one export invocation together.
	AttrCorrelationID = "octotrace.correlation_id"
)

// providerName is the value of AttrProviderName for all spans this tool emits.
const providerName = "github"
