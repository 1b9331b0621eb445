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

/*
Package tracing turns a completed GitHub Actions workflow run into one
OpenTelemetry trace and exports it.

The trace mirrors the run's structure: a root span for the workflow run, a
child span per job, and a child span per step, all carrying real start and
end timestamps from the API payloads. Spans are annotated with CI
semantic-convention attributes and with any user-supplied span parameters
resolved by the params package.

# Quick start

	provider, err := tracing.NewProvider(ctx, tracing.Config{
	    ServiceName: "octotrace",
	    Protocol:    tracing.ProtocolGRPC,
	    Endpoint:    "localhost:4317",
	})
	if err != nil { ... }
	defer provider.Shutdown(ctx)

	rootCtx, err := tracing.BuildRunTrace(ctx, provider.Tracer(), tracing.BuildInput{
	    Run:  run,
	    Jobs: jobs,
	    ...
	})

Because the run has already finished when the trace is built, every span is
started and ended with explicit timestamps; wall-clock time at export never
appears in the trace.
*/
package tracing
