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

package archive

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

// emitSpans drives spans through a real tracer provider with the archive
// registered as a synchronous exporter.
func emitSpans(t *testing.T, a *Archive) trace.SpanContext {
	t.Helper()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(a))
	tracer := tp.Tracer("archive-test")

	ctx, root := tracer.Start(context.Background(), "workflow.run",
		trace.WithAttributes(attribute.String("ci.pipeline.name", "build")))
	_, child := tracer.Start(ctx, "job: build")
	child.End()
	root.End()

	require.NoError(t, tp.ForceFlush(context.Background()))
	return root.SpanContext()
}

func TestArchive_RecordsExportedSpans(t *testing.T) {
	a := openTestArchive(t)
	rootCtx := emitSpans(t, a)

	count, err := a.SpanCount(context.Background(), rootCtx.TraceID().String())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ids, err := a.TraceIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{rootCtx.TraceID().String()}, ids)
}

func TestArchive_SpanAttributes(t *testing.T) {
	a := openTestArchive(t)
	rootCtx := emitSpans(t, a)

	attrs, err := a.SpanAttributes(context.Background(),
		rootCtx.TraceID().String(), rootCtx.SpanID().String())
	require.NoError(t, err)
	assert.Equal(t, "build", attrs["ci.pipeline.name"])
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestExportSpans_SkipsAndLogsBadRows(t *testing.T) {
	var logs bytes.Buffer
	a, err := Open(":memory:", WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	// Closing the database makes every insert fail; the batch must still
	// succeed so one bad row never tears down the export pipeline.
	require.NoError(t, a.db.Close())

	spans := tracetest.SpanStubs{{Name: "job: build"}}.Snapshots()
	assert.NoError(t, a.ExportSpans(context.Background(), spans))
	assert.Contains(t, logs.String(), "failed to archive span")
	assert.Contains(t, logs.String(), "job: build")
}

func TestArchive_InMemory(t *testing.T) {
	a, err := Open(":memory:")
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	emitSpans(t, a)

	ids, err := a.TraceIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
