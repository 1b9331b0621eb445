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

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger.Info("export complete", RunIDKey, int64(42))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "export complete", entry["msg"])
	assert.EqualValues(t, 42, entry[RunIDKey])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "warn", Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	assert.NotNil(t, New(nil))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestFromEnv_Debug(t *testing.T) {
	t.Setenv("OCTOTRACE_DEBUG", "1")
	t.Setenv("OCTOTRACE_LOG_LEVEL", "error")

	cfg := FromEnv()

	// Debug wins over the level variables.
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.AddSource)
}

func TestFromEnv_LevelPrecedence(t *testing.T) {
	t.Setenv("OCTOTRACE_DEBUG", "")
	t.Setenv("OCTOTRACE_LOG_LEVEL", "warn")
	t.Setenv("LOG_LEVEL", "error")

	cfg := FromEnv()

	assert.Equal(t, "warn", cfg.Level)
}

func TestFromEnv_Format(t *testing.T) {
	t.Setenv("LOG_FORMAT", "JSON")

	cfg := FromEnv()

	assert.Equal(t, FormatJSON, cfg.Format)
}

func TestWithContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithJobContext(WithRunContext(logger, "tombee/octotrace", 42), 100, "build").Info("m")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tombee/octotrace", entry[RepositoryKey])
	assert.EqualValues(t, 42, entry[RunIDKey])
	assert.EqualValues(t, 100, entry[JobIDKey])
	assert.Equal(t, "build", entry[JobKey])
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "[REDACTED]", SanitizeToken("abcd"))
	assert.Equal(t, "...6789", SanitizeToken("ghp_123456789"))
}
