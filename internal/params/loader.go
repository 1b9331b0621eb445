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
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tombee/octotrace/internal/gha"
)

const (
	// DefaultFileName is the working-directory file checked before any
	// artifact lookup.
	DefaultFileName = "span-parameters.json"

	// DefaultArtifactName is the run artifact searched when no local file
	// exists.
	DefaultArtifactName = "span-parameters"
)

// ArtifactFetcher downloads a named JSON artifact for a workflow run.
// *gha.Client satisfies it.
type ArtifactFetcher interface {
	FetchArtifactJSON(ctx context.Context, owner, repo string, runID int64, name string) ([]byte, error)
}

// LoadOptions configures LoadArtifactParameters.
type LoadOptions struct {
	// Dir is the directory searched for the local file. Empty means the
	// current working directory.
	Dir string

	// FileName overrides DefaultFileName.
	FileName string

	// ArtifactName overrides DefaultArtifactName.
	ArtifactName string

	// Fetcher, with Owner/Repo/RunID, enables the artifact fallback.
	// A nil Fetcher limits the lookup to the local file.
	Fetcher ArtifactFetcher
	Owner   string
	Repo    string
	RunID   int64

	Logger *slog.Logger
}

// LoadArtifactParameters resolves the artifact-origin parameter bundle:
// a local working-directory file first, then a run artifact by name. Every
// not-found condition, and every other failure, degrades to nil — a missing
// or broken bundle must never fail the export. Failures other than not-found
// are logged as warnings.
func LoadArtifactParameters(ctx context.Context, opts LoadOptions) *SpanParameters {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fileName := opts.FileName
	if fileName == "" {
		fileName = DefaultFileName
	}
	artifactName := opts.ArtifactName
	if artifactName == "" {
		artifactName = DefaultArtifactName
	}

	if bundle := loadLocalFile(logger, filepath.Join(opts.Dir, fileName)); bundle != nil {
		return bundle
	}

	if opts.Fetcher == nil {
		return nil
	}

	data, err := opts.Fetcher.FetchArtifactJSON(ctx, opts.Owner, opts.Repo, opts.RunID, artifactName)
	if err != nil {
		if !errors.Is(err, gha.ErrArtifactNotFound) {
			logger.Warn("failed to fetch span parameters artifact",
				"artifact", artifactName, "run_id", opts.RunID, "error", err)
		}
		return nil
	}

	return decodeBundle(logger, artifactName, data)
}

// loadLocalFile reads a parameter bundle from disk, returning nil when the
// file is absent or unusable.
func loadLocalFile(logger *slog.Logger, path string) *SpanParameters {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to read span parameters file", "path", path, "error", err)
		}
		return nil
	}
	return decodeBundle(logger, path, data)
}

// decodeBundle parses the JSON bundle shape. Malformed data is a warning,
// never an error.
func decodeBundle(logger *slog.Logger, source string, data []byte) *SpanParameters {
	var bundle SpanParameters
	if err := json.Unmarshal(data, &bundle); err != nil {
		logger.Warn("malformed span parameters bundle", "source", source, "error", err)
		return nil
	}
	bundle.normalize()
	return &bundle
}

// normalize replaces nil scope maps so callers can index freely.
func (p *SpanParameters) normalize() {
	if p.Workflow == nil {
		p.Workflow = map[string]string{}
	}
	if p.Job == nil {
		p.Job = map[string]string{}
	}
	if p.Steps == nil {
		p.Steps = map[string]map[string]string{}
	}
	for step, kv := range p.Steps {
		if kv == nil {
			p.Steps[step] = map[string]string{}
		}
	}
}
