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

package gha

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-github/v84/github"
)

// ErrArtifactNotFound reports that a run has no artifact with the requested
// name, or that the artifact zip has no usable JSON entry. Callers treat it
// as "no data", not as a failure.
var ErrArtifactNotFound = errors.New("gha: artifact not found")

// maxArtifactBytes caps both the downloaded zip and the decompressed entry.
const maxArtifactBytes = 8 << 20

// FetchArtifactJSON locates a named artifact on a workflow run, downloads its
// zip archive, and returns the bytes of the JSON entry inside. The entry
// named <name>.json is preferred; otherwise the first *.json entry is used.
func (c *Client) FetchArtifactJSON(ctx context.Context, owner, repo string, runID int64, name string) ([]byte, error) {
	artifact, err := c.findArtifact(ctx, owner, repo, runID, name)
	if err != nil {
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	downloadURL, _, err := c.gh.Actions.DownloadArtifact(ctx, owner, repo, artifact.GetID(), maxRedirects)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact %q download URL: %w", name, err)
	}

	zipData, err := c.download(ctx, downloadURL.String(), maxArtifactBytes)
	if err != nil {
		return nil, fmt.Errorf("download artifact %q: %w", name, err)
	}

	return extractJSONEntry(zipData, name+".json")
}

// findArtifact pages through a run's artifacts looking for a non-expired one
// with the given name.
func (c *Client) findArtifact(ctx context.Context, owner, repo string, runID int64, name string) (*github.Artifact, error) {
	opts := &github.ListOptions{PerPage: listPageSize}
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		list, resp, err := c.gh.Actions.ListWorkflowRunArtifacts(ctx, owner, repo, runID, opts)
		if err != nil {
			return nil, fmt.Errorf("list artifacts for run %d: %w", runID, err)
		}
		for _, artifact := range list.Artifacts {
			if artifact.GetName() == name && !artifact.GetExpired() {
				return artifact, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, ErrArtifactNotFound
		}
		opts.Page = resp.NextPage
	}
}

// extractJSONEntry pulls one JSON file out of an artifact zip. Artifacts are
// always delivered zipped, even when they contain a single file.
func extractJSONEntry(zipData []byte, preferred string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("open artifact zip: %w", err)
	}

	var entry *zip.File
	for _, file := range reader.File {
		if file.Name == preferred {
			entry = file
			break
		}
		if entry == nil && strings.HasSuffix(file.Name, ".json") {
			entry = file
		}
	}
	if entry == nil {
		return nil, ErrArtifactNotFound
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open artifact entry %q: %w", entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxArtifactBytes))
	if err != nil {
		return nil, fmt.Errorf("read artifact entry %q: %w", entry.Name, err)
	}
	return data, nil
}
