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
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

const (
	// maxLogBytes caps how much of a job log is downloaded. Actions jobs
	// rarely exceed a few megabytes of console output.
	maxLogBytes = 16 << 20

	downloadTimeout = 30 * time.Second
)

var (
	// lineTimestampPattern matches the ISO-8601 timestamp the runner
	// prefixes to every log line, e.g. "2024-01-15T10:30:45.1234567Z ".
	lineTimestampPattern = regexp.MustCompile(`(?m)^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z ?`)

	// ansiPattern matches ANSI color escape sequences.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// FetchJobLogs downloads the full console log of one job and returns it with
// line timestamps and ANSI color codes stripped.
func (c *Client) FetchJobLogs(ctx context.Context, owner, repo string, jobID int64) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	logsURL, _, err := c.gh.Actions.GetWorkflowJobLogs(ctx, owner, repo, jobID, maxRedirects)
	if err != nil {
		return "", fmt.Errorf("resolve logs URL for job %d: %w", jobID, err)
	}

	raw, err := c.download(ctx, logsURL.String(), maxLogBytes)
	if err != nil {
		return "", fmt.Errorf("download logs for job %d: %w", jobID, err)
	}

	return cleanJobLogs(string(raw)), nil
}

// download fetches a signed URL with an unauthenticated client. The resolved
// log and artifact URLs carry their token in the query string and reject
// requests that also send an Authorization header.
func (c *Client) download(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := (&http.Client{Timeout: downloadTimeout}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// cleanJobLogs strips per-line timestamps and ANSI escapes so downstream
// parsing sees the text the step actually printed.
func cleanJobLogs(logs string) string {
	logs = lineTimestampPattern.ReplaceAllString(logs, "")
	return ansiPattern.ReplaceAllString(logs, "")
}
