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

// Package config loads octotrace configuration from a YAML file with an
// environment-variable overlay. Precedence, lowest to highest: built-in
// defaults, config file, environment, command-line flags (applied by the
// command layer).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete octotrace configuration.
type Config struct {
	GitHub GitHubConfig `yaml:"github"`
	Export ExportConfig `yaml:"export"`
	Params ParamsConfig `yaml:"params"`
	Log    LogConfig    `yaml:"log"`
}

// GitHubConfig identifies the run to export and how to reach the API.
type GitHubConfig struct {
	// Token authenticates API calls. Environment: GITHUB_TOKEN.
	Token string `yaml:"token,omitempty"`

	// BaseURL points at a GitHub Enterprise API root. Empty means
	// github.com. Environment: GITHUB_API_URL.
	BaseURL string `yaml:"base_url,omitempty"`

	// Owner and Repo name the repository. Environment: GITHUB_REPOSITORY
	// as "owner/repo".
	Owner string `yaml:"owner,omitempty"`
	Repo  string `yaml:"repo,omitempty"`

	// RunID is the workflow run to export. Environment: GITHUB_RUN_ID.
	RunID int64 `yaml:"run_id,omitempty"`
}

// ExportConfig configures the OTLP export destination.
type ExportConfig struct {
	// Endpoint is the collector endpoint.
	// Environment: OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Protocol is grpc, http, or console.
	// Environment: OTEL_EXPORTER_OTLP_PROTOCOL.
	Protocol string `yaml:"protocol,omitempty"`

	// Insecure disables TLS on the collector connection.
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are sent with each export request.
	// Environment: OTEL_EXPORTER_OTLP_HEADERS as "k=v,k2=v2".
	Headers map[string]string `yaml:"headers,omitempty"`

	// ServiceName overrides the service.name resource attribute.
	// Environment: OTEL_SERVICE_NAME.
	ServiceName string `yaml:"service_name,omitempty"`

	// ArchivePath enables the local SQLite span archive.
	ArchivePath string `yaml:"archive,omitempty"`
}

// ParamsConfig configures the span parameter bundle lookup.
type ParamsConfig struct {
	// ArtifactName is the run artifact searched for a parameter bundle.
	ArtifactName string `yaml:"artifact_name,omitempty"`

	// LocalFile is the working-directory bundle file name.
	LocalFile string `yaml:"local_file,omitempty"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Protocol:    "grpc",
			ServiceName: "octotrace",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "octotrace", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "octotrace", "config.yaml")
}

// Load reads the config file at path (or the default location when path is
// empty), overlays the environment, and validates the result. A missing file
// is not an error; the defaults plus environment still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No config file is fine.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("GITHUB_API_URL"); v != "" {
		c.GitHub.BaseURL = v
	}
	if v := os.Getenv("GITHUB_REPOSITORY"); v != "" {
		if owner, repo, ok := SplitRepository(v); ok {
			c.GitHub.Owner = owner
			c.GitHub.Repo = repo
		}
	}
	if v := os.Getenv("GITHUB_RUN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.GitHub.RunID = id
		}
	}

	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Export.Endpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); v != "" {
		c.Export.Protocol = normalizeProtocol(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		headers := ParseHeaders(v)
		if len(headers) > 0 {
			c.Export.Headers = headers
		}
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Export.ServiceName = v
	}
}

// Validate checks the configuration for contradictions a later stage would
// trip over.
func (c *Config) Validate() error {
	switch c.Export.Protocol {
	case "grpc", "http", "console":
	default:
		return fmt.Errorf("%w: unknown export protocol %q", ErrInvalidConfig, c.Export.Protocol)
	}
	if (c.GitHub.Owner == "") != (c.GitHub.Repo == "") {
		return fmt.Errorf("%w: owner and repo must be set together", ErrInvalidConfig)
	}
	return nil
}

// SplitRepository parses an "owner/repo" slug.
func SplitRepository(slug string) (owner, repo string, ok bool) {
	owner, repo, found := strings.Cut(slug, "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}

// ParseHeaders parses the OTLP headers format "k=v,k2=v2". Entries without
// an "=" are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}

// normalizeProtocol maps OTEL_EXPORTER_OTLP_PROTOCOL values onto our
// protocol names ("http/protobuf" means the HTTP exporter).
func normalizeProtocol(v string) string {
	if strings.HasPrefix(strings.ToLower(v), "http") {
		return "http"
	}
	return strings.ToLower(v)
}
