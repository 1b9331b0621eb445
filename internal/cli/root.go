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

// Package cli assembles the octotrace command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tombee/octotrace/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for octotrace
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "octotrace",
		Short: "octotrace - export GitHub Actions runs as OpenTelemetry traces",
		Long: `octotrace turns a completed GitHub Actions workflow run into an
OpenTelemetry trace: one span per workflow, job, and step, enriched with
span parameters your pipeline printed into its logs or saved as a run
artifact.

Run 'octotrace export --repository owner/repo --run-id N' to export a run.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	registerGlobalFlags(cmd.PersistentFlags())

	return cmd
}

// registerGlobalFlags binds the persistent flags every command shares.
func registerGlobalFlags(fs *pflag.FlagSet) {
	verbose, quiet, json, config := shared.RegisterFlagPointers()

	fs.BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	fs.BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	fs.BoolVar(json, "json", false, "Output in JSON format")
	fs.StringVar(config, "config", "", "Path to config file (default: ~/.config/octotrace/config.yaml)")
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
