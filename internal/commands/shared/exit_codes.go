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

package shared

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for octotrace commands
const (
	ExitSuccess       = 0
	ExitExportFailed  = 1
	ExitInvalidConfig = 2
	ExitFetchFailed   = 3
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExportError creates an error for span export failures
func NewExportError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitExportFailed, Message: msg, Cause: cause}
}

// NewConfigError creates an error for invalid configuration
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidConfig, Message: msg, Cause: cause}
}

// NewFetchError creates an error for GitHub API retrieval failures
func NewFetchError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitFetchFailed, Message: msg, Cause: cause}
}

// HandleExitError prints err and exits with its carried code, defaulting to
// ExitExportFailed for plain errors. A nil err exits zero.
func HandleExitError(err error) {
	if err == nil {
		os.Exit(ExitSuccess)
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(ExitExportFailed)
}
