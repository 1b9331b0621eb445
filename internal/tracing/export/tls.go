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

package export

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSInput describes the TLS-related settings a user can supply for the
// collector connection.
type TLSInput struct {
	// ServerName overrides the expected certificate server name (SNI).
	ServerName string

	// CACertPath points at a PEM file with a custom CA for server
	// verification. Empty means the system cert pool.
	CACertPath string

	// SkipVerify disables certificate verification. Development only.
	SkipVerify bool
}

// BuildTLSConfig turns user-facing TLS settings into a *tls.Config with a
// TLS 1.2 floor. Returns nil when the input is all defaults, letting the
// exporter fall back to its own system-pool config.
func BuildTLSConfig(input TLSInput) (*tls.Config, error) {
	if input.ServerName == "" && input.CACertPath == "" && !input.SkipVerify {
		return nil, nil
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         input.ServerName,
		InsecureSkipVerify: input.SkipVerify,
	}

	if input.CACertPath != "" {
		pem, err := os.ReadFile(input.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse CA certificate %q", input.CACertPath)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// ValidateTLSConfig rejects TLS configurations below the TLS 1.2 floor.
func ValidateTLSConfig(cfg *tls.Config) error {
	if cfg == nil {
		return fmt.Errorf("TLS config is nil")
	}
	if cfg.MinVersion < tls.VersionTLS12 {
		return fmt.Errorf("minimum TLS version must be 1.2 or higher, got %d", cfg.MinVersion)
	}
	return nil
}
