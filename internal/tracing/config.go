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

package tracing

import (
	"crypto/tls"
	"fmt"
)

// Protocol selects the span export transport.
type Protocol string

const (
	// ProtocolGRPC exports over OTLP gRPC (default).
	ProtocolGRPC Protocol = "grpc"
	// ProtocolHTTP exports over OTLP HTTP.
	ProtocolHTTP Protocol = "http"
	// ProtocolConsole pretty-prints spans to stdout for dry runs.
	ProtocolConsole Protocol = "console"
)

// Config holds export configuration for one run's trace.
type Config struct {
	// ServiceName identifies this exporter in traces.
	ServiceName string

	// ServiceVersion is the octotrace version.
	ServiceVersion string

	// Protocol is the export transport: grpc, http, or console.
	Protocol Protocol

	// Endpoint is the collector endpoint, e.g. "localhost:4317" for gRPC
	// or "api.honeycomb.io" for HTTP. Ignored by the console protocol.
	Endpoint string

	// Headers are sent with each export request (API keys and the like).
	Headers map[string]string

	// Insecure disables TLS. Development only.
	Insecure bool

	// TLSConfig provides custom TLS settings; nil means system defaults
	// with TLS 1.2+.
	TLSConfig *tls.Config

	// ArchivePath, when set, also records every exported span into a
	// local SQLite database at this path.
	ArchivePath string
}

// Validate checks the config before a provider is built from it.
func (c Config) Validate() error {
	switch c.Protocol {
	case ProtocolGRPC, ProtocolHTTP:
		if c.Endpoint == "" {
			return fmt.Errorf("tracing: %s export requires an endpoint", c.Protocol)
		}
	case ProtocolConsole:
	default:
		return fmt.Errorf("tracing: unknown protocol %q", c.Protocol)
	}
	if c.TLSConfig != nil && c.TLSConfig.MinVersion < tls.VersionTLS12 {
		return fmt.Errorf("tracing: minimum TLS version must be 1.2 or higher")
	}
	return nil
}
