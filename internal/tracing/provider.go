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
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/octotrace/internal/tracing/archive"
	"github.com/tombee/octotrace/internal/tracing/export"
)

// Provider owns the tracer provider, the configured exporter, and the
// optional local archive for one export run.
type Provider struct {
	tp      *sdktrace.TracerProvider
	archive *archive.Archive
}

// NewProvider builds a tracer provider from the export configuration.
// Extra tracer provider options (an in-memory exporter in tests, say) are
// appended after the configured ones.
func NewProvider(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Empty schema URL so merging with the default resource never conflicts.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	allOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	}

	provider := &Provider{}
	if cfg.ArchivePath != "" {
		provider.archive, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("open span archive: %w", err)
		}
		allOpts = append(allOpts, sdktrace.WithSyncer(provider.archive))
	}
	allOpts = append(allOpts, opts...)

	provider.tp = sdktrace.NewTracerProvider(allOpts...)
	otel.SetTracerProvider(provider.tp)

	return provider, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Protocol {
	case ProtocolHTTP:
		return export.NewHTTPExporter(ctx, export.OTLPConfig{
			Endpoint:  cfg.Endpoint,
			Insecure:  cfg.Insecure,
			TLSConfig: cfg.TLSConfig,
			Headers:   cfg.Headers,
		})
	case ProtocolConsole:
		return export.NewConsoleExporter(nil)
	default:
		return export.NewGRPCExporter(ctx, export.OTLPConfig{
			Endpoint:  cfg.Endpoint,
			Insecure:  cfg.Insecure,
			TLSConfig: cfg.TLSConfig,
			Headers:   cfg.Headers,
		})
	}
}

// Tracer returns the tracer all run spans are created from.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer("octotrace")
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes pending spans and releases the exporter and archive.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.tp.Shutdown(ctx)
	if p.archive != nil {
		if archiveErr := p.archive.Shutdown(ctx); err == nil {
			err = archiveErr
		}
	}
	return err
}
