// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/telekom/rbac-lookup/internal/config"
)

const (
	ServiceName = "rbac-lookup"
	TracerName  = "github.com/telekom/rbac-lookup"

	flushTimeout = 5 * time.Second
)

// Mode is the way rbac-lookup was started.
type Mode string

const (
	ModeCLI    Mode = "cli"
	ModeServer Mode = "server"
)

// Span attribute keys.
const (
	AttrMode         = attribute.Key("rbac_lookup.mode")
	AttrQuery        = attribute.Key("rbac_lookup.query")
	AttrSubjectKind  = attribute.Key("rbac_lookup.subject_kind")
	AttrNamespace    = attribute.Key("rbac_lookup.namespace")
	AttrResourceType = attribute.Key("rbac_lookup.resource_type")
	AttrBindingCount = attribute.Key("rbac_lookup.binding_count")
	AttrSubjectCount = attribute.Key("rbac_lookup.subject_count")
	AttrProject      = attribute.Key("rbac_lookup.gcp_project")
	AttrOutput       = attribute.Key("rbac_lookup.output")
)

// Config selects whether and where spans are exported.
type Config struct {
	Enabled      bool
	Endpoint     string
	SamplingRate float64
	Insecure     bool
	Mode         Mode
}

// WithEnv returns c with an empty Endpoint taken from
// OTEL_EXPORTER_OTLP_ENDPOINT.
func (c Config) WithEnv(env config.Env) Config {
	if c.Endpoint == "" {
		c.Endpoint = env.TracingEndpoint
	}
	return c
}

func (c Config) validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("tracing endpoint must be set when tracing is enabled, use --tracing-endpoint or OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("sampling rate must be between 0.0 and 1.0, got %v", c.SamplingRate))
	}
	if c.Mode != ModeCLI && c.Mode != ModeServer {
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	return errors.Join(errs...)
}

// Provider hands out the tracer lookups use. A disabled Provider returns a
// no-op tracer.
type Provider struct {
	tracer trace.Tracer
	sdk    *sdktrace.TracerProvider
}

// Tracer returns the tracer for lookup spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes pending spans. It ignores ctx cancellation because it
// usually runs after the command context is already done.
func (p *Provider) Shutdown(_ context.Context) error {
	if p.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	return p.sdk.Shutdown(ctx)
}

// Setup builds the Provider for cfg. Enabled providers export over OTLP/gRPC
// and are installed as the global tracer provider.
func Setup(ctx context.Context, cfg Config, version string) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: Noop()}, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg.Mode, version)),
		sdktrace.WithSampler(newSampler(cfg.SamplingRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)

	return &Provider{
		tracer: tp.Tracer(TracerName, trace.WithInstrumentationVersion(version)),
		sdk:    tp,
	}, nil
}

func newResource(mode Mode, version string) *resource.Resource {
	return resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
		AttrMode.String(string(mode)),
	)
}

// newSampler honours the caller's sampling decision and samples new traces
// at rate.
func newSampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

var propagator = propagation.TraceContext{}

// Extract returns ctx carrying the remote span context of an incoming
// request, if it has a traceparent header.
func Extract(ctx context.Context, header http.Header) context.Context {
	return propagator.Extract(ctx, propagation.HeaderCarrier(header))
}

// Noop returns a tracer that records nothing.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer(TracerName)
}
