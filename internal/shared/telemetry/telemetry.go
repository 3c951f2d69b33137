// Package telemetry installs the process-wide OpenTelemetry providers for
// syncd: scheduler, client and store metrics go to Prometheus, spans go to an
// OTLP collector when one is configured.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is host:port of the collector. Empty disables span export.
	OTLPEndpoint string
	OTLPInsecure bool
	// SampleRatio is the fraction of root spans kept, clamped to [0, 1].
	SampleRatio float64
	// Registerer receives the Prometheus collector; nil means the default
	// registry served by the ops /metrics route.
	Registerer promclient.Registerer
}

// Providers is what Init installed.
type Providers struct {
	Meter  *sdkmetric.MeterProvider
	Tracer *sdktrace.TracerProvider // nil without an OTLP endpoint
}

// Shutdown flushes and stops every installed provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

// Init installs the global meter and tracer providers and the W3C propagator.
func Init(ctx context.Context, cfg Config, log zerolog.Logger) (*Providers, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Providers{}

	p.Meter, err = newMeterProvider(res, cfg.Registerer)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(p.Meter)

	if cfg.OTLPEndpoint != "" {
		p.Tracer, err = newTracerProvider(ctx, res, cfg)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
		otel.SetTracerProvider(p.Tracer)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", cfg.ServiceName).
		Str("otlp_endpoint", cfg.OTLPEndpoint).
		Bool("tracing", p.Tracer != nil).
		Float64("sample_ratio", clampRatio(cfg.SampleRatio)).
		Msg("telemetry initialized")

	return p, nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	)
	// resource.Default carries its own schema URL
	return resource.Merge(resource.Default(), attrs)
}

func newMeterProvider(res *resource.Resource, reg promclient.Registerer) (*sdkmetric.MeterProvider, error) {
	var opts []prometheus.Option
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	), nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, cfg Config) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	), nil
}

// sampler honours the parent decision so a sync started from a traced
// request keeps its trace.
func sampler(ratio float64) sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(ratio)))
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
