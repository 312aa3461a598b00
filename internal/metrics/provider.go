package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/looplj/quotahub/internal/log"
)

// Provider owns the meter provider and its shutdown.
type Provider struct {
	metric.MeterProvider

	shutdown func(context.Context) error
}

// NewProvider returns a no-op provider when metrics are disabled.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			MeterProvider: noop.NewMeterProvider(),
			shutdown:      func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	)

	log.Info(ctx, "metrics enabled",
		log.String("exporter", cfg.Exporter),
		log.String("endpoint", cfg.Endpoint),
		log.Duration("interval", cfg.Interval))

	return &Provider{MeterProvider: mp, shutdown: mp.Shutdown}, nil
}

// NewProviderWithReader is used by tests to collect metrics on demand.
func NewProviderWithReader(reader sdkmetric.Reader) *Provider {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return &Provider{MeterProvider: mp, shutdown: mp.Shutdown}
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

func newExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		return stdoutmetric.New()
	case "otlphttp", "otlp":
		var opts []otlpmetrichttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}

		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}

		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter: %s", cfg.Exporter)
	}
}
