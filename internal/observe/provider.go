package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry metrics provider.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "ezs2t-realtime".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string
}

// Provider is an initialized meter provider with its Prometheus bridge.
type Provider struct {
	mp *sdkmetric.MeterProvider
}

// InitProvider sets up a [sdkmetric.MeterProvider] with a Prometheus exporter
// and registers it as the global provider. Call Shutdown in a defer from main.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ezs2t-realtime"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	return &Provider{mp: mp}, nil
}

// Handler serves the Prometheus text exposition of all registered metrics.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and closes the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}
