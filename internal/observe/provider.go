package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitProvider installs a global MeterProvider backed by the Prometheus
// exporter, which registers with the default Prometheus registry served by
// [Handler]. Call the returned shutdown function from main.
func InitProvider() (*sdkmetric.MeterProvider, func(context.Context) error, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}
