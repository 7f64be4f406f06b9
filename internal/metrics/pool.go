package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// PoolGauges is a point-in-time view of the tenant pool registry.
type PoolGauges struct {
	Live     int
	InFlight int
	Draining int
}

// PoolObserver reports registry gauges on each collection.
type PoolObserver interface {
	Gauges() PoolGauges
}

// RegisterPoolGauges exports live pools, outstanding handles and draining pools as
// observable gauges read from observer at scrape time.
func RegisterPoolGauges(meterProvider metric.MeterProvider, namespace string, observer PoolObserver) error {
	meter := meterProvider.Meter(namespace)

	live, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_tenant_pools", namespace),
		metric.WithDescription("Live tenant pools in the registry"),
		metric.WithUnit("{pool}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create pool gauge: %w", err)
	}

	inFlight, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_tenant_pool_handles", namespace),
		metric.WithDescription("Outstanding tenant pool handles"),
		metric.WithUnit("{handle}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create handle gauge: %w", err)
	}

	draining, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_tenant_pools_draining", namespace),
		metric.WithDescription("Unhealthy tenant pools waiting for their last release"),
		metric.WithUnit("{pool}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create draining gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		g := observer.Gauges()
		o.ObserveInt64(live, int64(g.Live))
		o.ObserveInt64(inFlight, int64(g.InFlight))
		o.ObserveInt64(draining, int64(g.Draining))
		return nil
	}, live, inFlight, draining)
	if err != nil {
		return fmt.Errorf("failed to register pool gauge callback: %w", err)
	}

	return nil
}
