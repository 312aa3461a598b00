package scheduler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/quota"
)

const meterName = "github.com/looplj/quotahub/internal/quota/scheduler"

type instruments struct {
	checks          metric.Int64Counter
	persistFailures metric.Int64Counter
	utilization     metric.Float64Gauge
}

func newInstruments(mp metric.MeterProvider) *instruments {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	meter := mp.Meter(meterName)
	ins := &instruments{}

	var err error

	ins.checks, err = meter.Int64Counter("quota.checks",
		metric.WithDescription("Number of quota checks by outcome."))
	if err != nil {
		log.Warn(context.Background(), "failed to create quota.checks counter", log.Cause(err))
		ins.checks = noop.Int64Counter{}
	}

	ins.persistFailures, err = meter.Int64Counter("quota.persist.failures",
		metric.WithDescription("Number of quota snapshot rows that failed to persist."))
	if err != nil {
		log.Warn(context.Background(), "failed to create quota.persist.failures counter", log.Cause(err))
		ins.persistFailures = noop.Int64Counter{}
	}

	ins.utilization, err = meter.Float64Gauge("quota.window.utilization",
		metric.WithDescription("Latest utilization percent of a quota window."),
		metric.WithUnit("%"))
	if err != nil {
		log.Warn(context.Background(), "failed to create quota.window.utilization gauge", log.Cause(err))
		ins.utilization = noop.Float64Gauge{}
	}

	return ins
}

func (ins *instruments) recordCheck(ctx context.Context, result *quota.CheckResult) {
	ins.checks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("checker_id", result.CheckerID),
		attribute.String("provider", result.Provider),
		attribute.Bool("success", result.Success),
	))
}

func (ins *instruments) recordWindow(ctx context.Context, snap *quota.Snapshot) {
	attrs := []attribute.KeyValue{
		attribute.String("checker_id", snap.CheckerID),
		attribute.String("provider", snap.Provider),
		attribute.String("window_type", string(snap.WindowType)),
	}
	if snap.GroupID != nil {
		attrs = append(attrs, attribute.String("group_id", *snap.GroupID))
	}

	ins.utilization.Record(ctx, snap.UtilizationPercent, metric.WithAttributes(attrs...))
}

func (ins *instruments) recordPersistFailure(ctx context.Context, snap *quota.Snapshot) {
	ins.persistFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("checker_id", snap.CheckerID),
		attribute.String("window_type", string(snap.WindowType)),
	))
}
