package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records job and pipeline-run instruments through an OTel
// meter exported on the default Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
	leadsFound    otelmetric.Int64Counter
}

// New builds the meter. A nil-safe empty value is returned with the error
// when the exporter cannot be created, so recording calls stay harmless.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	o := &Observability{meterProvider: provider, meter: meter}

	o.jobCounter, _ = meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	o.jobDuration, _ = meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	o.runCounter, _ = meter.Int64Counter(
		"pipeline.run.outcomes",
		otelmetric.WithDescription("Pipeline runs by outcome"),
	)
	o.runDuration, _ = meter.Float64Histogram(
		"pipeline.run.duration",
		otelmetric.WithDescription("End to end pipeline run duration"),
		otelmetric.WithUnit("ms"),
	)
	o.leadsFound, _ = meter.Int64Counter(
		"pipeline.leads",
		otelmetric.WithDescription("Leads returned by lead search"),
	)

	return o, nil
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

// RecordRun records one finished pipeline run.
func (o *Observability) RecordRun(ctx context.Context, outcome string, duration time.Duration, leads int) {
	if o == nil || o.runCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	o.runCounter.Add(ctx, 1, attrs)
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.leadsFound != nil && leads > 0 {
		o.leadsFound.Add(ctx, int64(leads), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
