// Package tracing reports store activity through OpenTelemetry: one span per
// reduction and per action, plus counters and duration histograms.
package tracing

import (
	"context"
	"time"

	"github.com/on-the-ground/skadi_go/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/on-the-ground/skadi_go"

const (
	attrChange    = attribute.Key("skadi.change")
	attrAction    = attribute.Key("skadi.action")
	attrSignal    = attribute.Key("skadi.signal")
	attrDelivered = attribute.Key("skadi.signal.delivered")
	attrStatus    = attribute.Key("skadi.status")
)

// Observer implements store.Observer using OpenTelemetry.
type Observer struct {
	tracer trace.Tracer
	meter  metric.Meter

	reduceCounter  metric.Int64Counter
	reduceDuration metric.Float64Histogram
	actionCounter  metric.Int64Counter
	actionDuration metric.Float64Histogram
	signalCounter  metric.Int64Counter
}

// Option configures the Observer.
type Option func(*Observer)

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Observer) {
		o.tracer = provider.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Observer) {
		o.meter = provider.Meter(instrumentationName)
	}
}

// New creates an observer on the global providers unless options say otherwise.
func New(opts ...Option) (*Observer, error) {
	o := &Observer{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}

	var err error

	o.reduceCounter, err = o.meter.Int64Counter(
		"skadi.reduce.count",
		metric.WithDescription("Number of changes reduced"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	o.reduceDuration, err = o.meter.Float64Histogram(
		"skadi.reduce.duration",
		metric.WithDescription("Reducer duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	o.actionCounter, err = o.meter.Int64Counter(
		"skadi.action.count",
		metric.WithDescription("Number of actions performed"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	o.actionDuration, err = o.meter.Float64Histogram(
		"skadi.action.duration",
		metric.WithDescription("Action handler duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	o.signalCounter, err = o.meter.Int64Counter(
		"skadi.signal.count",
		metric.WithDescription("Number of signals published"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, err
	}

	return o, nil
}

func (o *Observer) OnReduceStart(ctx context.Context, change string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "skadi.reduce: "+change,
		trace.WithAttributes(attrChange.String(change)),
	)
	return ctx
}

func (o *Observer) OnReduceComplete(ctx context.Context, change string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attrChange.String(change), attrStatus.String(status(err)))
	o.reduceCounter.Add(ctx, 1, attrs)
	o.reduceDuration.Record(ctx, milliseconds(duration), attrs)
	endSpan(ctx, err)
}

// OnActionStart starts the span the action handler runs under, so spans the
// handler creates from its context become children of it.
func (o *Observer) OnActionStart(ctx context.Context, action string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "skadi.action: "+action,
		trace.WithAttributes(attrAction.String(action)),
	)
	return ctx
}

func (o *Observer) OnActionComplete(ctx context.Context, action string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attrAction.String(action), attrStatus.String(status(err)))
	o.actionCounter.Add(ctx, 1, attrs)
	o.actionDuration.Record(ctx, milliseconds(duration), attrs)
	endSpan(ctx, err)
}

// OnSignal is called on the reduction loop after the reduce span has ended, so
// it is recorded as a metric only.
func (o *Observer) OnSignal(ctx context.Context, signal string, delivered int) {
	o.signalCounter.Add(ctx, 1, metric.WithAttributes(
		attrSignal.String(signal),
		attrDelivered.Bool(delivered > 0),
	))
}

func endSpan(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

var _ store.Observer = (*Observer)(nil)
