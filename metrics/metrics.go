// Package metrics exports store activity as Prometheus metrics.
//
// Metrics collected:
//   - skadi_reductions_total: changes reduced, by change type and status
//   - skadi_reduction_duration_seconds: reducer latency by change type
//   - skadi_actions_total: actions performed, by action type and status
//   - skadi_action_duration_seconds: action handler latency by action type
//   - skadi_actions_in_flight: action handlers currently running
//   - skadi_signals_total: signals published, by signal type
//   - skadi_signals_dropped_total: signals published with no subscriber
//   - skadi_signal_deliveries_total: signal deliveries to subscribers
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	observer := metrics.New(metrics.WithRegistry(registry))
//	s := store.New(ctx, initial, reduce, handle, store.WithObserver(observer))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
package metrics

import (
	"context"
	"time"

	"github.com/on-the-ground/skadi_go/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config holds the naming and registration of the store metrics. Fields left
// unset by options keep the values from defaultConfig: the "skadi" namespace,
// prometheus.DefBuckets and the default registerer.
type Config struct {
	// Namespace and Subsystem prefix every metric name, so "skadi" yields
	// skadi_reductions_total.
	Namespace string
	Subsystem string

	// ConstLabels tell stores apart when several share a registry, e.g.
	// {"store": "movies"}.
	ConstLabels prometheus.Labels

	// Buckets, in seconds, apply to both reducer and action latency.
	Buckets []float64

	Registry prometheus.Registerer
}

type Option func(*Config)

// WithNamespace replaces the "skadi" metric prefix.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels attaches labels to every series of this observer. Give each
// store its own label value when they share a registry, otherwise
// registration panics on the duplicate collectors.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets overrides the latency histogram boundaries.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry registers the collectors on registry instead of
// prometheus.DefaultRegisterer.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "skadi",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Observer implements store.Observer on top of Prometheus collectors.
type Observer struct {
	reductionsTotal   *prometheus.CounterVec
	reductionDuration *prometheus.HistogramVec
	actionsTotal      *prometheus.CounterVec
	actionDuration    *prometheus.HistogramVec
	actionsInFlight   prometheus.Gauge
	signalsTotal      *prometheus.CounterVec
	signalsDropped    *prometheus.CounterVec
	signalDeliveries  *prometheus.CounterVec
}

// New registers the store collectors and returns an observer feeding them.
// It panics if the collectors are already registered, like promauto does.
func New(opts ...Option) *Observer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Observer{
		reductionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reductions_total",
			Help:        "Total number of changes reduced",
			ConstLabels: config.ConstLabels,
		}, []string{"change", "status"}),

		reductionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reduction_duration_seconds",
			Help:        "Reducer duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"change"}),

		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_total",
			Help:        "Total number of actions performed",
			ConstLabels: config.ConstLabels,
		}, []string{"action", "status"}),

		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "action_duration_seconds",
			Help:        "Action handler duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"action"}),

		actionsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_in_flight",
			Help:        "Number of action handlers currently running",
			ConstLabels: config.ConstLabels,
		}),

		signalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signals_total",
			Help:        "Total number of signals published",
			ConstLabels: config.ConstLabels,
		}, []string{"signal"}),

		signalsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signals_dropped_total",
			Help:        "Total number of signals published while nobody was subscribed",
			ConstLabels: config.ConstLabels,
		}, []string{"signal"}),

		signalDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signal_deliveries_total",
			Help:        "Total number of signals handed to subscribers",
			ConstLabels: config.ConstLabels,
		}, []string{"signal"}),
	}
}

func (o *Observer) OnReduceStart(ctx context.Context, _ string) context.Context {
	return ctx
}

func (o *Observer) OnReduceComplete(_ context.Context, change string, duration time.Duration, err error) {
	o.reductionDuration.WithLabelValues(change).Observe(duration.Seconds())
	o.reductionsTotal.WithLabelValues(change, status(err)).Inc()
}

func (o *Observer) OnActionStart(ctx context.Context, _ string) context.Context {
	o.actionsInFlight.Inc()
	return ctx
}

func (o *Observer) OnActionComplete(_ context.Context, action string, duration time.Duration, err error) {
	o.actionsInFlight.Dec()
	o.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
	o.actionsTotal.WithLabelValues(action, status(err)).Inc()
}

func (o *Observer) OnSignal(_ context.Context, signal string, delivered int) {
	o.signalsTotal.WithLabelValues(signal).Inc()
	if delivered == 0 {
		o.signalsDropped.WithLabelValues(signal).Inc()
		return
	}
	o.signalDeliveries.WithLabelValues(signal).Add(float64(delivered))
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusSuccess
}

var _ store.Observer = (*Observer)(nil)
