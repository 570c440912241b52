// Package metrics exposes Prometheus collectors for the registries, the
// change listener and the action dispatcher.
//
// Every recording method is safe on a nil *Metrics so components can be
// built without metrics in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "mist").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is where collectors are registered.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "mist",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors.
type Metrics struct {
	clients         prometheus.Gauge
	subscriptions   *prometheus.CounterVec
	broadcasts      *prometheus.CounterVec
	framesSent      prometheus.Counter
	framesDropped   *prometheus.CounterVec
	renderFailures  *prometheus.CounterVec
	actions         *prometheus.CounterVec
	commitsObserved *prometheus.CounterVec
}

// New registers the collectors on the configured registry.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "clients",
			Help:        "Number of connected clients",
			ConstLabels: config.ConstLabels,
		}),

		subscriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscriptions_total",
			Help:        "Subscription requests by component and result",
			ConstLabels: config.ConstLabels,
		}, []string{"component", "result"}),

		broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "broadcasts_total",
			Help:        "Update broadcasts by component",
			ConstLabels: config.ConstLabels,
		}, []string{"component"}),

		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_sent_total",
			Help:        "Frames written to client channels",
			ConstLabels: config.ConstLabels,
		}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_dropped_total",
			Help:        "Frames dropped before reaching a client, by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		renderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_failures_total",
			Help:        "Component renders that produced no fragment",
			ConstLabels: config.ConstLabels,
		}, []string{"component"}),

		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_total",
			Help:        "Dispatched actions by component, action and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"component", "action", "outcome"}),

		commitsObserved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commits_observed_total",
			Help:        "Entity commits seen by the change listener",
			ConstLabels: config.ConstLabels,
		}, []string{"entity_type"}),
	}
}

// Drop reasons.
const (
	DropEncode   = "encode"
	DropFull     = "outbox_full"
	DropClosed   = "closed"
	DropUnknown  = "unknown_client"
	DropWriteErr = "write_error"
)

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.clients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.clients.Dec()
}

// Subscription records a subscribe attempt.
func (m *Metrics) Subscription(component string, accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.subscriptions.WithLabelValues(component, result).Inc()
}

func (m *Metrics) Broadcast(component string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(component).Inc()
}

func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RenderFailed(component string) {
	if m == nil {
		return
	}
	m.renderFailures.WithLabelValues(component).Inc()
}

// Action records a dispatched action; outcome is "success", "failure",
// "not_found" or "error".
func (m *Metrics) Action(component, action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(component, action, outcome).Inc()
}

func (m *Metrics) CommitObserved(entityType string) {
	if m == nil {
		return
	}
	m.commitsObserved.WithLabelValues(entityType).Inc()
}
