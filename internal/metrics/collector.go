package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bashhack/autogit/internal/push"
	"github.com/bashhack/autogit/internal/scheduler"
)

const namespace = "autogit"

// Event outcomes recorded by RecordEvent.
const (
	EventSubmitted = "submitted"
	EventCoalesced = "coalesced"
	EventIgnored   = "ignored"
	EventDirectory = "directory"
)

// Collector holds the Prometheus metrics for one watcher.
//
// Metrics:
//   - autogit_pipeline_events_total: filesystem events by outcome
//   - autogit_commits_total: commit attempts by outcome
//   - autogit_commit_duration_seconds: time spent in git per commit
//   - autogit_commit_absorbed_requests: requests folded into each commit
//   - autogit_pushes_total: pushes by trigger and status
//   - autogit_push_duration_seconds: time spent per push
//   - autogit_push_countdown: commits left before the next push
//   - autogit_rules_reloads_total: ignore rule reloads by status
//
// All methods are safe to call on a nil *Collector, which records nothing.
type Collector struct {
	registry *prometheus.Registry

	eventsTotal      *prometheus.CounterVec
	commitsTotal     *prometheus.CounterVec
	commitDuration   prometheus.Histogram
	commitAbsorbed   prometheus.Histogram
	pushesTotal      *prometheus.CounterVec
	pushDuration     prometheus.Histogram
	pushCountdown    prometheus.Gauge
	rulesReloadTotal *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with registry.
// A nil registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "events_total",
				Help:      "Filesystem events received, by what the pipeline did with them",
			},
			[]string{"outcome"},
		),

		commitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Commit attempts by outcome",
			},
			[]string{"outcome"},
		),

		commitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Duration of git add and commit in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		commitAbsorbed: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_absorbed_requests",
				Help:      "Number of change requests folded into each commit",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),

		pushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pushes_total",
				Help:      "Pushes by trigger and status",
			},
			[]string{"trigger", "status"},
		),

		pushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "push_duration_seconds",
				Help:      "Duration of the push command in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		pushCountdown: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "push_countdown",
				Help:      "Successful commits left before the next push",
			},
		),

		rulesReloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_reloads_total",
				Help:      "Ignore rule reloads by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		c.eventsTotal,
		c.commitsTotal,
		c.commitDuration,
		c.commitAbsorbed,
		c.pushesTotal,
		c.pushDuration,
		c.pushCountdown,
		c.rulesReloadTotal,
	)

	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordEvent counts one filesystem event by outcome.
func (c *Collector) RecordEvent(outcome string) {
	if c == nil {
		return
	}
	c.eventsTotal.WithLabelValues(outcome).Inc()
}

// RecordCommit records a finished commit attempt.
func (c *Collector) RecordCommit(res scheduler.Result) {
	if c == nil {
		return
	}
	c.commitsTotal.WithLabelValues(res.Outcome.String()).Inc()
	c.commitDuration.Observe(res.Duration.Seconds())
	c.commitAbsorbed.Observe(float64(res.Absorbed))
}

// RecordPush records a finished push.
func (c *Collector) RecordPush(res push.Result) {
	if c == nil {
		return
	}
	status := "success"
	if res.Err != nil {
		status = "error"
	}
	c.pushesTotal.WithLabelValues(string(res.Trigger), status).Inc()
	c.pushDuration.Observe(res.Duration.Seconds())
}

// SetPushCountdown publishes the current push countdown.
func (c *Collector) SetPushCountdown(n int) {
	if c == nil {
		return
	}
	c.pushCountdown.Set(float64(n))
}

// RecordRulesReload counts a reload of the ignore rules.
func (c *Collector) RecordRulesReload(err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.rulesReloadTotal.WithLabelValues(status).Inc()
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
