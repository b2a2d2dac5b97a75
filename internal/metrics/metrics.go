// Package metrics counts what a digest run did and pushes the totals to a
// Prometheus Pushgateway once the run is over.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "arxiv_digest"
)

// Recorder holds the run counters. A nil *Recorder ignores every call.
type Recorder struct {
	registry *prometheus.Registry

	PapersFetched  *prometheus.CounterVec
	FetchFailures  *prometheus.CounterVec
	Batches        prometheus.Counter
	FailedBatches  prometheus.Counter
	Hallucinations prometheus.Counter
	ResultsWritten prometheus.Counter
	WriteFailures  prometheus.Counter
	UserFailures   prometheus.Counter
	RunDuration    prometheus.Gauge
	LastSuccess    prometheus.Gauge
}

// NewRecorder registers the counters on a private registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		PapersFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Papers read from the listing, per category",
		}, []string{"category"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Categories whose listing could not be fetched",
		}, []string{"category"}),
		Batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Completion batches sent to the model",
		}),
		FailedBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_failed_total",
			Help:      "Batches skipped because the completion or its decoding failed",
		}),
		Hallucinations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hallucinations_total",
			Help:      "Batches whose reply count did not match the paper count",
		}),
		ResultsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_written_total",
			Help:      "Digest results persisted",
		}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_write_failures_total",
			Help:      "Digest results that failed to persist",
		}),
		UserFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_failures_total",
			Help:      "Users whose processing aborted",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Fetched records a category listing.
func (r *Recorder) Fetched(category string, papers int) {
	if r == nil {
		return
	}
	r.PapersFetched.WithLabelValues(category).Add(float64(papers))
}

// FetchFailed records a category that could not be fetched.
func (r *Recorder) FetchFailed(category string) {
	if r == nil {
		return
	}
	r.FetchFailures.WithLabelValues(category).Inc()
}

// Scored records the batch outcome of one topic.
func (r *Recorder) Scored(batches, failed, hallucinations int) {
	if r == nil {
		return
	}
	r.Batches.Add(float64(batches))
	r.FailedBatches.Add(float64(failed))
	r.Hallucinations.Add(float64(hallucinations))
}

// Written records persisted and failed result writes.
func (r *Recorder) Written(ok, failed int) {
	if r == nil {
		return
	}
	r.ResultsWritten.Add(float64(ok))
	r.WriteFailures.Add(float64(failed))
}

// UserFailed records a user whose processing aborted.
func (r *Recorder) UserFailed() {
	if r == nil {
		return
	}
	r.UserFailures.Inc()
}

// RunFinished records the run duration and completion time in seconds.
func (r *Recorder) RunFinished(durationSeconds float64, finishedUnix int64) {
	if r == nil {
		return
	}
	r.RunDuration.Set(durationSeconds)
	r.LastSuccess.Set(float64(finishedUnix))
}

// Pusher sends a Recorder's registry to a Pushgateway.
type Pusher struct {
	url string
	job string
}

// NewPusher returns nil when url is empty, which disables pushing.
func NewPusher(url, job string) *Pusher {
	if url == "" {
		return nil
	}
	return &Pusher{url: url, job: job}
}

// Push replaces the job's metric group on the gateway.
func (p *Pusher) Push(ctx context.Context, r *Recorder) error {
	if p == nil || r == nil {
		return nil
	}
	if err := push.New(p.url, p.job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
