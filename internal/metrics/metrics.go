// Package metrics exposes Prometheus instrumentation for evaluation runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
	OutcomeStrictRetry = "strict_retry"
	OutcomeCacheHit    = "cache_hit"
	OutcomeCancelled   = "cancelled"
)

// Recorder records pipeline metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer

	capabilityCalls   *prometheus.CounterVec
	candidates        *prometheus.CounterVec
	candidateDuration prometheus.Histogram
	runs              *prometheus.CounterVec
	shortlistSize     prometheus.Gauge
	guides            *prometheus.CounterVec
}

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for the processing time histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegisterer registers the metrics on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.registry = reg
		}
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "talentscout",
		subsystem: "pipeline",
		buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		registry:  prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(r)
	}

	auto := promauto.With(r.registry)

	r.capabilityCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "capability_calls_total",
		Help:      "Model capability calls by template and outcome",
	}, []string{"template", "outcome"})

	r.candidates = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "candidates_total",
		Help:      "Candidates processed by outcome",
	}, []string{"outcome"})

	r.candidateDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "candidate_processing_seconds",
		Help:      "Time spent extracting and scoring one candidate",
		Buckets:   r.buckets,
	})

	r.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "runs_total",
		Help:      "Evaluation runs by outcome",
	}, []string{"outcome"})

	r.shortlistSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "last_shortlist_size",
		Help:      "Number of ranked candidates in the most recent run",
	})

	r.guides = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "interview_guides_total",
		Help:      "Interview guide requests by outcome",
	}, []string{"outcome"})

	return r
}

func (r *Recorder) CapabilityCall(template, outcome string) {
	if r == nil {
		return
	}
	r.capabilityCalls.WithLabelValues(template, outcome).Inc()
}

func (r *Recorder) Candidate(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.candidates.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		r.candidateDuration.Observe(elapsed.Seconds())
	}
}

func (r *Recorder) Run(outcome string, shortlisted int) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.shortlistSize.Set(float64(shortlisted))
}

func (r *Recorder) Guide(outcome string) {
	if r == nil {
		return
	}
	r.guides.WithLabelValues(outcome).Inc()
}
