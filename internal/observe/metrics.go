// Package observe provides application-wide observability primitives for
// learnliko: OpenTelemetry metrics and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all learnliko metrics.
const meterName = "github.com/Bualoitech/learnliko"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per collaborator ---

	// ChatDuration tracks chat-completion latency.
	ChatDuration metric.Float64Histogram

	// TranscribeDuration tracks transcription latency.
	TranscribeDuration metric.Float64Histogram

	// SynthesizeDuration tracks speech-synthesis latency.
	SynthesizeDuration metric.Float64Histogram

	// ScoreDuration tracks per-goal recap scoring latency.
	ScoreDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts turns appended to transcripts. Use with attribute:
	//   attribute.String("role", "assistant"|"user")
	Turns metric.Int64Counter

	// ReplyRetries counts corrective retries of the bot-reply parse loop.
	ReplyRetries metric.Int64Counter

	// RecapsComputed counts recap computations. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	RecapsComputed metric.Int64Counter

	// CollaboratorErrors counts external-call failures. Use with attribute:
	//   attribute.String("collaborator", ...)
	CollaboratorErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live conversation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for hosted-model call latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ChatDuration, err = m.Float64Histogram("learnliko.chat.duration",
		metric.WithDescription("Latency of chat-completion calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("learnliko.transcribe.duration",
		metric.WithDescription("Latency of recording transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesizeDuration, err = m.Float64Histogram("learnliko.synthesize.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ScoreDuration, err = m.Float64Histogram("learnliko.score.duration",
		metric.WithDescription("Latency of per-goal recap scoring."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("learnliko.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("learnliko.turns",
		metric.WithDescription("Turns appended to conversation transcripts."),
	); err != nil {
		return nil, err
	}
	if met.ReplyRetries, err = m.Int64Counter("learnliko.reply.retries",
		metric.WithDescription("Corrective retries of the bot-reply parse loop."),
	); err != nil {
		return nil, err
	}
	if met.RecapsComputed, err = m.Int64Counter("learnliko.recaps.computed",
		metric.WithDescription("Recap computations by status."),
	); err != nil {
		return nil, err
	}
	if met.CollaboratorErrors, err = m.Int64Counter("learnliko.collaborator.errors",
		metric.WithDescription("External collaborator call failures."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64UpDownCounter("learnliko.sessions.active",
		metric.WithDescription("Live conversation sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance backed by the
// global OTel meter provider, creating it on first use. Instrument creation
// with the global provider cannot fail, so no error is returned.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// The global provider never rejects instrument creation; keep a
			// zero Metrics to avoid nil derefs if it somehow does.
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
