// Package observe provides the OpenTelemetry metrics recorded along the
// capture and transcription path, and the Prometheus bridge that exposes
// them on the local status server.
//
// Tests should use [NewMetrics] with their own [metric.MeterProvider]; the
// package-level [DefaultMetrics] uses the global provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/yok-tottii/EzS2T-Realtime"

// Metrics holds all metric instruments of the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// FramesCaptured counts audio frames enqueued by the pipeline.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts frames lost because the queue was full or closed.
	FramesDropped metric.Int64Counter

	// ChunksSent counts input_audio_chunk messages. Use with attribute:
	//   attribute.Bool("commit", ...)
	ChunksSent metric.Int64Counter

	// AudioSamplesSent counts PCM samples uploaded.
	AudioSamplesSent metric.Int64Counter

	// Transcripts counts transcript events. Use with attribute:
	//   attribute.String("kind", "partial"|"committed")
	Transcripts metric.Int64Counter

	// ServerErrors counts error messages received from the service.
	ServerErrors metric.Int64Counter

	// ConnectErrors counts failed connection attempts.
	ConnectErrors metric.Int64Counter

	// DrainDuration tracks the time from shutdown to the end of draining.
	DrainDuration metric.Float64Histogram

	// SessionDuration tracks the length of recording sessions.
	SessionDuration metric.Float64Histogram

	// ActiveSessions is 1 while a session is live.
	ActiveSessions metric.Int64UpDownCounter
}

var durationBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesCaptured, err = m.Int64Counter("ezs2t.audio.frames",
		metric.WithDescription("Audio frames enqueued for upload."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("ezs2t.audio.frames_dropped",
		metric.WithDescription("Audio frames dropped because the queue was full or closed."),
	); err != nil {
		return nil, err
	}
	if met.ChunksSent, err = m.Int64Counter("ezs2t.stt.chunks",
		metric.WithDescription("Audio chunks sent to the recognition service."),
	); err != nil {
		return nil, err
	}
	if met.AudioSamplesSent, err = m.Int64Counter("ezs2t.stt.samples",
		metric.WithDescription("PCM samples sent to the recognition service."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("ezs2t.stt.transcripts",
		metric.WithDescription("Transcript events received by kind."),
	); err != nil {
		return nil, err
	}
	if met.ServerErrors, err = m.Int64Counter("ezs2t.stt.server_errors",
		metric.WithDescription("Error messages received from the recognition service."),
	); err != nil {
		return nil, err
	}
	if met.ConnectErrors, err = m.Int64Counter("ezs2t.stt.connect_errors",
		metric.WithDescription("Failed connection attempts to the recognition service."),
	); err != nil {
		return nil, err
	}

	if met.DrainDuration, err = m.Float64Histogram("ezs2t.stt.drain.duration",
		metric.WithDescription("Time spent draining after shutdown."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("ezs2t.session.duration",
		metric.WithDescription("Length of recording sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("ezs2t.active_sessions",
		metric.WithDescription("Number of live recording sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrame records one enqueued or dropped frame.
func (m *Metrics) RecordFrame(ctx context.Context, dropped bool) {
	if m == nil {
		return
	}
	if dropped {
		m.FramesDropped.Add(ctx, 1)
		return
	}
	m.FramesCaptured.Add(ctx, 1)
}

// RecordChunk records one uploaded audio chunk of n samples.
func (m *Metrics) RecordChunk(ctx context.Context, n int, commit bool) {
	if m == nil {
		return
	}
	m.ChunksSent.Add(ctx, 1, metric.WithAttributes(attribute.Bool("commit", commit)))
	m.AudioSamplesSent.Add(ctx, int64(n))
}

// RecordTranscript records a transcript event of the given kind.
func (m *Metrics) RecordTranscript(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordServerError records an error message from the service.
func (m *Metrics) RecordServerError(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.ServerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordConnectError records a failed connection attempt.
func (m *Metrics) RecordConnectError(ctx context.Context) {
	if m == nil {
		return
	}
	m.ConnectErrors.Add(ctx, 1)
}

// RecordDrain records how long draining took.
func (m *Metrics) RecordDrain(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.DrainDuration.Record(ctx, d.Seconds())
}

// SessionStarted marks a session live.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded marks a session finished after d.
func (m *Metrics) SessionEnded(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
	m.SessionDuration.Record(ctx, d.Seconds())
}
