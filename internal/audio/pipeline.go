package audio

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/observe"
)

// Sample is any sample type a device callback can deliver.
type Sample interface {
	~float32 | ~int16 | ~int32
}

// progressEvery controls how often the callback logs its progress.
const progressEvery = 100

// Pipeline turns interleaved device buffers into mono 16-bit frames at the
// target rate and hands them to Out without ever blocking.
//
// The Process methods are called from the real-time audio thread. The only
// state they share with other goroutines is the recording flag.
type Pipeline struct {
	capture    CaptureConfig
	targetRate int
	suppressor *Suppressor
	out        chan<- Frame
	recording  *atomic.Bool
	log        *logger.Logger
	metrics    *observe.Metrics

	closeMu   sync.RWMutex
	closed    bool
	callbacks atomic.Int64
	warnOnce  sync.Once
}

// PipelineConfig describes one session's pipeline.
type PipelineConfig struct {
	Capture    CaptureConfig
	TargetRate int
	// Suppressor is nil when noise suppression is disabled.
	Suppressor *Suppressor
	Out        chan<- Frame
	Recording  *atomic.Bool
	Logger     *logger.Logger
	Metrics    *observe.Metrics
}

// NewPipeline creates a pipeline. A nil Recording flag gets a fresh one set
// to true.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	rec := cfg.Recording
	if rec == nil {
		rec = &atomic.Bool{}
		rec.Store(true)
	}
	return &Pipeline{
		capture:    cfg.Capture,
		targetRate: cfg.TargetRate,
		suppressor: cfg.Suppressor,
		out:        cfg.Out,
		recording:  rec,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Recording returns the shared recording flag.
func (p *Pipeline) Recording() *atomic.Bool {
	return p.recording
}

// ProcessFloat32 handles a float32 device buffer.
func (p *Pipeline) ProcessFloat32(in []float32) {
	if !p.recording.Load() {
		return
	}
	p.emit(toMono(in, p.capture.Channels, 1))
}

// ProcessInt16 handles an int16 device buffer.
func (p *Pipeline) ProcessInt16(in []int16) {
	if !p.recording.Load() {
		return
	}
	p.emit(toMono(in, p.capture.Channels, 32768))
}

// ProcessInt32 handles an int32 device buffer.
func (p *Pipeline) ProcessInt32(in []int32) {
	if !p.recording.Load() {
		return
	}
	p.emit(toMono(in, p.capture.Channels, 2147483648))
}

// Close marks the output dead. Later callbacks drop their frames instead of
// sending. Safe to call more than once.
func (p *Pipeline) Close() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	p.closed = true
	p.recording.Store(false)
}

func (p *Pipeline) emit(mono []float32) {
	n := p.callbacks.Add(1)
	if n%progressEvery == 0 {
		p.log.Debug("callback #%d: %d samples", n, len(mono))
	}

	samples := p.condition(mono)
	if len(samples) == 0 {
		return
	}

	frame := Frame{Samples: quantize(samples), SampleRate: p.targetRate}

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		p.metrics.RecordFrame(context.Background(), true)
		return
	}

	select {
	case p.out <- frame:
		p.metrics.RecordFrame(context.Background(), false)
	default:
		p.recording.Store(false)
		p.metrics.RecordFrame(context.Background(), true)
		p.warnOnce.Do(func() {
			p.log.Warn("frame queue full, stopping capture")
		})
	}
}

// condition resamples through the suppressor rate when suppression is on.
func (p *Pipeline) condition(mono []float32) []float32 {
	rate := p.capture.SampleRate

	if p.suppressor != nil {
		mono = Resample(mono, rate, SuppressorSampleRate)
		mono = p.suppressor.Process(mono)
		rate = SuppressorSampleRate
	}
	return Resample(mono, rate, p.targetRate)
}

// toMono normalizes an interleaved buffer to float32 in [-1, 1] and averages
// channel pairs. A missing second sample counts as silence.
func toMono[T Sample](in []T, channels int, scale float32) []float32 {
	if channels <= 1 {
		out := make([]float32, len(in))
		for i, s := range in {
			out[i] = float32(s) / scale
		}
		return out
	}

	out := make([]float32, 0, (len(in)+channels-1)/channels)
	for i := 0; i < len(in); i += channels {
		left := float32(in[i]) / scale
		var right float32
		if i+1 < len(in) {
			right = float32(in[i+1]) / scale
		}
		out = append(out, (left+right)/2)
	}
	return out
}

// quantize clamps to [-1, 1] and scales to signed 16-bit.
func quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}
