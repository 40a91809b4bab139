package audio

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// SuppressorFrameSize is the block the suppressor works on: 10ms at 48kHz.
	SuppressorFrameSize = 480
	// SuppressorSampleRate is the only rate the suppressor accepts.
	SuppressorSampleRate = 48000
)

const (
	// window spans the previous and the current frame (50% overlap).
	windowSize = 2 * SuppressorFrameSize
	bins       = windowSize/2 + 1

	psdSmoothing  = 0.8   // temporal smoothing of the per-bin power
	noiseRise     = 1.005 // per-frame growth of the noise floor estimate (~1.4s to double)
	overSubtract  = 2.0
	gainFloor     = 0.1 // -20dB
	gainSmoothing = 0.5
	powerEpsilon  = 1e-12
)

// Suppressor removes stationary background noise from mono float32 audio
// at 48kHz. It runs a spectral gate over 480-sample frames: a windowed FFT
// over the last two frames, a minimum-tracking noise floor per bin and a
// smoothed subtraction gain, recombined by overlap-add. Output lags input by
// one frame.
//
// A Suppressor belongs to exactly one capture session and must not be used
// from more than one goroutine at a time.
type Suppressor struct {
	fft    *fourier.FFT
	window []float64

	pending []float32 // accumulated input, less than one frame after each call
	prev    []float64 // previous input frame
	overlap []float64 // second half of the previous synthesis frame

	x     []float64
	y     []float64
	coeff []complex128

	psd   []float64
	noise []float64
	gain  []float64
	warm  bool
}

// NewSuppressor creates a suppressor with fresh state.
func NewSuppressor() *Suppressor {
	s := &Suppressor{
		fft:     fourier.NewFFT(windowSize),
		window:  make([]float64, windowSize),
		pending: make([]float32, 0, SuppressorFrameSize*4),
		prev:    make([]float64, SuppressorFrameSize),
		overlap: make([]float64, SuppressorFrameSize),
		x:       make([]float64, windowSize),
		y:       make([]float64, windowSize),
		coeff:   make([]complex128, bins),
		psd:     make([]float64, bins),
		noise:   make([]float64, bins),
		gain:    make([]float64, bins),
	}
	// sqrt of a periodic Hann window: applied twice it sums to one at 50% overlap.
	for i := range s.window {
		s.window[i] = math.Sqrt(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/windowSize)))
	}
	s.resetState()
	return s
}

// Process appends input to the internal buffer and denoises every complete
// frame. Samples that do not fill a frame are kept for the next call.
func (s *Suppressor) Process(input []float32) []float32 {
	s.pending = append(s.pending, input...)

	frames := len(s.pending) / SuppressorFrameSize
	if frames == 0 {
		return nil
	}

	out := make([]float32, 0, frames*SuppressorFrameSize)
	for i := 0; i < frames; i++ {
		frame := s.pending[i*SuppressorFrameSize : (i+1)*SuppressorFrameSize]
		out = s.processFrame(out, frame)
	}

	rest := copy(s.pending, s.pending[frames*SuppressorFrameSize:])
	s.pending = s.pending[:rest]
	return out
}

// Flush zero-pads the buffered remainder to a full frame, denoises it and
// returns as many samples as were buffered.
func (s *Suppressor) Flush() []float32 {
	remaining := len(s.pending)
	if remaining == 0 {
		return nil
	}

	frame := make([]float32, SuppressorFrameSize)
	copy(frame, s.pending)
	s.pending = s.pending[:0]

	out := s.processFrame(make([]float32, 0, SuppressorFrameSize), frame)
	return out[:remaining]
}

// Reset discards buffered samples and re-initializes the noise model.
func (s *Suppressor) Reset() {
	s.pending = s.pending[:0]
	s.resetState()
}

// Buffered returns the number of samples waiting for a full frame.
func (s *Suppressor) Buffered() int {
	return len(s.pending)
}

func (s *Suppressor) resetState() {
	for i := range s.prev {
		s.prev[i] = 0
		s.overlap[i] = 0
	}
	for k := range s.gain {
		s.psd[k] = 0
		s.noise[k] = 0
		s.gain[k] = 1
	}
	s.warm = false
}

// processFrame denoises one frame and appends SuppressorFrameSize samples to dst.
func (s *Suppressor) processFrame(dst []float32, frame []float32) []float32 {
	n := SuppressorFrameSize

	for i := 0; i < n; i++ {
		s.x[i] = s.prev[i] * s.window[i]
		cur := float64(frame[i])
		s.x[n+i] = cur * s.window[n+i]
		s.prev[i] = cur
	}

	s.coeff = s.fft.Coefficients(s.coeff, s.x)

	for k, c := range s.coeff {
		power := real(c)*real(c) + imag(c)*imag(c)

		if !s.warm {
			s.psd[k] = power
			s.noise[k] = power
		} else {
			s.psd[k] = psdSmoothing*s.psd[k] + (1-psdSmoothing)*power
			s.noise[k] = math.Min(s.psd[k], s.noise[k]*noiseRise+powerEpsilon)
		}

		g := gainFloor
		if s.psd[k] > powerEpsilon {
			g = math.Max(gainFloor, 1-overSubtract*s.noise[k]/s.psd[k])
		}
		s.gain[k] = gainSmoothing*s.gain[k] + (1-gainSmoothing)*g

		s.coeff[k] = c * complex(s.gain[k], 0)
	}
	s.warm = true

	s.y = s.fft.Sequence(s.y, s.coeff)

	// The inverse transform is unnormalized.
	scale := 1 / float64(windowSize)
	for i := 0; i < n; i++ {
		v := s.overlap[i] + s.y[i]*scale*s.window[i]
		dst = append(dst, float32(v))
		s.overlap[i] = s.y[n+i] * scale * s.window[n+i]
	}
	return dst
}
