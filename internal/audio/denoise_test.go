package audio

import (
	"math/rand"
	"testing"
)

func whiteNoise(n int, amplitude float32, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude * (2*rng.Float32() - 1)
	}
	return out
}

func energy(samples []float32) float64 {
	var e float64
	for _, s := range samples {
		e += float64(s) * float64(s)
	}
	return e
}

func TestSuppressorSilence(t *testing.T) {
	s := NewSuppressor()

	out := s.Process(make([]float32, 2*SuppressorFrameSize))

	if len(out) < SuppressorFrameSize {
		t.Fatalf("Expected at least %d samples, got %d", SuppressorFrameSize, len(out))
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d: expected silence, got %v", i, v)
		}
	}
}

func TestSuppressorBuffering(t *testing.T) {
	tests := []struct {
		name      string
		input     int
		wantOut   int
		wantFlush int
	}{
		{"less than a frame", 100, 0, 100},
		{"exactly one frame", SuppressorFrameSize, SuppressorFrameSize, 0},
		{"frames plus remainder", 1000, 960, 40},
		{"empty", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSuppressor()

			out := s.Process(whiteNoise(tt.input, 0.1, 1))
			if len(out) != tt.wantOut {
				t.Errorf("Process returned %d samples, want %d", len(out), tt.wantOut)
			}
			if s.Buffered() != tt.wantFlush {
				t.Errorf("Buffered = %d, want %d", s.Buffered(), tt.wantFlush)
			}

			flushed := s.Flush()
			if len(flushed) != tt.wantFlush {
				t.Errorf("Flush returned %d samples, want %d", len(flushed), tt.wantFlush)
			}
			if s.Buffered() != 0 {
				t.Errorf("Buffered after flush = %d, want 0", s.Buffered())
			}
		})
	}
}

func TestSuppressorAccumulatesAcrossCalls(t *testing.T) {
	s := NewSuppressor()

	total := 0
	for i := 0; i < 10; i++ {
		total += len(s.Process(make([]float32, 100)))
	}

	if total != 960 {
		t.Errorf("Expected 960 samples after 1000 input, got %d", total)
	}
	if s.Buffered() != 40 {
		t.Errorf("Expected 40 buffered samples, got %d", s.Buffered())
	}
}

func TestSuppressorReset(t *testing.T) {
	input := whiteNoise(5*SuppressorFrameSize, 0.2, 7)

	fresh := NewSuppressor()
	want := fresh.Process(input)

	used := NewSuppressor()
	used.Process(whiteNoise(3*SuppressorFrameSize+123, 0.5, 99))
	used.Reset()

	if used.Buffered() != 0 {
		t.Fatalf("Expected empty buffer after reset, got %d", used.Buffered())
	}

	got := used.Process(input)
	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d differs after reset: %v vs %v", i, got[i], want[i])
		}
	}
}

func TestSuppressorReducesStationaryNoise(t *testing.T) {
	s := NewSuppressor()

	// Three seconds of steady noise; the last second should come out quieter.
	input := whiteNoise(3*SuppressorSampleRate, 0.05, 42)
	out := s.Process(input)

	if len(out) != len(input) {
		t.Fatalf("Expected %d samples, got %d", len(input), len(out))
	}

	tail := SuppressorSampleRate
	inEnergy := energy(input[len(input)-tail:])
	outEnergy := energy(out[len(out)-tail:])

	if outEnergy >= 0.5*inEnergy {
		t.Errorf("Expected noise energy to drop by half, in=%.4f out=%.4f", inEnergy, outEnergy)
	}
}
