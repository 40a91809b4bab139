// Package audio captures microphone input and conditions it into mono,
// noise-suppressed 16-bit PCM frames for streaming transcription.
package audio

import (
	"errors"
	"fmt"
)

// Device represents an audio input device
type Device struct {
	ID         int
	Name       string
	IsDefault  bool
	Channels   int
	SampleRate float64
}

// LatencyMode defines the latency priority
type LatencyMode int

const (
	// LowLatency prioritizes low latency (real-time)
	LowLatency LatencyMode = iota
	// HighStability prioritizes stability (larger buffer)
	HighStability
)

// SampleFormat is the sample representation delivered by the device.
type SampleFormat int

const (
	Float32 SampleFormat = iota
	Int16
	Int32
)

// String returns the string representation of the format
func (f SampleFormat) String() string {
	switch f {
	case Float32:
		return "f32"
	case Int16:
		return "i16"
	case Int32:
		return "i32"
	default:
		return "unknown"
	}
}

// CaptureConfig is the negotiated device configuration of one session.
type CaptureConfig struct {
	Channels   int
	Format     SampleFormat
	SampleRate int
}

// String returns a human-readable form, e.g. "2ch f32 @ 48000Hz"
func (c CaptureConfig) String() string {
	return fmt.Sprintf("%dch %s @ %dHz", c.Channels, c.Format, c.SampleRate)
}

// SupportedConfig is one capability range reported by an input device.
type SupportedConfig struct {
	Channels int
	Format   SampleFormat
	MinRate  int
	MaxRate  int
}

// Covers reports whether the range includes rate.
func (c SupportedConfig) Covers(rate int) bool {
	return c.MinRate <= rate && rate <= c.MaxRate
}

// Frame is one block of mono signed 16-bit PCM, produced per device callback.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// Config holds audio configuration
type Config struct {
	DeviceID         int
	TargetSampleRate int
	Latency          LatencyMode
	NoiseSuppression bool
}

// DefaultConfig returns the default audio configuration
// Target rate: 16kHz (what the recognition service expects)
// Latency: LowLatency, since frames are streamed as they arrive
func DefaultConfig() Config {
	return Config{
		DeviceID:         -1, // -1 means use default device
		TargetSampleRate: 16000,
		Latency:          LowLatency,
		NoiseSuppression: true,
	}
}

// ErrorKind classifies capture failures.
type ErrorKind int

const (
	KindDevice ErrorKind = iota
	KindConfig
	KindStream
)

func (k ErrorKind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindConfig:
		return "config"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

var (
	// ErrNoDevice is returned when no input device is available.
	ErrNoDevice = errors.New("no input device available")
	// ErrNoSuitableConfig is returned when no device configuration matches.
	ErrNoSuitableConfig = errors.New("no suitable audio configuration found")
)

// Error is a capture failure. All capture errors are fatal to session start.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("audio %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Source is a capture backend that feeds frames into out until stopped.
type Source interface {
	// Start negotiates a device configuration and begins capturing.
	Start(config Config, out chan<- Frame) error

	// Stop ends capturing. It is idempotent.
	Stop()

	// IsRecording returns whether frames are still being produced
	IsRecording() bool
}
