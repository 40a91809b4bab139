package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/observe"
)

// watchInterval is how often the watcher checks the recording flag.
const watchInterval = 100 * time.Millisecond

var probeFormats = []SampleFormat{Float32, Int16, Int32}

// PortAudioCapture implements Source using PortAudio
type PortAudioCapture struct {
	log     *logger.Logger
	metrics *observe.Metrics

	mu       sync.Mutex
	stream   *portaudio.Stream
	pipeline *Pipeline
	config   CaptureConfig
	stop     chan struct{}
	done     chan struct{}
}

// NewPortAudioCapture initializes PortAudio and creates a capture backend
func NewPortAudioCapture(log *logger.Logger, metrics *observe.Metrics) (*PortAudioCapture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &PortAudioCapture{
		log:     log,
		metrics: metrics,
	}, nil
}

// ListDevices returns a list of available audio input devices
func (c *PortAudioCapture) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		// Continue without marking any device as default
		defaultInput = nil
	}

	var result []Device
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, Device{
			ID:         i,
			Name:       dev.Name,
			IsDefault:  defaultInput != nil && dev.Name == defaultInput.Name,
			Channels:   dev.MaxInputChannels,
			SampleRate: dev.DefaultSampleRate,
		})
	}

	return result, nil
}

// Start negotiates a configuration with the selected device, opens a stream
// whose callback feeds a fresh Pipeline, and starts a watcher that closes the
// stream once the recording flag drops. A running capture is stopped first.
func (c *PortAudioCapture) Start(config Config, out chan<- Frame) error {
	c.Stop()

	device, err := resolveDevice(config.DeviceID)
	if err != nil {
		return err
	}

	latency := device.DefaultHighInputLatency
	if config.Latency == LowLatency {
		latency = device.DefaultLowInputLatency
	}

	supported := probeDevice(device, latency, config.TargetSampleRate)
	capture, err := SelectConfig(supported, config.TargetSampleRate)
	if err != nil {
		return err
	}
	c.log.Info("device %q: %s (target %dHz, suppression %v)",
		device.Name, capture, config.TargetSampleRate, config.NoiseSuppression)

	var suppressor *Suppressor
	if config.NoiseSuppression {
		suppressor = NewSuppressor()
	}

	pipeline := NewPipeline(PipelineConfig{
		Capture:    capture,
		TargetRate: config.TargetSampleRate,
		Suppressor: suppressor,
		Out:        out,
		Logger:     c.log,
		Metrics:    c.metrics,
	})

	params := streamParameters(device, capture, latency)

	var stream *portaudio.Stream
	switch capture.Format {
	case Int16:
		stream, err = portaudio.OpenStream(params, pipeline.ProcessInt16)
	case Int32:
		stream, err = portaudio.OpenStream(params, pipeline.ProcessInt32)
	default:
		stream, err = portaudio.OpenStream(params, pipeline.ProcessFloat32)
	}
	if err != nil {
		return &Error{Kind: KindStream, Err: fmt.Errorf("failed to open stream: %w", err)}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return &Error{Kind: KindStream, Err: fmt.Errorf("failed to start stream: %w", err)}
	}

	c.mu.Lock()
	c.stream = stream
	c.pipeline = pipeline
	c.config = capture
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.watch(stream, pipeline, c.stop, c.done)
	c.mu.Unlock()

	return nil
}

// watch polls the recording flag and tears the stream down once it is false
// or Stop is called.
func (c *PortAudioCapture) watch(stream *portaudio.Stream, pipeline *Pipeline, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for running := true; running; {
		select {
		case <-stop:
			running = false
		case <-ticker.C:
			running = pipeline.Recording().Load()
		}
	}

	pipeline.Close()
	if err := stream.Stop(); err != nil {
		c.log.Warn("failed to stop stream: %v", err)
	}
	if err := stream.Close(); err != nil {
		c.log.Warn("failed to close stream: %v", err)
	}
	c.log.Info("capture stopped")
}

// Stop ends capturing and waits for the stream to close. It is idempotent.
func (c *PortAudioCapture) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stream = nil
	c.pipeline = nil
	c.stop = nil
	c.done = nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// IsRecording returns whether the current stream is still producing frames
func (c *PortAudioCapture) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipeline != nil && c.pipeline.Recording().Load()
}

// CaptureConfig returns the configuration negotiated by the last Start.
func (c *PortAudioCapture) CaptureConfig() CaptureConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Close stops any capture and terminates PortAudio
func (c *PortAudioCapture) Close() error {
	c.Stop()

	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

func resolveDevice(id int) (*portaudio.DeviceInfo, error) {
	var device *portaudio.DeviceInfo

	if id == -1 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil || dev == nil {
			return nil, &Error{Kind: KindDevice, Err: ErrNoDevice}
		}
		device = dev
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, &Error{Kind: KindDevice, Err: fmt.Errorf("failed to list devices: %w", err)}
		}
		if id < 0 || id >= len(devices) {
			return nil, &Error{Kind: KindDevice, Err: fmt.Errorf("invalid device ID: %d", id)}
		}
		device = devices[id]
	}

	if device.MaxInputChannels <= 0 {
		return nil, &Error{Kind: KindDevice, Err: fmt.Errorf("device '%s' (ID: %d) has no input channels", device.Name, id)}
	}
	return device, nil
}

// probeDevice asks PortAudio which channel, format and rate combinations the
// device accepts, in the order SelectConfig should prefer them.
func probeDevice(device *portaudio.DeviceInfo, latency time.Duration, target int) []SupportedConfig {
	maxChannels := device.MaxInputChannels
	if maxChannels > MaxChannels {
		maxChannels = MaxChannels
	}

	var configs []SupportedConfig
	for ch := 1; ch <= maxChannels; ch++ {
		for _, format := range probeFormats {
			for _, rate := range candidateRates(target) {
				capture := CaptureConfig{Channels: ch, Format: format, SampleRate: rate}
				params := streamParameters(device, capture, latency)
				if err := portaudio.IsFormatSupported(params, probeCallback(format)); err != nil {
					continue
				}
				configs = append(configs, SupportedConfig{
					Channels: ch,
					Format:   format,
					MinRate:  rate,
					MaxRate:  rate,
				})
			}
		}
	}
	return configs
}

func probeCallback(format SampleFormat) interface{} {
	switch format {
	case Int16:
		return func([]int16) {}
	case Int32:
		return func([]int32) {}
	default:
		return func([]float32) {}
	}
}

func streamParameters(device *portaudio.DeviceInfo, capture CaptureConfig, latency time.Duration) portaudio.StreamParameters {
	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: capture.Channels,
			Latency:  latency,
		},
		SampleRate: float64(capture.SampleRate),
	}
}
