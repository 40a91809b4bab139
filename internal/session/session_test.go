package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

type fakeSource struct {
	mu        sync.Mutex
	startErr  error
	starts    int
	stops     int
	recording bool
	out       chan<- audio.Frame
	config    audio.Config
}

func (f *fakeSource) Start(config audio.Config, out chan<- audio.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.recording = true
	f.out = out
	f.config = config
	return nil
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recording {
		f.stops++
	}
	f.recording = false
}

func (f *fakeSource) IsRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

// fakeStream emits its script, then a final committed transcript once
// shutdown fires.
type fakeStream struct {
	script []transcriber.Event
	final  string
	// hang ignores shutdown until ctx is cancelled.
	hang bool
}

func (s *fakeStream) Run(ctx context.Context, frames <-chan audio.Frame, events chan<- transcriber.Event, shutdown <-chan struct{}) error {
	defer close(events)

	for _, ev := range s.script {
		events <- ev
	}

	if s.hang {
		<-ctx.Done()
		return ctx.Err()
	}

	select {
	case <-shutdown:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.final != "" {
		events <- transcriber.Event{Kind: transcriber.Committed, Text: s.final}
	}
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
	dials   int
	config  transcriber.Config
}

func (d *fakeDialer) Dial(ctx context.Context, config transcriber.Config) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.config = config
	stream := &fakeStream{}
	if d.dials < len(d.streams) {
		stream = d.streams[d.dials]
	}
	d.dials++
	return stream, nil
}

type recordingListener struct {
	mu     sync.Mutex
	events []transcriber.Event
	states []State
}

func (l *recordingListener) OnTranscript(ev transcriber.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *recordingListener) OnStateChange(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Transcriber.APIKey = "test-key"
	opts.StopTimeout = 500 * time.Millisecond
	return opts
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Idle, "Idle"},
		{Connecting, "Connecting"},
		{Recording, "Recording"},
		{Stopping, "Stopping"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.FrameQueueSize != 500 {
		t.Errorf("Expected frame queue 500, got %d", opts.FrameQueueSize)
	}
	if opts.EventQueueSize != 100 {
		t.Errorf("Expected event queue 100, got %d", opts.EventQueueSize)
	}
	if opts.StopTimeout != 3*time.Second {
		t.Errorf("Expected stop timeout 3s, got %v", opts.StopTimeout)
	}
	if opts.Transcriber.LanguageCode != "zho" || !opts.Transcriber.VADEnabled {
		t.Errorf("Unexpected transcriber defaults: %+v", opts.Transcriber)
	}
}

func TestStartStop(t *testing.T) {
	source := &fakeSource{}
	dialer := &fakeDialer{streams: []*fakeStream{{
		script: []transcriber.Event{
			{Kind: transcriber.Partial, Text: "hel"},
			{Kind: transcriber.Committed, Text: "hello"},
		},
		final: "world",
	}}}
	listener := &recordingListener{}

	m := New(source, dialer, testOptions())
	m.AddListener(listener)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !m.IsRecording() || m.State() != Recording {
		t.Fatalf("Expected Recording, got %v", m.State())
	}

	status := m.Status()
	if status.SessionID == "" {
		t.Error("Expected a session id")
	}
	if !status.Capturing {
		t.Error("Expected capture to be running")
	}

	source.mu.Lock()
	queue := cap(source.out)
	source.mu.Unlock()
	if queue != 500 {
		t.Errorf("Expected frame queue of 500, got %d", queue)
	}

	text, err := m.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Expected transcript %q, got %q", "hello world", text)
	}
	if m.State() != Idle || m.IsRecording() {
		t.Errorf("Expected Idle after stop, got %v", m.State())
	}
	if m.Transcript() != "hello world" {
		t.Errorf("Expected last transcript to be kept, got %q", m.Transcript())
	}
	if source.stops != 1 {
		t.Errorf("Expected capture stopped once, got %d", source.stops)
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.events) != 3 {
		t.Errorf("Expected 3 transcript events, got %+v", listener.events)
	}
	wantStates := []State{Connecting, Recording, Stopping, Idle}
	if len(listener.states) != len(wantStates) {
		t.Fatalf("Expected states %v, got %v", wantStates, listener.states)
	}
	for i := range wantStates {
		if listener.states[i] != wantStates[i] {
			t.Errorf("state %d: expected %v, got %v", i, wantStates[i], listener.states[i])
		}
	}
}

func TestStopWithoutSession(t *testing.T) {
	m := New(&fakeSource{}, &fakeDialer{}, testOptions())

	if _, err := m.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording, got %v", err)
	}
}

func TestStartRequiresAPIKey(t *testing.T) {
	source := &fakeSource{}
	listener := &recordingListener{}
	m := New(source, &fakeDialer{}, DefaultOptions())
	m.AddListener(listener)

	if err := m.Start(context.Background()); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
	if source.starts != 0 {
		t.Error("Capture must not start without an API key")
	}
	if m.State() != Idle {
		t.Errorf("Expected Idle, got %v", m.State())
	}
	if len(listener.states) != 0 {
		t.Errorf("Expected no state changes, got %v", listener.states)
	}
}

func TestStartCaptureFailure(t *testing.T) {
	captureErr := &audio.Error{Kind: audio.KindDevice, Err: audio.ErrNoDevice}
	dialer := &fakeDialer{}
	listener := &recordingListener{}
	m := New(&fakeSource{startErr: captureErr}, dialer, testOptions())
	m.AddListener(listener)

	err := m.Start(context.Background())
	if !errors.Is(err, audio.ErrNoDevice) {
		t.Fatalf("Expected ErrNoDevice, got %v", err)
	}
	if dialer.dials != 0 {
		t.Error("Must not connect when capture fails")
	}
	if m.IsRecording() || m.State() != Idle {
		t.Errorf("Expected Idle after failure, got %v", m.State())
	}
	if len(listener.states) != 0 {
		t.Errorf("Expected no state changes, got %v", listener.states)
	}
}

func TestStartConnectFailure(t *testing.T) {
	source := &fakeSource{}
	connErr := &transcriber.ConnectError{URL: "wss://example", Err: errors.New("refused")}
	listener := &recordingListener{}
	m := New(source, &fakeDialer{err: connErr}, testOptions())
	m.AddListener(listener)

	err := m.Start(context.Background())

	var ce *transcriber.ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConnectError, got %v", err)
	}
	if source.IsRecording() {
		t.Error("Capture should be stopped after connect failure")
	}
	if m.IsRecording() || m.State() != Idle {
		t.Errorf("Expected Idle after failure, got %v", m.State())
	}
	if len(listener.states) != 2 || listener.states[0] != Connecting || listener.states[1] != Idle {
		t.Errorf("Expected [Connecting Idle], got %v", listener.states)
	}
}

func TestStartReplacesSession(t *testing.T) {
	source := &fakeSource{}
	dialer := &fakeDialer{streams: []*fakeStream{
		{final: "first"},
		{final: "second"},
	}}
	m := New(source, dialer, testOptions())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	firstID := m.Status().SessionID

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if m.Status().SessionID == firstID {
		t.Error("Expected a new session id")
	}
	if source.stops != 1 {
		t.Errorf("Expected previous capture stopped, got %d stops", source.stops)
	}

	text, err := m.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if text != "second" {
		t.Errorf("Expected only the second session's transcript, got %q", text)
	}
}

func TestStopTimeout(t *testing.T) {
	dialer := &fakeDialer{streams: []*fakeStream{{hang: true}}}
	opts := testOptions()
	opts.StopTimeout = 100 * time.Millisecond
	m := New(&fakeSource{}, dialer, opts)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	if _, err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("Expected Stop to give up after the timeout, took %v", elapsed)
	}
	if m.State() != Idle {
		t.Errorf("Expected Idle, got %v", m.State())
	}
}

func TestToggle(t *testing.T) {
	m := New(&fakeSource{}, &fakeDialer{}, testOptions())

	recording, err := m.Toggle(context.Background())
	if err != nil || !recording {
		t.Fatalf("Expected toggle to start, got %v %v", recording, err)
	}

	recording, err = m.Toggle(context.Background())
	if err != nil || recording {
		t.Fatalf("Expected toggle to stop, got %v %v", recording, err)
	}
}

func TestOptionsPassedThrough(t *testing.T) {
	source := &fakeSource{}
	dialer := &fakeDialer{}
	opts := testOptions()
	opts.Audio.NoiseSuppression = false
	opts.Transcriber.LanguageCode = "jpn"
	opts.FrameQueueSize = 10

	m := New(source, dialer, opts)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	if source.config.NoiseSuppression {
		t.Error("Expected suppression disabled")
	}
	if dialer.config.LanguageCode != "jpn" || dialer.config.APIKey != "test-key" {
		t.Errorf("Unexpected transcriber config: %+v", dialer.config)
	}
	if cap(source.out) != MinFrameQueueSize {
		t.Errorf("Expected queue clamped to %d, got %d", MinFrameQueueSize, cap(source.out))
	}
}

func TestListenerFuncs(t *testing.T) {
	var got []State
	l := ListenerFuncs{StateChange: func(s State) { got = append(got, s) }}

	l.OnStateChange(Recording)
	l.OnTranscript(transcriber.Event{Text: "ignored"})

	if len(got) != 1 || got[0] != Recording {
		t.Errorf("Expected [Recording], got %v", got)
	}
}
