// Package session owns the lifecycle of a recording session: it starts
// capture, connects the transcription stream, fans transcript events out to
// listeners and drains everything on stop.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/observe"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

// State represents the current session state
type State int

const (
	// Idle means no session is live
	Idle State = iota
	// Connecting means capture is starting and the stream is being opened
	Connecting
	// Recording means audio is streaming
	Recording
	// Stopping means the session is draining
	Stopping
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Recording:
		return "Recording"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// MinFrameQueueSize is the smallest frame queue a session uses.
const MinFrameQueueSize = 500

var (
	// ErrNotRecording is returned by Stop when no session is live.
	ErrNotRecording = errors.New("not recording")
	// ErrMissingAPIKey is returned by Start when no API key is configured.
	ErrMissingAPIKey = errors.New("API key is not configured")
)

// Stream is a connected transcription stream.
type Stream interface {
	Run(ctx context.Context, frames <-chan audio.Frame, events chan<- transcriber.Event, shutdown <-chan struct{}) error
}

// Dialer opens a transcription stream for one session.
type Dialer interface {
	Dial(ctx context.Context, config transcriber.Config) (Stream, error)
}

// ClientDialer dials the realtime service with a fresh transcriber.Client.
type ClientDialer struct {
	Options []transcriber.Option
}

// Dial creates a client for config and connects it.
func (d ClientDialer) Dial(ctx context.Context, config transcriber.Config) (Stream, error) {
	client, err := transcriber.New(config, d.Options...)
	if err != nil {
		return nil, err
	}
	stream, err := client.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Listener receives transcript events and state changes. Callbacks run on
// the session's goroutines and should return quickly.
type Listener interface {
	OnTranscript(event transcriber.Event)
	OnStateChange(state State)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Transcript  func(event transcriber.Event)
	StateChange func(state State)
}

func (l ListenerFuncs) OnTranscript(event transcriber.Event) {
	if l.Transcript != nil {
		l.Transcript(event)
	}
}

func (l ListenerFuncs) OnStateChange(state State) {
	if l.StateChange != nil {
		l.StateChange(state)
	}
}

// Options holds the settings used by the next Start.
type Options struct {
	Audio          audio.Config
	Transcriber    transcriber.Config
	FrameQueueSize int
	EventQueueSize int
	// StopTimeout bounds how long Stop waits for the stream to drain.
	StopTimeout time.Duration
	Logger      *logger.Logger
	Metrics     *observe.Metrics
}

// DefaultOptions returns the default session options
func DefaultOptions() Options {
	return Options{
		Audio: audio.DefaultConfig(),
		Transcriber: transcriber.Config{
			LanguageCode: transcriber.DefaultLanguage,
			VADEnabled:   true,
			VADThreshold: 0.5,
		},
		FrameQueueSize: MinFrameQueueSize,
		EventQueueSize: 100,
		StopTimeout:    3 * time.Second,
	}
}

// Status is a snapshot of the manager for status displays.
type Status struct {
	State       string  `json:"state"`
	SessionID   string  `json:"session_id,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	Duration    float64 `json:"duration_seconds"`
	Capturing   bool    `json:"capturing"`
	LastPartial string  `json:"last_partial,omitempty"`
	Transcript  string  `json:"transcript"`
}

// session is one live recording.
type session struct {
	id      string
	started time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	cancel       context.CancelFunc

	runDone      chan struct{}
	runErr       error
	dispatchDone chan struct{}

	mu          sync.Mutex
	segments    []string
	lastPartial string
}

func (s *session) triggerShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

func (s *session) record(event transcriber.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch event.Kind {
	case transcriber.Partial:
		s.lastPartial = event.Text
	case transcriber.Committed:
		s.segments = append(s.segments, event.Text)
		s.lastPartial = ""
	}
}

func (s *session) transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.segments, " ")
}

// Manager owns at most one live session.
type Manager struct {
	source audio.Source
	dialer Dialer

	// opMu serializes Start and Stop.
	opMu sync.Mutex

	mu             sync.Mutex
	opts           Options
	state          State
	current        *session
	lastTranscript string
	listeners      []Listener
}

// New creates a session manager
func New(source audio.Source, dialer Dialer, opts Options) *Manager {
	return &Manager{
		source: source,
		dialer: dialer,
		opts:   opts,
		state:  Idle,
	}
}

// SetOptions replaces the options used by the next Start.
func (m *Manager) SetOptions(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts
}

// Options returns the current options
func (m *Manager) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// AddListener registers a listener for transcripts and state changes.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start begins a new session. A live session is stopped first. On error the
// manager is left idle. Listeners see Connecting only once capture is
// running, so key and device errors cause no state change.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	opts := m.Options()
	log := opts.Logger

	if m.live() {
		log.Info("replacing running session")
		if _, err := m.stop(); err != nil && !errors.Is(err, ErrNotRecording) {
			log.Warn("failed to stop previous session: %v", err)
		}
	}

	if opts.Transcriber.APIKey == "" {
		return ErrMissingAPIKey
	}

	queueSize := opts.FrameQueueSize
	if queueSize < MinFrameQueueSize {
		queueSize = MinFrameQueueSize
	}
	eventSize := opts.EventQueueSize
	if eventSize <= 0 {
		eventSize = 100
	}

	frames := make(chan audio.Frame, queueSize)
	if err := m.source.Start(opts.Audio, frames); err != nil {
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	m.setState(Connecting)

	stream, err := m.dialer.Dial(ctx, opts.Transcriber)
	if err != nil {
		m.source.Stop()
		m.setState(Idle)
		return fmt.Errorf("failed to connect: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:           uuid.NewString(),
		started:      time.Now(),
		shutdown:     make(chan struct{}),
		cancel:       cancel,
		runDone:      make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	events := make(chan transcriber.Event, eventSize)

	go func() {
		defer close(sess.runDone)
		sess.runErr = stream.Run(runCtx, frames, events, sess.shutdown)
	}()
	go m.dispatch(sess, events)

	m.mu.Lock()
	m.current = sess
	m.lastTranscript = ""
	m.mu.Unlock()
	m.setState(Recording)

	opts.Metrics.SessionStarted(context.Background())
	log.Info("session %s started", sess.id)
	return nil
}

// Stop ends the live session, waits for it to drain and returns the
// committed transcript of the session.
func (m *Manager) Stop() (string, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.stop()
}

func (m *Manager) stop() (string, error) {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	opts := m.opts
	m.mu.Unlock()

	if sess == nil {
		return "", ErrNotRecording
	}
	log := opts.Logger

	m.setState(Stopping)
	log.Info("stopping session %s", sess.id)

	sess.triggerShutdown()
	m.source.Stop()

	timeout := opts.StopTimeout
	if timeout <= 0 {
		timeout = DefaultOptions().StopTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sess.runDone:
	case <-timer.C:
		log.Warn("transcriber did not finish within %v, aborting", timeout)
		sess.cancel()
		<-sess.runDone
	}
	<-sess.dispatchDone
	sess.cancel()

	if sess.runErr != nil && !errors.Is(sess.runErr, context.Canceled) {
		log.Warn("session %s ended with error: %v", sess.id, sess.runErr)
	}

	text := sess.transcript()
	duration := time.Since(sess.started)

	m.mu.Lock()
	m.lastTranscript = text
	m.mu.Unlock()
	m.setState(Idle)

	opts.Metrics.SessionEnded(context.Background(), duration)
	log.Info("session %s stopped after %v (%d chars)", sess.id, duration.Round(time.Millisecond), len(text))
	return text, nil
}

// Toggle starts a session when idle and stops it otherwise. It reports
// whether a session is live afterwards.
func (m *Manager) Toggle(ctx context.Context) (bool, error) {
	if m.IsRecording() {
		_, err := m.Stop()
		return false, err
	}
	if err := m.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRecording returns whether a session is live
func (m *Manager) IsRecording() bool {
	return m.live()
}

// Transcript returns the committed text of the live session, or of the last
// one when idle.
func (m *Manager) Transcript() string {
	m.mu.Lock()
	sess, last := m.current, m.lastTranscript
	m.mu.Unlock()

	if sess != nil {
		return sess.transcript()
	}
	return last
}

// Status returns a snapshot for status displays.
func (m *Manager) Status() Status {
	m.mu.Lock()
	sess, state, last := m.current, m.state, m.lastTranscript
	m.mu.Unlock()

	status := Status{State: state.String(), Transcript: last}
	if sess == nil {
		return status
	}

	sess.mu.Lock()
	status.LastPartial = sess.lastPartial
	sess.mu.Unlock()

	status.SessionID = sess.id
	status.StartedAt = sess.started.Format(time.RFC3339)
	status.Duration = time.Since(sess.started).Seconds()
	status.Capturing = m.source.IsRecording()
	status.Transcript = sess.transcript()
	return status
}

func (m *Manager) live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// dispatch records events and fans them out until the stream closes events.
func (m *Manager) dispatch(sess *session, events <-chan transcriber.Event) {
	defer close(sess.dispatchDone)

	for event := range events {
		sess.record(event)
		for _, l := range m.snapshotListeners() {
			l.OnTranscript(event)
		}
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	changed := m.state != state
	m.state = state
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l.OnStateChange(state)
	}
}

func (m *Manager) snapshotListeners() []Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Listener(nil), m.listeners...)
}
