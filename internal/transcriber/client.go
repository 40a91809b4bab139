// Package transcriber streams 16kHz PCM to the ElevenLabs realtime
// speech-to-text WebSocket API and turns its replies into transcript events.
package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/observe"
)

const (
	// DefaultEndpoint is the realtime speech-to-text WebSocket endpoint.
	DefaultEndpoint = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	// DefaultModel is the realtime model id.
	DefaultModel = "scribe_v2_realtime"
	// DefaultLanguage is used when no language code is configured.
	DefaultLanguage = "zho"

	DefaultChunkDuration = 250 * time.Millisecond
	DefaultDrainTimeout  = 500 * time.Millisecond
	DefaultCommitGrace   = 100 * time.Millisecond

	// committedGrace lets the final transcript reach the event channel
	// after the committed signal fires.
	committedGrace = 50 * time.Millisecond

	// maxVADThreshold caps the silence threshold for faster commits.
	maxVADThreshold = 0.8

	apiKeyHeader = "xi-api-key"
	readLimit    = 1 << 20

	// chunkLogEvery controls how often upload progress is logged.
	chunkLogEvery = 4
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("API key is required")

// EventKind distinguishes partial from committed transcripts.
type EventKind int

const (
	// Partial is an interim hypothesis that may change.
	Partial EventKind = iota
	// Committed finalizes a speech segment.
	Committed
)

func (k EventKind) String() string {
	switch k {
	case Partial:
		return "partial"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

// Event is one non-empty transcript received from the service.
type Event struct {
	Kind EventKind
	Text string
}

// Config holds the session settings sent to the service.
type Config struct {
	APIKey       string
	LanguageCode string
	VADEnabled   bool
	VADThreshold float64
}

// ConnectError reports a failed connection attempt.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithEndpoint overrides the WebSocket endpoint (ws:// or wss://).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithModel sets the model id.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithChunkDuration sets how much audio each chunk carries.
func WithChunkDuration(d time.Duration) Option {
	return func(c *Client) {
		c.chunkDuration = d
	}
}

// WithDrainTimeout sets how long to wait for the final transcript.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.drainTimeout = d
	}
}

// WithCommitGrace sets the pause after the final commit chunk.
func WithCommitGrace(d time.Duration) Option {
	return func(c *Client) {
		c.commitGrace = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client opens transcription streams. It holds no connection state and may
// be reused for consecutive sessions.
type Client struct {
	config        Config
	endpoint      string
	model         string
	chunkDuration time.Duration
	drainTimeout  time.Duration
	commitGrace   time.Duration
	log           *logger.Logger
	metrics       *observe.Metrics
}

// New creates a Client. The API key must be non-empty.
func New(config Config, opts ...Option) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.LanguageCode == "" {
		config.LanguageCode = DefaultLanguage
	}

	c := &Client{
		config:        config,
		endpoint:      DefaultEndpoint,
		model:         DefaultModel,
		chunkDuration: DefaultChunkDuration,
		drainTimeout:  DefaultDrainTimeout,
		commitGrace:   DefaultCommitGrace,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// SamplesPerChunk is the number of 16kHz samples in one upload chunk.
func (c *Client) SamplesPerChunk() int {
	n := int(int64(wireSampleRate) * int64(c.chunkDuration) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n
}

// buildURL constructs the endpoint URL with the session query parameters.
func (c *Client) buildURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model_id", c.model)
	q.Set("sample_rate", strconv.Itoa(wireSampleRate))
	q.Set("language_code", c.config.LanguageCode)
	q.Set("vad_commit_strategy", strconv.FormatBool(c.config.VADEnabled))
	if c.config.VADEnabled {
		threshold := min(c.config.VADThreshold, maxVADThreshold)
		q.Set("vad_silence_threshold_secs", strconv.FormatFloat(threshold, 'f', -1, 64))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the service. There is no retry.
func (c *Client) Connect(ctx context.Context) (*Stream, error) {
	wsURL, err := c.buildURL()
	if err != nil {
		return nil, &ConnectError{URL: c.endpoint, Err: err}
	}

	headers := http.Header{}
	headers.Set(apiKeyHeader, c.config.APIKey)

	c.log.Info("connecting to %s (language %s, vad %v)", c.endpoint, c.config.LanguageCode, c.config.VADEnabled)
	c.log.Debug("URL: %s", wsURL)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		c.metrics.RecordConnectError(ctx)
		return nil, &ConnectError{URL: c.endpoint, Err: err}
	}
	conn.SetReadLimit(readLimit)

	c.log.Info("connected")
	return &Stream{
		client:    c,
		conn:      conn,
		committed: make(chan struct{}),
	}, nil
}

// Run connects and streams until shutdown. events is closed when Run returns,
// including when the connection fails.
func (c *Client) Run(ctx context.Context, frames <-chan audio.Frame, events chan<- Event, shutdown <-chan struct{}) error {
	stream, err := c.Connect(ctx)
	if err != nil {
		close(events)
		return err
	}
	return stream.Run(ctx, frames, events, shutdown)
}

// Stream is one live connection to the service.
type Stream struct {
	client *Client
	conn   *websocket.Conn

	committed     chan struct{}
	committedOnce sync.Once
}

// SendCommit sends a standalone commit message. It may be called while Run
// is streaming.
func (s *Stream) SendCommit(ctx context.Context) error {
	return s.writeJSON(ctx, NewCommitMessage())
}

// Run streams frames until shutdown is closed, then drains: the buffered
// remainder goes out as a commit chunk and Run waits for the first committed
// transcript or the drain timeout. Transcripts are sent to events, which is
// closed when Run returns.
//
// Cancelling ctx aborts without draining and returns ctx.Err(). Otherwise
// Run returns the error that ended the writer early, if any.
func (s *Stream) Run(ctx context.Context, frames <-chan audio.Frame, events chan<- Event, shutdown <-chan struct{}) error {
	log := s.client.log
	defer close(events)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	readerDone := make(chan struct{})
	writerDone := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		defer close(readerDone)
		s.readLoop(readCtx, events)
		return nil
	})
	g.Go(func() error {
		defer close(writerDone)
		return s.writeLoop(ctx, frames, shutdown)
	})

	abort := func() error {
		cancelRead()
		s.conn.CloseNow()
		_ = g.Wait()
		return ctx.Err()
	}

	select {
	case <-shutdown:
		log.Info("shutdown signal received, draining")
	case <-ctx.Done():
		return abort()
	}

	drainStart := time.Now()

	select {
	case <-writerDone:
	case <-ctx.Done():
		return abort()
	}

	log.Info("waiting up to %v for final transcripts", s.client.drainTimeout)
	timer := time.NewTimer(s.client.drainTimeout)
	defer timer.Stop()

	select {
	case <-s.committed:
		log.Info("committed received, exiting drain early")
		select {
		case <-time.After(committedGrace):
		case <-ctx.Done():
			return abort()
		}
	case <-readerDone:
		log.Info("connection closed by server during drain")
	case <-timer.C:
		log.Info("drain timeout reached")
	case <-ctx.Done():
		return abort()
	}

	s.client.metrics.RecordDrain(ctx, time.Since(drainStart))

	// A Close handshake can block well past the drain timeout.
	cancelRead()
	if err := s.conn.CloseNow(); err != nil {
		log.Debug("close: %v", err)
	}

	err := g.Wait()
	log.Info("stream closed")
	return err
}

// readLoop decodes inbound messages until the connection or ctx ends.
func (s *Stream) readLoop(ctx context.Context, events chan<- Event) {
	log := s.client.log
	metrics := s.client.metrics

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure:
				log.Info("connection closed")
			default:
				log.Error("read failed: %v", err)
			}
			return
		}
		if typ != websocket.MessageText {
			log.Debug("ignoring %v message", typ)
			continue
		}

		msg, err := DecodeServerMessage(data)
		if err != nil {
			log.Warn("%v: %s", err, data)
			continue
		}

		var event *Event
		switch {
		case msg.SessionStarted != nil:
			log.Info("session started: %s", msg.SessionStarted.SessionID)
			if cfg := msg.SessionStarted.Config; cfg != nil {
				log.Info("model: %s", cfg.ModelID)
			}
		case msg.Partial != nil:
			log.Debug("partial transcript: %q", msg.Partial.Text)
			if msg.Partial.Text != "" {
				event = &Event{Kind: Partial, Text: string(msg.Partial.Text)}
			}
		case msg.Committed != nil:
			log.Info("committed: %q", msg.Committed.Text)
			s.committedOnce.Do(func() { close(s.committed) })
			if msg.Committed.Text != "" {
				event = &Event{Kind: Committed, Text: string(msg.Committed.Text)}
			}
		case msg.Error != nil:
			code := ""
			if msg.Error.Code != nil {
				code = *msg.Error.Code
			}
			log.Error("service error: %s (code %q)", msg.Error.Error, code)
			metrics.RecordServerError(ctx, code)
		default:
			log.Info("unknown message type %q", msg.Type)
		}

		if event == nil {
			continue
		}
		metrics.RecordTranscript(ctx, event.Kind.String())

		select {
		case events <- *event:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop uploads fixed-size chunks. On shutdown or when frames closes it
// drains queued frames and sends the remainder as the commit chunk.
func (s *Stream) writeLoop(ctx context.Context, frames <-chan audio.Frame, shutdown <-chan struct{}) error {
	log := s.client.log
	perChunk := s.client.SamplesPerChunk()
	log.Info("audio buffering: %v chunks (%d samples)", s.client.chunkDuration, perChunk)

	buf := make([]int16, 0, 2*perChunk)
	sent := 0

	flushFull := func() error {
		for len(buf) >= perChunk {
			if err := s.sendChunk(ctx, buf[:perChunk], false); err != nil {
				return err
			}
			buf = buf[:copy(buf, buf[perChunk:])]
			sent++
			if sent%chunkLogEvery == 0 {
				log.Info("sent %d audio chunks (%v of audio)", sent, time.Duration(sent)*s.client.chunkDuration)
			}
		}
		return nil
	}

	for done := false; !done; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-shutdown:
			log.Info("stop signal received, finishing audio send (sent %d chunks)", sent)
			buf = drainQueued(frames, buf)
			done = true
		case frame, ok := <-frames:
			if !ok {
				log.Info("audio channel closed (sent %d chunks)", sent)
				done = true
				break
			}
			buf = append(buf, frame.Samples...)
		}

		if err := flushFull(); err != nil {
			log.Error("failed to send audio chunk: %v", err)
			return err
		}
	}

	log.Info("sending final %d samples with commit", len(buf))
	if err := s.sendChunk(ctx, buf, true); err != nil {
		log.Error("failed to send commit chunk: %v", err)
		return err
	}

	select {
	case <-time.After(s.client.commitGrace):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// drainQueued appends frames already waiting in the queue without blocking.
func drainQueued(frames <-chan audio.Frame, buf []int16) []int16 {
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return buf
			}
			buf = append(buf, frame.Samples...)
		default:
			return buf
		}
	}
}

func (s *Stream) sendChunk(ctx context.Context, samples []int16, commit bool) error {
	if err := s.writeJSON(ctx, NewAudioChunkMessage(samples, commit)); err != nil {
		return err
	}
	s.client.metrics.RecordChunk(ctx, len(samples), commit)
	return nil
}

func (s *Stream) writeJSON(ctx context.Context, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return s.conn.Write(ctx, websocket.MessageText, b)
}
