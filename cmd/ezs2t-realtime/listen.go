package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/observe"
	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

// clearLine returns the cursor to column 0 and erases the line
const clearLine = "\r\033[2K"

func newListenCmd(flags *rootFlags) *cobra.Command {
	var partials bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Transcribe the microphone to stdout until interrupted",
		Long: `Start one session without the menu bar. Committed segments are printed
one per line; with --partials the current partial is shown in place. Press
Ctrl+C to stop; the session drains before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}

			log := logger.NewConsole(cmd.ErrOrStderr(), e.level)
			metrics := observe.DefaultMetrics()

			capture, err := audio.NewPortAudioCapture(log.With("audio"), metrics)
			if err != nil {
				return err
			}
			defer capture.Close()

			opts := e.sessionOptions()
			opts.Logger = log.With("session")
			opts.Metrics = metrics

			dialer := session.ClientDialer{Options: []transcriber.Option{
				transcriber.WithLogger(log.With("transcriber")),
				transcriber.WithMetrics(metrics),
			}}

			mgr := session.New(capture, dialer, opts)
			printer := newTranscriptPrinter(cmd.OutOrStdout(), partials)
			mgr.AddListener(printer)

			ctx := cmd.Context()
			if err := mgr.Start(ctx); err != nil {
				if errors.Is(err, session.ErrMissingAPIKey) {
					return fmt.Errorf("%w: set api_key in %s or set ELEVENLABS_API_KEY", err, e.configPath)
				}
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Listening. Press Ctrl+C to stop.")

			<-ctx.Done()

			transcript, err := mgr.Stop()
			printer.finish()
			if err != nil {
				return err
			}
			log.Info("transcript: %d chars", len([]rune(transcript)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&partials, "partials", "p", false, "Show partial transcripts while speaking")

	return cmd
}

// transcriptPrinter writes session events to a terminal
type transcriptPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	partials bool
	pending  bool // a partial is on the current line
}

func newTranscriptPrinter(w io.Writer, partials bool) *transcriptPrinter {
	return &transcriptPrinter{w: w, partials: partials}
}

func (p *transcriptPrinter) OnTranscript(event transcriber.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Kind {
	case transcriber.Partial:
		if !p.partials {
			return
		}
		fmt.Fprint(p.w, clearLine+event.Text)
		p.pending = event.Text != ""
	case transcriber.Committed:
		if p.pending {
			fmt.Fprint(p.w, clearLine)
			p.pending = false
		}
		if event.Text != "" {
			fmt.Fprintln(p.w, event.Text)
		}
	}
}

func (p *transcriptPrinter) OnStateChange(session.State) {}

// finish ends a dangling partial line
func (p *transcriptPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending {
		fmt.Fprintln(p.w)
		p.pending = false
	}
}
