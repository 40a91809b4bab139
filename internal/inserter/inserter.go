// Package inserter types transcripts into the focused application as they
// arrive. Partial hypotheses are shown in place and corrected with the
// smallest possible edit; committed text replaces them for good.
package inserter

import (
	"fmt"
	"sync"

	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

// Keyboard sends keystrokes to the focused application
type Keyboard interface {
	Backspace(n int) error
	Type(text string) error
}

// Config holds inserter configuration
type Config struct {
	// ShowPartials types interim hypotheses. When false only committed text
	// is inserted.
	ShowPartials bool
	// CommitSuffix is appended to every committed segment.
	CommitSuffix string
}

// DefaultConfig returns the default inserter configuration
func DefaultConfig() Config {
	return Config{
		ShowPartials: true,
		CommitSuffix: " ",
	}
}

// Inserter applies transcript events to the focused text field. It
// implements session.Listener.
type Inserter struct {
	kb     Keyboard
	config Config
	log    *logger.Logger

	mu sync.Mutex
	// shown is the partial text currently on screen.
	shown string
}

// New creates an inserter that types through kb
func New(kb Keyboard, config Config, log *logger.Logger) *Inserter {
	return &Inserter{
		kb:     kb,
		config: config,
		log:    log,
	}
}

// OnTranscript applies one transcript event
func (i *Inserter) OnTranscript(event transcriber.Event) {
	var err error
	switch event.Kind {
	case transcriber.Partial:
		if i.config.ShowPartials {
			err = i.ShowPartial(event.Text)
		}
	case transcriber.Committed:
		err = i.Commit(event.Text)
	}
	if err != nil {
		i.log.Error("text insertion failed: %v", err)
	}
}

// OnStateChange forgets any partial tracking when a session begins, so text
// left over from a previous session is never erased.
func (i *Inserter) OnStateChange(state session.State) {
	if state == session.Connecting {
		i.Reset()
	}
}

// ShowPartial replaces the partial on screen with text
func (i *Inserter) ShowPartial(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.apply(Diff(i.shown, text)); err != nil {
		return err
	}
	i.shown = text
	return nil
}

// Commit replaces the partial on screen with the final text and the commit
// suffix, then stops tracking it.
func (i *Inserter) Commit(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	edit := Diff(i.shown, text+i.config.CommitSuffix)
	i.shown = ""
	return i.apply(edit)
}

// Reset stops tracking the partial on screen without touching it
func (i *Inserter) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.shown = ""
}

// Shown returns the partial text currently tracked on screen
func (i *Inserter) Shown() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.shown
}

func (i *Inserter) apply(edit Edit) error {
	if edit.IsEmpty() {
		return nil
	}
	i.log.Debug("edit: %d backspaces, insert %q", edit.Backspaces, edit.Insert)

	if edit.Backspaces > 0 {
		if err := i.kb.Backspace(edit.Backspaces); err != nil {
			return fmt.Errorf("failed to delete %d characters: %w", edit.Backspaces, err)
		}
	}
	if edit.Insert != "" {
		if err := i.kb.Type(edit.Insert); err != nil {
			return fmt.Errorf("failed to type text: %w", err)
		}
	}
	return nil
}
