package inserter

import (
	"errors"
	"strings"
	"testing"

	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

// screen is a fake text field that applies keystrokes to a buffer
type screen struct {
	text       []rune
	backspaces int
	typed      []string
	err        error
}

func (s *screen) Backspace(n int) error {
	if s.err != nil {
		return s.err
	}
	s.backspaces += n
	if n > len(s.text) {
		n = len(s.text)
	}
	s.text = s.text[:len(s.text)-n]
	return nil
}

func (s *screen) Type(text string) error {
	if s.err != nil {
		return s.err
	}
	s.typed = append(s.typed, text)
	s.text = append(s.text, []rune(text)...)
	return nil
}

func (s *screen) String() string {
	return string(s.text)
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		shown      string
		next       string
		backspaces int
		insert     string
	}{
		{"empty to text", "", "hello", 0, "hello"},
		{"extend", "hel", "hello", 0, "lo"},
		{"identical", "hello", "hello", 0, ""},
		{"correction", "hello word", "hello world", 1, "ld"},
		{"shrink", "hello there", "hello", 6, ""},
		{"no common prefix", "abc", "xyz", 3, "xyz"},
		{"multibyte", "你好世", "你好世界", 0, "界"},
		{"multibyte correction", "今天天汽", "今天天气", 1, "气"},
		{"clear", "text", "", 4, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edit := Diff(tt.shown, tt.next)
			if edit.Backspaces != tt.backspaces || edit.Insert != tt.insert {
				t.Errorf("Diff(%q, %q) = %+v, want {%d %q}", tt.shown, tt.next, edit, tt.backspaces, tt.insert)
			}
		})
	}
}

func TestPartialThenCommit(t *testing.T) {
	s := &screen{text: []rune("Existing. ")}
	ins := New(s, DefaultConfig(), nil)

	events := []transcriber.Event{
		{Kind: transcriber.Partial, Text: "hel"},
		{Kind: transcriber.Partial, Text: "hello wor"},
		{Kind: transcriber.Partial, Text: "hello world"},
		{Kind: transcriber.Committed, Text: "Hello world."},
		{Kind: transcriber.Partial, Text: "next"},
	}
	for _, ev := range events {
		ins.OnTranscript(ev)
	}

	if got := s.String(); got != "Existing. Hello world. next" {
		t.Errorf("Unexpected screen %q", got)
	}
	if ins.Shown() != "next" {
		t.Errorf("Expected to track %q, got %q", "next", ins.Shown())
	}
}

func TestCommitWithoutPartial(t *testing.T) {
	s := &screen{}
	ins := New(s, DefaultConfig(), nil)

	ins.OnTranscript(transcriber.Event{Kind: transcriber.Committed, Text: "你好"})
	ins.OnTranscript(transcriber.Event{Kind: transcriber.Committed, Text: "世界"})

	if got := s.String(); got != "你好 世界 " {
		t.Errorf("Unexpected screen %q", got)
	}
	if s.backspaces != 0 {
		t.Errorf("Expected no backspaces, got %d", s.backspaces)
	}
}

func TestMinimalKeystrokes(t *testing.T) {
	s := &screen{}
	ins := New(s, DefaultConfig(), nil)

	ins.ShowPartial("the quick brown")
	ins.ShowPartial("the quick brown fox")

	if s.backspaces != 0 {
		t.Errorf("Extending a partial must not delete, got %d backspaces", s.backspaces)
	}
	if last := s.typed[len(s.typed)-1]; last != " fox" {
		t.Errorf("Expected only the new suffix to be typed, got %q", last)
	}

	ins.ShowPartial("the quick brown fox")
	if len(s.typed) != 2 {
		t.Errorf("Identical partial must not type, got %v", s.typed)
	}
}

func TestPartialsDisabled(t *testing.T) {
	s := &screen{}
	config := DefaultConfig()
	config.ShowPartials = false
	ins := New(s, config, nil)

	ins.OnTranscript(transcriber.Event{Kind: transcriber.Partial, Text: "hel"})
	if s.String() != "" {
		t.Errorf("Partial must not be typed, got %q", s.String())
	}

	ins.OnTranscript(transcriber.Event{Kind: transcriber.Committed, Text: "hello"})
	if s.String() != "hello " {
		t.Errorf("Unexpected screen %q", s.String())
	}
}

func TestResetOnNewSession(t *testing.T) {
	s := &screen{}
	ins := New(s, DefaultConfig(), nil)

	ins.ShowPartial("left over")
	ins.OnStateChange(session.Recording)
	if ins.Shown() != "left over" {
		t.Error("Recording must not reset tracking")
	}

	ins.OnStateChange(session.Connecting)
	ins.ShowPartial("new")

	if got := s.String(); got != "left overnew" {
		t.Errorf("Text from a previous session must not be erased, got %q", got)
	}
}

func TestKeyboardError(t *testing.T) {
	s := &screen{err: errors.New("accessibility denied")}
	ins := New(s, DefaultConfig(), nil)

	err := ins.ShowPartial("hello")
	if err == nil || !strings.Contains(err.Error(), "accessibility denied") {
		t.Errorf("Expected keyboard error, got %v", err)
	}
	if ins.Shown() != "" {
		t.Error("Failed partial must not be tracked")
	}

	// Logged, not panicking.
	ins.OnTranscript(transcriber.Event{Kind: transcriber.Committed, Text: "x"})
}

func TestDefaultRobotConfig(t *testing.T) {
	config := DefaultRobotConfig()

	if config.PasteThreshold != 64 {
		t.Errorf("Expected PasteThreshold 64, got %d", config.PasteThreshold)
	}
	if config.RestoreDelay <= 0 {
		t.Error("Expected a positive restore delay")
	}
}
