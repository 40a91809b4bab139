package notification

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/i18n"
	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

type captured struct {
	scripts []string
	err     error
}

func (c *captured) run(script string) error {
	c.scripts = append(c.scripts, script)
	return c.err
}

func newTestManager(lang i18n.Language) (*NotificationManager, *captured) {
	c := &captured{}
	return NewNotificationManagerWithRunner("EzS2T-Realtime", i18n.NewTranslator(lang), c.run), c
}

func TestNewNotificationManager(t *testing.T) {
	nm := NewNotificationManager("TestApp", nil)

	if nm == nil {
		t.Fatal("Expected notification manager to be created")
	}
	if nm.appName != "TestApp" {
		t.Errorf("Expected appName to be TestApp, got %s", nm.appName)
	}
	if nm.tr == nil {
		t.Error("Expected a default translator")
	}
}

func TestScript(t *testing.T) {
	tests := []struct {
		name     string
		n        Notification
		expected string
	}{
		{
			name:     "plain",
			n:        Notification{Title: "App", Message: "Recording stopped"},
			expected: `display notification "Recording stopped" with title "App"`,
		},
		{
			name:     "quotes and backslash",
			n:        Notification{Title: `A "B"`, Message: `⌘⇧\ to stop`},
			expected: `display notification "⌘⇧\\ to stop" with title "A \"B\""`,
		},
		{
			name:     "newline",
			n:        Notification{Title: "App", Message: "line1\nline2"},
			expected: `display notification "line1\nline2" with title "App"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Script(&tt.n); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSendNil(t *testing.T) {
	nm, _ := newTestManager(i18n.LanguageEnglish)
	if err := nm.Send(nil); err == nil {
		t.Error("Expected error for nil notification")
	}
}

func TestSendRunnerError(t *testing.T) {
	nm, c := newTestManager(i18n.LanguageEnglish)
	c.err = errors.New("no display")

	if err := nm.SendInfo("hello"); err == nil {
		t.Error("Expected runner error to be returned")
	}
}

func TestRecordingNotifications(t *testing.T) {
	nm, c := newTestManager(i18n.LanguageEnglish)

	if err := nm.RecordingStarted("⌘⇧\\"); err != nil {
		t.Fatalf("RecordingStarted failed: %v", err)
	}
	if err := nm.RecordingStopped(); err != nil {
		t.Fatalf("RecordingStopped failed: %v", err)
	}

	if len(c.scripts) != 2 {
		t.Fatalf("Expected 2 scripts, got %d", len(c.scripts))
	}
	if !strings.Contains(c.scripts[0], `Recording started (⌘⇧\\ to stop)`) {
		t.Errorf("Unexpected script: %s", c.scripts[0])
	}
	if !strings.Contains(c.scripts[1], "Recording stopped") {
		t.Errorf("Unexpected script: %s", c.scripts[1])
	}
}

func TestErrorTitle(t *testing.T) {
	nm, c := newTestManager(i18n.LanguageJapanese)

	nm.HotkeyFailed(errors.New("already registered"))

	if !strings.Contains(c.scripts[0], `with title "EzS2T-Realtime Error"`) {
		t.Errorf("Expected error title, got %s", c.scripts[0])
	}
	if !strings.Contains(c.scripts[0], "ホットキーの登録に失敗: already registered") {
		t.Errorf("Expected Japanese message, got %s", c.scripts[0])
	}
}

func TestStartFailureMessage(t *testing.T) {
	nm, _ := newTestManager(i18n.LanguageEnglish)

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "missing key",
			err:      session.ErrMissingAPIKey,
			contains: "/tmp/config.json",
		},
		{
			name:     "no device",
			err:      fmt.Errorf("failed to start audio capture: %w", &audio.Error{Kind: audio.KindDevice, Err: audio.ErrNoDevice}),
			contains: "No usable microphone",
		},
		{
			name:     "connect",
			err:      fmt.Errorf("failed to connect: %w", &transcriber.ConnectError{URL: "wss://x", Err: errors.New("401")}),
			contains: "transcription service",
		},
		{
			name:     "stream",
			err:      &audio.Error{Kind: audio.KindStream, Err: errors.New("device busy")},
			contains: "device busy",
		},
		{
			name:     "other",
			err:      errors.New("boom"),
			contains: "Could not start recording: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nm.StartFailureMessage(tt.err, "/tmp/config.json")
			if !strings.Contains(got, tt.contains) {
				t.Errorf("Expected message containing %q, got %q", tt.contains, got)
			}
		})
	}
}
