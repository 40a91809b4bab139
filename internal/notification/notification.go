// Package notification shows macOS Notification Center banners for
// recording events and failures.
package notification

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/i18n"
	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	// TypeInfo is an informational notification
	TypeInfo NotificationType = "info"
	// TypeWarning is a warning notification
	TypeWarning NotificationType = "warning"
	// TypeError is an error notification
	TypeError NotificationType = "error"
)

// Notification represents a macOS notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
}

// Runner executes an osascript program
type Runner func(script string) error

func osascript(script string) error {
	return exec.Command("osascript", "-e", script).Run()
}

// NotificationManager handles sending notifications to the user
type NotificationManager struct {
	appName string
	tr      *i18n.Translator
	run     Runner
}

// NewNotificationManager creates a notification manager that posts through
// osascript.
func NewNotificationManager(appName string, tr *i18n.Translator) *NotificationManager {
	return NewNotificationManagerWithRunner(appName, tr, osascript)
}

// NewNotificationManagerWithRunner creates a notification manager with a
// custom script runner
func NewNotificationManagerWithRunner(appName string, tr *i18n.Translator, run Runner) *NotificationManager {
	if tr == nil {
		tr = i18n.NewTranslator(i18n.LanguageJapanese)
	}
	return &NotificationManager{
		appName: appName,
		tr:      tr,
		run:     run,
	}
}

// Script returns the AppleScript that displays n
func Script(n *Notification) string {
	return fmt.Sprintf(`display notification "%s" with title "%s"`,
		escapeAppleScript(n.Message),
		escapeAppleScript(n.Title))
}

// escapeAppleScript escapes special characters for an AppleScript string literal
func escapeAppleScript(s string) string {
	// Backslashes first to avoid double-escaping
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

// Send sends a notification to the user via macOS notification center
func (nm *NotificationManager) Send(notification *Notification) error {
	if notification == nil {
		return fmt.Errorf("notification cannot be nil")
	}

	if err := nm.run(Script(notification)); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

// SendInfo sends an informational notification
func (nm *NotificationManager) SendInfo(message string) error {
	return nm.Send(&Notification{Title: nm.appName, Message: message, Type: TypeInfo})
}

// SendWarning sends a warning notification
func (nm *NotificationManager) SendWarning(message string) error {
	return nm.Send(&Notification{Title: nm.appName, Message: message, Type: TypeWarning})
}

// SendError sends an error notification
func (nm *NotificationManager) SendError(message string) error {
	return nm.Send(&Notification{Title: nm.appName + " Error", Message: message, Type: TypeError})
}

// RecordingStarted announces a new session and the hotkey that stops it
func (nm *NotificationManager) RecordingStarted(hotkey string) error {
	return nm.SendInfo(nm.tr.TranslateWithFormat("notification.recording_started", map[string]string{"hotkey": hotkey}))
}

// RecordingStopped announces the end of a session
func (nm *NotificationManager) RecordingStopped() error {
	return nm.SendInfo(nm.tr.Translate("notification.recording_stopped"))
}

// TranscriptCopied announces that the last transcript is on the clipboard
func (nm *NotificationManager) TranscriptCopied() error {
	return nm.SendInfo(nm.tr.Translate("notification.copied"))
}

// HotkeyFailed reports a hotkey registration failure
func (nm *NotificationManager) HotkeyFailed(err error) error {
	return nm.SendError(nm.tr.TranslateWithFormat("error.hotkey_failed", map[string]string{"reason": err.Error()}))
}

// AccessibilityRequired reports that typing needs accessibility permission
func (nm *NotificationManager) AccessibilityRequired() error {
	return nm.SendWarning(nm.tr.Translate("error.accessibility_required"))
}

// MicrophonePermissionDenied reports missing microphone access
func (nm *NotificationManager) MicrophonePermissionDenied() error {
	return nm.SendError(nm.tr.Translate("error.mic_permission_denied"))
}

// StartFailed reports why a session could not start, in user terms
func (nm *NotificationManager) StartFailed(err error, configPath string) error {
	return nm.SendError(nm.StartFailureMessage(err, configPath))
}

// StartFailureMessage maps a session start error to a user message
func (nm *NotificationManager) StartFailureMessage(err error, configPath string) string {
	var audioErr *audio.Error
	var connErr *transcriber.ConnectError

	switch {
	case errors.Is(err, session.ErrMissingAPIKey), errors.Is(err, transcriber.ErrMissingAPIKey):
		return nm.tr.TranslateWithFormat("error.api_key_missing", map[string]string{"path": configPath})
	case errors.Is(err, audio.ErrNoDevice), errors.Is(err, audio.ErrNoSuitableConfig):
		return nm.tr.Translate("error.device_unavailable")
	case errors.As(err, &connErr):
		return nm.tr.Translate("error.connect_failed")
	case errors.As(err, &audioErr):
		return nm.tr.TranslateWithFormat("error.start_failed", map[string]string{"reason": audioErr.Error()})
	default:
		return nm.tr.TranslateWithFormat("error.start_failed", map[string]string{"reason": err.Error()})
	}
}
