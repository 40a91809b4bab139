// Package wizard tracks first-run onboarding: the API key, the microphone
// and accessibility permissions and a usable hotkey.
package wizard

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yok-tottii/EzS2T-Realtime/internal/config"
	"github.com/yok-tottii/EzS2T-Realtime/internal/permissions"
)

// SetupWizard manages the initial application setup flow
type SetupWizard struct {
	configDir     string
	configPath    string
	setupFlagFile string
	mu            sync.RWMutex
}

// NewSetupWizard creates a wizard for the config file at configPath. The
// completion marker lives next to it.
func NewSetupWizard(configPath string) (*SetupWizard, error) {
	configDir := filepath.Dir(configPath)

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return &SetupWizard{
		configDir:     configDir,
		configPath:    configPath,
		setupFlagFile: filepath.Join(configDir, ".setup_completed"),
	}, nil
}

// IsFirstRun reports whether no config file has been written yet
func (w *SetupWizard) IsFirstRun() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, err := os.Stat(w.configPath)
	return os.IsNotExist(err)
}

// IsSetupCompleted checks if onboarding has been completed
func (w *SetupWizard) IsSetupCompleted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, err := os.Stat(w.setupFlagFile)
	return !os.IsNotExist(err)
}

// MarkSetupCompleted marks onboarding as completed
func (w *SetupWizard) MarkSetupCompleted() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.Create(w.setupFlagFile)
	if err != nil {
		return fmt.Errorf("failed to create setup flag file: %w", err)
	}
	return file.Close()
}

// ShouldShowWizard returns true on the first run or while onboarding is
// unfinished.
func (w *SetupWizard) ShouldShowWizard() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, err := os.Stat(w.configPath); os.IsNotExist(err) {
		return true
	}

	_, err := os.Stat(w.setupFlagFile)
	return os.IsNotExist(err)
}

// ResetSetup forgets that onboarding was completed
func (w *SetupWizard) ResetSetup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.Remove(w.setupFlagFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove setup flag file: %w", err)
	}
	return nil
}

// GetConfigDir returns the configuration directory
func (w *SetupWizard) GetConfigDir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.configDir
}

// SetupProgress is the completion state of each onboarding step
type SetupProgress struct {
	APIKeyConfigured     bool `json:"api_key_configured"`
	MicrophoneGranted    bool `json:"microphone_granted"`
	AccessibilityGranted bool `json:"accessibility_granted"`
	HotkeyConfigured     bool `json:"hotkey_configured"`
}

// Step names returned by Pending
const (
	StepAPIKey        = "api_key"
	StepMicrophone    = "microphone"
	StepAccessibility = "accessibility"
	StepHotkey        = "hotkey"
)

// Evaluate derives the progress from the settings and a permission report
func Evaluate(cfg *config.Config, report permissions.Report) SetupProgress {
	snapshot := cfg.Clone()
	hk := snapshot.Hotkey

	return SetupProgress{
		APIKeyConfigured:     snapshot.ValidateAPIKey() == nil,
		MicrophoneGranted:    report.Microphone == permissions.Authorized,
		AccessibilityGranted: report.Accessibility == permissions.Authorized,
		HotkeyConfigured:     hk.Key != "" && (hk.Ctrl || hk.Shift || hk.Alt || hk.Cmd),
	}
}

// Complete reports whether every step is done
func (p SetupProgress) Complete() bool {
	return len(p.Pending()) == 0
}

// Pending lists the unfinished steps in the order the user should do them
func (p SetupProgress) Pending() []string {
	var steps []string
	if !p.MicrophoneGranted {
		steps = append(steps, StepMicrophone)
	}
	if !p.AccessibilityGranted {
		steps = append(steps, StepAccessibility)
	}
	if !p.APIKeyConfigured {
		steps = append(steps, StepAPIKey)
	}
	if !p.HotkeyConfigured {
		steps = append(steps, StepHotkey)
	}
	return steps
}
