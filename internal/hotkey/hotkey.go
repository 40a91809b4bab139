// Package hotkey registers the global shortcut that toggles recording.
package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// EventType represents the type of hotkey event
type EventType int

const (
	// Pressed indicates the hotkey was pressed
	Pressed EventType = iota
	// Released indicates the hotkey was released
	Released
)

// Event represents a hotkey event
type Event struct {
	Type EventType
}

// Config holds hotkey configuration
type Config struct {
	Modifiers []hotkey.Modifier
	Key       hotkey.Key
}

// Manager manages global hotkey registration and events. Every press is
// delivered as a Pressed event; callers toggle recording on it.
type Manager struct {
	hk        *hotkey.Hotkey
	config    Config
	eventChan chan Event
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates a new hotkey manager with default configuration
// Default: Cmd+Shift+Backslash
func New() *Manager {
	return &Manager{
		config: Config{
			Modifiers: []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift},
			Key:       KeyBackslash,
		},
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
}

// Register registers the hotkey with the system
func (m *Manager) Register(config Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkey is already running, call Close() first")
	}

	m.config = config

	// Channels may have been closed by a previous Close()
	m.stopChan = make(chan struct{})
	m.eventChan = make(chan Event, 10)

	hk := hotkey.New(m.config.Modifiers, m.config.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", FormatHotkey(config.Modifiers, config.Key), err)
	}

	m.hk = hk
	m.running = true

	m.wg.Add(1)
	go m.listen(hk, m.eventChan, m.stopChan)

	return nil
}

// RegisterDefault registers the default hotkey (Cmd+Shift+Backslash)
func (m *Manager) RegisterDefault() error {
	return m.Register(m.GetConfig())
}

// listen forwards key events until stop is closed. Sends never block past
// stop so Close cannot deadlock on a consumer that went away.
func (m *Manager) listen(hk *hotkey.Hotkey, events chan<- Event, stop <-chan struct{}) {
	defer m.wg.Done()

	for {
		var ev Event
		select {
		case <-hk.Keydown():
			ev = Event{Type: Pressed}
		case <-hk.Keyup():
			ev = Event{Type: Released}
		case <-stop:
			return
		}

		select {
		case events <- ev:
		case <-stop:
			return
		}
	}
}

// Events returns the event channel for receiving hotkey events. The channel
// is closed by Close.
func (m *Manager) Events() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventChan
}

// Close unregisters the hotkey and stops listening
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var unregisterErr error

	close(m.stopChan)
	m.wg.Wait()

	// Cleanup continues even when Unregister fails
	if m.hk != nil {
		if err := m.hk.Unregister(); err != nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
		m.hk = nil
	}

	close(m.eventChan)

	// Reset even on failure so the next Register can proceed
	m.running = false

	return unregisterErr
}

// Replace swaps the registered hotkey for config. When registering the new
// one fails the previous hotkey is restored and the error is returned.
func (m *Manager) Replace(config Config) error {
	old := m.GetConfig()
	wasRunning := m.IsRunning()

	if err := m.Close(); err != nil {
		return err
	}

	if err := m.Register(config); err != nil {
		if wasRunning {
			if rollbackErr := m.Register(old); rollbackErr != nil {
				return fmt.Errorf("failed to register new hotkey (%w) and rollback failed: %v", err, rollbackErr)
			}
		}
		return err
	}
	return nil
}

// IsRunning returns whether the hotkey is currently registered and running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetConfig returns a copy of the current hotkey configuration
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	configCopy := m.config
	if m.config.Modifiers != nil {
		configCopy.Modifiers = make([]hotkey.Modifier, len(m.config.Modifiers))
		copy(configCopy.Modifiers, m.config.Modifiers)
	}

	return configCopy
}

// String returns the hotkey in menu notation, e.g. "⌘⇧\".
func (c Config) String() string {
	return FormatHotkey(c.Modifiers, c.Key)
}
