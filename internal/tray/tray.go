// Package tray runs the menu-bar icon: it mirrors the session state and
// offers start/stop, device and suppression settings.
package tray

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/yok-tottii/EzS2T-Realtime/internal/i18n"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

const appTitle = "EzS2T-Realtime"

// Manager manages the system tray icon and menu. It implements
// session.Listener so state changes drive the icon directly.
type Manager struct {
	tr  *i18n.Translator
	log *logger.Logger

	stateMutex sync.RWMutex
	state      session.State
	ready      bool
	denoise    bool

	onReadyCallback func()
	onToggle        func()
	onCopy          func()
	onOpenStatus    func()
	onDeviceChange  func(deviceID int)
	onDenoise       func(enabled bool)
	onQuit          func()

	menuToggle        *systray.MenuItem
	menuHotkey        *systray.MenuItem
	menuCopy          *systray.MenuItem
	menuStatus        *systray.MenuItem
	menuDevices       *systray.MenuItem
	menuDenoise       *systray.MenuItem
	menuQuit          *systray.MenuItem
	deviceMenuItems   []*systray.MenuItem
	deviceCancelFuncs []context.CancelFunc

	hotkey string

	iconIdle       []byte
	iconRecording  []byte
	iconProcessing []byte
}

// Config holds tray manager configuration
type Config struct {
	Translator *i18n.Translator
	Logger     *logger.Logger
	Hotkey     string // display form, e.g. "⌘⇧\"
	Denoise    bool   // initial noise suppression checkbox state

	OnReady        func() // Called when systray is ready for initialization
	OnToggle       func()
	OnCopy         func()
	OnOpenStatus   func()
	OnDeviceChange func(deviceID int)
	OnDenoise      func(enabled bool)
	OnQuit         func()
}

// NewManager creates a new tray manager
func NewManager(config Config) *Manager {
	tr := config.Translator
	if tr == nil {
		tr = i18n.NewTranslator(i18n.LanguageJapanese)
	}

	m := &Manager{
		tr:              tr,
		log:             config.Logger,
		state:           session.Idle,
		denoise:         config.Denoise,
		hotkey:          config.Hotkey,
		onReadyCallback: config.OnReady,
		onToggle:        config.OnToggle,
		onCopy:          config.OnCopy,
		onOpenStatus:    config.OnOpenStatus,
		onDeviceChange:  config.OnDeviceChange,
		onDenoise:       config.OnDenoise,
		onQuit:          config.OnQuit,
	}

	m.iconIdle = m.loadIconData("speech_to_text_32dp_E3E3E3_FILL0_wght400_GRAD0_opsz40.png", getIdleFallback())
	m.iconRecording = m.loadIconData("graphic_eq_32dp_F19E39_FILL0_wght400_GRAD0_opsz40.png", getRecordingFallback())
	m.iconProcessing = m.loadIconData("hourglass_empty_32dp_75FB4C_FILL0_wght400_GRAD0_opsz40.png", getProcessingFallback())

	return m
}

// Run starts the system tray. It blocks and must be called from the main
// goroutine.
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

func (m *Manager) onReady() {
	systray.SetTitle("")

	m.menuToggle = systray.AddMenuItem(m.tr.Translate("menu.start"), "Start or stop recording")
	m.menuHotkey = systray.AddMenuItem(m.tr.TranslateWithFormat("menu.hotkey", map[string]string{"hotkey": m.hotkey}), "")
	m.menuHotkey.Disable()
	m.menuCopy = systray.AddMenuItem(m.tr.Translate("menu.copy"), "Copy the last transcript")

	systray.AddSeparator()

	m.menuDevices = systray.AddMenuItem(m.tr.Translate("menu.devices"), "Select input device")
	m.menuDenoise = systray.AddMenuItemCheckbox(m.tr.Translate("menu.denoise"), "Suppress background noise", m.denoise)
	m.menuStatus = systray.AddMenuItem(m.tr.Translate("menu.status"), "Open the local status page")

	systray.AddSeparator()

	m.menuQuit = systray.AddMenuItem(m.tr.Translate("menu.quit"), "Quit the application")

	m.stateMutex.Lock()
	m.ready = true
	m.updateIcon()
	m.stateMutex.Unlock()

	go m.handleMenuEvents()

	if m.onReadyCallback != nil {
		m.onReadyCallback()
	}
}

func (m *Manager) onExit() {
	m.stateMutex.Lock()
	m.ready = false
	m.stateMutex.Unlock()
}

func (m *Manager) handleMenuEvents() {
	for {
		select {
		case <-m.menuToggle.ClickedCh:
			if m.onToggle != nil {
				go m.onToggle()
			}
		case <-m.menuCopy.ClickedCh:
			if m.onCopy != nil {
				m.onCopy()
			}
		case <-m.menuStatus.ClickedCh:
			if m.onOpenStatus != nil {
				m.onOpenStatus()
			}
		case <-m.menuDenoise.ClickedCh:
			enabled := !m.menuDenoise.Checked()
			if enabled {
				m.menuDenoise.Check()
			} else {
				m.menuDenoise.Uncheck()
			}
			if m.onDenoise != nil {
				m.onDenoise(enabled)
			}
		case <-m.menuQuit.ClickedCh:
			if m.onQuit != nil {
				m.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

// OnStateChange updates the icon for a session state change
func (m *Manager) OnStateChange(state session.State) {
	m.SetState(state)
}

// OnTranscript is a no-op; the tray only mirrors state.
func (m *Manager) OnTranscript(transcriber.Event) {}

// SetState updates the tray icon based on the current state. Before the tray
// is ready only the state is recorded.
func (m *Manager) SetState(state session.State) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.state = state
	if m.ready {
		m.updateIcon()
	}
}

// State returns the state the tray is showing
func (m *Manager) State() session.State {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.state
}

// SetHotkey updates the hotkey shown in the menu
func (m *Manager) SetHotkey(display string) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.hotkey = display
	if m.ready {
		m.menuHotkey.SetTitle(m.tr.TranslateWithFormat("menu.hotkey", map[string]string{"hotkey": display}))
	}
}

// updateIcon must be called with stateMutex held and the tray ready
func (m *Manager) updateIcon() {
	systray.SetIcon(m.iconFor(m.state))
	systray.SetTooltip(m.tooltip(m.state))
	m.menuToggle.SetTitle(m.toggleLabel(m.state))
	if m.state == session.Connecting || m.state == session.Stopping {
		m.menuToggle.Disable()
	} else {
		m.menuToggle.Enable()
	}
}

func (m *Manager) iconFor(state session.State) []byte {
	switch state {
	case session.Recording:
		return m.iconRecording
	case session.Connecting, session.Stopping:
		return m.iconProcessing
	default:
		return m.iconIdle
	}
}

func (m *Manager) tooltip(state session.State) string {
	return appTitle + " - " + m.tr.Translate(statusKey(state))
}

func (m *Manager) toggleLabel(state session.State) string {
	if state == session.Idle {
		return m.tr.Translate("menu.start")
	}
	return m.tr.Translate("menu.stop")
}

func statusKey(state session.State) string {
	switch state {
	case session.Connecting:
		return "status.connecting"
	case session.Recording:
		return "status.recording"
	case session.Stopping:
		return "status.stopping"
	default:
		return "status.idle"
	}
}

// Device represents an audio device for the menu
type Device struct {
	ID        int
	Name      string
	IsDefault bool
	IsCurrent bool
}

// UpdateDeviceMenu replaces the device submenu entries. It does nothing
// before the tray is ready.
func (m *Manager) UpdateDeviceMenu(devices []Device) {
	if m.menuDevices == nil {
		return
	}

	for _, cancel := range m.deviceCancelFuncs {
		cancel()
	}
	m.deviceCancelFuncs = nil

	// systray cannot remove items, so stale ones are hidden
	for _, item := range m.deviceMenuItems {
		item.Hide()
	}
	m.deviceMenuItems = nil

	for _, device := range devices {
		menuItem := m.menuDevices.AddSubMenuItemCheckbox(m.deviceLabel(device), "", device.IsCurrent)
		m.deviceMenuItems = append(m.deviceMenuItems, menuItem)

		ctx, cancel := context.WithCancel(context.Background())
		m.deviceCancelFuncs = append(m.deviceCancelFuncs, cancel)

		go func(id int, item *systray.MenuItem, ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-item.ClickedCh:
					if m.onDeviceChange != nil {
						m.onDeviceChange(id)
					}
				}
			}
		}(device.ID, menuItem, ctx)
	}
}

func (m *Manager) deviceLabel(device Device) string {
	if device.ID == -1 {
		return m.tr.Translate("device.system")
	}
	return device.Name
}

// Quit quits the system tray
func (m *Manager) Quit() {
	systray.Quit()
}

// loadIconData loads an icon from assets/icon next to the executable,
// falling back to a built-in placeholder.
func (m *Manager) loadIconData(filename string, fallback []byte) []byte {
	exe, err := os.Executable()
	if err != nil {
		m.log.Warn("failed to resolve executable path: %v", err)
		return fallback
	}

	iconPath := filepath.Join(filepath.Dir(exe), "assets", "icon", filename)
	data, err := os.ReadFile(iconPath)
	if err != nil {
		m.log.Debug("using built-in icon, %s not readable: %v", iconPath, err)
		return fallback
	}

	return data
}

// getIdleFallback returns the fallback icon data for idle state
func getIdleFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x18, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xff, 0xff, 0x3f, 0x03, 0x00, 0x00,
		0x00, 0xff, 0xff, 0x03, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60,
		0x82,
	}
}

// getRecordingFallback returns the fallback icon data for recording state
func getRecordingFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xcf, 0xc0, 0xc0, 0xc0, 0xf0, 0x9f,
		0x81, 0x81, 0x81, 0x81, 0xff, 0x19, 0x18, 0x18,
		0x18, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0x03,
		0x00, 0x0c, 0x10, 0x02, 0x01, 0x8b, 0xd5, 0xf8,
		0x23, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
		0x44, 0xae, 0x42, 0x60, 0x82,
	}
}

// getProcessingFallback returns the fallback icon data for processing state
func getProcessingFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xcf, 0xf0, 0x9f, 0xc1, 0xc8, 0xc0,
		0xc0, 0xc0, 0xff, 0x0c, 0x0c, 0x0c, 0xfc, 0xcf,
		0xc0, 0xc0, 0xc0, 0x00, 0x00, 0x00, 0x00, 0xff,
		0xff, 0x03, 0x00, 0x0c, 0x50, 0x02, 0x01, 0x3e,
		0x0a, 0xe4, 0x5b, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
}
