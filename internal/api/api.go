// Package api implements the local HTTP endpoints used by the menu-bar app
// and scripts: recording status and toggling, the last transcript, settings
// and hotkey management.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/config"
	"github.com/yok-tottii/EzS2T-Realtime/internal/hotkey"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/permissions"
	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
)

// toggleTimeout bounds a toggle request, which may include connecting.
const toggleTimeout = 15 * time.Second

// Recorder is the part of session.Manager the API drives.
type Recorder interface {
	Toggle(ctx context.Context) (bool, error)
	Status() session.Status
}

// DeviceLister lists audio input devices
type DeviceLister interface {
	ListDevices() ([]audio.Device, error)
}

// PermissionChecker reports and fixes missing macOS permissions
type PermissionChecker interface {
	Check() permissions.Report
	OpenSettings(p permissions.Pane) error
}

// Options configures a Handler. Only Config is required.
type Options struct {
	Config *config.Config
	// ConfigPath is where settings changes are saved. Empty disables saving.
	ConfigPath string
	Recorder   Recorder
	Devices    DeviceLister
	// Permissions backs /api/permissions. Nil reports everything granted.
	Permissions PermissionChecker
	// OnSettingsChanged is called after settings were updated and saved.
	OnSettingsChanged func(cfg *config.Config) error
	// OnHotkeyChanged is called after a new hotkey was saved.
	OnHotkeyChanged func() error
	Logger          *logger.Logger
}

// Handler manages API endpoints
type Handler struct {
	opts Options
	log  *logger.Logger
}

// New creates a new API handler
func New(opts Options) *Handler {
	return &Handler{
		opts: opts,
		log:  opts.Logger,
	}
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/toggle", h.handleToggle)
	mux.HandleFunc("/api/transcript", h.handleTranscript)
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/hotkey/validate", h.handleHotkeyValidate)
	mux.HandleFunc("/api/hotkey/register", h.handleHotkeyRegister)
	mux.HandleFunc("/api/devices", h.handleDevices)
	mux.HandleFunc("/api/permissions", h.handlePermissions)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleStatus handles GET /api/status
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.opts.Recorder == nil {
		writeJSON(w, http.StatusOK, session.Status{State: session.Idle.String()})
		return
	}
	writeJSON(w, http.StatusOK, h.opts.Recorder.Status())
}

// handleToggle handles POST /api/toggle
func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.opts.Recorder == nil {
		http.Error(w, "Recording is not available", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), toggleTimeout)
	defer cancel()

	recording, err := h.opts.Recorder.Toggle(ctx)
	if err != nil {
		h.log.Warn("toggle via API failed: %v", err)
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"recording": false,
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recording": recording,
		"state":     h.opts.Recorder.Status().State,
	})
}

// handleTranscript handles GET /api/transcript
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var status session.Status
	if h.opts.Recorder != nil {
		status = h.opts.Recorder.Status()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcript": status.Transcript,
		"partial":    status.LastPartial,
		"session_id": status.SessionID,
	})
}

// handleSettings handles GET and PUT /api/settings
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w, r)
	case http.MethodPut:
		h.putSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getSettings returns the current configuration with the API key masked
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	masked := h.opts.Config.MaskedAPIKey()
	out := h.opts.Config.Clone()
	out.APIKey = masked
	writeJSON(w, http.StatusOK, out)
}

// putSettings updates, validates and saves the configuration
func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validate on a copy so a rejected update leaves the live config alone.
	candidate := h.opts.Config.Clone()
	if err := candidate.Update(updates); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}
	if err := candidate.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid config: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.opts.Config.Update(updates); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}

	if h.opts.ConfigPath != "" {
		if err := h.opts.Config.Save(h.opts.ConfigPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
			return
		}
	}

	if h.opts.OnSettingsChanged != nil {
		if err := h.opts.OnSettingsChanged(h.opts.Config); err != nil {
			h.log.Warn("failed to apply settings: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
	})
}

// handleHotkeyValidate handles POST /api/hotkey/validate
func (h *Handler) handleHotkeyValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request config.HotkeyConfig
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	hk, err := hotkey.FromSettings(request)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"valid":     false,
			"error":     err.Error(),
			"conflicts": []string{},
		})
		return
	}

	conflictNames := []string{}
	for _, c := range hotkey.CheckConflicts(hk.Modifiers, hk.Key) {
		conflictNames = append(conflictNames, c.Name)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":     true,
		"display":   hk.String(),
		"conflicts": conflictNames,
	})
}

// handleHotkeyRegister handles POST /api/hotkey/register
func (h *Handler) handleHotkeyRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request config.HotkeyConfig
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := hotkey.FromSettings(request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.opts.Config.Update(map[string]interface{}{
		"hotkey": map[string]interface{}{
			"ctrl":  request.Ctrl,
			"shift": request.Shift,
			"alt":   request.Alt,
			"cmd":   request.Cmd,
			"key":   request.Key,
		},
	})

	if h.opts.ConfigPath != "" {
		if err := h.opts.Config.Save(h.opts.ConfigPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
			return
		}
	}

	if h.opts.OnHotkeyChanged != nil {
		if err := h.opts.OnHotkeyChanged(); err != nil {
			// The setting is saved; it applies on the next launch.
			h.log.Warn("failed to reload hotkey: %v", err)
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "partial",
				"message": fmt.Sprintf("Hotkey saved but reload failed: %v. Please restart the application.", err),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Hotkey registered and applied successfully",
	})
}

// Device is an input device as reported by the API
type Device struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	IsDefault  bool    `json:"is_default"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"sample_rate"`
}

func convertAudioDevices(audioDevices []audio.Device) []Device {
	devices := make([]Device, 0, len(audioDevices)+1)
	devices = append(devices, Device{ID: -1, Name: "System default"})
	for _, dev := range audioDevices {
		devices = append(devices, Device{
			ID:         dev.ID,
			Name:       dev.Name,
			IsDefault:  dev.IsDefault,
			Channels:   dev.Channels,
			SampleRate: dev.SampleRate,
		})
	}
	return devices
}

// handleDevices handles GET /api/devices
func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var audioDevices []audio.Device
	if h.opts.Devices != nil {
		var err error
		audioDevices, err = h.opts.Devices.ListDevices()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to list audio devices: %v", err), http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": convertAudioDevices(audioDevices),
	})
}

// handlePermissions handles GET and POST /api/permissions. POST takes
// {"permission": "microphone"} and opens the matching settings pane.
func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		report := permissions.Report{Microphone: permissions.Authorized, Accessibility: permissions.Authorized}
		if h.opts.Permissions != nil {
			report = h.opts.Permissions.Check()
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"permissions": report,
			"granted":     report.Granted(),
		})
	case http.MethodPost:
		var req struct {
			Permission string `json:"permission"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		pane, err := permissions.ParsePane(req.Permission)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if h.opts.Permissions == nil {
			http.Error(w, "Permission settings are not available", http.StatusServiceUnavailable)
			return
		}
		if err := h.opts.Permissions.OpenSettings(pane); err != nil {
			h.log.Warn("failed to open settings pane: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "opened", "pane": string(pane)})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
