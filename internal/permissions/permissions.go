// Package permissions reports the macOS privacy permissions the app needs:
// microphone access for capture and accessibility for typing transcripts.
package permissions

import (
	"fmt"
	"os/exec"
	"strings"
)

// Status is the authorization state of one permission. The values match
// AVAuthorizationStatus.
type Status int

const (
	// NotDetermined means the user hasn't been asked yet
	NotDetermined Status = 0
	// Restricted means the permission is restricted by device policy
	Restricted Status = 1
	// Denied means the user has explicitly denied the permission
	Denied Status = 2
	// Authorized means the user has authorized the permission
	Authorized Status = 3
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not_determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pane is a System Settings privacy pane
type Pane string

const (
	PaneMicrophone    Pane = "Privacy_Microphone"
	PaneAccessibility Pane = "Privacy_Accessibility"
)

// SettingsURL returns the URL that opens the pane in System Settings
func (p Pane) SettingsURL() string {
	return "x-apple.systempreferences:com.apple.preference.security?" + string(p)
}

// Report is a snapshot of every permission the app depends on
type Report struct {
	Microphone    Status `json:"microphone"`
	Accessibility Status `json:"accessibility"`
}

// Granted reports whether recording and typing can both work
func (r Report) Granted() bool {
	return r.Microphone == Authorized && r.Accessibility == Authorized
}

// Missing lists the panes the user still has to visit
func (r Report) Missing() []Pane {
	var panes []Pane
	if r.Microphone != Authorized {
		panes = append(panes, PaneMicrophone)
	}
	if r.Accessibility != Authorized {
		panes = append(panes, PaneAccessibility)
	}
	return panes
}

// Checker probes the system for permission state
type Checker struct {
	microphone    func() Status
	accessibility func() Status
	open          func(url string) error
}

// NewChecker creates a checker backed by the operating system
func NewChecker() *Checker {
	return &Checker{
		microphone:    microphoneStatus,
		accessibility: accessibilityStatus,
		open:          openURL,
	}
}

func openURL(url string) error {
	return exec.Command("open", url).Run()
}

// Check returns the current permission report
func (c *Checker) Check() Report {
	return Report{
		Microphone:    c.microphone(),
		Accessibility: c.accessibility(),
	}
}

// OpenSettings opens the System Settings pane for a permission
func (c *Checker) OpenSettings(p Pane) error {
	switch p {
	case PaneMicrophone, PaneAccessibility:
	default:
		return fmt.Errorf("unknown settings pane %q", p)
	}
	if err := c.open(p.SettingsURL()); err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	return nil
}

// ParsePane maps a short permission name to its pane
func ParsePane(name string) (Pane, error) {
	switch strings.ToLower(name) {
	case "microphone", "mic":
		return PaneMicrophone, nil
	case "accessibility":
		return PaneAccessibility, nil
	default:
		return "", fmt.Errorf("unknown permission %q", name)
	}
}
