package hotkey

import (
	"testing"
	"time"

	"golang.design/x/hotkey"

	"github.com/yok-tottii/EzS2T-Realtime/internal/config"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}

	config := m.GetConfig()
	if len(config.Modifiers) != 2 {
		t.Errorf("Expected 2 modifiers, got %d", len(config.Modifiers))
	}

	if config.Key != KeyBackslash {
		t.Errorf("Expected KeyBackslash, got %v", config.Key)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		want    hotkey.Key
		wantErr bool
	}{
		{"Backslash", KeyBackslash, false},
		{"backslash", KeyBackslash, false},
		{"Space", hotkey.KeySpace, false},
		{"R", hotkey.KeyR, false},
		{"7", hotkey.Key7, false},
		{"Escape", hotkey.KeyEscape, false},
		{"F13", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseKey(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestKeyNames(t *testing.T) {
	names := KeyNames()
	if len(names) != len(keyNames) {
		t.Fatalf("Expected %d names, got %d", len(keyNames), len(names))
	}
	if names[0] != "Backslash" {
		t.Errorf("Expected Backslash first, got %q", names[0])
	}
	for _, name := range names {
		if _, err := ParseKey(name); err != nil {
			t.Errorf("Listed key %q does not parse: %v", name, err)
		}
	}
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.DefaultConfig().Hotkey)
	if err != nil {
		t.Fatalf("FromSettings failed: %v", err)
	}
	if cfg.Key != KeyBackslash {
		t.Errorf("Expected KeyBackslash, got %v", cfg.Key)
	}
	if !hotkeyMatches(cfg.Modifiers, cfg.Key, []hotkey.Modifier{hotkey.ModShift, hotkey.ModCmd}, KeyBackslash) {
		t.Errorf("Unexpected modifiers: %v", cfg.Modifiers)
	}

	alt, err := FromSettings(config.HotkeyConfig{Ctrl: true, Alt: true, Key: "Space"})
	if err != nil {
		t.Fatalf("FromSettings failed: %v", err)
	}
	if FormatHotkey(alt.Modifiers, alt.Key) != "⌃⌥Space" {
		t.Errorf("Unexpected hotkey %s", FormatHotkey(alt.Modifiers, alt.Key))
	}

	if _, err := FromSettings(config.HotkeyConfig{Key: "A"}); err == nil {
		t.Error("Expected error without modifiers")
	}
	if _, err := FromSettings(config.HotkeyConfig{Cmd: true, Key: "Nope"}); err == nil {
		t.Error("Expected error for unknown key")
	}
}

func TestCheckConflicts(t *testing.T) {
	tests := []struct {
		name           string
		modifiers      []hotkey.Modifier
		key            hotkey.Key
		expectConflict bool
	}{
		{
			name:           "Spotlight conflict (Cmd+Space)",
			modifiers:      []hotkey.Modifier{hotkey.ModCmd},
			key:            hotkey.KeySpace,
			expectConflict: true,
		},
		{
			name:           "No conflict (Cmd+Shift+Backslash)",
			modifiers:      []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift},
			key:            KeyBackslash,
			expectConflict: false,
		},
		{
			name:           "Force Quit conflict (Cmd+Option+Esc)",
			modifiers:      []hotkey.Modifier{hotkey.ModCmd, hotkey.ModOption},
			key:            hotkey.KeyEscape,
			expectConflict: true,
		},
		{
			name:           "Paste conflict (Cmd+V)",
			modifiers:      []hotkey.Modifier{hotkey.ModCmd},
			key:            hotkey.KeyV,
			expectConflict: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := CheckConflicts(tt.modifiers, tt.key)
			hasConflict := len(conflicts) > 0

			if hasConflict != tt.expectConflict {
				t.Errorf("Expected conflict=%v, got conflict=%v (found %d conflicts)",
					tt.expectConflict, hasConflict, len(conflicts))
			}
		})
	}
}

func TestFormatHotkey(t *testing.T) {
	tests := []struct {
		name      string
		modifiers []hotkey.Modifier
		key       hotkey.Key
		expected  string
	}{
		{
			name:      "Cmd+Shift+Backslash",
			modifiers: []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift},
			key:       KeyBackslash,
			expected:  "⌘⇧\\",
		},
		{
			name:      "Ctrl+Option+Space",
			modifiers: []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModOption},
			key:       hotkey.KeySpace,
			expected:  "⌃⌥Space",
		},
		{
			name:      "Cmd+Shift+A",
			modifiers: []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift},
			key:       hotkey.KeyA,
			expected:  "⌘⇧A",
		},
		{
			name:      "Cmd+Option+Esc",
			modifiers: []hotkey.Modifier{hotkey.ModCmd, hotkey.ModOption},
			key:       hotkey.KeyEscape,
			expected:  "⌘⌥Esc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatHotkey(tt.modifiers, tt.key)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestHotkeyMatches(t *testing.T) {
	tests := []struct {
		name     string
		mods1    []hotkey.Modifier
		key1     hotkey.Key
		mods2    []hotkey.Modifier
		key2     hotkey.Key
		expected bool
	}{
		{
			name:     "Same hotkey",
			mods1:    []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModOption},
			key1:     hotkey.KeySpace,
			mods2:    []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModOption},
			key2:     hotkey.KeySpace,
			expected: true,
		},
		{
			name:     "Different key",
			mods1:    []hotkey.Modifier{hotkey.ModCtrl},
			key1:     hotkey.KeySpace,
			mods2:    []hotkey.Modifier{hotkey.ModCtrl},
			key2:     hotkey.KeyReturn,
			expected: false,
		},
		{
			name:     "Different modifiers",
			mods1:    []hotkey.Modifier{hotkey.ModCtrl},
			key1:     hotkey.KeySpace,
			mods2:    []hotkey.Modifier{hotkey.ModCmd},
			key2:     hotkey.KeySpace,
			expected: false,
		},
		{
			name:     "Same modifiers, different order",
			mods1:    []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift},
			key1:     KeyBackslash,
			mods2:    []hotkey.Modifier{hotkey.ModShift, hotkey.ModCmd},
			key2:     KeyBackslash,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hotkeyMatches(tt.mods1, tt.key1, tt.mods2, tt.key2)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := New()

	if m.IsRunning() {
		t.Error("Manager should not be running initially")
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close() on non-running manager returned error: %v", err)
	}

	// Registration needs accessibility permission and a main-thread run
	// loop, so it is left to manual testing.
}

func TestEventChannel(t *testing.T) {
	m := New()

	eventChan := m.Events()
	if eventChan == nil {
		t.Fatal("Events() returned nil channel")
	}

	select {
	case <-eventChan:
		t.Error("Events channel should be empty initially")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestGetConfigIsCopy(t *testing.T) {
	m := New()

	config := m.GetConfig()
	config.Modifiers[0] = hotkey.ModCtrl

	if m.GetConfig().Modifiers[0] != hotkey.ModCmd {
		t.Error("Mutating the returned config must not change the manager")
	}
	if got := m.GetConfig().String(); got != "⌘⇧\\" {
		t.Errorf("Expected ⌘⇧\\, got %q", got)
	}
}
