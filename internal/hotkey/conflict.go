package hotkey

import "golang.design/x/hotkey"

// ConflictInfo represents information about a known shortcut conflict
type ConflictInfo struct {
	Name        string
	Description string
	Modifiers   []hotkey.Modifier
	Key         hotkey.Key
}

// knownConflicts contains macOS shortcuts that commonly clash with a
// recording toggle.
var knownConflicts = []ConflictInfo{
	{
		Name:        "Spotlight",
		Description: "macOS Spotlight search",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "IME Switch",
		Description: "Input method editor switch",
		Modifiers:   []hotkey.Modifier{hotkey.ModCtrl},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "Force Quit",
		Description: "macOS Force Quit",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd, hotkey.ModOption},
		Key:         hotkey.KeyEscape,
	},
	{
		Name:        "Screenshot",
		Description: "macOS screenshot and recording toolbar",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift},
		Key:         hotkey.Key5,
	},
	{
		Name:        "Quit",
		Description: "Quit the frontmost application",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeyQ,
	},
	{
		Name:        "Paste",
		Description: "Paste from the clipboard",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeyV,
	},
}

// CheckConflicts checks if the given hotkey conflicts with known system shortcuts
func CheckConflicts(modifiers []hotkey.Modifier, key hotkey.Key) []ConflictInfo {
	var conflicts []ConflictInfo

	for _, known := range knownConflicts {
		if hotkeyMatches(modifiers, key, known.Modifiers, known.Key) {
			conflicts = append(conflicts, known)
		}
	}

	return conflicts
}

// hotkeyMatches reports whether two combinations are identical, ignoring
// modifier order.
func hotkeyMatches(mods1 []hotkey.Modifier, key1 hotkey.Key, mods2 []hotkey.Modifier, key2 hotkey.Key) bool {
	if key1 != key2 {
		return false
	}

	set1 := make(map[hotkey.Modifier]bool)
	for _, mod := range mods1 {
		set1[mod] = true
	}
	set2 := make(map[hotkey.Modifier]bool)
	for _, mod := range mods2 {
		set2[mod] = true
	}

	if len(set1) != len(set2) {
		return false
	}
	for mod := range set1 {
		if !set2[mod] {
			return false
		}
	}

	return true
}

// FormatHotkey returns a human-readable string representation of the hotkey
func FormatHotkey(modifiers []hotkey.Modifier, key hotkey.Key) string {
	result := ""

	for _, mod := range modifiers {
		switch mod {
		case hotkey.ModCtrl:
			result += "⌃"
		case hotkey.ModShift:
			result += "⇧"
		case hotkey.ModOption:
			result += "⌥"
		case hotkey.ModCmd:
			result += "⌘"
		}
	}

	result += keyToString(key)
	return result
}

// keyToString converts a hotkey.Key to a display string
func keyToString(key hotkey.Key) string {
	switch key {
	case KeyBackslash:
		return "\\"
	case hotkey.KeyEscape:
		return "Esc"
	}

	for _, nk := range keyNames {
		if nk.key == key {
			return nk.name
		}
	}

	return "Unknown"
}
