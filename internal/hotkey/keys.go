package hotkey

import (
	"fmt"
	"strings"

	"golang.design/x/hotkey"

	"github.com/yok-tottii/EzS2T-Realtime/internal/config"
)

// KeyBackslash is the macOS virtual key code for the ANSI backslash key,
// which golang.design/x/hotkey does not name.
const KeyBackslash hotkey.Key = 0x2A

type namedKey struct {
	name string
	key  hotkey.Key
}

// keyNames lists the keys accepted in the settings file, in display order.
var keyNames = []namedKey{
	{"Backslash", KeyBackslash},
	{"Space", hotkey.KeySpace},
	{"Escape", hotkey.KeyEscape},
	{"Return", hotkey.KeyReturn},
	{"Tab", hotkey.KeyTab},
	{"Delete", hotkey.KeyDelete},
	{"A", hotkey.KeyA}, {"B", hotkey.KeyB}, {"C", hotkey.KeyC},
	{"D", hotkey.KeyD}, {"E", hotkey.KeyE}, {"F", hotkey.KeyF},
	{"G", hotkey.KeyG}, {"H", hotkey.KeyH}, {"I", hotkey.KeyI},
	{"J", hotkey.KeyJ}, {"K", hotkey.KeyK}, {"L", hotkey.KeyL},
	{"M", hotkey.KeyM}, {"N", hotkey.KeyN}, {"O", hotkey.KeyO},
	{"P", hotkey.KeyP}, {"Q", hotkey.KeyQ}, {"R", hotkey.KeyR},
	{"S", hotkey.KeyS}, {"T", hotkey.KeyT}, {"U", hotkey.KeyU},
	{"V", hotkey.KeyV}, {"W", hotkey.KeyW}, {"X", hotkey.KeyX},
	{"Y", hotkey.KeyY}, {"Z", hotkey.KeyZ},
	{"0", hotkey.Key0}, {"1", hotkey.Key1}, {"2", hotkey.Key2},
	{"3", hotkey.Key3}, {"4", hotkey.Key4}, {"5", hotkey.Key5},
	{"6", hotkey.Key6}, {"7", hotkey.Key7}, {"8", hotkey.Key8},
	{"9", hotkey.Key9},
}

// ParseKey converts a settings key name such as "Backslash" or "R" to a key.
// Names are case-insensitive.
func ParseKey(name string) (hotkey.Key, error) {
	for _, nk := range keyNames {
		if strings.EqualFold(nk.name, name) {
			return nk.key, nil
		}
	}
	return 0, fmt.Errorf("unsupported hotkey key: %q", name)
}

// KeyNames returns the accepted key names
func KeyNames() []string {
	names := make([]string, len(keyNames))
	for i, nk := range keyNames {
		names[i] = nk.name
	}
	return names
}

// FromSettings builds a hotkey Config from the settings file representation.
// At least one modifier is required.
func FromSettings(hc config.HotkeyConfig) (Config, error) {
	key, err := ParseKey(hc.Key)
	if err != nil {
		return Config{}, err
	}

	var mods []hotkey.Modifier
	if hc.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if hc.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if hc.Alt {
		mods = append(mods, hotkey.ModOption)
	}
	if hc.Cmd {
		mods = append(mods, hotkey.ModCmd)
	}
	if len(mods) == 0 {
		return Config{}, fmt.Errorf("hotkey %q needs at least one modifier", hc.Key)
	}

	return Config{Modifiers: mods, Key: key}, nil
}
