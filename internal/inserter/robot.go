package inserter

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa
#import <Cocoa/Cocoa.h>

int get_pasteboard_change_count() {
    return (int)[[NSPasteboard generalPasteboard] changeCount];
}
*/
import "C"
import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

// RobotConfig holds robotgo keyboard configuration
type RobotConfig struct {
	// PasteThreshold is the rune count from which text is pasted through the
	// clipboard instead of typed. 0 always types.
	PasteThreshold int
	RestoreDelay   time.Duration // Wait before restoring the clipboard
	KeyDelay       time.Duration // Pause between backspaces
}

// DefaultRobotConfig returns the default robotgo keyboard configuration
func DefaultRobotConfig() RobotConfig {
	return RobotConfig{
		PasteThreshold: 64,
		RestoreDelay:   300 * time.Millisecond,
		KeyDelay:       2 * time.Millisecond,
	}
}

// RobotKeyboard implements Keyboard with robotgo. Short text is typed as
// unicode key events; long text is pasted and the previous clipboard content
// restored unless someone else changed it meanwhile.
type RobotKeyboard struct {
	config RobotConfig
}

// NewRobotKeyboard creates a robotgo keyboard
func NewRobotKeyboard(config RobotConfig) *RobotKeyboard {
	return &RobotKeyboard{config: config}
}

// Backspace deletes n characters before the cursor
func (k *RobotKeyboard) Backspace(n int) error {
	for j := 0; j < n; j++ {
		if err := robotgo.KeyTap("backspace"); err != nil {
			return err
		}
		if k.config.KeyDelay > 0 {
			time.Sleep(k.config.KeyDelay)
		}
	}
	return nil
}

// Type inserts text at the cursor
func (k *RobotKeyboard) Type(text string) error {
	if k.config.PasteThreshold > 0 && len([]rune(text)) >= k.config.PasteThreshold {
		return k.paste(text)
	}
	robotgo.TypeStr(text)
	return nil
}

// changeCount returns the pasteboard change count
func changeCount() int {
	return int(C.get_pasteboard_change_count())
}

// paste writes text to the clipboard, sends Cmd+V and restores the saved
// clipboard when ours was the only change.
func (k *RobotKeyboard) paste(text string) error {
	saved, err := robotgo.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read clipboard: %w", err)
	}

	if err := robotgo.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	ours := changeCount()

	time.Sleep(10 * time.Millisecond)
	if err := robotgo.KeyTap("v", "cmd"); err != nil {
		return fmt.Errorf("failed to send paste: %w", err)
	}

	time.Sleep(k.config.RestoreDelay)
	if changeCount() == ours {
		robotgo.WriteAll(saved)
	}
	return nil
}

// CopyToClipboard replaces the clipboard content with text
func CopyToClipboard(text string) error {
	if err := robotgo.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}
