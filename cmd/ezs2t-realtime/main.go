// Command ezs2t-realtime streams microphone audio to ElevenLabs realtime
// speech-to-text and types the transcript into the focused application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

const version = "0.1.0"

func init() {
	// Cocoa (systray, hotkey) must run on the main thread
	runtime.LockOSThread()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
