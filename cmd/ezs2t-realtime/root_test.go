package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/config"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"tray", "listen", "devices", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("Expected subcommand %q, got %v (%v)", name, sub, err)
		}
	}

	for _, flag := range []string{"config", "log-level", "no-denoise"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("Expected persistent flag --%s", flag)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "ezs2t-realtime version "+version) {
		t.Errorf("Unexpected output: %s", out.String())
	}
	if !strings.Contains(out.String(), transcriber.DefaultModel) {
		t.Errorf("Expected model in output: %s", out.String())
	}
}

func TestLoadFlags(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "")
	path := writeConfig(t, "api_key: sk-file\nlog_level: warn\naudio_device_id: 3\n")

	tests := []struct {
		name    string
		flags   rootFlags
		level   logger.Level
		wantErr bool
	}{
		{"config level", rootFlags{configPath: path}, logger.WARN, false},
		{"flag overrides level", rootFlags{configPath: path, logLevel: "debug"}, logger.DEBUG, false},
		{"invalid level", rootFlags{configPath: path, logLevel: "loud"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tt.flags.load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if e.level != tt.level {
				t.Errorf("Expected level %v, got %v", tt.level, e.level)
			}
			if e.configPath != path {
				t.Errorf("Expected config path %s, got %s", path, e.configPath)
			}
			if e.cfg.AudioDeviceID != 3 {
				t.Errorf("Expected device 3, got %d", e.cfg.AudioDeviceID)
			}
		})
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	path := writeConfig(t, "sample_rate: 44100\n")

	flags := rootFlags{configPath: path}
	if _, err := flags.load(); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = "sk-test"
	cfg.LanguageCode = "jpn"
	cfg.VADSilenceThreshold = 1.2
	cfg.AudioDeviceID = 2
	cfg.FrameQueueSize = 800

	e := &env{cfg: cfg}
	opts := e.sessionOptions()

	if opts.Transcriber.APIKey != "sk-test" || opts.Transcriber.LanguageCode != "jpn" {
		t.Errorf("Unexpected transcriber config: %+v", opts.Transcriber)
	}
	if !opts.Transcriber.VADEnabled || opts.Transcriber.VADThreshold != 1.2 {
		t.Errorf("Unexpected VAD settings: %+v", opts.Transcriber)
	}
	if opts.Audio.DeviceID != 2 || opts.Audio.TargetSampleRate != 16000 {
		t.Errorf("Unexpected audio config: %+v", opts.Audio)
	}
	if !opts.Audio.NoiseSuppression {
		t.Error("Expected noise suppression enabled")
	}
	if opts.FrameQueueSize != 800 {
		t.Errorf("Expected queue size 800, got %d", opts.FrameQueueSize)
	}

	e.noDenoise = true
	if e.sessionOptions().Audio.NoiseSuppression {
		t.Error("Expected --no-denoise to disable suppression")
	}
	if !cfg.NoiseSuppression {
		t.Error("--no-denoise must not change the stored config")
	}
}

func TestPrintDevices(t *testing.T) {
	var out bytes.Buffer
	printDevices(&out, []audio.Device{
		{ID: 0, Name: "MacBook Pro Microphone", IsDefault: true, Channels: 1, SampleRate: 48000},
		{ID: 4, Name: "USB Mic", Channels: 2, SampleRate: 44100},
	}, 4)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], " *") || !strings.Contains(lines[0], "48000 Hz") {
		t.Errorf("Unexpected default device line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "> ") || !strings.Contains(lines[1], "USB Mic") {
		t.Errorf("Unexpected selected device line: %q", lines[1])
	}

	out.Reset()
	printDevices(&out, nil, -1)
	if !strings.Contains(out.String(), "No input devices") {
		t.Errorf("Unexpected output: %q", out.String())
	}
}

func TestTranscriptPrinter(t *testing.T) {
	tests := []struct {
		name     string
		partials bool
		events   []transcriber.Event
		expected string
	}{
		{
			name:     "committed only",
			partials: false,
			events: []transcriber.Event{
				{Kind: transcriber.Partial, Text: "hel"},
				{Kind: transcriber.Committed, Text: "hello"},
			},
			expected: "hello\n",
		},
		{
			name:     "partials in place",
			partials: true,
			events: []transcriber.Event{
				{Kind: transcriber.Partial, Text: "hel"},
				{Kind: transcriber.Partial, Text: "hello"},
				{Kind: transcriber.Committed, Text: "hello."},
			},
			expected: clearLine + "hel" + clearLine + "hello" + clearLine + "hello.\n",
		},
		{
			name:     "dangling partial",
			partials: true,
			events: []transcriber.Event{
				{Kind: transcriber.Partial, Text: "wor"},
			},
			expected: clearLine + "wor\n",
		},
		{
			name:     "empty commit",
			partials: false,
			events: []transcriber.Event{
				{Kind: transcriber.Committed, Text: ""},
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := newTranscriptPrinter(&out, tt.partials)
			for _, ev := range tt.events {
				p.OnTranscript(ev)
			}
			p.finish()

			if out.String() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, out.String())
			}
		})
	}
}
