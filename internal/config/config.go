package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
)

// APIKeyEnv overrides the configured API key when set.
const APIKeyEnv = "ELEVENLABS_API_KEY"

// Config holds application configuration
type Config struct {
	APIKey              string       `json:"api_key" yaml:"api_key"`
	LanguageCode        string       `json:"language_code" yaml:"language_code"`
	SampleRate          int          `json:"sample_rate" yaml:"sample_rate"`
	VADEnabled          bool         `json:"vad_enabled" yaml:"vad_enabled"`
	VADSilenceThreshold float64      `json:"vad_silence_threshold" yaml:"vad_silence_threshold"` // seconds
	NoiseSuppression    bool         `json:"noise_suppression" yaml:"noise_suppression"`
	AudioDeviceID       int          `json:"audio_device_id" yaml:"audio_device_id"`
	FrameQueueSize      int          `json:"frame_queue_size" yaml:"frame_queue_size"`
	Hotkey              HotkeyConfig `json:"hotkey" yaml:"hotkey"`
	UILanguage          string       `json:"ui_language" yaml:"ui_language"` // "ja" or "en"
	LogLevel            string       `json:"log_level" yaml:"log_level"`
	StatusPort          int          `json:"status_port" yaml:"status_port"` // 0 disables the status server

	// storedAPIKey is the file's value while APIKey holds the env override.
	storedAPIKey string
	apiKeyFromEnv bool
	mu            sync.RWMutex
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl" yaml:"ctrl"`
	Shift bool   `json:"shift" yaml:"shift"`
	Alt   bool   `json:"alt" yaml:"alt"`
	Cmd   bool   `json:"cmd" yaml:"cmd"`
	Key   string `json:"key" yaml:"key"` // e.g., "Backslash"
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LanguageCode:        "zho",
		SampleRate:          16000,
		VADEnabled:          true,
		VADSilenceThreshold: 0.5,
		NoiseSuppression:    true,
		AudioDeviceID:       -1, // -1 means use system default device
		FrameQueueSize:      500,
		Hotkey: HotkeyConfig{
			Cmd:   true,
			Shift: true,
			Key:   "Backslash",
		},
		UILanguage: "ja",
		LogLevel:   "info",
		StatusPort: 18765,
	}
}

// Load loads configuration from the specified path. Missing files yield the
// defaults; missing fields keep their default values. Files ending in .yaml
// or .yml are parsed as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if isYAML(path) {
			err = yaml.Unmarshal(data, config)
		} else {
			err = json.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if config.Hotkey.Key == "" {
		config.Hotkey.Key = "Backslash"
	}

	config.storedAPIKey = config.APIKey
	if key := os.Getenv(APIKeyEnv); key != "" {
		config.APIKey = key
		config.apiKeyFromEnv = true
	}

	return config, nil
}

// Save saves configuration to the specified path. An API key taken from the
// environment is not written.
func (c *Config) Save(path string) error {
	out := c.Clone()
	if c.apiKeyFromEnvironment() {
		out.APIKey = c.storedKey()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(out)
	} else {
		data, err = json.MarshalIndent(out, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds a credential.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) apiKeyFromEnvironment() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKeyFromEnv
}

func (c *Config) storedKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storedAPIKey
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, "Library", "Application Support", "EzS2T-Realtime", "config.json")
}

// Update updates configuration fields from a decoded JSON object.
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range updates {
		switch key {
		case "api_key":
			if v, ok := value.(string); ok {
				c.APIKey = v
				c.storedAPIKey = v
				c.apiKeyFromEnv = false
			}
		case "language_code":
			if v, ok := value.(string); ok {
				if strings.TrimSpace(v) == "" {
					return fmt.Errorf("language_code cannot be empty")
				}
				c.LanguageCode = v
			}
		case "vad_enabled":
			if v, ok := value.(bool); ok {
				c.VADEnabled = v
			}
		case "vad_silence_threshold":
			if v, ok := value.(float64); ok {
				if v <= 0 || v > 3 {
					return fmt.Errorf("invalid vad_silence_threshold: %v", v)
				}
				c.VADSilenceThreshold = v
			}
		case "noise_suppression":
			if v, ok := value.(bool); ok {
				c.NoiseSuppression = v
			}
		case "audio_device_id":
			if v, ok := value.(float64); ok {
				c.AudioDeviceID = int(v)
			}
		case "frame_queue_size":
			if v, ok := value.(float64); ok {
				if v < 500 {
					return fmt.Errorf("invalid frame_queue_size: %v (minimum 500)", v)
				}
				c.FrameQueueSize = int(v)
			}
		case "ui_language":
			if v, ok := value.(string); ok {
				if v != "ja" && v != "en" {
					return fmt.Errorf("invalid ui_language: %s", v)
				}
				c.UILanguage = v
			}
		case "log_level":
			if v, ok := value.(string); ok {
				if _, err := logger.ParseLevel(v); err != nil {
					return err
				}
				c.LogLevel = v
			}
		case "hotkey":
			if v, ok := value.(map[string]interface{}); ok {
				if ctrl, ok := v["ctrl"].(bool); ok {
					c.Hotkey.Ctrl = ctrl
				}
				if shift, ok := v["shift"].(bool); ok {
					c.Hotkey.Shift = shift
				}
				if alt, ok := v["alt"].(bool); ok {
					c.Hotkey.Alt = alt
				}
				if cmd, ok := v["cmd"].(bool); ok {
					c.Hotkey.Cmd = cmd
				}
				if key, ok := v["key"].(string); ok {
					c.Hotkey.Key = key
				}
			}
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		APIKey:              c.APIKey,
		LanguageCode:        c.LanguageCode,
		SampleRate:          c.SampleRate,
		VADEnabled:          c.VADEnabled,
		VADSilenceThreshold: c.VADSilenceThreshold,
		NoiseSuppression:    c.NoiseSuppression,
		AudioDeviceID:       c.AudioDeviceID,
		FrameQueueSize:      c.FrameQueueSize,
		Hotkey:              c.Hotkey,
		UILanguage:          c.UILanguage,
		LogLevel:            c.LogLevel,
		StatusPort:          c.StatusPort,
		storedAPIKey:        c.storedAPIKey,
		apiKeyFromEnv:       c.apiKeyFromEnv,
	}
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// MaskedAPIKey returns the API key with all but the last four characters hidden.
func (c *Config) MaskedAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.APIKey) <= 4 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return strings.Repeat("*", len(c.APIKey)-4) + c.APIKey[len(c.APIKey)-4:]
}

// ValidateAPIKey checks that an API key is configured
func (c *Config) ValidateAPIKey() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api_key is not set (configure it or set %s)", APIKeyEnv)
	}
	return nil
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if strings.TrimSpace(c.LanguageCode) == "" {
		return fmt.Errorf("language_code cannot be empty")
	}

	// The service only accepts 16kHz PCM.
	if c.SampleRate != 16000 {
		return fmt.Errorf("invalid sample_rate: %d (must be 16000)", c.SampleRate)
	}

	if c.VADSilenceThreshold <= 0 || c.VADSilenceThreshold > 3 {
		return fmt.Errorf("invalid vad_silence_threshold: %v (must be between 0 and 3 seconds)", c.VADSilenceThreshold)
	}

	if c.AudioDeviceID < -1 {
		return fmt.Errorf("invalid audio_device_id: %d", c.AudioDeviceID)
	}

	if c.FrameQueueSize < 500 || c.FrameQueueSize > 10000 {
		return fmt.Errorf("invalid frame_queue_size: %d (must be between 500 and 10000)", c.FrameQueueSize)
	}

	if c.UILanguage != "ja" && c.UILanguage != "en" {
		return fmt.Errorf("invalid ui_language: %s (must be 'ja' or 'en')", c.UILanguage)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	if c.StatusPort != 0 && (c.StatusPort < 1024 || c.StatusPort > 65535) {
		return fmt.Errorf("invalid status_port: %d (must be 0 or between 1024 and 65535)", c.StatusPort)
	}

	if c.Hotkey.Key == "" {
		return fmt.Errorf("hotkey key cannot be empty")
	}

	// API key validation is separate (can be empty for first run)
	// Use ValidateAPIKey() when starting a session

	return nil
}
