// Package i18n holds the menu, status and notification strings in Japanese
// and English.
package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Language represents a supported language
type Language string

const (
	// LanguageJapanese is the default UI language
	LanguageJapanese Language = "ja"
	// LanguageEnglish is the fallback for missing keys
	LanguageEnglish Language = "en"
)

// Translator manages translations for the application
type Translator struct {
	currentLanguage Language
	translations    map[Language]map[string]string
	mu              sync.RWMutex
}

// NewTranslator creates a translator preloaded with the built-in strings
func NewTranslator(language Language) *Translator {
	if !ValidateLanguage(string(language)) {
		language = LanguageJapanese
	}
	return &Translator{
		currentLanguage: language,
		translations: map[Language]map[string]string{
			LanguageJapanese: DefaultJapaneseTranslations(),
			LanguageEnglish:  DefaultEnglishTranslations(),
		},
	}
}

// LoadTranslations merges a flat YAML (or JSON) key/value document into the
// language's strings, overriding built-in entries.
func (t *Translator) LoadTranslations(language Language, data []byte) error {
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse translations: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.translations[language]
	if !ok {
		current = make(map[string]string, len(overrides))
		t.translations[language] = current
	}
	for k, v := range overrides {
		current[k] = v
	}
	return nil
}

// LoadTranslationsFromFile loads translation overrides from a file
func (t *Translator) LoadTranslationsFromFile(language Language, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read translation file: %w", err)
	}

	return t.LoadTranslations(language, data)
}

// SetLanguage sets the current language
func (t *Translator) SetLanguage(language Language) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentLanguage = language
}

// GetLanguage returns the current language
func (t *Translator) GetLanguage() Language {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentLanguage
}

// Translate translates a key in the current language, falling back to
// English and then to the key itself.
func (t *Translator) Translate(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if text, ok := t.translations[t.currentLanguage][key]; ok {
		return text
	}
	if text, ok := t.translations[LanguageEnglish][key]; ok {
		return text
	}
	return key
}

// TranslateWithFormat translates a key and substitutes {name} placeholders
func (t *Translator) TranslateWithFormat(key string, params map[string]string) string {
	text := t.Translate(key)

	for param, value := range params {
		text = strings.ReplaceAll(text, "{"+param+"}", value)
	}

	return text
}

// HasTranslation checks if a translation key exists in the current language
func (t *Translator) HasTranslation(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.translations[t.currentLanguage][key]
	return ok
}

// ValidateLanguage validates that a language is supported
func ValidateLanguage(language string) bool {
	return language == string(LanguageJapanese) || language == string(LanguageEnglish)
}

// GetSupportedLanguages returns a list of supported languages
func GetSupportedLanguages() []Language {
	return []Language{LanguageJapanese, LanguageEnglish}
}

// DefaultEnglishTranslations returns default English translations
func DefaultEnglishTranslations() map[string]string {
	return map[string]string{
		// Menu items
		"menu.start":    "Start Recording",
		"menu.stop":     "Stop Recording",
		"menu.copy":     "Copy Last Transcript",
		"menu.status":   "Open Status Page",
		"menu.devices":  "Input Device",
		"menu.denoise":  "Noise Suppression",
		"menu.quit":     "Quit",
		"menu.hotkey":   "Hotkey: {hotkey}",
		"device.system": "System Default",

		// Status
		"status.idle":       "Idle",
		"status.connecting": "Connecting",
		"status.recording":  "Recording",
		"status.stopping":   "Finishing",

		// Notifications
		"notification.recording_started": "Recording started ({hotkey} to stop)",
		"notification.recording_stopped": "Recording stopped",
		"notification.copied":            "Transcript copied to clipboard",

		// Errors
		"error.api_key_missing":        "ElevenLabs API key is not set. Add api_key to {path} or set ELEVENLABS_API_KEY.",
		"error.start_failed":           "Could not start recording: {reason}",
		"error.device_unavailable":     "No usable microphone was found",
		"error.connect_failed":         "Could not reach the transcription service",
		"error.hotkey_failed":          "Failed to register hotkey: {reason}",
		"error.mic_permission_denied":  "Microphone access denied",
		"error.accessibility_required": "Accessibility permission is required to type transcripts",
	}
}

// DefaultJapaneseTranslations returns default Japanese translations
func DefaultJapaneseTranslations() map[string]string {
	return map[string]string{
		// Menu items
		"menu.start":    "録音を開始",
		"menu.stop":     "録音を停止",
		"menu.copy":     "最後の文字起こしをコピー",
		"menu.status":   "ステータスページを開く",
		"menu.devices":  "入力デバイス",
		"menu.denoise":  "ノイズ抑制",
		"menu.quit":     "終了",
		"menu.hotkey":   "ホットキー: {hotkey}",
		"device.system": "システムデフォルト",

		// Status
		"status.idle":       "待機中",
		"status.connecting": "接続中",
		"status.recording":  "録音中",
		"status.stopping":   "終了処理中",

		// Notifications
		"notification.recording_started": "録音を開始しました（{hotkey} で停止）",
		"notification.recording_stopped": "録音を停止しました",
		"notification.copied":            "文字起こしをクリップボードにコピーしました",

		// Errors
		"error.api_key_missing":        "ElevenLabs の API キーが未設定です。{path} に api_key を追加するか ELEVENLABS_API_KEY を設定してください。",
		"error.start_failed":           "録音を開始できませんでした: {reason}",
		"error.device_unavailable":     "使用できるマイクが見つかりません",
		"error.connect_failed":         "文字起こしサービスに接続できませんでした",
		"error.hotkey_failed":          "ホットキーの登録に失敗: {reason}",
		"error.mic_permission_denied":  "マイクへのアクセスが拒否されました",
		"error.accessibility_required": "文字起こしを入力するにはアクセシビリティ権限が必要です",
	}
}
