package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %q", s)
	}
}

// sink is the shared, rotating output behind one or more Loggers.
type sink struct {
	mu            sync.RWMutex
	level         Level
	file          *os.File
	out           *log.Logger
	console       io.Writer
	logDir        string
	currentDay    string
	retentionDays int
}

// Logger writes leveled log lines. A nil *Logger discards everything, so
// components can be constructed without one in tests.
type Logger struct {
	sink   *sink
	prefix string
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	Level         Level
	RetentionDays int
	// Console mirrors every line to this writer (usually os.Stderr). Nil disables it.
	Console io.Writer
	// DisableFile skips the rotating log file entirely.
	DisableFile bool
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	logDir := filepath.Join(homeDir, "Library", "Application Support", "EzS2T-Realtime", "logs")

	return Config{
		LogDir:        logDir,
		Level:         INFO,
		RetentionDays: 7,
	}
}

// New creates a new logger
func New(config Config) (*Logger, error) {
	s := &sink{
		level:         config.Level,
		console:       config.Console,
		logDir:        config.LogDir,
		retentionDays: config.RetentionDays,
	}

	if config.DisableFile {
		s.out = log.New(s.writer(nil), "", log.LstdFlags)
		return &Logger{sink: s}, nil
	}

	if err := s.rotate(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &Logger{sink: s}, nil
}

// NewConsole returns a logger that only writes to w.
func NewConsole(w io.Writer, level Level) *Logger {
	l, _ := New(Config{Level: level, Console: w, DisableFile: true})
	return l
}

// With returns a logger sharing the same output whose lines are tagged with
// the given component name.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	prefix := component
	if l.prefix != "" {
		prefix = l.prefix + "/" + component
	}
	return &Logger{sink: l.sink, prefix: prefix}
}

func (s *sink) writer(file *os.File) io.Writer {
	switch {
	case file != nil && s.console != nil:
		return io.MultiWriter(file, s.console)
	case file != nil:
		return file
	case s.console != nil:
		return s.console
	default:
		return io.Discard
	}
}

// rotate opens a new log file when the day changed
func (s *sink) rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := time.Now().Format("20060102")
	if s.currentDay == today && s.file != nil {
		return nil
	}

	if s.file != nil {
		s.file.Close()
	}

	if err := os.MkdirAll(s.logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("ezs2t-realtime-%s.log", today)
	file, err := os.OpenFile(filepath.Join(s.logDir, filename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	s.file = file
	s.currentDay = today
	s.out = log.New(s.writer(file), "", log.LstdFlags)

	if err := s.cleanOldLogs(); err != nil {
		s.out.Printf("[WARN] Failed to clean old logs: %v", err)
	}

	return nil
}

// cleanOldLogs deletes log files older than retentionDays
func (s *sink) cleanOldLogs() error {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	entries, err := os.ReadDir(s.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			// Continue even if we can't delete a file
			_ = os.Remove(filepath.Join(s.logDir, entry.Name()))
		}
	}

	return nil
}

func (s *sink) checkRotation() {
	s.mu.RLock()
	currentDay, hasFile := s.currentDay, s.file != nil
	s.mu.RUnlock()

	if !hasFile {
		return
	}
	if currentDay != time.Now().Format("20060102") {
		if err := s.rotate(); err != nil {
			// Can't log this error since logging is failing
			fmt.Fprintf(os.Stderr, "Failed to rotate log: %v\n", err)
		}
	}
}

func (l *Logger) output(level Level, format string, v ...interface{}) {
	if l == nil || l.sink == nil {
		return
	}

	s := l.sink
	s.mu.RLock()
	enabled := level >= s.level
	s.mu.RUnlock()
	if !enabled {
		return
	}

	s.checkRotation()

	s.mu.RLock()
	out := s.out
	s.mu.RUnlock()
	if out == nil {
		return
	}

	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		out.Printf("[%s] %s: %s", level, l.prefix, msg)
		return
	}
	out.Printf("[%s] %s", level, msg)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) { l.output(DEBUG, format, v...) }

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) { l.output(INFO, format, v...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) { l.output(WARN, format, v...) }

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) { l.output(ERROR, format, v...) }

// Close closes the log file
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		l.sink.out = log.New(l.sink.writer(nil), "", log.LstdFlags)
		return err
	}
	return nil
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	if l == nil || l.sink == nil {
		return
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	if l == nil || l.sink == nil {
		return ERROR
	}
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return l.sink.level
}
