// Package logger provides centralized structured logging with optional
// file output and size-based rotation.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	instance *logrus.Logger
	once     sync.Once
	mu       sync.Mutex
	logFile  *os.File
)

// Config holds logger configuration.
type Config struct {
	Level      string
	FilePath   string
	MaxSize    int64 // Max size in bytes before rotation
	MaxBackups int   // Number of rotated files to keep
}

// Initialize sets up the global logger instance.
func Initialize(cfg Config) error {
	var err error
	once.Do(func() {
		instance = logrus.New()

		level, parseErr := logrus.ParseLevel(cfg.Level)
		if parseErr != nil {
			level = logrus.InfoLevel
		}
		instance.SetLevel(level)

		instance.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})

		if cfg.FilePath == "" {
			instance.SetOutput(os.Stdout)
			return
		}
		err = setupFileOutput(cfg)
	})
	return err
}

func setupFileOutput(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := openLogFile(cfg.FilePath)
	if err != nil {
		return err
	}
	logFile = f
	instance.SetOutput(io.MultiWriter(os.Stdout, logFile))
	return nil
}

func openLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// RotateIfNeeded renames the current log file once it exceeds cfg.MaxSize
// and opens a fresh one. Callers decide when to check; the logger runs no
// background timers of its own.
func RotateIfNeeded(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil || cfg.MaxSize <= 0 {
		return
	}
	info, err := logFile.Stat()
	if err != nil || info.Size() <= cfg.MaxSize {
		return
	}

	_ = logFile.Close()
	backupPath := fmt.Sprintf("%s.%s", cfg.FilePath, time.Now().Format("20060102-150405"))
	_ = os.Rename(cfg.FilePath, backupPath)

	f, err := openLogFile(cfg.FilePath)
	if err != nil {
		instance.SetOutput(os.Stdout)
		logFile = nil
		return
	}
	logFile = f
	instance.SetOutput(io.MultiWriter(os.Stdout, logFile))

	cleanOldBackups(cfg)
}

// StartRotationMonitor checks the log file size every interval and
// rotates it once it exceeds cfg.MaxSize. Returns a stop function. A
// no-op when no file output is configured.
func StartRotationMonitor(cfg Config, interval time.Duration) func() {
	if cfg.FilePath == "" || cfg.MaxSize <= 0 {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Minute
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				RotateIfNeeded(cfg)
			case <-done:
				return
			}
		}
	}()

	var stopOnce sync.Once
	return func() { stopOnce.Do(func() { close(done) }) }
}

func cleanOldBackups(cfg Config) {
	dir := filepath.Dir(cfg.FilePath)
	base := filepath.Base(cfg.FilePath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), base+".") {
			backups = append(backups, e.Name())
		}
	}
	sort.Strings(backups)

	if cfg.MaxBackups > 0 && len(backups) > cfg.MaxBackups {
		for _, name := range backups[:len(backups)-cfg.MaxBackups] {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// Get returns the logger instance, initializing it with defaults if needed.
func Get() *logrus.Logger {
	if instance == nil {
		if err := Initialize(Config{Level: "info"}); err != nil {
			instance = logrus.New()
		}
	}
	return instance
}

// WithField creates an entry with a single field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Get().WithField(key, value)
}

// WithFields creates an entry with multiple fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Get().WithFields(fields)
}

// Close closes the log file and resets the logger so tests can
// re-initialize it.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		instance.SetOutput(os.Stdout)
		_ = logFile.Close()
		logFile = nil
	}
	once = sync.Once{}
}

// Debug logs a debug message.
func Debug(args ...interface{}) { Get().Debug(args...) }

// Info logs an info message.
func Info(args ...interface{}) { Get().Info(args...) }

// Warn logs a warning message.
func Warn(args ...interface{}) { Get().Warn(args...) }

// Error logs an error message.
func Error(args ...interface{}) { Get().Error(args...) }

// Fatal logs a fatal message and exits.
func Fatal(args ...interface{}) { Get().Fatal(args...) }

// Debugf logs a formatted debug message.
func Debugf(format string, args ...interface{}) { Get().Debugf(format, args...) }

// Infof logs a formatted info message.
func Infof(format string, args ...interface{}) { Get().Infof(format, args...) }

// Warnf logs a formatted warning message.
func Warnf(format string, args ...interface{}) { Get().Warnf(format, args...) }

// Errorf logs a formatted error message.
func Errorf(format string, args ...interface{}) { Get().Errorf(format, args...) }

// Fatalf logs a formatted fatal message and exits.
func Fatalf(format string, args ...interface{}) { Get().Fatalf(format, args...) }
