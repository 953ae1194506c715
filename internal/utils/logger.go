package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger provides leveled logging with verbose mode support.
type Logger struct {
	verbose bool
	mu      sync.RWMutex
}

var (
	loggerInstance *Logger
	once           sync.Once
)

// GetLogger returns the singleton logger instance.
func GetLogger() *Logger {
	once.Do(func() {
		loggerInstance = &Logger{}
	})
	return loggerInstance
}

// SetVerboseMode sets the verbose mode globally.
func SetVerboseMode(verbose bool) {
	GetLogger().SetVerbose(verbose)
}

// SetVerbose sets the verbose mode for this logger instance.
func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

// IsVerbose returns whether verbose mode is enabled.
func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

// formatMessage formats a message with optional printf-style arguments.
func formatMessage(msgOrFormat string, args ...interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(msgOrFormat, args...)
	}
	return msgOrFormat
}

// Debug logs a debug message (only shown when verbose=true).
func (l *Logger) Debug(msgOrFormat string, args ...interface{}) {
	if !l.IsVerbose() {
		return
	}
	fmt.Fprintf(os.Stderr, "%s [DEBUG] %s\n", time.Now().Format("15:04:05"), formatMessage(msgOrFormat, args...))
}

// Info logs an info message (always shown).
func (l *Logger) Info(msgOrFormat string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[INFO] %s\n", formatMessage(msgOrFormat, args...))
}

// Warn logs a warning message (always shown).
func (l *Logger) Warn(msgOrFormat string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[WARN] %s\n", formatMessage(msgOrFormat, args...))
}

// Error logs an error message (always shown).
func (l *Logger) Error(msgOrFormat string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] %s\n", formatMessage(msgOrFormat, args...))
}

// Debugf logs a debug message using the global logger.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Infof logs an info message using the global logger.
func Infof(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warnf logs a warning message using the global logger.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Errorf logs an error message using the global logger.
func Errorf(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// FileLogger provides logging for the long-running display daemon to a file.
type FileLogger struct {
	logger   *log.Logger
	logFile  *os.File
	enabled  bool
	filePath string
}

// NewFileLogger creates a file logger at the given path. On open failure it
// degrades to a discarding logger and returns the error so callers can warn.
func NewFileLogger(path string) (*FileLogger, error) {
	fl := &FileLogger{filePath: path}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fl.logger = log.New(io.Discard, "", log.LstdFlags)
		return fl, err
	}

	fl.logFile = file
	fl.logger = log.New(file, "", log.LstdFlags)
	fl.enabled = true
	return fl, nil
}

// Printf logs a formatted message.
func (fl *FileLogger) Printf(format string, args ...interface{}) {
	if fl.logger != nil {
		fl.logger.Printf(format, args...)
	}
}

// Println logs a message with a newline.
func (fl *FileLogger) Println(args ...interface{}) {
	if fl.logger != nil {
		fl.logger.Println(args...)
	}
}

// Close closes the log file and degrades to a discarding logger.
func (fl *FileLogger) Close() {
	if fl.logFile != nil {
		_ = fl.logFile.Close()
		fl.logFile = nil
	}
	fl.logger = log.New(io.Discard, "", log.LstdFlags)
	fl.enabled = false
}

// GetLogPath returns the log file path.
func (fl *FileLogger) GetLogPath() string {
	return fl.filePath
}

// IsEnabled returns whether file logging is active.
func (fl *FileLogger) IsEnabled() bool {
	return fl.enabled
}
