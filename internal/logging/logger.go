package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger wraps the charm log.Logger with file output and path management
type Logger struct {
	*log.Logger
	mu          sync.Mutex
	logFilePath string
	file        *os.File
	// echo receives a copy of every line; nil logs to the file only
	echo io.Writer
}

// NewLogger creates a new logger that writes to stdout and appends to logFile
func NewLogger(logFile string) (*Logger, error) {
	l := &Logger{
		Logger: log.NewWithOptions(os.Stdout, log.Options{
			ReportCaller:    false,
			ReportTimestamp: true,
			Prefix:          "Hyperwatch",
		}),
		echo: os.Stdout,
	}

	if err := l.ReinitializeWithPath(logFile); err != nil {
		return nil, err
	}

	return l, nil
}

// NewFileLogger creates a logger that only appends to logFile. Used by the
// console, which owns the terminal.
func NewFileLogger(logFile string) (*Logger, error) {
	l := &Logger{
		Logger: log.NewWithOptions(io.Discard, log.Options{
			ReportTimestamp: true,
			Prefix:          "Hyperwatch",
		}),
	}

	if err := l.ReinitializeWithPath(logFile); err != nil {
		return nil, err
	}

	return l, nil
}

// NewDiscardLogger returns a logger that drops everything. Used in tests and
// when no log destination could be opened.
func NewDiscardLogger() *Logger {
	return &Logger{
		Logger: log.NewWithOptions(io.Discard, log.Options{}),
	}
}

// ReinitializeWithPath switches file output to a new path
func (l *Logger) ReinitializeWithPath(logFile string) error {
	// Ensure log directory exists
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}
	l.file = file
	l.logFilePath = logFile
	if l.echo != nil {
		l.Logger.SetOutput(io.MultiWriter(l.echo, file))
	} else {
		l.Logger.SetOutput(file)
	}

	return nil
}

// SetDebug toggles debug level output
func (l *Logger) SetDebug(debug bool) {
	if debug {
		l.Logger.SetLevel(log.DebugLevel)
		return
	}
	l.Logger.SetLevel(log.InfoLevel)
}

// ReadLogLines reads all lines from the log file
func (l *Logger) ReadLogLines() ([]string, error) {
	file, err := os.Open(l.GetLogFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	return lines, nil
}

// GetLogFilePath returns the path to the log file
func (l *Logger) GetLogFilePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logFilePath
}

// Close releases the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if l.echo != nil {
		l.Logger.SetOutput(l.echo)
	} else {
		l.Logger.SetOutput(io.Discard)
	}
	return err
}

// DefaultLogPath returns the default log file path
func DefaultLogPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/hyperwatch.log"
	}
	return filepath.Join(homeDir, ".hyperwatch", "logs", "hyperwatch.log")
}
