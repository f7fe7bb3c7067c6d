// Package logging provides leveled structured logging with JSON and
// human-readable output formats.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var levelPriority = map[Level]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(s) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return Level(s)
	default:
		return InfoLevel
	}
}

// Format represents the output format for logs.
type Format string

const (
	// JSONFormat outputs one JSON object per line.
	JSONFormat Format = "json"
	// HumanFormat outputs timestamped human-readable lines.
	HumanFormat Format = "human"
)

// Fields carries structured key/value context for a log entry.
type Fields map[string]interface{}

// Config holds logger configuration.
type Config struct {
	Format Format
	Level  Level
	Output io.Writer // Optional, defaults to stderr
}

// Logger provides structured logging. Loggers are safe for concurrent use.
type Logger struct {
	config    Config
	component string

	mu     *sync.Mutex
	writer io.Writer
}

// New creates a logger with the given configuration.
func New(config Config) *Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}
	return &Logger{
		config: config,
		mu:     &sync.Mutex{},
		writer: writer,
	}
}

// With returns a logger that tags every entry with the given component name.
func (l *Logger) With(component string) *Logger {
	clone := *l
	clone.component = component
	return &clone
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
}

func (l *Logger) enabled(level Level) bool {
	return levelPriority[level] >= levelPriority[l.config.Level]
}

func (l *Logger) log(level Level, message string, fields Fields) {
	if !l.enabled(level) {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Component: l.component,
		Message:   message,
		Fields:    fields,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.config.Format == JSONFormat {
		l.writeJSON(e)
	} else {
		l.writeHuman(e)
	}
}

func (l *Logger) writeJSON(e entry) {
	data, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}
	fmt.Fprintln(l.writer, string(data))
}

func (l *Logger) writeHuman(e entry) {
	if e.Component != "" {
		fmt.Fprintf(l.writer, "%s [%s] %s: %s", e.Timestamp, e.Level, e.Component, e.Message)
	} else {
		fmt.Fprintf(l.writer, "%s [%s] %s", e.Timestamp, e.Level, e.Message)
	}

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprint(l.writer, " |")
		for _, k := range keys {
			fmt.Fprintf(l.writer, " %s=%v", k, e.Fields[k])
		}
	}
	fmt.Fprintln(l.writer)
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields Fields) {
	l.log(DebugLevel, message, fields)
}

// Info logs an info message.
func (l *Logger) Info(message string, fields Fields) {
	l.log(InfoLevel, message, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields Fields) {
	l.log(WarnLevel, message, fields)
}

// Error logs an error message.
func (l *Logger) Error(message string, fields Fields) {
	l.log(ErrorLevel, message, fields)
}
