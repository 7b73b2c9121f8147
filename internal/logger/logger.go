// Package logger provides leveled, printf-style logging for sandfs backed by
// zerolog.
//
// The package-level functions (Debug, Info, Warn, Error) write to a global
// logger configured once at startup through Configure. Components that need
// structured context (a connection id, a client address) derive a child
// logger with With and use the same printf-style methods on it.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config selects level, encoding and destination of the global logger.
type Config struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string

	// Format is "text" (human-readable console output) or "json"
	Format string

	// Output is "stdout", "stderr" or a file path (opened in append mode)
	Output string
}

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	root         = newZerolog(os.Stdout, "text")
	outputFile   *os.File
)

func newZerolog(w io.Writer, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if format == "json" {
		return zerolog.New(w).With().Timestamp().Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05",
	}).With().Timestamp().Logger()
}

func parseLevel(level string) (Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// Configure replaces the global logger according to cfg.
//
// Empty fields fall back to INFO, text and stdout. A previously opened log
// file is closed once the new destination is in place.
func Configure(cfg Config) error {
	var (
		w    io.Writer
		file *os.File
	)

	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file %q: %w", cfg.Output, err)
		}
		w = f
		file = f
	}

	format := strings.ToLower(cfg.Format)
	if format != "" && format != "text" && format != "json" {
		if file != nil {
			_ = file.Close()
		}
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	mu.Lock()
	defer mu.Unlock()

	root = newZerolog(w, format)
	if lvl, ok := parseLevel(cfg.Level); ok {
		currentLevel = lvl
	} else if cfg.Level == "" {
		currentLevel = LevelInfo
	}

	if outputFile != nil {
		_ = outputFile.Close()
	}
	outputFile = file

	return nil
}

// SetOutput redirects the global logger to w using the given format.
// Mostly useful in tests that assert on log output.
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	root = newZerolog(w, format)
}

func SetLevel(level string) {
	lvl, ok := parseLevel(level)
	if !ok {
		return
	}
	mu.Lock()
	currentLevel = lvl
	mu.Unlock()
}

// GetLevel returns the active minimum level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

func log(z zerolog.Logger, level Level, format string, v ...any) {
	mu.RLock()
	threshold := currentLevel
	mu.RUnlock()

	if level < threshold {
		return
	}

	z.WithLevel(level.zerolog()).Msg(fmt.Sprintf(format, v...))
}

func global() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

func Debug(format string, v ...any) {
	log(global(), LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(global(), LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(global(), LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(global(), LevelError, format, v...)
}

// Logger is a child logger carrying structured fields.
// A nil *Logger writes through the global logger without fields.
type Logger struct {
	fields map[string]any
}

// With returns a Logger that attaches fields to every line it writes.
//
// Fields are resolved against the global logger at write time, so a child
// created before Configure still honors the final destination and format.
func With(fields map[string]any) *Logger {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &Logger{fields: copied}
}

// With returns a new child logger with the extra fields merged in.
func (l *Logger) With(fields map[string]any) *Logger {
	if l == nil {
		return With(fields)
	}
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{fields: merged}
}

func (l *Logger) zerolog() zerolog.Logger {
	if l == nil {
		return global()
	}
	return global().With().Fields(l.fields).Logger()
}

func (l *Logger) Debug(format string, v ...any) {
	log(l.zerolog(), LevelDebug, format, v...)
}

func (l *Logger) Info(format string, v ...any) {
	log(l.zerolog(), LevelInfo, format, v...)
}

func (l *Logger) Warn(format string, v ...any) {
	log(l.zerolog(), LevelWarn, format, v...)
}

func (l *Logger) Error(format string, v ...any) {
	log(l.zerolog(), LevelError, format, v...)
}
