package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a level name to a LogLevel. Unknown names fall back to Info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Format selects how log lines are rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

type Logger struct {
	level  LogLevel
	logger zerolog.Logger
}

func NewLogger(level LogLevel) *Logger {
	return NewWithWriter(os.Stdout, level, FormatConsole)
}

// NewWithWriter builds a logger writing to w in the given format.
func NewWithWriter(w io.Writer, level LogLevel, format Format) *Logger {
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.DateTime,
		}
	}
	return &Logger{
		level:  level,
		logger: zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger(),
	}
}

// SetLevel changes the minimum level that is written.
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.logger = l.logger.Level(level.zerolog())
}

func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Fatal writes the message and exits the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LevelFatal, format, args...)
	os.Exit(1)
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	var event *zerolog.Event
	switch level {
	case LevelDebug:
		event = l.logger.Debug()
	case LevelWarn:
		event = l.logger.Warn()
	case LevelError:
		event = l.logger.Error()
	case LevelFatal:
		// WithLevel keeps zerolog from exiting before Fatal returns to us
		event = l.logger.WithLevel(zerolog.FatalLevel)
	default:
		event = l.logger.Info()
	}
	event.Str("caller", caller).Msgf(format, args...)
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitLogger replaces the global logger.
func InitLogger(level LogLevel, format Format) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = NewWithWriter(os.Stdout, level, format)
}

// SetLogger installs l as the global logger.
func SetLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// Convenience functions
func Debug(format string, args ...interface{}) {
	GetLogger().log(LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().log(LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().log(LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().log(LevelError, format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().log(LevelFatal, format, args...)
	os.Exit(1)
}
