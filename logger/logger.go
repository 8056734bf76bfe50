package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

var (
	// Default is the default logger instance
	Default *Logger

	initOnce sync.Once
)

// Init initializes the logger with the given configuration
func Init() {
	initOnce.Do(func() {
		Default = New(os.Stdout)
		Default.Info().
			Str("level", zerolog.GlobalLevel().String()).
			Msg("Logger initialized")
	})
}

// New builds a logger writing to out. Production writes JSON lines,
// everything else uses the console writer.
func New(out io.Writer) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(getLogLevel())

	var w io.Writer = out
	if !isProduction() {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return &Logger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func isProduction() bool {
	return os.Getenv("DEALSCOUT_ENVIRONMENT") == "production"
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if isProduction() {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal returns a fatal event
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	Init()
	Default.Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	Init()
	Default.Warn().Msgf(format, v...)
}

// ForComponent creates a logger for a service component
func ForComponent(name string) *Logger {
	Init()
	return Default.WithField("component", name)
}

// ForStage creates a logger for a pipeline stage
func ForStage(stage string) *Logger {
	Init()
	return Default.WithField("stage", stage)
}

// ForSite creates a logger for a target website
func ForSite(site string) *Logger {
	Init()
	return Default.WithField("site", site)
}

// LogError is a convenience method for logging errors with context
func LogError(component string, err error, format string, v ...interface{}) {
	Init()
	Default.Error().
		Str("component", component).
		Err(err).
		Msg(fmt.Sprintf(format, v...))
}
