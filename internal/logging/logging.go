// Package logging opens one append-only zap logger per ETL stage.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stage log names.
const (
	Fetch     = "fetch"
	Extract   = "extract"
	Transform = "transform"
	Load      = "load"
	Pipeline  = "pipeline"
)

var stages = []string{Fetch, Extract, Transform, Load, Pipeline}

// Config controls where stage logs go.
type Config struct {
	Dir    string
	Level  string
	Stdout bool
}

// Loggers holds the per-stage loggers and the files behind them.
type Loggers struct {
	loggers map[string]*zap.Logger
	files   []*os.File
}

// Open creates cfg.Dir and opens {Dir}/{stage}.log in append mode for every stage.
// fields are attached to every logger.
func Open(cfg Config, fields ...zap.Field) (*Loggers, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	l := &Loggers{loggers: make(map[string]*zap.Logger, len(stages))}
	for _, stage := range stages {
		path := filepath.Join(cfg.Dir, stage+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		l.files = append(l.files, f)

		core := zapcore.NewCore(enc, zapcore.AddSync(f), level)
		if cfg.Stdout {
			core = zapcore.NewTee(core, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level))
		}
		l.loggers[stage] = zap.New(core).Named(stage).With(fields...)
	}
	return l, nil
}

// Nop returns loggers that discard everything.
func Nop() *Loggers {
	l := &Loggers{loggers: make(map[string]*zap.Logger, len(stages))}
	for _, stage := range stages {
		l.loggers[stage] = zap.NewNop()
	}
	return l
}

// FromLogger returns loggers that all write through base. Tests use it with zaptest/observer.
func FromLogger(base *zap.Logger) *Loggers {
	l := &Loggers{loggers: make(map[string]*zap.Logger, len(stages))}
	for _, stage := range stages {
		l.loggers[stage] = base.Named(stage)
	}
	return l
}

// Stage returns the logger for a stage. Unknown stages log to the pipeline file.
func (l *Loggers) Stage(name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	if lg, ok := l.loggers[name]; ok {
		return lg
	}
	return l.loggers[Pipeline].Named(name)
}

// Sync flushes every logger.
func (l *Loggers) Sync() {
	if l == nil {
		return
	}
	for _, lg := range l.loggers {
		_ = lg.Sync()
	}
}

// Close flushes and closes the log files.
func (l *Loggers) Close() error {
	if l == nil {
		return nil
	}
	l.Sync()
	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	l.files = nil
	return errors.Join(errs...)
}

// encoderConfig renders lines such as
// "2024-03-01T10:00:00.000Z - INFO - extract - message".
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " - ",
	}
}
