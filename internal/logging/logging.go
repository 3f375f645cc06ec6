// Package logging builds the zap loggers used by the fcodec command.
package logging

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level, the encoding and an optional rotating log file.
// Console output always goes to stderr so that generated output on stdout
// stays clean.
type Config struct {
	Level  string
	Format string
	// File, when set, receives a JSON copy of every entry.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig logs info and above to the console.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     FormatConsole,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// New returns a logger for cfg. The returned function flushes buffered
// entries and closes the log file; it should be deferred by the caller.
func New(cfg Config) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "logging: level %q", cfg.Level)
	}

	var console zapcore.Encoder
	switch cfg.Format {
	case "", FormatConsole:
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !isTerminal(os.Stderr) {
			ec.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		console = zapcore.NewConsoleEncoder(ec)
	case FormatJSON:
		console = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return nil, nil, errors.Errorf("logging: unknown format %q", cfg.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(console, zapcore.Lock(os.Stderr), level),
	}
	var file *lumberjack.Logger
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, errors.Wrap(err, "logging: create log directory")
		}
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			level,
		))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return log, func() {
		_ = log.Sync()
		if file != nil {
			_ = file.Close()
		}
	}, nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
