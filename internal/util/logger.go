// Package util provides helper functions for logging events
package util

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogger builds the process logger writing JSON lines to stderr,
// installs it as the zap global and redirects the standard log package to it.
func SetupLogger(level string) (*zap.Logger, error) {
	l, err := NewLogger(level, os.Stderr)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l)
	return l, nil
}

// NewLogger creates a JSON logger at the given level ("" means info).
func NewLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		NameKey:     "logger",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		lvl,
	)
	return zap.New(core), nil
}
