// Package logging builds the zap logger used by courier.
//
// The terminal belongs to the TUI, so logs go to a JSON-lines file under the
// data directory. The log view tails the same file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file created inside the data directory.
const FileName = "courier.log"

// Path returns the log file path for dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// New returns a JSON logger writing to path at the given level ("debug",
// "info", "warn", "error"). The parent directory is created if needed.
func New(path, level string) (*zap.Logger, zap.AtomicLevel, error) {
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, lvl, fmt.Errorf("log level: %w", err)
		}
		lvl.SetLevel(parsed)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, lvl, fmt.Errorf("create log dir: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = lvl
	config.Sampling = nil
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, lvl, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, lvl, nil
}
