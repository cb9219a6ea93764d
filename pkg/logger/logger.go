// Package logger provides opinionated logging capabilities for switchboard
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(debug bool) *zap.Logger {
	return NewLoggerWithWriters(debug, os.Stderr)
}

// NewLoggerWithWriters builds a console logger writing to every writer.
// Log output goes to stderr by default so streamed agent output on stdout
// stays clean.
func NewLoggerWithWriters(debug bool, writers ...io.Writer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	// Set log level
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	if len(writers) == 0 {
		writers = []io.Writer{os.Stderr}
	}

	syncers := make([]zapcore.WriteSyncer, 0, len(writers))
	for _, writer := range writers {
		syncers = append(syncers, zapcore.AddSync(writer))
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(syncers...),
		level,
	)

	return zap.New(core, zap.AddCaller())
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}
