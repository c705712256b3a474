package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

// defaultZapLevel defines the fallback log level when an unknown level string is provided.
const defaultZapLevel = zapcore.DebugLevel

// toZapLevel converts a textual level to zapcore.Level using known level constants.
func toZapLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultZapLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// newConsoleCore builds a zapcore.Core with a console encoder targeting stdout.
func newConsoleCore(level zapcore.Level) zapcore.Core {
	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	ws := zapcore.Lock(os.Stdout) // thread-safe writer
	return zapcore.NewCore(encoder, zapcore.AddSync(ws), zap.NewAtomicLevelAt(level))
}

// newFileCore builds a core appending to the given log file, or nil if
// the file cannot be opened.
func newFileCore(level zapcore.Level, path string) zapcore.Core {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: cannot open log file %s: %v, logging to console only\n", path, err)
		return nil
	}
	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	return zapcore.NewCore(encoder, zapcore.AddSync(f), zap.NewAtomicLevelAt(level))
}

// newZapLogger constructs a sugared zap logger writing to the console
// and, when filePath is set and usable, to the log file as well.
func newZapLogger(levelStr, filePath string) *Logger {
	level := toZapLevel(levelStr)
	cores := []zapcore.Core{newConsoleCore(level)}
	if filePath != "" {
		if fc := newFileCore(level, filePath); fc != nil {
			cores = append(cores, fc)
		}
	}
	return &Logger{
		SugaredLogger: zap.New(zapcore.NewTee(cores...)).Sugar(),
	}
}
