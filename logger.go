package stremio

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new logger with sane defaults and the passed level.
// Supported levels are: debug, info, warn, error.
// Only logs with that level and above are then logged (e.g. with "info" no debug logs will be logged).
// The encoding parameter is optional and will only be used when non-zero. Valid values: "console" (default) and "json".
//
// It's recommended to use the returned logger when adding custom endpoints or middlewares to the addon,
// so that all logs have the same format.
func NewLogger(level, encoding string) (*zap.Logger, error) {
	logConfig, err := loggerConfig(level, encoding)
	if err != nil {
		return nil, err
	}
	return logConfig.Build()
}

// NewFileLogger is like NewLogger, but additionally writes to the given file.
// The file is rotated when it reaches maxSizeMB and the three most recent rotated files are kept.
func NewFileLogger(level, encoding, path string, maxSizeMB int) (*zap.Logger, error) {
	if path == "" {
		return nil, errors.New("no log file path given")
	}
	logConfig, err := loggerConfig(level, encoding)
	if err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		Compress:   true,
	}
	// Files are always written as JSON so they can be processed by log shippers
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(logConfig.EncoderConfig), zapcore.AddSync(fileWriter), logConfig.Level)

	return logConfig.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
}

func loggerConfig(level, encoding string) (zap.Config, error) {
	if encoding == "" {
		encoding = "console"
	} else if encoding != "console" && encoding != "json" {
		return zap.Config{}, fmt.Errorf("unknown encoding %q", encoding)
	}
	logLevel, err := parseZapLevel(level)
	if err != nil {
		return zap.Config{}, err
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(logLevel)
	logConfig.Encoding = encoding
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	// No stack traces, errors carry enough context
	logConfig.DisableStacktrace = true
	logConfig.OutputPaths = []string{"stdout"}

	return logConfig, nil
}

func parseZapLevel(logLevel string) (zapcore.Level, error) {
	switch logLevel {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return 0, errors.New(`unknown logging level "` + logLevel + `"`)
}
