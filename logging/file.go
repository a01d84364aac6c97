package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of log files.
const (
	logFileMaxSizeMB  = 100
	logFileMaxBackups = 2
)

// NewFileAppendedLogger returns a logger that writes to stderr like NewLogger
// and appends the same entries as JSON lines to a size rotated file at path.
// The returned closer closes the file.
func NewFileAppendedLogger(name, path string) (Logger, io.Closer) {
	config := NewLoggerConfig()
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
	}

	fileEncoderConfig := config.EncoderConfig
	fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig), zapcore.AddSync(file), config.Level)

	base := zap.Must(config.Build()).WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	return &impl{
		name:          name,
		level:         config.Level,
		SugaredLogger: base.Sugar().Named(name),
	}, file
}
