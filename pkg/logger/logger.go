package logger

import (
	"io"
	"os"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls level, encoding and destination of the process logger
type Config struct {
	Level  string // debug, info, warn, error
	Format string // auto, json, console, logfmt
	Output string // stdout, file

	// File rotation, used when Output is "file"
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger. "auto" picks console on a terminal and JSON otherwise.
func New(cfg Config) *zap.Logger {
	level := zap.InfoLevel
	if cfg.Level != "" {
		_ = level.UnmarshalText([]byte(cfg.Level))
	}

	writer := newWriter(cfg)
	core := zapcore.NewCore(newEncoder(cfg.Format, writer), zapcore.AddSync(writer), level)

	return zap.New(core, zap.AddCaller())
}

func newWriter(cfg Config) io.Writer {
	if cfg.Output == "file" && cfg.File != "" {
		return &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
	return os.Stdout
}

func newEncoder(format string, w io.Writer) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	if format == "" || format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "console"
		}
	}

	switch format {
	case "console":
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		return zapcore.NewConsoleEncoder(encoderConfig)
	case "logfmt":
		return zaplogfmt.NewEncoder(encoderConfig)
	default:
		return zapcore.NewJSONEncoder(encoderConfig)
	}
}

// NewNop returns a logger that discards everything, for tests
func NewNop() *zap.Logger {
	return zap.NewNop()
}
