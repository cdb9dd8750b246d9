// Package observability owns the process-wide zap logger used by the CLI.
// Library packages take a *zap.Logger instead of reaching for this one.
package observability

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/uiprobe/internal/config"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const ansiReset = "\x1b[0m"

var ansi = map[string]string{
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// Initialize builds the global logger from cfg, writing human output to
// console. Only the first call has any effect.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	once.Do(func() {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		enabled := zap.NewAtomicLevelAt(level)

		cores := []zapcore.Core{consoleCore(cfg, console, enabled)}
		if cfg.LogFile != "" {
			cores = append(cores, fileCore(cfg, enabled))
		}

		opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}
		name := cfg.ServiceName
		if name == "" {
			name = "uiprobe"
		}

		logger := zap.New(zapcore.NewTee(cores...), opts...).Named(name)
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
	})
}

// InitializeLogger logs to stderr; stdout is reserved for reports.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stderr))
}

// ResetForTest clears the global logger. Tests only.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

// GetLogger returns the global logger, or a development logger when the CLI
// has not initialized one.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("uninitialized")
}

// Sync flushes buffered entries before exit. Terminals and pipes reject
// fsync on several platforms, so its error is dropped.
func Sync() {
	if logger := globalLogger.Load(); logger != nil {
		_ = logger.Sync()
	}
}

// consoleCore is single-line text with colored levels for "console", JSON otherwise.
func consoleCore(cfg config.LoggerConfig, w zapcore.WriteSyncer, level zapcore.LevelEnabler) zapcore.Core {
	if cfg.Format != "console" {
		return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), w, level)
	}
	enc := encoderConfig()
	enc.EncodeLevel = paletteEncoder(palette(cfg.Colors))
	// "uiprobe.runner." reads as a prefix in front of the message.
	enc.EncodeName = func(name string, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(name + ".")
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), w, level)
}

// fileCore is always JSON, rotated by lumberjack.
func fileCore(cfg config.LoggerConfig, level zapcore.LevelEnabler) zapcore.Core {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), w, level)
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return enc
}

// palette maps each level to its ANSI code; unknown color names map to "".
func palette(c config.ColorConfig) map[zapcore.Level]string {
	p := map[zapcore.Level]string{
		zapcore.DebugLevel: ansi[c.Debug],
		zapcore.InfoLevel:  ansi[c.Info],
		zapcore.WarnLevel:  ansi[c.Warn],
		zapcore.ErrorLevel: ansi[c.Error],
	}
	for _, l := range []zapcore.Level{zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel} {
		p[l] = ansi[c.Fatal]
	}
	return p
}

func paletteEncoder(p map[zapcore.Level]string) zapcore.LevelEncoder {
	return func(l zapcore.Level, pae zapcore.PrimitiveArrayEncoder) {
		label := strings.ToUpper(l.String())
		if code := p[l]; code != "" {
			label = code + label + ansiReset
		}
		pae.AppendString(label)
	}
}
