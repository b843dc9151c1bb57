// internal/logger/logger.go
//
// Structured JSON logger (Zap + Lumberjack).
//
// Context
// -------
// Lifecycle and error events go to one JSON log per day under
// `<root>/logs/YYYY-MM-DD.log`.  In an interactive TTY the same events are
// teed to stdout in console form.  Lumberjack handles rotation, compression,
// and retention.
//
// Both cores share one `zap.AtomicLevel`.  The logger is usually built
// before the configuration is resolved, so the level starts at Info and is
// later moved by `directive.Apply` to Debug (debug mode) or to silent.
//
// Usage
// -----
//
//	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
//	log, err := logger.New(root, logger.RunningInTTY(), lvl)
//	if err != nil { … }
//	rt, err := directive.Apply(snap, directive.Options{Level: &lvl})
//
// Notes
// -----
// • ISO-8601 timestamps and lowercase levels.
// • Internal zap errors are written to the same file sink.
package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a *zap.SugaredLogger writing JSON to <root>/logs/YYYY-MM-DD.log,
// plus a console core when tee is true.  The logger is installed as the
// process-wide default via zap.ReplaceGlobals.
func New(rootDir string, tee bool, level zap.AtomicLevel) (*zap.SugaredLogger, error) {
	logDir := filepath.Join(rootDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, time.Now().Format("2006-01-02")+".log"),
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	}

	encCfg := encoderConfig()
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(fileSink), level),
	}
	if tee {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.ErrorOutput(zapcore.AddSync(fileSink)),
	)
	zap.ReplaceGlobals(z)

	s := z.Sugar()
	s.Infow("logger online", "tee", tee, "level", level.Level().String())
	return s, nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

// RunningInTTY returns true when stdout is a character device.
func RunningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
