package server

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide sugared logger. It discards output until InitLogger runs.
var Log = zap.NewNop().Sugar()

// InitLogger sends logs to a rolling file, optionally mirrored to stderr.
// level is one of debug, info, warn, error.
func InitLogger(filePath, level string, stderr bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}

	// 10MB per file, 3 backups, 7 days
	lj := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   false,
	}

	ws := zapcore.AddSync(lj)
	if stderr {
		ws = zapcore.NewMultiWriteSyncer(ws, zapcore.Lock(os.Stderr))
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)
	core := zapcore.NewCore(encoder, ws, lvl)

	logger := zap.New(core, zap.AddCaller())
	Log = logger.Sugar()
	return nil
}

// SyncLogger flushes buffered entries.
func SyncLogger() {
	if Log != nil {
		_ = Log.Sync()
	}
}
