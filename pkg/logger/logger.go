package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	sugar *zap.SugaredLogger
}

func New() *Logger {
	var core *zap.Logger
	var err error

	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		core, err = zap.NewProduction(zap.AddCallerSkip(2))
	} else {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		core, err = cfg.Build(zap.AddCallerSkip(2))
	}
	if err != nil {
		panic(err)
	}

	return &Logger{sugar: core.Sugar()}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// Global logger instance
var GlobalLogger = New()

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.Info(format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.Error(format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.Debug(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.Fatal(format, v...)
}
