// Package logging wires go-zero's logx for the command line tools, optionally
// routing every logx call through a zap logger.
package logging

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	BackendLogx = "logx"
	BackendZap  = "zap"
)

// Conf extends logx.LogConf with the choice of writer backend.
type Conf struct {
	logx.LogConf
	Backend string `json:",default=logx,options=logx|zap"`
}

// Setup applies c to the global logx instance.
func Setup(c Conf) error {
	if err := logx.SetUp(c.LogConf); err != nil {
		return fmt.Errorf("logging: setup logx: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(c.Backend), BackendZap) {
		return nil
	}
	logger, err := NewZapLogger(c.Level)
	if err != nil {
		return fmt.Errorf("logging: build zap logger: %w", err)
	}
	logx.SetWriter(NewZapWriter(logger))
	return nil
}

// NewZapLogger builds a production zap logger with ISO8601 timestamps at the
// given logx level name.
func NewZapLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "time"
	config.Level = zap.NewAtomicLevelAt(zapLevel(level))
	return config.Build(zap.AddCallerSkip(callerSkip))
}

func zapLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "error":
		return zapcore.ErrorLevel
	case "severe":
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}
