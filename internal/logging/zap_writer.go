package logging

import (
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
)

// logx wraps every call in a few frames before reaching the writer.
const callerSkip = 3

// ZapWriter adapts a zap.Logger to logx.Writer.
type ZapWriter struct {
	logger *zap.Logger
}

var _ logx.Writer = (*ZapWriter)(nil)

// NewZapWriter returns a logx.Writer backed by logger.
func NewZapWriter(logger *zap.Logger) *ZapWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapWriter{logger: logger}
}

func (w *ZapWriter) Alert(v any) {
	w.logger.Error(fmt.Sprint(v), zap.Bool("alert", true))
}

func (w *ZapWriter) Close() error {
	return w.logger.Sync()
}

func (w *ZapWriter) Debug(v any, fields ...logx.LogField) {
	w.logger.Debug(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *ZapWriter) Error(v any, fields ...logx.LogField) {
	w.logger.Error(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *ZapWriter) Info(v any, fields ...logx.LogField) {
	w.logger.Info(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *ZapWriter) Severe(v any) {
	w.logger.Error(fmt.Sprint(v), zap.Bool("severe", true))
}

func (w *ZapWriter) Slow(v any, fields ...logx.LogField) {
	w.logger.Warn(fmt.Sprint(v), toZapFields(fields)...)
}

func (w *ZapWriter) Stack(v any) {
	w.logger.Error(fmt.Sprint(v), zap.Stack("stack"))
}

func (w *ZapWriter) Stat(v any, fields ...logx.LogField) {
	w.logger.Info(fmt.Sprint(v), toZapFields(fields)...)
}

func toZapFields(fields []logx.LogField) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
