// Package mylog 构造全局使用的 slog 日志器
// text 格式使用 tint 输出彩色日志，json 格式用于生产环境采集
package mylog

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

type Logger = slog.Logger

// ToLogLevel 将配置中的日志级别字符串转换为 slog.Level
func ToLogLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger 创建日志器
// 参数:
//   - logLevel: debug/info/warn/error
//   - logFormat: json 或 text
func NewLogger(logLevel string, logFormat string) *Logger {
	return NewLoggerTo(os.Stderr, logLevel, logFormat)
}

// NewLoggerTo 与 NewLogger 相同，但可以指定输出目标
func NewLoggerTo(w io.Writer, logLevel string, logFormat string) *Logger {
	slogLevel := ToLogLevel(logLevel)

	var handler slog.Handler
	switch logFormat {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     slogLevel,
		})
	default:
		handler = newHandler(slogLevel, w)
	}

	return slog.New(handler)
}

func newHandler(level slog.Level, w io.Writer) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	})
}

// Discard 返回丢弃所有输出的日志器，测试中使用
func Discard() *Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
