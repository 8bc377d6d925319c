// Package logger 统一设置进程级的 slog 输出。
package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
)

// Setup 把默认 logger 换成文本格式并返回，标准库 log 的输出也会转到这里
func Setup(level slog.Level) *slog.Logger {
	return SetupWriter(os.Stderr, level)
}

func SetupWriter(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	l := slog.New(handler)
	slog.SetDefault(l)
	log.SetFlags(0)
	return l
}
