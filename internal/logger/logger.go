// 包 logger：统一初始化与获取日志器，避免各模块重复配置；通过环境变量控制日志级别、格式与文件输出
package logger

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 默认日志器：在进程级复用，避免多处初始化导致输出不一致
var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
	fileSink      *lumberjack.Logger
)

// Setup：初始化默认日志器
// 背景：集中化日志配置，便于按环境统一调整级别与格式；摄取任务耗时较长，可选写入滚动文件便于事后排查
// 约束：始终输出到标准错误；LOG_FILE 非空时同时写入该文件，按 LOG_MAX_MB（默认 50）滚动，保留 LOG_MAX_BACKUPS 份
func Setup() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return setupLocked()
}

func setupLocked() *slog.Logger {
	var w io.Writer = os.Stderr
	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
	if p := os.Getenv("LOG_FILE"); p != "" {
		fileSink = &lumberjack.Logger{
			Filename:   p,
			MaxSize:    envInt("LOG_MAX_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, fileSink)
	}
	defaultLogger = slog.New(newHandler(w, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")))
	return defaultLogger
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// L：获取默认日志器
// 背景：为业务代码提供快捷访问；若未初始化则回退到 Setup
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		return setupLocked()
	}
	return defaultLogger
}

// Close：关闭文件输出（进程退出前调用）
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileSink == nil {
		return nil
	}
	err := fileSink.Close()
	fileSink = nil
	return err
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return def
}
