package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Env：读取环境变量，未设置或为空时返回默认值
func Env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt：整数配置；解析失败回退默认值
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// EnvBool：仅 "true"/"1"/"yes" 视为真，其余非空值视为假
func EnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "true", "1", "yes":
		return true
	}
	return false
}

// EnvSeconds：以秒为单位的时长配置
func EnvSeconds(key string, def time.Duration) time.Duration {
	if n := EnvInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
