package utils

import (
	"strconv"

	"github.com/redis/go-redis/v9"

	"terrain-api/internal/logger"
)

// OpenRedisFromEnv：从环境变量打开 Redis 客户端，支持 REDIS_DB 选择
// 约束：REDIS_HOST 为空时返回 nil（不启用缓存）；REDIS_DB 解析失败回退到 0
func OpenRedisFromEnv() *redis.Client {
	host := Env("REDIS_HOST", "")
	if host == "" {
		logger.L().Debug("redis_disabled")
		return nil
	}
	addr := host + ":" + Env("REDIS_PORT", "6379")
	db := 0
	if n, err := strconv.Atoi(Env("REDIS_DB", "0")); err == nil && n >= 0 {
		db = n
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: Env("REDIS_PASS", ""), DB: db})
}
