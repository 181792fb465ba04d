// 包 utils：Postgres/Redis 连接与环境变量读取工具
package utils

import (
	"database/sql"
	"net/url"

	_ "github.com/lib/pq"

	"terrain-api/internal/logger"
)

// BuildPostgresDSNFromEnv：由 PG_* 环境变量拼接 DSN
// 约束：未设置 PG_HOST 时返回空串，表示不启用数据库
func BuildPostgresDSNFromEnv() string {
	host := Env("PG_HOST", "")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + Env("PG_PORT", "5432"),
		Path:     "/" + Env("PG_DB", "terrain"),
		RawQuery: "sslmode=" + Env("PG_SSLMODE", "disable"),
	}
	user := Env("PG_USER", "postgres")
	if pass := Env("PG_PASSWORD", ""); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// 文档注释：按环境变量打开 Postgres 连接池
// 背景：数据库为可选组件（山峰数据源与游戏成绩持久化），未配置 PG_HOST 时返回 (nil, nil)。
// 约束：sql.Open 不建立连接，调用方需自行 Ping。
func OpenPostgresFromEnv() (*sql.DB, error) {
	dsn := BuildPostgresDSNFromEnv()
	if dsn == "" {
		logger.L().Debug("pg_disabled")
		return nil, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(EnvInt("PG_MAX_OPEN_CONNS", 10))
	db.SetMaxIdleConns(EnvInt("PG_MAX_IDLE_CONNS", 5))
	return db, nil
}
