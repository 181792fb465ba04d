package migrate

import (
	"database/sql"

	"terrain-api/internal/logger"
)

// 背景：首次运行自动创建山顶与游戏成绩表
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hills (
            id INT PRIMARY KEY,
            rank INT NOT NULL,
            name TEXT NOT NULL,
            meters DOUBLE PRECISION NOT NULL,
            x INT NOT NULL,
            y INT NOT NULL
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_hills_rank ON hills(rank)`,
		`CREATE INDEX IF NOT EXISTS idx_hills_lower_name ON hills(lower(name))`,
		`CREATE TABLE IF NOT EXISTS game_results (
            id BIGSERIAL PRIMARY KEY,
            username TEXT NOT NULL,
            x INT NOT NULL,
            y INT NOT NULL,
            height DOUBLE PRECISION NOT NULL,
            square TEXT NOT NULL,
            hill_id INT NOT NULL,
            distance_m DOUBLE PRECISION NOT NULL,
            queries INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_game_results_distance ON game_results(distance_m)`,
		`CREATE INDEX IF NOT EXISTS idx_game_results_user ON game_results(username, created_at DESC)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
