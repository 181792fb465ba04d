// 包 store: 提供与 PostgreSQL 的数据访问层，包含山顶数据与游戏成绩读写
package store

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"terrain-api/internal/game"
	"terrain-api/internal/hills"
	"terrain-api/internal/logger"
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：批量写入山顶（按 id 覆盖）
// 背景：数据源更新时排名会整体变化，先清空再在同一事务内写入，避免 rank 唯一索引在中间状态冲突。
// 约束：任一行失败整体回滚。
func (s *Store) ReplaceHills(ctx context.Context, hs []hills.Hill) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM hills"); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO hills(id, rank, name, meters, x, y) VALUES($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO UPDATE SET rank=EXCLUDED.rank, name=EXCLUDED.name, meters=EXCLUDED.meters, x=EXCLUDED.x, y=EXCLUDED.y")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for i, h := range hs {
		if _, err := stmt.ExecContext(ctx, h.ID, h.Rank, h.Name, h.Meters, h.X, h.Y); err != nil {
			return i, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logger.L().Info("db_hills_replaced", "count", len(hs))
	return len(hs), nil
}

// LoadHills: 按排名读取全部山顶并建立索引
func (s *Store) LoadHills(ctx context.Context) (*hills.Index, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, rank, name, meters, x, y FROM hills ORDER BY rank")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	b := hills.NewBuilder()
	for rows.Next() {
		var h hills.Hill
		if err := rows.Scan(&h.ID, &h.Rank, &h.Name, &h.Meters, &h.X, &h.Y); err != nil {
			return nil, err
		}
		b.Add(h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_hills_loaded", "count", b.Len())
	return b.Finalize(), nil
}

// SaveResult: 记录一次最终答案（实现 game.ResultSink）
func (s *Store) SaveResult(ctx context.Context, r game.Result) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO game_results(username, x, y, height, square, hill_id, distance_m, queries, created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)",
		r.User, r.X, r.Y, r.Height, r.Square, r.HillID, r.Distance, r.Queries, r.At)
	if err == nil {
		logger.L().Debug("db_result_saved", "user", r.User, "distance_m", r.Distance)
	}
	return err
}

// 文档注释：距离最近的若干成绩（排行榜）
// 约束：limit 超出 [1,100] 时取 10；山名按 hill_id 关联，山顶表缺失记录时为空串。
func (s *Store) BestResults(ctx context.Context, limit int) ([]game.Result, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT r.username, r.x, r.y, r.height, r.square, r.hill_id, COALESCE(h.name, ''), r.distance_m, r.queries, r.created_at
        FROM game_results r LEFT JOIN hills h ON h.id = r.hill_id
        ORDER BY r.distance_m ASC, r.queries ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []game.Result
	for rows.Next() {
		var r game.Result
		if err := rows.Scan(&r.User, &r.X, &r.Y, &r.Height, &r.Square, &r.HillID, &r.Hill, &r.Distance, &r.Queries, &r.At); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
