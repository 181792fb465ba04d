// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"terrain-api/internal/api"
	"terrain-api/internal/game"
	"terrain-api/internal/geoip"
	"terrain-api/internal/hills"
	"terrain-api/internal/logger"
	"terrain-api/internal/metrics"
	"terrain-api/internal/middleware"
	"terrain-api/internal/migrate"
	"terrain-api/internal/store"
	"terrain-api/internal/terrain"
	"terrain-api/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	os.Exit(run())
}

// run：返回退出码，使数据库、GeoIP 与日志文件的延迟关闭在退出前执行
func run() int {
	// 日志初始化
	l := logger.Setup()
	defer logger.Close()
	l.Debug("log_init_ok")
	apiBase := utils.Env("API_BASE", "/api")
	l.Debug("config_api_base", "base", apiBase)

	// 数据库可选：山峰数据源与游戏成绩
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		return 1
	}
	var st *store.Store
	if db != nil {
		defer db.Close()
		if err := db.Ping(); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			return 1
		}
		st = store.AttachDB(db)
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	// 文档注释：地形只读打开
	// 背景：冷构建耗时且需下载，由 terrain-ingest 完成；服务端缺缓存时直接退出并提示。
	ts, err := terrain.Open(terrain.OptionsFromEnv())
	if err != nil {
		l.Error("terrain_open_error", "err", err)
		return 1
	}
	if n := utils.EnvInt("TERRAIN_DEBUG_DOWNSAMPLE", 1); n > 1 {
		ts = ts.Coarse(n)
		l.Warn("terrain_downsampled", "factor", n, "spacing", ts.Spacing())
	}

	ix, err := loadHills(context.Background(), st)
	if err != nil {
		l.Error("hills_load_error", "err", err)
		return 1
	}

	deps := api.Deps{Terrain: ts, Hills: ix, Redis: rc}
	if st != nil {
		deps.Board = st
	}
	// 全国网格首次构建样条需要数十秒，之后读磁盘缓存；关闭时 method=spline 返回 503，游戏不启用
	if utils.EnvBool("SPLINE_ENABLED", true) {
		sp, err := ts.Spline(true)
		if err != nil {
			l.Error("spline_build_error", "err", err)
		} else {
			deps.Spline = sp
			l.Info("spline_ready")
		}
	}

	if utils.EnvBool("GAME_ENABLED", true) && deps.Spline != nil {
		tokens, err := game.LoadTokens(utils.Env("GAME_TOKENS_PATH", filepath.Join("data", "game", "tokens.txt")))
		if err != nil {
			l.Error("game_tokens_error", "err", err)
			return 1
		}
		opt := game.Options{Sessions: game.NewSessions(utils.EnvInt("GAME_SESSIONS_MAX", 1024), utils.EnvSeconds("GAME_SESSION_TTL_S", 24*time.Hour))}
		if st != nil {
			opt.Sink = st
		}
		w, h := ts.Dimensions()
		deps.Room = game.NewRoom(deps.Spline, ix, tokens, float64(w), float64(h), opt)
		l.Info("game_ready", "users", len(tokens))
	}

	if p := utils.Env("GEOIP_CITY_PATH", filepath.Join("data", "geoip", "GeoLite2-City.mmdb")); p != "" {
		if loc, err := geoip.Open(p); err == nil {
			defer loc.Close()
			deps.Geo = loc
			l.Info("geoip_ready", "path", p)
		} else {
			l.Warn("geoip_unavailable", "path", p, "err", err)
		}
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(deps)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := utils.Env("ADDR", ":8080")
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	if utils.EnvBool("TLS_ENABLE", false) {
		certPath := utils.Env("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := utils.Env("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "terrain-api.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			return 1
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		return serveErr(l, s.ListenAndServeTLS(certPath, keyPath))
	}
	l.Info("listening", "addr", addr)
	return serveErr(l, s.ListenAndServe())
}

// 文档注释：加载山顶索引
// 背景：HILLS_SOURCE=db 时从数据库读取（需先运行 hills-import），否则读取 CSV 压缩包。
func loadHills(ctx context.Context, st *store.Store) (*hills.Index, error) {
	src := strings.ToLower(utils.Env("HILLS_SOURCE", "zip"))
	if src == "db" {
		if st == nil {
			return nil, errors.New("HILLS_SOURCE=db requires PG_HOST")
		}
		return st.LoadHills(ctx)
	}
	return hills.LoadZip(utils.Env("HILLS_ZIP", filepath.Join("data", "hills", "hills.zip")))
}

func serveErr(l interface{ Error(string, ...any) }, err error) int {
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		return 1
	}
	return 0
}
