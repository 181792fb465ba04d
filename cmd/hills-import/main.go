// 山顶导入工具：读取 CSV 压缩包，整表替换数据库中的山顶记录
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"terrain-api/internal/hills"
	"terrain-api/internal/logger"
	"terrain-api/internal/migrate"
	"terrain-api/internal/store"
	"terrain-api/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	src := flag.String("zip", utils.Env("HILLS_ZIP", filepath.Join("data", "hills", "hills.zip")), "hills CSV archive")
	flag.Parse()
	os.Exit(run(*src))
}

func run(src string) int {
	l := logger.Setup()
	defer logger.Close()

	db, err := utils.OpenPostgresFromEnv()
	if err != nil || db == nil {
		l.Error("db_open_error", "err", err, "configured", db != nil)
		fmt.Fprintln(os.Stderr, "hills-import: PG_HOST must point at a reachable database")
		return 1
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		return 1
	}

	ix, err := hills.LoadZip(src)
	if err != nil {
		l.Error("hills_load_error", "path", src, "err", err)
		return 1
	}
	n, err := store.AttachDB(db).ReplaceHills(context.Background(), ix.All())
	if err != nil {
		l.Error("hills_import_error", "err", err)
		return 1
	}
	l.Info("hills_import_ok", "rows", n)
	fmt.Printf("imported %d hills from %s\n", n, src)
	return 0
}
