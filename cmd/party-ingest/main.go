// 数据导入工具：读取聚会列表（JSON 数组或逐行 JSON，文件或 URL）并在一个事务内写入存储
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"party-map/internal/cache"
	"party-map/internal/coord"
	"party-map/internal/ingest"
	"party-map/internal/logger"
	"party-map/internal/migrate"
	"party-map/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	src := flag.String("src", os.Getenv("PARTY_SYNC_URL"), "party list file or http(s) URL")
	sysName := flag.String("coord", "bd09", "coordinate system of the input: wgs84|gcj02|bd09")
	flag.Parse()
	l := logger.Setup()

	if *src == "" {
		l.Error("ingest_no_source", "hint", "pass -src or set PARTY_SYNC_URL")
		os.Exit(2)
	}
	sys, err := coord.ParseSystem(*sysName)
	if err != nil {
		l.Error("ingest_bad_coord", "err", err)
		os.Exit(2)
	}
	st, err := utils.OpenStoreFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := migrate.EnsureSchema(st.DB(), st.Dialect()); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	ctx := context.Background()
	n, err := ingest.FetchAndImport(ctx, st, *src, sys)
	if err != nil {
		l.Error("ingest_error", "src", *src, "err", err)
		os.Exit(1)
	}
	// 通知在线服务丢弃旧快照
	if rc := utils.OpenRedisFromEnv(); rc != nil {
		v := cache.New(rc, 0, 0).Bump(ctx)
		_ = rc.Close()
		l.Debug("snapshot_version_bumped", "version", v)
	}
	l.Info("ingest_done", "count", n, "coord", sys)
}
