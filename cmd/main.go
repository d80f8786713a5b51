// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"party-map/internal/amap"
	"party-map/internal/api"
	"party-map/internal/cache"
	"party-map/internal/coord"
	"party-map/internal/ingest"
	"party-map/internal/locate"
	"party-map/internal/logger"
	"party-map/internal/metrics"
	"party-map/internal/middleware"
	"party-map/internal/migrate"
	"party-map/internal/service"
	"party-map/internal/utils"
	"party-map/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok", "commit", version.Commit)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}

	st, err := utils.OpenStoreFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.DB().PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_open_ok", "dialect", st.Dialect())
	}
	if err := migrate.EnsureSchema(st.DB(), st.Dialect()); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
	} else {
		l.Info("redis_ping_ok")
	}

	cfg := service.ConfigFromEnv()
	svc := service.New(st, cache.New(rc, cfg.LRUSize, cfg.CacheTTL), cfg)

	if src := os.Getenv("PARTY_SYNC_URL"); src != "" {
		sys, err := coord.ParseSystem(os.Getenv("PARTY_SYNC_COORD"))
		if err != nil {
			l.Error("config_sync_coord_error", "err", err)
			sys = coord.BD09
		}
		if n, err := ingest.EnsureInitialized(ctx, st, src, sys); err != nil {
			l.Error("ingest_init_error", "err", err)
		} else if n > 0 {
			l.Info("ingest_init_done", "count", n)
			svc.Invalidate(ctx)
		}
		ingest.StartDailyShanghai(ctx, st, src, sys, func(int) { svc.Invalidate(ctx) })
	}

	loc := buildLocator(ctx)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(svc, st, loc, os.Getenv("ADMIN_TOKEN"))
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	if ui := os.Getenv("UI_DIST"); ui != "" {
		mux.Handle("/", http.FileServer(http.Dir(ui)))
	}
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + apiBase + "'\n"))
		_, _ = w.Write([]byte("window.__CLUSTER_GRID_SIZE__=" + strconv.Itoa(cfg.GridSize) + "\n"))
		_, _ = w.Write([]byte("window.__CLUSTER_MAX_ZOOM__=" + strconv.Itoa(cfg.MaxZoom) + "\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'"))
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdown)
	}()

	if os.Getenv("TLS_ENABLE") == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "party-map.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		if err := s.ListenAndServeTLS(certPath, keyPath); err != nil && err != http.ErrServerClosed {
			l.Error("server_error", "err", err)
		}
		return
	}
	l.Info("listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		l.Error("server_error", "err", err)
	}
}

// buildLocator：按优先级注册定位来源：EdgeOne 头、GeoIP2、高德、外部 HTTP、ip2region
func buildLocator(ctx context.Context) *locate.Manager {
	l := logger.L()
	hb := 30 * time.Second
	if v := os.Getenv("LOCATE_HEARTBEAT_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			hb = time.Duration(n) * time.Second
		}
	}
	centroids := locate.BuiltinCentroids()
	if p := os.Getenv("CENTROIDS_PATH"); p != "" {
		if c, err := locate.LoadCentroidsCSV(p); err == nil {
			centroids = c
			l.Info("centroids_ready", "count", c.Len())
		} else {
			l.Error("centroids_error", "err", err)
		}
	}
	m := locate.NewManager(hb)
	m.Register(&locate.EdgeOneSource{Centroids: centroids})
	if p := os.Getenv("GEOIP_PATH"); p != "" {
		if s, err := locate.OpenGeoIP(p, centroids); err == nil {
			m.Register(s)
		} else {
			l.Error("geoip_open_error", "err", err)
		}
	}
	if key := os.Getenv("AMAP_SERVER_KEY"); key != "" {
		c := amap.NewClient(key)
		c.HTTP = &http.Client{Timeout: 4 * time.Second}
		m.Register(&locate.AMapSource{Client: c})
	}
	if ep := os.Getenv("EXT_LOCATE_ENDPOINT"); ep != "" {
		name := os.Getenv("EXT_LOCATE_NAME")
		if name == "" {
			name = "ext"
		}
		m.Register(locate.NewHTTPSource(name, ep, centroids))
	}
	if p := os.Getenv("IP2REGION_V4_PATH"); p != "" {
		if s, err := locate.OpenIP2Region(p, centroids); err == nil {
			m.Register(s)
		} else {
			l.Error("ip2region_open_error", "err", err)
		}
	}
	m.Start(ctx)
	return m
}
