package utils

import (
	"os"
	"path/filepath"
	"strconv"

	"party-map/internal/migrate"
	"party-map/internal/store"
)

func BuildPostgresDSNFromEnv() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("PG_USER")
	if user == "" {
		user = "postgres"
	}
	pass := os.Getenv("PG_PASSWORD")
	db := os.Getenv("PG_DB")
	if db == "" {
		db = "partymap"
	}
	ssl := os.Getenv("PG_SSLMODE")
	if ssl == "" {
		ssl = "disable"
	}
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}

// SQLiteDSNFromEnv：SQLITE_PATH，默认 data/partymap.db；开启 WAL 与忙等待
func SQLiteDSNFromEnv() string {
	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = filepath.Join("data", "partymap.db")
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// OpenStoreFromEnv：STORE_DRIVER=postgres|sqlite（默认 postgres）选择方言并打开存储
// PG_MAX_OPEN_CONNS / PG_MAX_IDLE_CONNS 只对 postgres 生效
func OpenStoreFromEnv() (*store.Store, error) {
	d, err := migrate.ParseDialect(os.Getenv("STORE_DRIVER"))
	if err != nil {
		return nil, err
	}
	if d == migrate.SQLite {
		return store.Open(d, SQLiteDSNFromEnv())
	}
	st, err := store.Open(d, BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			st.DB().SetMaxOpenConns(n)
		}
	}
	if v := os.Getenv("PG_MAX_IDLE_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			st.DB().SetMaxIdleConns(n)
		}
	}
	return st, nil
}
