// 包 migrate：数据库结构迁移；迁移脚本随二进制嵌入，按方言选择目录
package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"party-map/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Dialect：支持的数据库方言
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect：未知值返回错误；空串视为 postgres
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "", "postgres", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unknown store driver %q", s)
}

// EnsureSchema：执行全部未应用的迁移；已是最新版本时返回 nil
// 约束：不关闭 migrate 实例，否则会连带关闭传入的连接池
func EnsureSchema(db *sql.DB, d Dialect) error {
	m, err := newMigrate(db, d)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	v, dirty, _ := m.Version()
	logger.L().Debug("schema_done", "dialect", d, "version", v, "dirty", dirty)
	return nil
}

// Version：当前迁移版本；尚未迁移时返回 0
func Version(db *sql.DB, d Dialect) (uint, bool, error) {
	m, err := newMigrate(db, d)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Down：回滚最近一次迁移
func Down(db *sql.DB, d Dialect) error {
	m, err := newMigrate(db, d)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB, d Dialect) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+string(d))
	if err != nil {
		return nil, fmt.Errorf("open migrations for %s: %w", d, err)
	}
	var driver database.Driver
	switch d {
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case SQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unknown dialect %q", d)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s migrate driver: %w", d, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(d), driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logger.With("migrate").Debug(fmt.Sprintf(format, v...))
}

func (migrateLogger) Verbose() bool { return false }
