// 包 store: 聚会数据访问层，支持 PostgreSQL（lib/pq）与 SQLite（modernc）两种方言
package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"party-map/internal/logger"
	"party-map/internal/metrics"
	"party-map/internal/migrate"
	"party-map/internal/party"

	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"
)

// ErrNotFound：聚会不存在
var ErrNotFound = errors.New("party not found")

// Store: 数据库访问入口，持有连接池
type Store struct {
	db      *sql.DB
	dialect migrate.Dialect
}

func AttachDB(db *sql.DB, d migrate.Dialect) *Store { return &Store{db: db, dialect: d} }

// Open: 按方言打开连接；SQLite 只允许单连接写入
func Open(d migrate.Dialect, dsn string) (*Store, error) {
	driver := "postgres"
	if d == migrate.SQLite {
		driver = "sqlite"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if d == migrate.SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
	}
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() migrate.Dialect { return s.dialect }

// rebind：把 ? 占位符改写为 postgres 的 $n
func (s *Store) rebind(q string) string {
	if s.dialect != migrate.Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StoreOpsTotal.WithLabelValues(op, status).Inc()
}

const selectParty = `SELECT p.id, p.title, p.par_user_id, p.status, p.user_photo, p.lng, p.lat, p.updated_ms,
	COALESCE(j.join_status, -1)
	FROM _parties p
	LEFT JOIN _party_joins j ON j.party_id = p.id AND j.user_id = ?`

func scanParty(sc interface{ Scan(...any) error }) (*party.Party, error) {
	var p party.Party
	var ms int64
	if err := sc.Scan(&p.ID, &p.Title, &p.OrganizerID, &p.Status, &p.UserPhoto, &p.Lng, &p.Lat, &ms, &p.JoinStatus); err != nil {
		return nil, err
	}
	if ms > 0 {
		p.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return &p, nil
}

// ListInBound: 范围内（含边界）对地图可见的聚会，按 id 升序；JoinStatus 按 viewer 填充
func (s *Store) ListInBound(ctx context.Context, b orb.Bound, viewer string) (out []*party.Party, err error) {
	defer func() { observe("list", err) }()
	q := s.rebind(selectParty + `
	WHERE p.lng >= ? AND p.lng <= ? AND p.lat >= ? AND p.lat <= ?
	AND p.status NOT IN (?, ?)
	ORDER BY p.id`)
	rows, err := s.db.QueryContext(ctx, q, viewer,
		b.Min.Lon(), b.Max.Lon(), b.Min.Lat(), b.Max.Lat(),
		party.StatusFinished, party.StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("store_list", "count", len(out), "viewer", viewer)
	return out, nil
}

// Get: 按 id 读取（不过滤状态）
func (s *Store) Get(ctx context.Context, id int64, viewer string) (p *party.Party, err error) {
	defer func() { observe("get", err) }()
	row := s.db.QueryRowContext(ctx, s.rebind(selectParty+` WHERE p.id = ?`), viewer, id)
	p, err = scanParty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

const upsertParty = `INSERT INTO _parties(id, title, par_user_id, status, user_photo, lng, lat, updated_ms)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		par_user_id = EXCLUDED.par_user_id,
		status = EXCLUDED.status,
		user_photo = EXCLUDED.user_photo,
		lng = EXCLUDED.lng,
		lat = EXCLUDED.lat,
		updated_ms = EXCLUDED.updated_ms`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsert(ctx context.Context, ex execer, p *party.Party) error {
	if err := p.Validate(); err != nil {
		return err
	}
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := ex.ExecContext(ctx, s.rebind(upsertParty),
		p.ID, p.Title, p.OrganizerID, p.Status, p.UserPhoto, p.Lng, p.Lat, ts.UnixMilli())
	return err
}

// Upsert: 插入或整体覆盖一场聚会
func (s *Store) Upsert(ctx context.Context, p *party.Party) (err error) {
	defer func() { observe("upsert", err) }()
	if err = s.upsert(ctx, s.db, p); err != nil {
		logger.L().Debug("party_upsert_error", "id", p.ID, "err", err)
	}
	return err
}

// UpsertBatch: 在一个事务内写入全部聚会；任一失败整体回滚
func (s *Store) UpsertBatch(ctx context.Context, ps []*party.Party) (n int, err error) {
	defer func() { observe("upsert_batch", err) }()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	for _, p := range ps {
		if err := s.upsert(ctx, tx, p); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete: 删除聚会及其参加记录；不存在时返回 false
func (s *Store) Delete(ctx context.Context, id int64) (ok bool, err error) {
	defer func() { observe("delete", err) }()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM _party_joins WHERE party_id = ?`), id); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM _parties WHERE id = ?`), id)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

// SetJoin: 记录某用户对聚会的参加状态
func (s *Store) SetJoin(ctx context.Context, partyID int64, userID string, status int) (err error) {
	defer func() { observe("set_join", err) }()
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO _party_joins(party_id, user_id, join_status) VALUES(?, ?, ?)
	ON CONFLICT (party_id, user_id) DO UPDATE SET join_status = EXCLUDED.join_status`), partyID, userID, status)
	return err
}

// Totals: 全部聚会数与地图可见数
type Totals struct {
	Total   int64 `json:"total"`
	Visible int64 `json:"visible"`
}

// Count: 读取聚会总数与可见数，用于 /stats
func (s *Store) Count(ctx context.Context) (t Totals, err error) {
	defer func() { observe("count", err) }()
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status NOT IN (?, ?) THEN 1 ELSE 0 END), 0)
		FROM _parties`), party.StatusFinished, party.StatusCancelled)
	err = row.Scan(&t.Total, &t.Visible)
	return t, err
}
