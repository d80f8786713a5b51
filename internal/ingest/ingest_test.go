package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"party-map/internal/coord"
	"party-map/internal/migrate"
	"party-map/internal/store"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(migrate.SQLite, filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, migrate.EnsureSchema(st.DB(), migrate.SQLite))
	return st
}

func TestDecodeArrayAndLines(t *testing.T) {
	t.Parallel()
	arr := ` [{"id":1,"title":"a","lng":121.47,"lat":31.23},{"id":2,"title":"b","lng":121.48,"lat":31.24,"status":1}]`
	ps, err := Decode(strings.NewReader(arr), coord.WGS84)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, 1, ps[1].Status)

	lines := "{\"id\":3,\"lng\":121.47,\"lat\":31.23}\n\n{\"id\":4,\"lng\":121.48,\"lat\":31.24}\n"
	ps, err = Decode(strings.NewReader(lines), coord.WGS84)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, int64(4), ps[1].ID)

	ps, err = Decode(strings.NewReader("  \n"), coord.WGS84)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestDecodeConvertsToWGS84(t *testing.T) {
	t.Parallel()
	bd := orb.Point{121.497635, 31.292725}
	ps, err := Decode(strings.NewReader(`[{"id":1,"lng":121.497635,"lat":31.292725}]`), coord.BD09)
	require.NoError(t, err)
	want := coord.ToWGS84(bd, coord.BD09)
	assert.Equal(t, want, ps[0].Position())
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		`[{"id":0,"lng":1,"lat":1}]`,
		`[null]`,
		"{\"id\":1,\"lng\":1,\"lat\":1}\nnot json\n",
		`[{"id":1`,
	} {
		_, err := Decode(strings.NewReader(in), coord.WGS84)
		assert.Error(t, err, in)
	}
}

func TestFetchAndImport(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"title":"a","lng":121.47,"lat":31.23},{"id":2,"title":"b","lng":121.48,"lat":31.24}]`))
	}))
	defer srv.Close()
	st := openStore(t)
	ctx := context.Background()

	n, err := EnsureInitialized(ctx, st, srv.URL+"/parties.json", coord.WGS84)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = EnsureInitialized(ctx, st, srv.URL+"/parties.json", coord.WGS84)
	require.NoError(t, err)
	assert.Zero(t, n, "table is no longer empty")

	_, err = FetchAndImport(ctx, st, srv.URL+"/missing", coord.WGS84)
	assert.Error(t, err)
}

func TestImportFile(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	path := filepath.Join(t.TempDir(), "parties.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":5,\"lng\":116.4,\"lat\":39.9}\n"), 0o644))
	n, err := FetchAndImport(context.Background(), st, path, coord.WGS84)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	p, err := st.Get(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Equal(t, 116.4, p.Lng)
}

func TestDailyCronSchedule(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("CST", 8*3600)
	c, err := newDailyCron(loc, 3, func() {})
	require.NoError(t, err)
	entries := c.Entries()
	require.Len(t, entries, 1)
	sched := entries[0].Schedule

	next := sched.Next(time.Date(2026, 10, 16, 2, 30, 0, 0, loc))
	assert.True(t, next.Equal(time.Date(2026, 10, 16, 3, 0, 0, 0, loc)), next)
	// 整点当刻已过，顺延到次日
	next = sched.Next(time.Date(2026, 10, 16, 3, 0, 0, 0, loc))
	assert.True(t, next.Equal(time.Date(2026, 10, 17, 3, 0, 0, 0, loc)), next)
	// 调度按北京时间而不是 UTC
	next = sched.Next(time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC))
	assert.True(t, next.Equal(time.Date(2026, 10, 17, 3, 0, 0, 0, loc)), next)

	_, err = newDailyCron(loc, 25, func() {})
	assert.Error(t, err)
}

func TestStartDailyShanghaiStopsOnCancel(t *testing.T) {
	t.Setenv("INGEST_HOUR", "4")
	st := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	StartDailyShanghai(ctx, st, filepath.Join(t.TempDir(), "missing.json"), coord.WGS84, nil)
	cancel()
}
