package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"party-map/internal/cache"
	"party-map/internal/coord"
	"party-map/internal/locate"
	"party-map/internal/migrate"
	"party-map/internal/party"
	"party-map/internal/service"
	"party-map/internal/store"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct{ res locate.Result }

func (s staticSource) Name() string                        { return "static" }
func (s staticSource) Heartbeat(ctx context.Context) error { return nil }
func (s staticSource) Locate(ctx context.Context, ip string) (locate.Result, bool) {
	return s.res, ip == "1.2.3.4"
}

func newTestServer(t *testing.T, token string) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(migrate.SQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, migrate.EnsureSchema(st.DB(), migrate.SQLite))

	svc := service.New(st, cache.New(nil, 64, time.Minute), service.DefaultConfig())
	loc := locate.NewManager(time.Minute)
	loc.Register(staticSource{res: locate.Result{Center: orb.Point{116.4074, 39.9042}, Zoom: 12, City: "北京"}})
	srv := httptest.NewServer(BuildRoutes(svc, st, loc, token))
	t.Cleanup(srv.Close)
	return srv, st
}

func do(t *testing.T, method, url, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

const partiesBody = `[
	{"id":1,"title":"a","par_user_id":"u1","status":0,"lng":121.4737,"lat":31.2304},
	{"id":2,"title":"b","par_user_id":"u2","status":1,"lng":121.4738,"lat":31.2304},
	{"id":3,"title":"c","par_user_id":"u2","status":0,"lng":121.4739,"lat":31.2304},
	{"id":4,"title":"gone","par_user_id":"u2","status":3,"lng":121.4739,"lat":31.2304}
]`

const clusterQuery = "lng=121.4737&lat=31.2304&zoom=12&w=1000&h=800"

func TestPartiesLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, body := do(t, http.MethodPost, srv.URL+"/parties", partiesBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"upserted":4}`, string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/clusters?"+clusterQuery, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("content-type"))
	var snap service.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Len(t, snap.Clusters, 1)
	assert.Equal(t, 3, snap.Clusters[0].Count)
	assert.Equal(t, "3场", snap.Clusters[0].Label)
	assert.Equal(t, 3, snap.Total)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/parties?id=2", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/parties?id=2", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 删除后缓存失效
	_, body = do(t, http.MethodGet, srv.URL+"/clusters?"+clusterQuery, "", nil)
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Len(t, snap.Clusters, 1)
	assert.Equal(t, 2, snap.Clusters[0].Count)
	assert.Greater(t, snap.Version, int64(0))

	resp, body = do(t, http.MethodGet, srv.URL+"/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"total":3,"visible":2}`, string(body))
}

func TestUpsertConvertsCoordinates(t *testing.T) {
	srv, st := newTestServer(t, "")
	bd := coord.FromWGS84(orb.Point{121.4737, 31.2304}, coord.BD09)
	body := `[{"id":9,"title":"bd","par_user_id":"u","lng":` + ftoa(bd.Lon()) + `,"lat":` + ftoa(bd.Lat()) + `}]`
	resp, raw := do(t, http.MethodPost, srv.URL+"/parties?coord=bd09", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	p, err := st.Get(context.Background(), 9, "")
	require.NoError(t, err)
	assert.InDelta(t, 121.4737, p.Lng, 1e-4)
	assert.InDelta(t, 31.2304, p.Lat, 1e-4)

	resp, raw = do(t, http.MethodGet, srv.URL+"/parties/9?coord=bd09", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got party.Party
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.InDelta(t, bd.Lon(), got.Lng, 1e-4)

	resp, _ = do(t, http.MethodGet, srv.URL+"/parties/404", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func ftoa(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func TestUpsertRejectsInvalid(t *testing.T) {
	srv, _ := newTestServer(t, "")
	for _, body := range []string{
		`not json`,
		`[{"id":0,"lng":1,"lat":1}]`,
		`[{"id":1,"lng":1,"lat":95}]`,
		`[{"id":1,"lng":1,"lat":1,"status":9}]`,
		`[null]`,
	} {
		resp, raw := do(t, http.MethodPost, srv.URL+"/parties", body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, string(raw), `"error"`)
	}
	resp, _ := do(t, http.MethodPost, srv.URL+"/parties?coord=mars", `[]`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminToken(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	resp, _ := do(t, http.MethodPost, srv.URL+"/parties", partiesBody, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/parties", partiesBody, map[string]string{"x-admin-token": "secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/clusters?"+clusterQuery, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads stay public")
}

func TestClusterClick(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, _ := do(t, http.MethodPost, srv.URL+"/parties", partiesBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, srv.URL+"/clusters/click?"+clusterQuery+"&index=0", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var r service.ClickResult
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, "zoom", string(r.Action))
	assert.Greater(t, r.Zoom, 12)

	resp, _ = do(t, http.MethodPost, srv.URL+"/clusters/click?"+clusterQuery+"&index=5", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/clusters/click?"+clusterQuery, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetJoin(t *testing.T) {
	srv, st := newTestServer(t, "")
	resp, _ := do(t, http.MethodPost, srv.URL+"/parties", partiesBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/parties/1/join", `{"user_id":"u9","join_status":1}`, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	p, err := st.Get(context.Background(), 1, "u9")
	require.NoError(t, err)
	assert.Equal(t, party.JoinStatusJoined, p.JoinStatus)

	resp, _ = do(t, http.MethodPut, srv.URL+"/parties/77/join", `{"user_id":"u9","join_status":1}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodPut, srv.URL+"/parties/1/join", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBadClusterParams(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, body := do(t, http.MethodGet, srv.URL+"/clusters?lat=1&zoom=3", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "missing lng")
	resp, _ = do(t, http.MethodPost, srv.URL+"/clusters", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestLocate(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, body := do(t, http.MethodGet, srv.URL+"/locate", "", map[string]string{"X-Forwarded-For": "1.2.3.4"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got locateResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "1.2.3.4", got.IP)
	assert.Equal(t, "static", got.Source)
	assert.Equal(t, "北京", got.City)
	assert.Equal(t, 116.4074, got.Lng)

	_, body = do(t, http.MethodGet, srv.URL+"/locate?ip=9.9.9.9&coord=bd09", "", nil)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "default", got.Source)
	assert.Equal(t, locate.DefaultZoom, got.Zoom)
	assert.InDelta(t, locate.DefaultCenterBD09.Lon(), got.Lng, 1e-4)
	assert.InDelta(t, locate.DefaultCenterBD09.Lat(), got.Lat, 1e-4)
}
