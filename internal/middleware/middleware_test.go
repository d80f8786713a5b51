package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"party-map/internal/locate"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	t.Parallel()
	lim := NewLimiter(2)
	now := time.Unix(1000, 0)
	assert.True(t, lim.AllowN(now, 1))
	assert.True(t, lim.AllowN(now, 1))
	assert.False(t, lim.AllowN(now, 1))
	now = now.Add(time.Second)
	assert.True(t, lim.AllowN(now, 1))
	assert.True(t, lim.AllowN(now, 1))
	assert.False(t, lim.AllowN(now, 1))
}

func TestRateLimitHandler(t *testing.T) {
	t.Parallel()
	h := RateLimit(NewLimiter(1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clusters", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clusters", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestEdgeOneInjection(t *testing.T) {
	t.Parallel()
	var got locate.EdgeOneGeo
	var ok bool
	h := EdgeOne(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = locate.EdgeOneFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/locate", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.False(t, ok)

	r = httptest.NewRequest(http.MethodGet, "/locate", nil)
	r.Header.Set("X-EO-Geo-City", "成都市")
	r.Header.Set("X-EO-Client-IP", "1.2.3.4")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.True(t, ok)
	assert.Equal(t, "成都市", got.CityName)
	assert.Equal(t, "1.2.3.4", got.ClientIP)
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestAllowList(t *testing.T) {
	t.Parallel()
	a := NewAllowList()
	assert.True(t, a.AllowIP("1.2.3.4"))
	assert.False(t, a.AllowIP("nope"))
	assert.True(t, a.AllowCIDR("10.0.0.0/8"))
	assert.True(t, a.AllowCIDR("10.0.0.0/8"))
	assert.True(t, a.AllowCIDR("2001:db8::/32"))
	assert.False(t, a.AllowCIDR("10.0.0.0"))

	assert.True(t, a.Allowed(net.ParseIP("1.2.3.4")))
	assert.True(t, a.Allowed(net.ParseIP("10.9.8.7")))
	assert.True(t, a.Allowed(net.ParseIP("2001:db8::1")))
	assert.False(t, a.Allowed(net.ParseIP("8.8.8.8")))
	assert.False(t, a.Allowed(nil))

	h := a.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.1.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	r.RemoteAddr = "8.8.8.8:5000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	a.RealIPHeader = "X-Forwarded-For"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 8.8.8.8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAllowListFromEnv(t *testing.T) {
	t.Setenv("ORIGIN_ALLOW_IPS", "5.5.5.5, bad")
	t.Setenv("ORIGIN_ALLOW_CIDRS", "192.168.0.0/16")
	t.Setenv("ORIGIN_ALLOW_LOCAL", "true")
	a := AllowListFromEnv()
	assert.True(t, a.Allowed(net.ParseIP("5.5.5.5")))
	assert.True(t, a.Allowed(net.ParseIP("192.168.3.4")))
	assert.True(t, a.Allowed(net.ParseIP("::1")))
	assert.False(t, a.Allowed(net.ParseIP("6.6.6.6")))
}
