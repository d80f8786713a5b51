package locate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource(t *testing.T) {
	t.Parallel()
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if down.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		case "/query":
			switch r.URL.Query().Get("ip") {
			case "1.1.1.1":
				_, _ = w.Write([]byte(`{"lng":116.4,"lat":39.9,"zoom":13,"city":"北京"}`))
			case "2.2.2.2":
				_, _ = w.Write([]byte(`{"city":"广州市"}`))
			case "3.3.3.3":
				_, _ = w.Write([]byte(`{"lng":1,"lat":1,"coord":"mars"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}
	}))
	defer srv.Close()

	s := NewHTTPSource("ext", srv.URL+"/", BuiltinCentroids())
	assert.Equal(t, "ext", s.Name())
	require.NoError(t, s.Heartbeat(context.Background()))
	down.Store(true)
	assert.Error(t, s.Heartbeat(context.Background()))

	r, ok := s.Locate(context.Background(), "1.1.1.1")
	require.True(t, ok)
	assert.Equal(t, orb.Point{116.4, 39.9}, r.Center)
	assert.Equal(t, 13, r.Zoom)

	r, ok = s.Locate(context.Background(), "2.2.2.2")
	require.True(t, ok)
	assert.Equal(t, "广州", r.City)
	assert.Equal(t, 12, r.Zoom)

	_, ok = s.Locate(context.Background(), "3.3.3.3")
	assert.False(t, ok)
	_, ok = s.Locate(context.Background(), "4.4.4.4")
	assert.False(t, ok)
}
