// 包 amap：高德 Web 服务 IP 定位接口客户端
package amap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"party-map/internal/logger"
	"party-map/internal/metrics"

	"github.com/paulmach/orb"
)

const DefaultBaseURL = "https://restapi.amap.com"

// ErrMissingKey：未配置服务端密钥
var ErrMissingKey = errors.New("amap: missing key")

// IPResponse：高德 IP 定位响应（只解析需要的字段）
// 约束：境外或局域网 IP 时 province/city 返回空数组而非字符串，这里用 flexString 容错
type IPResponse struct {
	Status    string     `json:"status"`
	Info      string     `json:"info"`
	Infocode  string     `json:"infocode"`
	Province  flexString `json:"province"`
	City      flexString `json:"city"`
	Adcode    flexString `json:"adcode"`
	Rectangle flexString `json:"rectangle"`
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = ""
	return nil
}

// Client：高德 REST 客户端；HTTP 为空时使用 5s 超时的默认客户端
type Client struct {
	Key     string
	BaseURL string
	HTTP    *http.Client
}

func NewClient(key string) *Client {
	return &Client{Key: key, BaseURL: DefaultBaseURL, HTTP: &http.Client{Timeout: 5 * time.Second}}
}

// QueryIP：查询单个 IP 的城市级定位；status!="1" 时返回错误并附带响应
func (c *Client) QueryIP(ctx context.Context, ip string) (*IPResponse, error) {
	if c.Key == "" {
		return nil, ErrMissingKey
	}
	q := url.Values{}
	q.Set("key", c.Key)
	if ip != "" {
		q.Set("ip", ip)
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/v3/ip?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	t0 := time.Now()
	metrics.AMapRequestsTotal.Inc()
	resp, err := hc.Do(req)
	if err != nil {
		logger.L().Error("amap_http_error", "err", err)
		metrics.AMapFailTotal.Inc()
		return nil, err
	}
	defer resp.Body.Close()
	var r IPResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.L().Error("amap_decode_error", "err", err)
		metrics.AMapFailTotal.Inc()
		return nil, err
	}
	dur := time.Since(t0)
	metrics.AMapDurationMs.Observe(float64(dur.Milliseconds()))
	logger.L().Debug("amap_resp", "ip", ip, "status", r.Status, "infocode", r.Infocode, "city", r.City, "duration_ms", dur.Milliseconds())
	if r.Status != "1" {
		metrics.AMapFailTotal.Inc()
		return &r, fmt.Errorf("amap error: %s (%s)", r.Info, r.Infocode)
	}
	return &r, nil
}

// RectangleCenter：解析 "lng1,lat1;lng2,lat2"（GCJ-02）并返回矩形中心
func RectangleCenter(rect string) (orb.Point, bool) {
	corners := strings.Split(rect, ";")
	if len(corners) != 2 {
		return orb.Point{}, false
	}
	var b orb.Bound
	for i, c := range corners {
		parts := strings.Split(c, ",")
		if len(parts) != 2 {
			return orb.Point{}, false
		}
		lng, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return orb.Point{}, false
		}
		p := orb.Point{lng, lat}
		if i == 0 {
			b = orb.Bound{Min: p, Max: p}
		} else {
			b = b.Extend(p)
		}
	}
	return b.Center(), true
}
