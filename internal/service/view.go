package service

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"party-map/internal/coord"

	"github.com/paulmach/orb"
)

var ErrBadParam = errors.New("bad parameter")

// 附近筛选超过该距离视为不限
const maxDistanceKM = 100

// View：一次聚合请求的视野与覆盖参数
// Center 位于 Coord 坐标系；零值覆盖项使用服务默认配置
type View struct {
	Center     orb.Point
	Zoom       int
	Width      int
	Height     int
	Coord      coord.System
	Viewer     string
	GridSize   int
	MaxZoom    int
	MinSize    int
	Average    *bool
	DistanceKM float64
}

// ParseView：lng,lat,zoom 必填；w,h,coord,viewer,grid,max_zoom,min_size,avg,distance_km 可选
func ParseView(q url.Values) (View, error) {
	var v View
	var err error
	if v.Center[0], err = parseFloat(q, "lng", true); err != nil {
		return v, err
	}
	if v.Center[1], err = parseFloat(q, "lat", true); err != nil {
		return v, err
	}
	if v.Center.Lon() < -180 || v.Center.Lon() > 180 || v.Center.Lat() < -90 || v.Center.Lat() > 90 {
		return v, fmt.Errorf("%w: center out of range", ErrBadParam)
	}
	if v.Zoom, err = parseInt(q, "zoom", true); err != nil {
		return v, err
	}
	for _, f := range []struct {
		key string
		dst *int
	}{{"w", &v.Width}, {"h", &v.Height}, {"grid", &v.GridSize}, {"max_zoom", &v.MaxZoom}, {"min_size", &v.MinSize}} {
		if *f.dst, err = parseInt(q, f.key, false); err != nil {
			return v, err
		}
		if *f.dst < 0 {
			return v, fmt.Errorf("%w: %s must not be negative", ErrBadParam, f.key)
		}
	}
	if v.Width > 8192 || v.Height > 8192 {
		return v, fmt.Errorf("%w: viewport too large", ErrBadParam)
	}
	if v.Coord, err = coord.ParseSystem(q.Get("coord")); err != nil {
		return v, fmt.Errorf("%w: %v", ErrBadParam, err)
	}
	v.Viewer = strings.TrimSpace(q.Get("viewer"))
	if s := q.Get("avg"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return v, fmt.Errorf("%w: avg", ErrBadParam)
		}
		v.Average = &b
	}
	if v.DistanceKM, err = parseFloat(q, "distance_km", false); err != nil {
		return v, err
	}
	return v, nil
}

func parseFloat(q url.Values, key string, required bool) (float64, error) {
	s := q.Get(key)
	if s == "" {
		if required {
			return 0, fmt.Errorf("%w: missing %s", ErrBadParam, key)
		}
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadParam, key)
	}
	return f, nil
}

func parseInt(q url.Values, key string, required bool) (int, error) {
	s := q.Get(key)
	if s == "" {
		if required {
			return 0, fmt.Errorf("%w: missing %s", ErrBadParam, key)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadParam, key)
	}
	return n, nil
}

// distanceLimited：是否启用附近筛选
func (v View) distanceLimited() bool {
	return v.DistanceKM > 0 && v.DistanceKM <= maxDistanceKM
}

// cacheKey：中心点按最短精确表示拼接，与 Click 重放的视野逐位一致；其余参数原样拼接
func (v View) cacheKey() string {
	avg := "-"
	if v.Average != nil {
		avg = strconv.FormatBool(*v.Average)
	}
	return strings.Join([]string{
		"clusters",
		strconv.FormatFloat(v.Center.Lon(), 'f', -1, 64),
		strconv.FormatFloat(v.Center.Lat(), 'f', -1, 64),
		strconv.Itoa(v.Zoom),
		strconv.Itoa(v.Width) + "x" + strconv.Itoa(v.Height),
		string(v.Coord),
		url.QueryEscape(v.Viewer),
		strconv.Itoa(v.GridSize),
		strconv.Itoa(v.MaxZoom),
		strconv.Itoa(v.MinSize),
		avg,
		strconv.FormatFloat(v.DistanceKM, 'f', -1, 64),
	}, ":")
}
