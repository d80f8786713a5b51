// 包 viewport：无界面的 Web Mercator 地图，实现聚合核心所需的宿主能力（投影、视野、距离、覆盖物表面、视野事件）
// 约束：坐标一律为 WGS84 经纬度；瓦片 256px，缩放级别整数；不负责任何绘制，只记录挂载的覆盖物集合。
package viewport

import (
	"math"
	"sort"

	"party-map/internal/cluster"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/project"
)

const (
	TileSize = 256
	MinZoom  = 3
	MaxZoom  = 19
	// Web Mercator 可表示的纬度上限
	maxMercatorLat = 85.05112878
)

var originShift = math.Pi * orb.EarthRadius

// Map：单个地图实例的视野与覆盖物状态
type Map struct {
	center  orb.Point
	zoom    int
	width   int
	height  int
	minZoom int
	maxZoom int

	overlays map[cluster.Overlay]uint64
	seq      uint64

	listeners map[int]func()
	nextID    int
}

// New：按中心点、缩放级别与像素尺寸创建地图；级别超出范围时裁剪
func New(center orb.Point, zoom, width, height int) *Map {
	m := &Map{
		width:     width,
		height:    height,
		minZoom:   MinZoom,
		maxZoom:   MaxZoom,
		overlays:  make(map[cluster.Overlay]uint64),
		listeners: make(map[int]func()),
	}
	m.center = clampPoint(center)
	m.zoom = m.clampZoom(zoom)
	return m
}

func clampPoint(p orb.Point) orb.Point {
	return orb.Point{
		math.Max(-180, math.Min(180, p.Lon())),
		math.Max(-maxMercatorLat, math.Min(maxMercatorLat, p.Lat())),
	}
}

func (m *Map) clampZoom(z int) int {
	if z < m.minZoom {
		return m.minZoom
	}
	if z > m.maxZoom {
		return m.maxZoom
	}
	return z
}

// SetMinZoom：设置最小级别
func (m *Map) SetMinZoom(z int) {
	if z < 0 || z > m.maxZoom {
		return
	}
	m.minZoom = z
	if m.zoom < z {
		m.SetZoom(z)
	}
}

func (m *Map) Zoom() int         { return m.zoom }
func (m *Map) Center() orb.Point { return m.center }
func (m *Map) Size() (int, int)  { return m.width, m.height }
func (m *Map) MinZoom() int      { return m.minZoom }
func (m *Map) MaxZoom() int      { return m.maxZoom }

func worldSize(zoom int) float64 { return TileSize * math.Exp2(float64(zoom)) }

// worldPixel：经纬度到整个世界平面的像素坐标
func worldPixel(p orb.Point, zoom int) cluster.Pixel {
	mp := project.WGS84.ToMercator(clampPoint(p))
	ws := worldSize(zoom)
	return cluster.Pixel{
		X: (mp.X() + originShift) / (2 * originShift) * ws,
		Y: (originShift - mp.Y()) / (2 * originShift) * ws,
	}
}

func fromWorldPixel(px cluster.Pixel, zoom int) orb.Point {
	ws := worldSize(zoom)
	mp := orb.Point{
		px.X/ws*2*originShift - originShift,
		originShift - px.Y/ws*2*originShift,
	}
	return project.Mercator.ToWGS84(mp)
}

// PointToPixel：经纬度到容器像素（左上角为原点）
func (m *Map) PointToPixel(p orb.Point) cluster.Pixel {
	wp := worldPixel(p, m.zoom)
	c := worldPixel(m.center, m.zoom)
	return cluster.Pixel{
		X: wp.X - c.X + float64(m.width)/2,
		Y: wp.Y - c.Y + float64(m.height)/2,
	}
}

// PixelToPoint：容器像素到经纬度
func (m *Map) PixelToPoint(px cluster.Pixel) orb.Point {
	c := worldPixel(m.center, m.zoom)
	return fromWorldPixel(cluster.Pixel{
		X: px.X + c.X - float64(m.width)/2,
		Y: px.Y + c.Y - float64(m.height)/2,
	}, m.zoom)
}

// Bounds：当前视野的地理范围
func (m *Map) Bounds() orb.Bound {
	sw := m.PixelToPoint(cluster.Pixel{X: 0, Y: float64(m.height)})
	ne := m.PixelToPoint(cluster.Pixel{X: float64(m.width), Y: 0})
	return orb.Bound{Min: sw, Max: ne}
}

// Distance：两点球面距离（米）
func (m *Map) Distance(a, b orb.Point) float64 {
	return geo.Distance(a, b)
}

// SetZoom：级别变化时触发 zoomend
func (m *Map) SetZoom(z int) {
	z = m.clampZoom(z)
	if z == m.zoom {
		return
	}
	m.zoom = z
	m.fire()
}

// PanTo：中心变化时触发 moveend
func (m *Map) PanTo(p orb.Point) {
	p = clampPoint(p)
	if p.Equal(m.center) {
		return
	}
	m.center = p
	m.fire()
}

// SetCenter：同 PanTo，无动画区别
func (m *Map) SetCenter(p orb.Point) { m.PanTo(p) }

// CenterAndZoom：同时设置中心与级别，只触发一次事件
func (m *Map) CenterAndZoom(p orb.Point, z int) {
	p = clampPoint(p)
	z = m.clampZoom(z)
	if p.Equal(m.center) && z == m.zoom {
		return
	}
	m.center = p
	m.zoom = z
	m.fire()
}

// SetViewport：调整视野使其包含给定范围，取能完整容纳范围的最大级别，中心为范围中心
func (m *Map) SetViewport(b orb.Bound) {
	z := m.FitZoom(b)
	m.CenterAndZoom(b.Center(), z)
}

// FitZoom：能完整容纳范围的最大级别
func (m *Map) FitZoom(b orb.Bound) int {
	for z := m.maxZoom; z > m.minZoom; z-- {
		sw := worldPixel(b.Min, z)
		ne := worldPixel(b.Max, z)
		if math.Abs(ne.X-sw.X) <= float64(m.width) && math.Abs(sw.Y-ne.Y) <= float64(m.height) {
			return z
		}
	}
	return m.minZoom
}

// Attach：挂载覆盖物（幂等）
func (m *Map) Attach(o cluster.Overlay) {
	if _, ok := m.overlays[o]; ok {
		return
	}
	m.seq++
	m.overlays[o] = m.seq
}

// Detach：撤下覆盖物（幂等）
func (m *Map) Detach(o cluster.Overlay) {
	delete(m.overlays, o)
}

func (m *Map) Attached(o cluster.Overlay) bool {
	_, ok := m.overlays[o]
	return ok
}

// Overlays：当前挂载的覆盖物（按挂载先后）
func (m *Map) Overlays() []cluster.Overlay {
	out := make([]cluster.Overlay, 0, len(m.overlays))
	for o := range m.overlays {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return m.overlays[out[i]] < m.overlays[out[j]] })
	return out
}

// Subscribe：注册视野变化回调（按注册顺序调用）
func (m *Map) Subscribe(fn func()) func() {
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() { delete(m.listeners, id) }
}

func (m *Map) fire() {
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := m.listeners[id]; ok {
			fn()
		}
	}
}

var (
	_ cluster.Host     = (*Map)(nil)
	_ cluster.Surface  = (*Map)(nil)
	_ cluster.Notifier = (*Map)(nil)
)
