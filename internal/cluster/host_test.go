package cluster

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// flatHost：线性投影的测试宿主，每像素 degPerPx 度，便于手算网格范围
type flatHost struct {
	center   orb.Point
	zoom     int
	width    float64
	height   float64
	degPerPx float64

	listeners []func()
}

func newFlatHost() *flatHost {
	return &flatHost{
		center:   orb.Point{116.4, 39.9},
		zoom:     12,
		width:    1000,
		height:   1000,
		degPerPx: 0.001,
	}
}

func (h *flatHost) PointToPixel(p orb.Point) Pixel {
	return Pixel{
		X: (p.Lon()-h.center.Lon())/h.degPerPx + h.width/2,
		Y: (h.center.Lat()-p.Lat())/h.degPerPx + h.height/2,
	}
}

func (h *flatHost) PixelToPoint(px Pixel) orb.Point {
	return orb.Point{
		h.center.Lon() + (px.X-h.width/2)*h.degPerPx,
		h.center.Lat() - (px.Y-h.height/2)*h.degPerPx,
	}
}

func (h *flatHost) Bounds() orb.Bound {
	return orb.Bound{
		Min: h.PixelToPoint(Pixel{X: 0, Y: h.height}),
		Max: h.PixelToPoint(Pixel{X: h.width, Y: 0}),
	}
}

func (h *flatHost) Zoom() int { return h.zoom }

func (h *flatHost) Distance(a, b orb.Point) float64 { return geo.Distance(a, b) }

func (h *flatHost) Subscribe(fn func()) func() {
	h.listeners = append(h.listeners, fn)
	idx := len(h.listeners) - 1
	return func() { h.listeners[idx] = nil }
}

func (h *flatHost) setZoom(z int) {
	h.zoom = z
	for _, fn := range h.listeners {
		if fn != nil {
			fn()
		}
	}
}

// memSurface：记录挂载集合与调用次数
type memSurface struct {
	attached map[Overlay]bool
	attaches int
	detaches int
}

func newMemSurface() *memSurface {
	return &memSurface{attached: make(map[Overlay]bool)}
}

func (s *memSurface) Attach(o Overlay) {
	s.attaches++
	s.attached[o] = true
}

func (s *memSurface) Detach(o Overlay) {
	s.detaches++
	delete(s.attached, o)
}

func (s *memSurface) Attached(o Overlay) bool { return s.attached[o] }

func (s *memSurface) markers() []*Marker {
	var out []*Marker
	for o := range s.attached {
		if m, ok := o.(*Marker); ok {
			out = append(out, m)
		}
	}
	return out
}

type testPoint struct {
	key string
	pos orb.Point
}

func (p *testPoint) Key() string         { return p.key }
func (p *testPoint) Position() orb.Point { return p.pos }

func pt(key string, lng, lat float64) *testPoint {
	return &testPoint{key: key, pos: orb.Point{lng, lat}}
}

func pts(prefix string, n int, lng, lat float64) []Point {
	out := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, pt(fmt.Sprintf("%s-%d", prefix, i), lng, lat))
	}
	return out
}
