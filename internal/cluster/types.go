// 包 cluster：覆盖物聚合核心（网格 + 最近聚合），只输出聚合状态，不负责任何标记的绘制
package cluster

import "github.com/paulmach/orb"

// Overlay：可挂载到地图表面的覆盖物（单个点与聚合标记都满足）
type Overlay interface {
	Position() orb.Point
}

// Point：参与聚合的点
// 约束：Key 在整个引擎生命周期内稳定且唯一，去重与删除都按 Key 判定；Position 为经纬度（lng, lat）
type Point interface {
	Overlay
	Key() string
}

// Pixel：屏幕像素坐标，x 向右、y 向下
type Pixel struct {
	X float64
	Y float64
}

// Host：宿主地图提供的投影与视野查询
type Host interface {
	PointToPixel(p orb.Point) Pixel
	PixelToPoint(px Pixel) orb.Point
	Bounds() orb.Bound
	Zoom() int
	// Distance 返回两点间距离（米）
	Distance(a, b orb.Point) float64
}

// Surface：渲染表面；Attach/Detach 需幂等，由表现层决定如何绘制
type Surface interface {
	Attach(o Overlay)
	Detach(o Overlay)
	Attached(o Overlay) bool
}

// Notifier：可选能力，宿主在视野变化（moveend/zoomend）后回调
type Notifier interface {
	Subscribe(fn func()) (cancel func())
}

// Style：聚合标记的图标样式
type Style struct {
	URL       string  `json:"url"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	AnchorX   int     `json:"anchor_x,omitempty"`
	AnchorY   int     `json:"anchor_y,omitempty"`
	OffsetX   int     `json:"offset_x,omitempty"`
	OffsetY   int     `json:"offset_y,omitempty"`
	TextSize  float64 `json:"text_size,omitempty"`
	TextColor string  `json:"text_color,omitempty"`
}

const (
	DefaultGridSize       = 60
	DefaultMaxZoom        = 18
	DefaultMinClusterSize = 2
)

// Options：引擎配置；零值或负值视为未设置，回退到默认值
type Options struct {
	GridSize       int
	MaxZoom        int
	MinClusterSize int
	AverageCenter  bool
	Styles         []Style
	// Label 生成聚合标记文字，为空时使用数字本身
	Label func(count int) string
	// Points 在构造时一次性加入
	Points []Point
}

func (o Options) normalized() Options {
	if o.GridSize <= 0 {
		o.GridSize = DefaultGridSize
	}
	if o.MaxZoom <= 0 {
		o.MaxZoom = DefaultMaxZoom
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = DefaultMinClusterSize
	}
	return o
}
