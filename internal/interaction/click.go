// 包 interaction：聚合标记的点击处理与视野变化时的弹窗收起
package interaction

import (
	"party-map/internal/cluster"
	"party-map/internal/metrics"
	"party-map/internal/popup"

	"github.com/paulmach/orb"
)

// DefaultListZoom：在该级别点击聚合时列出成员，其余级别放大到聚合全貌
const DefaultListZoom = 19

// Viewporter：宿主地图的视野调整能力
type Viewporter interface {
	Zoom() int
	SetViewport(b orb.Bound)
}

type Action string

const (
	ActionZoom Action = "zoom"
	ActionList Action = "list"
)

// Result：一次点击的处理结果
type Result struct {
	Action Action
	// Bounds 为 zoom 动作调整后的视野应包含的范围
	Bounds orb.Bound
	Popup  *popup.Popup
}

// Handler：点击处理器
// Describe 把成员转换为弹窗条目；Popups 为 nil 时弹窗不进入注册表
type Handler struct {
	ListZoom int
	Popups   *popup.Registry
	Describe func(p cluster.Point) popup.Item
}

func (h *Handler) listZoom() int {
	if h.ListZoom <= 0 {
		return DefaultListZoom
	}
	return h.ListZoom
}

// Click：级别等于列表级别时打开成员列表弹窗（先关闭已打开的弹窗），否则把视野调整到聚合全貌
func (h *Handler) Click(v Viewporter, c *cluster.Cluster) Result {
	if v.Zoom() == h.listZoom() {
		anchor, _ := c.Center()
		members := c.Members()
		items := make([]popup.Item, 0, len(members))
		for _, m := range members {
			items = append(items, h.describe(m))
		}
		p := popup.New(anchor, items)
		h.Popups.Open(p)
		metrics.ClickActionsTotal.WithLabelValues(string(ActionList)).Inc()
		return Result{Action: ActionList, Bounds: c.Bounds(), Popup: p}
	}
	b := c.Bounds()
	v.SetViewport(b)
	metrics.ClickActionsTotal.WithLabelValues(string(ActionZoom)).Inc()
	return Result{Action: ActionZoom, Bounds: b}
}

func (h *Handler) describe(p cluster.Point) popup.Item {
	if h.Describe != nil {
		return h.Describe(p)
	}
	return popup.Item{ID: p.Key(), Title: p.Key()}
}

// CloseOnViewportChange：视野变化时关闭当前弹窗
// 需在聚合器之前订阅，保证先收起弹窗再重建聚合
func (h *Handler) CloseOnViewportChange(n cluster.Notifier) (cancel func()) {
	return n.Subscribe(func() { h.Popups.Close() })
}
