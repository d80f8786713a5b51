package cluster

import (
	"strconv"

	"github.com/paulmach/orb"
)

// Marker：聚合标记（数字图标），以声明式状态存在，由 Surface 决定如何绘制
type Marker struct {
	position orb.Point
	count    int
	text     string
	hidden   bool
	styles   []Style
	label    func(int) string
}

func newMarker(styles []Style, label func(int) string) *Marker {
	if label == nil {
		label = strconv.Itoa
	}
	return &Marker{styles: styles, label: label, hidden: true}
}

func (m *Marker) Position() orb.Point { return m.position }
func (m *Marker) Count() int          { return m.count }
func (m *Marker) Text() string        { return m.text }
func (m *Marker) Hidden() bool        { return m.hidden }

func (m *Marker) update(pos orb.Point, count int) {
	m.position = pos
	m.count = count
	m.text = m.label(count)
	m.hidden = false
}

func (m *Marker) hide() { m.hidden = true }

// Style：第 count/10 个样式，超出样式数量时取最后一个
// 例如 3 个样式时：0-9 取第一个，10-19 取第二个，20 以上取第三个
func (m *Marker) Style() (Style, bool) {
	if len(m.styles) == 0 {
		return Style{}, false
	}
	idx := m.count / 10
	if idx < 0 {
		idx = 0
	}
	if idx > len(m.styles)-1 {
		idx = len(m.styles) - 1
	}
	return m.styles[idx], true
}
