// 包 popup：详情弹窗的单槽注册表；同一时刻最多一个弹窗处于打开状态
package popup

import (
	"sync"

	"github.com/paulmach/orb"
)

// Item：弹窗中的一行（标题 + 详情链接）
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Popup：锚定在某个位置的详情列表
type Popup struct {
	Anchor orb.Point `json:"-"`
	Items  []Item    `json:"items"`

	mu     sync.Mutex
	closed bool
}

func New(anchor orb.Point, items []Item) *Popup {
	return &Popup{Anchor: anchor, Items: items}
}

// Close：关闭弹窗（幂等）
func (p *Popup) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Popup) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Registry：当前打开弹窗的单槽
// 约束：Open 先关闭已打开的弹窗再登记新弹窗；nil 注册表表示不跟踪，所有方法为空操作
type Registry struct {
	mu      sync.Mutex
	current *Popup
}

// Default：进程级注册表
var Default = &Registry{}

// Open：登记新弹窗并返回被关闭的旧弹窗（可能为 nil）
func (r *Registry) Open(p *Popup) *Popup {
	if r == nil || p == nil {
		return nil
	}
	r.mu.Lock()
	prev := r.current
	r.current = p
	r.mu.Unlock()
	if prev != nil && prev != p {
		prev.Close()
		return prev
	}
	return nil
}

// Close：关闭当前弹窗；没有打开的弹窗时返回 false
func (r *Registry) Close() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	cur := r.current
	r.current = nil
	r.mu.Unlock()
	if cur == nil {
		return false
	}
	cur.Close()
	return true
}

// Current：当前打开的弹窗
func (r *Registry) Current() *Popup {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
