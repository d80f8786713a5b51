// 包 party：地图上的聚会覆盖物（头像圆点），实现聚合核心的 Point 接口，并给出可见性、高亮与详情链接规则
package party

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"party-map/internal/cluster"

	"github.com/paulmach/orb"
)

// 聚会状态
const (
	StatusOpen      = 0
	StatusHot       = 1
	StatusFinished  = 2
	StatusCancelled = 3
)

// JoinStatusJoined：当前用户已参加
const JoinStatusJoined = 1

// LinkKind：详情页类型
type LinkKind string

const (
	LinkOrganized LinkKind = "organized"
	LinkJoined    LinkKind = "joined"
	LinkOthers    LinkKind = "others"
)

// Party：一场聚会；Lng/Lat 为 WGS84
// JoinStatus 为当前查看者对该聚会的参加状态（-1 表示未参加），由存储层按查看者填充
type Party struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	OrganizerID string    `json:"par_user_id"`
	Status      int       `json:"status"`
	JoinStatus  int       `json:"join_status"`
	UserPhoto   string    `json:"user_photo"`
	Lng         float64   `json:"lng"`
	Lat         float64   `json:"lat"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Party) Key() string         { return strconv.FormatInt(p.ID, 10) }
func (p *Party) Position() orb.Point { return orb.Point{p.Lng, p.Lat} }

// Visible：已结束与已取消的聚会不上地图
func (p *Party) Visible() bool {
	return p.Status != StatusFinished && p.Status != StatusCancelled
}

// Highlighted：进行中的热门聚会带闪烁描边
func (p *Party) Highlighted() bool { return p.Status == StatusHot }

// Kind：查看者是发起人时进入“我发起的”，已参加进入“我参加的”，否则为其他
func (p *Party) Kind(viewer string) LinkKind {
	if viewer != "" && p.OrganizerID == viewer {
		return LinkOrganized
	}
	if p.JoinStatus == JoinStatusJoined {
		return LinkJoined
	}
	return LinkOthers
}

// Link：详情页地址
func (p *Party) Link(base, viewer string) string {
	return fmt.Sprintf("%s/WebContent/%s_party.htm?partyId=%d", strings.TrimRight(base, "/"), p.Kind(viewer), p.ID)
}

// Validate：入库前检查
func (p *Party) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("party id must be positive, got %d", p.ID)
	}
	if p.Lng < -180 || p.Lng > 180 || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("party %d: position out of range (%f,%f)", p.ID, p.Lng, p.Lat)
	}
	if p.Status < StatusOpen || p.Status > StatusCancelled {
		return fmt.Errorf("party %d: unknown status %d", p.ID, p.Status)
	}
	return nil
}

// FilterVisible：保留可见聚会，顺序不变
func FilterVisible(in []*Party) []*Party {
	out := make([]*Party, 0, len(in))
	for _, p := range in {
		if p != nil && p.Visible() {
			out = append(out, p)
		}
	}
	return out
}

// Points：转换为聚合点列表
func Points(in []*Party) []cluster.Point {
	out := make([]cluster.Point, len(in))
	for i, p := range in {
		out[i] = p
	}
	return out
}

// Label：聚合标记文字，数量后接后缀（默认“场”）
func Label(suffix string) func(int) string {
	return func(n int) string { return strconv.Itoa(n) + suffix }
}

// DefaultStyles：聚合标记默认样式（数字气泡）
func DefaultStyles(base string) []cluster.Style {
	return []cluster.Style{{
		URL:       strings.TrimRight(base, "/") + "/resources/imgs/number.png",
		Width:     41,
		Height:    33,
		TextColor: "#fff",
		TextSize:  14,
	}}
}
