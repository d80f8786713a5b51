package locate

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/quadtree"
)

// Centroid：城市质心（WGS-84）
type Centroid struct {
	Name  string
	Point orb.Point
}

// builtinCentroids：常用城市，作为质心文件缺失时的兜底
var builtinCentroids = []Centroid{
	{"北京", orb.Point{116.4074, 39.9042}},
	{"上海", orb.Point{121.4737, 31.2304}},
	{"天津", orb.Point{117.2010, 39.0842}},
	{"重庆", orb.Point{106.5516, 29.5630}},
	{"广州", orb.Point{113.2644, 23.1291}},
	{"深圳", orb.Point{114.0579, 22.5431}},
	{"杭州", orb.Point{120.1551, 30.2741}},
	{"南京", orb.Point{118.7969, 32.0603}},
	{"苏州", orb.Point{120.5853, 31.2989}},
	{"武汉", orb.Point{114.3054, 30.5931}},
	{"成都", orb.Point{104.0665, 30.5723}},
	{"西安", orb.Point{108.9398, 34.3416}},
	{"长沙", orb.Point{112.9388, 28.2282}},
	{"郑州", orb.Point{113.6254, 34.7466}},
	{"济南", orb.Point{117.1201, 36.6512}},
	{"青岛", orb.Point{120.3826, 36.0671}},
	{"沈阳", orb.Point{123.4315, 41.8057}},
	{"大连", orb.Point{121.6147, 38.9140}},
	{"哈尔滨", orb.Point{126.5350, 45.8038}},
	{"长春", orb.Point{125.3235, 43.8171}},
	{"福州", orb.Point{119.2965, 26.0745}},
	{"厦门", orb.Point{118.0894, 24.4798}},
	{"合肥", orb.Point{117.2272, 31.8206}},
	{"南昌", orb.Point{115.8582, 28.6829}},
	{"昆明", orb.Point{102.8332, 24.8801}},
	{"贵阳", orb.Point{106.6302, 26.6477}},
	{"南宁", orb.Point{108.3669, 22.8170}},
	{"海口", orb.Point{110.1999, 20.0440}},
	{"石家庄", orb.Point{114.5149, 38.0428}},
	{"太原", orb.Point{112.5489, 37.8706}},
	{"呼和浩特", orb.Point{111.7492, 40.8426}},
	{"兰州", orb.Point{103.8343, 36.0611}},
	{"西宁", orb.Point{101.7782, 36.6171}},
	{"银川", orb.Point{106.2309, 38.4872}},
	{"乌鲁木齐", orb.Point{87.6168, 43.8256}},
	{"拉萨", orb.Point{91.1409, 29.6456}},
	{"香港", orb.Point{114.1694, 22.3193}},
	{"澳门", orb.Point{113.5439, 22.1987}},
	{"台北", orb.Point{121.5654, 25.0330}},
}

// Centroids：按名称查找与最近邻查找
// 约束：名称比较前去掉“市/省/自治区/特别行政区”等后缀；最近邻使用 orb 四叉树
type Centroids struct {
	byName map[string]Centroid
	qt     *quadtree.Quadtree
	n      int
}

const (
	nearestCandidates = 4
	snapMeters        = 50000
)

type centroidPointer struct{ c Centroid }

func (p centroidPointer) Point() orb.Point { return p.c.Point }

func NewCentroids(cs []Centroid) *Centroids {
	c := &Centroids{byName: make(map[string]Centroid, len(cs)), n: len(cs)}
	for _, x := range cs {
		c.byName[normalizeName(x.Name)] = x
	}
	c.qt = quadtree.New(orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}})
	// 超出经纬度范围的质心只参与名称查找
	for _, x := range cs {
		_ = c.qt.Add(centroidPointer{x})
	}
	return c
}

// BuiltinCentroids：内置城市表
func BuiltinCentroids() *Centroids { return NewCentroids(builtinCentroids) }

// LoadCentroidsCSV：读取 name,lng,lat 三列的 CSV（可有表头），与内置表合并，同名以文件为准
func LoadCentroidsCSV(path string) (*Centroids, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cs, err := readCentroids(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	merged := make(map[string]Centroid, len(builtinCentroids)+len(cs))
	var order []string
	for _, x := range append(append([]Centroid(nil), builtinCentroids...), cs...) {
		k := normalizeName(x.Name)
		if _, ok := merged[k]; !ok {
			order = append(order, k)
		}
		merged[k] = x
	}
	out := make([]Centroid, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return NewCentroids(out), nil
}

func readCentroids(r io.Reader) ([]Centroid, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var out []Centroid
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: want name,lng,lat", line)
		}
		lng, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err1 != nil || err2 != nil {
			if line == 1 {
				continue // 表头
			}
			return nil, fmt.Errorf("line %d: bad coordinate", line)
		}
		out = append(out, Centroid{Name: strings.TrimSpace(rec[0]), Point: orb.Point{lng, lat}})
	}
	return out, nil
}

var nameSuffixes = []string{"特别行政区", "维吾尔自治区", "壮族自治区", "回族自治区", "自治区", "省", "市"}

func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	for _, suf := range nameSuffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			return strings.TrimSuffix(s, suf)
		}
	}
	return s
}

func (c *Centroids) Len() int {
	if c == nil {
		return 0
	}
	return c.n
}

// Lookup：按名称查找
func (c *Centroids) Lookup(name string) (Centroid, bool) {
	if c == nil {
		return Centroid{}, false
	}
	x, ok := c.byName[normalizeName(name)]
	return x, ok
}

// Nearest：距离最近的质心与距离（米）；maxMeters > 0 时超出距离视为未命中
// 四叉树按经纬度平面距离取若干候选，再按球面距离选出最近者
func (c *Centroids) Nearest(p orb.Point, maxMeters float64) (Centroid, float64, bool) {
	if c == nil || c.qt == nil {
		return Centroid{}, 0, false
	}
	var best Centroid
	bestD := math.MaxFloat64
	for _, x := range c.qt.KNearest(nil, p, nearestCandidates) {
		cp := x.(centroidPointer)
		if d := geo.Distance(p, cp.c.Point); d < bestD {
			best, bestD = cp.c, d
		}
	}
	if bestD == math.MaxFloat64 {
		return Centroid{}, 0, false
	}
	if maxMeters > 0 && bestD > maxMeters {
		return Centroid{}, bestD, false
	}
	return best, bestD, true
}

// CityName：名称命中质心表时返回表内名称；否则取 snapMeters 内最近的城市；都未命中时原样返回
func (c *Centroids) CityName(name string, p orb.Point) string {
	if x, ok := c.Lookup(name); ok {
		return x.Name
	}
	if x, _, ok := c.Nearest(p, snapMeters); ok {
		return x.Name
	}
	return name
}
