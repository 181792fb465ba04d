package hills

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"

	"terrain-api/internal/bng"
)

// ErrNotFound：未知的名称、编号或排名
var ErrNotFound = errors.New("hill not found")

// Builder：只追加的暂存集合
type Builder struct {
	hills []Hill
	done  bool
}

func NewBuilder() *Builder { return &Builder{} }

// Add：追加一座山；Finalize 之后调用属于编程错误，直接 panic
func (b *Builder) Add(h Hill) {
	if b.done {
		panic("hills: Add after Finalize")
	}
	h.Name = strings.TrimSpace(h.Name)
	b.hills = append(b.hills, h)
}

func (b *Builder) Len() int { return len(b.hills) }

// 文档注释：建立索引并返回不可变集合
// 约束：只能调用一次；同名（忽略大小写）或同编号时后加入者覆盖先加入者的查找项，列表中两者都保留。
func (b *Builder) Finalize() *Index {
	if b.done {
		panic("hills: Finalize called twice")
	}
	b.done = true
	ix := &Index{
		hills:  b.hills,
		byName: make(map[string]int, len(b.hills)),
		byID:   make(map[int]int, len(b.hills)),
		rt:     rtreego.NewTree(2, 25, 50),
	}
	ps := make([]kdPoint, len(b.hills))
	for i, h := range b.hills {
		ix.byName[strings.ToLower(h.Name)] = i
		ix.byID[h.ID] = i
		ps[i] = kdPoint{x: float64(h.X), y: float64(h.Y), idx: i}
		ix.rt.Insert(&entry{h: &ix.hills[i]})
	}
	ix.kd = buildKD(ps, 0)
	b.hills = nil
	return ix
}

// Index：只读山顶集合，可并发查询
type Index struct {
	hills  []Hill
	byName map[string]int
	byID   map[int]int
	kd     *kdNode
	rt     *rtreego.Rtree
}

// entry：R 树中的点条目（零尺寸矩形以 0.5m 容差表示）
type entry struct{ h *Hill }

func (e *entry) Bounds() rtreego.Rect {
	return rtreego.Point{float64(e.h.X), float64(e.h.Y)}.ToRect(0.5)
}

func (ix *Index) Len() int { return len(ix.hills) }

// All：按加载顺序（即排名顺序）返回副本
func (ix *Index) All() []Hill { return append([]Hill(nil), ix.hills...) }

// Nearest：最近的山顶及其欧氏距离（米）；空集合返回 ErrNotFound
func (ix *Index) Nearest(c bng.Coords) (Hill, float64, error) {
	x, y := c.Grid()
	i, d := nearest(ix.kd, float64(x), float64(y))
	if i < 0 {
		return Hill{}, 0, ErrNotFound
	}
	return ix.hills[i], d, nil
}

// 文档注释：按排名查找
// 约束：集合须按排名连续存放；存放位置与排名不符说明数据源顺序被破坏，panic。
func (ix *Index) ByRank(rank int) (Hill, error) {
	if rank < 1 || rank > len(ix.hills) {
		return Hill{}, fmt.Errorf("rank %d: %w", rank, ErrNotFound)
	}
	h := ix.hills[rank-1]
	if h.Rank != rank {
		panic(fmt.Sprintf("hills: not ordered by rank (position %d holds rank %d)", rank, h.Rank))
	}
	return h, nil
}

// ByName：名称查找，忽略大小写与首尾空白
func (ix *Index) ByName(name string) (Hill, error) {
	i, ok := ix.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Hill{}, fmt.Errorf("name %q: %w", name, ErrNotFound)
	}
	return ix.hills[i], nil
}

func (ix *Index) ByID(id int) (Hill, error) {
	i, ok := ix.byID[id]
	if !ok {
		return Hill{}, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	return ix.hills[i], nil
}

// 文档注释：矩形范围内的山顶，按排名升序
// 约束：半开区间 x0 <= x < x1, y0 <= y < y1；R 树只做候选筛选，边界按精确坐标再判一次。
func (ix *Index) Within(x0, y0, x1, y1 float64) []Hill {
	if x1 <= x0 || y1 <= y0 {
		return nil
	}
	rect, err := rtreego.NewRect(rtreego.Point{x0 - 1, y0 - 1}, []float64{x1 - x0 + 2, y1 - y0 + 2})
	if err != nil {
		return nil
	}
	var out []Hill
	for _, s := range ix.rt.SearchIntersect(rect) {
		h := s.(*entry).h
		if x, y := float64(h.X), float64(h.Y); x >= x0 && x < x1 && y >= y0 && y < y1 {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// InSquare：网格引用所指方格内的山顶
func (ix *Index) InSquare(ref string) ([]Hill, error) {
	c, size, err := bng.ParseGridRefWithSize(ref)
	if err != nil {
		return nil, err
	}
	x, y := c.Grid()
	return ix.Within(float64(x), float64(y), float64(x)+size, float64(y)+size), nil
}
