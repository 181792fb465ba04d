package hills

import "math"

// 文档注释：二维 k-d 树（网格米制坐标）
// 背景：山顶集合加载后不再变化，一次性按中位数切分构建；查询为单个最近邻。
// 约束：x/y 交替分割；距离为欧氏距离（米）。
type kdNode struct {
	x, y float64
	idx  int
	ax   int // 0:x,1:y
	l    *kdNode
	r    *kdNode
}

type kdPoint struct {
	x, y float64
	idx  int
}

func buildKD(ps []kdPoint, depth int) *kdNode {
	if len(ps) == 0 {
		return nil
	}
	ax := depth % 2
	mid := len(ps) / 2
	selectNth(ps, mid, ax)
	node := &kdNode{x: ps[mid].x, y: ps[mid].y, idx: ps[mid].idx, ax: ax}
	node.l = buildKD(ps[:mid], depth+1)
	node.r = buildKD(ps[mid+1:], depth+1)
	return node
}

// 原地第 n 小元素选择
func selectNth(a []kdPoint, n, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(a []kdPoint, lo, hi, pivot, ax int) int {
	pv := a[pivot]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if a[j].key(ax) < pv.key(ax) {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

func (p kdPoint) key(ax int) float64 {
	if ax == 0 {
		return p.x
	}
	return p.y
}

// nearest：返回最近点的下标与距离；空树返回 -1
func nearest(node *kdNode, x, y float64) (int, float64) {
	best, bestD := -1, math.Inf(1)
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := math.Hypot(x-n.x, y-n.y); d < bestD || (d == bestD && n.idx < best) {
			best, bestD = n.idx, d
		}
		key, q := x, n.x
		if n.ax == 1 {
			key, q = y, n.y
		}
		first, second := n.l, n.r
		if key > q {
			first, second = n.r, n.l
		}
		dfs(first)
		// 分割平面到查询点的距离不超过当前最优距离时才遍历另一侧
		if math.Abs(key-q) <= bestD {
			dfs(second)
		}
	}
	dfs(node)
	return best, bestD
}
