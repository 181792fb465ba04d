package sealevel

import (
	"time"

	"terrain-api/internal/logger"
	"terrain-api/internal/raster"
)

// tile：分块在栅格中的范围 [x0,x1) × [y0,y1)，以及在分块网格中的位置
type tile struct {
	tx, ty         int
	x0, y0, x1, y1 int
}

// 文档注释：按螺旋顺序枚举覆盖栅格的 d×d 分块
// 背景：先走最外圈（自左下角向右、向上、向左、向下），再逐圈向内；外圈先处理使泛洪前沿尽早推进。
// 约束：分块互不重叠且恰好覆盖整个栅格；右侧与顶部的分块可能小于 d。
func spiralTiles(nx, ny, d int) []tile {
	if nx <= 0 || ny <= 0 || d <= 0 {
		return nil
	}
	tx, ty := (nx+d-1)/d, (ny+d-1)/d
	out := make([]tile, 0, tx*ty)
	add := func(i, j int) {
		out = append(out, tile{
			tx: i, ty: j,
			x0: i * d, y0: j * d,
			x1: min((i+1)*d, nx), y1: min((j+1)*d, ny),
		})
	}
	left, right, bottom, top := 0, tx-1, 0, ty-1
	for left <= right && bottom <= top {
		for i := left; i <= right; i++ {
			add(i, bottom)
		}
		bottom++
		for j := bottom; j <= top; j++ {
			add(right, j)
		}
		right--
		if bottom <= top {
			for i := right; i >= left; i-- {
				add(i, top)
			}
			top--
		}
		if left <= right {
			for j := top; j >= bottom; j-- {
				add(left, j)
			}
			left++
		}
	}
	return out
}

// setBorder：最外一圈单元一律视为海
func setBorder(g *raster.Grid, s float32) {
	if g.Nx == 0 || g.Ny == 0 {
		return
	}
	top, bottom := g.Row(0), g.Row(g.Ny-1)
	for i := range top {
		top[i] = s
		bottom[i] = s
	}
	for j := 0; j < g.Ny; j++ {
		g.Set(0, j, s)
		g.Set(g.Nx-1, j, s)
	}
}

// MaskStats：泛洪统计
type MaskStats struct {
	Passes   int
	Visits   int
	SeaCells int
	CapHit   bool
}

// 文档注释：海域掩膜（分块螺旋泛洪）
// 背景：最外圈强制为哨兵 s；不高于 0 且经 4 邻接的不高于 0 单元与海相连的单元全部置为 s。
// 分块按螺旋顺序反复处理，每块内就地扫描到不再变化；已确定的块（全为陆地或海）移出活动集，
// 全负且与海相邻的块整体置海；块或其邻块变化后才会再次处理。
// 约束：结果与整栅格 BFS（FloodMask）逐单元一致；轮次或块内扫描次数到达上限时记录告警并返回当前状态。
func SetSeaLevel(g *raster.Grid, cfg Config) MaskStats {
	l := logger.L()
	s := cfg.Sentinel
	start := time.Now()
	var st MaskStats
	setBorder(g, s)
	nx, ny := g.Nx, g.Ny
	if nx < 3 || ny < 3 {
		st.SeaCells = countEqual(g, s)
		return st
	}

	d := cfg.TileSize
	if d <= 0 {
		d = 80
	}
	tiles := spiralTiles(nx, ny, d)
	tx := (nx + d - 1) / d
	ty := (ny + d - 1) / d
	pos := make([]int, tx*ty)
	for k, t := range tiles {
		pos[t.ty*tx+t.tx] = k
	}
	dirty := make([]bool, len(tiles))
	active := make([]int, len(tiles))
	for k := range tiles {
		dirty[k] = true
		active[k] = k
	}
	touch := func(t tile) {
		if t.tx > 0 {
			dirty[pos[t.ty*tx+t.tx-1]] = true
		}
		if t.tx < tx-1 {
			dirty[pos[t.ty*tx+t.tx+1]] = true
		}
		if t.ty > 0 {
			dirty[pos[(t.ty-1)*tx+t.tx]] = true
		}
		if t.ty < ty-1 {
			dirty[pos[(t.ty+1)*tx+t.tx]] = true
		}
	}

	maxPasses := cfg.MaxPasses
	if maxPasses <= 0 {
		maxPasses = 100
	}
	for st.Passes < maxPasses {
		st.Passes++
		changed := false
		keep := active[:0]
		for _, k := range active {
			if !dirty[k] {
				keep = append(keep, k)
				continue
			}
			dirty[k] = false
			st.Visits++
			ch, resolved, capped := visitTile(g, tiles[k], s, cfg.MaxSweeps)
			if ch {
				changed = true
				touch(tiles[k])
			}
			if capped {
				dirty[k] = true
				l.Warn("sea_mask_sweep_cap", "x0", tiles[k].x0, "y0", tiles[k].y0, "max_sweeps", cfg.MaxSweeps)
			}
			if !resolved {
				keep = append(keep, k)
			}
		}
		active = keep
		cfg.progress("sea_mask", len(tiles)-len(active), len(tiles))
		l.Debug("sea_mask_pass", "pass", st.Passes, "active", len(active), "changed", changed)
		if len(active) == 0 || !changed {
			break
		}
		if st.Passes == maxPasses {
			st.CapHit = true
			l.Warn("sea_mask_pass_cap", "max_passes", maxPasses, "active", len(active))
		}
	}
	st.SeaCells = countEqual(g, s)
	l.Info("sea_mask_done", "passes", st.Passes, "visits", st.Visits, "sea_cells", st.SeaCells,
		"duration_ms", time.Since(start).Milliseconds())
	return st
}

// visitTile：处理一个分块；返回是否有单元变化、是否已确定、是否到达扫描上限
func visitTile(g *raster.Grid, t tile, s float32, maxSweeps int) (changed, resolved, capped bool) {
	// 只处理内部单元，边界圈已为海
	x0, y0 := max(t.x0, 1), max(t.y0, 1)
	x1, y1 := min(t.x1, g.Nx-1), min(t.y1, g.Ny-1)
	if x0 >= x1 || y0 >= y1 {
		return false, true, false
	}

	allNeg, settled := true, true
	for j := y0; j < y1; j++ {
		row := g.Row(j)[x0:x1]
		for _, v := range row {
			if v >= 0 {
				allNeg = false
			}
			if v <= 0 && v != s {
				settled = false
			}
		}
	}
	if settled {
		return false, true, false
	}
	if allNeg {
		if !touchesSea(g, s, x0, y0, x1, y1) {
			return false, false, false
		}
		for j := y0; j < y1; j++ {
			row := g.Row(j)[x0:x1]
			for i := range row {
				row[i] = s
			}
		}
		return true, true, false
	}

	if maxSweeps <= 0 {
		maxSweeps = 1000
	}
	nx := g.Nx
	z := g.Z
	mark := func(k int) bool {
		v := z[k]
		if v > 0 || v == s {
			return false
		}
		if z[k-1] == s || z[k+1] == s || z[k-nx] == s || z[k+nx] == s {
			z[k] = s
			return true
		}
		return false
	}
	sweeps := 0
	for ; sweeps < maxSweeps; sweeps++ {
		hit := false
		// 正反方向交替，两个方向的传播都能在少量扫描内完成
		if sweeps%2 == 0 {
			for j := y0; j < y1; j++ {
				for k := j*nx + x0; k < j*nx+x1; k++ {
					if mark(k) {
						hit = true
					}
				}
			}
		} else {
			for j := y1 - 1; j >= y0; j-- {
				for k := j*nx + x1 - 1; k >= j*nx+x0; k-- {
					if mark(k) {
						hit = true
					}
				}
			}
		}
		if !hit {
			break
		}
		changed = true
	}
	capped = sweeps == maxSweeps

	resolved = true
	for j := y0; j < y1 && resolved; j++ {
		for _, v := range g.Row(j)[x0:x1] {
			if v <= 0 && v != s {
				resolved = false
				break
			}
		}
	}
	return changed, resolved && !capped, capped
}

// touchesSea：块内或其四周一圈（不含对角）是否已有海单元
func touchesSea(g *raster.Grid, s float32, x0, y0, x1, y1 int) bool {
	for j := y0; j < y1; j++ {
		for _, v := range g.Row(j)[x0:x1] {
			if v == s {
				return true
			}
		}
		if g.At(x0-1, j) == s || g.At(x1, j) == s {
			return true
		}
	}
	for _, v := range g.Row(y0 - 1)[x0:x1] {
		if v == s {
			return true
		}
	}
	for _, v := range g.Row(y1)[x0:x1] {
		if v == s {
			return true
		}
	}
	return false
}

func countEqual(g *raster.Grid, s float32) int {
	n := 0
	for _, v := range g.Z {
		if v == s {
			n++
		}
	}
	return n
}

// 文档注释：整栅格 BFS 泛洪，作为分块实现的参照
// 约束：种子为最外圈与已等于 s 的单元；经 4 邻接扩展到不高于 0 的单元；不修改栅格。
func FloodMask(g *raster.Grid, s float32) []bool {
	nx, ny := g.Nx, g.Ny
	mask := make([]bool, len(g.Z))
	queue := make([]int, 0, 2*(nx+ny))
	push := func(k int) {
		if !mask[k] {
			mask[k] = true
			queue = append(queue, k)
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if i == 0 || j == 0 || i == nx-1 || j == ny-1 || g.Z[j*nx+i] == s {
				push(j*nx + i)
			}
		}
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		i, j := k%nx, k/nx
		for _, n := range [4][2]int{{i - 1, j}, {i + 1, j}, {i, j - 1}, {i, j + 1}} {
			if !g.In(n[0], n[1]) {
				continue
			}
			kk := n[1]*nx + n[0]
			if g.Z[kk] <= 0 {
				push(kk)
			}
		}
	}
	return mask
}

// FloodFill：按 FloodMask 把海单元置为 s
func FloodFill(g *raster.Grid, s float32) int {
	mask := FloodMask(g, s)
	n := 0
	for k, m := range mask {
		if m {
			g.Z[k] = s
			n++
		}
	}
	return n
}
