package sealevel

import (
	"time"

	"terrain-api/internal/logger"
	"terrain-api/internal/raster"
)

// SlopeStats：坡度合成统计
type SlopeStats struct {
	Rounds  int
	Reached int
	CapHit  bool
}

// 文档注释：海底坡度合成
// 背景：海单元（等于 s）按到最近非海单元的 4 邻接距离 k 赋值 s-k*h，使高度可作为离岸距离的粗略代理；
// 多源波前逐轮推进，邻居为 s 或低于当前值减 h 时被更新并进入下一轮。
// 约束：前沿为空即终止，轮次上限为单元总数；完成后不高于 s 的单元整体平移，使 s 对应 cfg.SeaLevel
// （无法到达的海单元即落在海平面上）。
func AddSeaSlope(g *raster.Grid, cfg Config) SlopeStats {
	l := logger.L()
	s, h := cfg.Sentinel, cfg.Step
	nx, ny := g.Nx, g.Ny
	z := g.Z
	start := time.Now()
	var st SlopeStats

	sea := 0
	frontier := make([]int32, 0, 1024)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := j*nx + i
			if z[k] != s {
				continue
			}
			sea++
			if (i > 0 && z[k-1] > s) || (i < nx-1 && z[k+1] > s) ||
				(j > 0 && z[k-nx] > s) || (j < ny-1 && z[k+nx] > s) {
				frontier = append(frontier, int32(k))
			}
		}
	}
	for _, k := range frontier {
		z[k] = s - h
	}
	st.Reached = len(frontier)

	// stamp 记录单元最近一次进入前沿的轮次，避免同一轮重复入队
	stamp := make([]int32, len(z))
	limit := nx * ny
	next := make([]int32, 0, 1024)
	for len(frontier) > 0 {
		if st.Rounds >= limit {
			st.CapHit = true
			l.Warn("sea_slope_round_cap", "rounds", st.Rounds, "frontier", len(frontier))
			break
		}
		st.Rounds++
		round := int32(st.Rounds)
		next = next[:0]
		relax := func(n int, nv float32) {
			if v := z[n]; v == s || v < nv {
				if v == s {
					st.Reached++
				}
				z[n] = nv
				if stamp[n] != round {
					stamp[n] = round
					next = append(next, int32(n))
				}
			}
		}
		for _, c := range frontier {
			k := int(c)
			i, j := k%nx, k/nx
			nv := z[k] - h
			if j > 0 {
				relax(k-nx, nv)
			}
			if j < ny-1 {
				relax(k+nx, nv)
			}
			if i > 0 {
				relax(k-1, nv)
			}
			if i < nx-1 {
				relax(k+1, nv)
			}
		}
		frontier, next = next, frontier
		if st.Rounds%100 == 0 {
			cfg.progress("sea_slope", st.Reached, sea)
		}
	}
	cfg.progress("sea_slope", st.Reached, sea)

	for k, v := range z {
		if v <= s {
			z[k] = v - s + cfg.SeaLevel
		}
	}
	l.Info("sea_slope_done", "rounds", st.Rounds, "sea_cells", sea, "reached", st.Reached,
		"duration_ms", time.Since(start).Milliseconds())
	return st
}
