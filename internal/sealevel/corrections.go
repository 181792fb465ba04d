package sealevel

import (
	"fmt"

	"terrain-api/internal/bng"
	"terrain-api/internal/logger"
	"terrain-api/internal/raster"
)

// CorrectionOp：阈值以下单元的处理方式
type CorrectionOp int

const (
	// Shift：加上 Value
	Shift CorrectionOp = iota
	// Assign：直接置为 Value
	Assign
)

// Correction：一条异常方格校正
// Square 为左下角方格引用，区域向东扩展 Cols 个、向北扩展 Rows 个同尺寸方格；区域内低于 Below 的单元按 Op 处理
type Correction struct {
	Square string
	Cols   int
	Rows   int
	Below  float32
	Op     CorrectionOp
	Value  float32
}

// CorrectionTable：带版本的校正表；内容为经验数据，随源数据发布更新
type CorrectionTable struct {
	Version string
	Entries []Correction
}

// DefaultCorrections：对应 OS Terrain 50 2022 年 5 月版
// 这些方格内海面被记为接近 0 的正值，导致泛洪无法进入
var DefaultCorrections = CorrectionTable{
	Version: "2022-06-27",
	Entries: []Correction{
		{Square: "NT68", Cols: 1, Rows: 1, Below: 2.5, Op: Shift, Value: -2.1},
		// NR24, NR34, NR44
		{Square: "NR24", Cols: 3, Rows: 1, Below: 0.2, Op: Shift, Value: -10},
		{Square: "NR33", Cols: 1, Rows: 1, Below: 0.2, Op: Shift, Value: -10},
		{Square: "NR35", Cols: 1, Rows: 1, Below: 0.2, Op: Shift, Value: -0.5},
		{Square: "NR56", Cols: 1, Rows: 1, Below: 0.1, Op: Assign, Value: -10},
		{Square: "NR57", Cols: 1, Rows: 1, Below: 0.1, Op: Shift, Value: -0.5},
		{Square: "NR76", Cols: 1, Rows: 1, Below: 0.1, Op: Shift, Value: -0.5},
		// NR64, NR74, NR65, NR75
		{Square: "NR64", Cols: 2, Rows: 2, Below: 0.1, Op: Assign, Value: -10},
	},
}

// Barrier：单个单元（下标为 [行, 列]）抬升到 Height，阻断河道泛洪
type Barrier struct {
	Row, Col int
	Height   float32
	Note     string
}

// DefaultBarriers：剑桥郡与诺维奇附近的河口
var DefaultBarriers = []Barrier{
	{Row: 6047, Col: 11183, Height: 0.01, Note: "river in TF50"},
	{Row: 6151, Col: 13041, Height: 0.01, Note: "river Yare in TG50"},
	{Row: 5851, Col: 13013, Height: 0.01, Note: "Oulton Dyke in TM59"},
}

// 文档注释：按校正表修正已知异常方格
// 约束：方格引用经网格模型解析；超出栅格的部分按边界裁剪；返回被修改的单元数。
func ApplyCorrections(g *raster.Grid, table CorrectionTable, resolution int) (int, error) {
	l := logger.L()
	total := 0
	for _, c := range table.Entries {
		origin, size, err := bng.ParseGridRefWithSize(c.Square)
		if err != nil {
			return total, fmt.Errorf("correction table %s: %w", table.Version, err)
		}
		w := int(size) / resolution
		x0, y0 := origin.X()/resolution, origin.Y()/resolution
		n := 0
		g.Window(x0, y0, x0+max(c.Cols, 1)*w, y0+max(c.Rows, 1)*w, func(_, _ int, v *float32) {
			if *v < c.Below {
				if c.Op == Assign {
					*v = c.Value
				} else {
					*v += c.Value
				}
				n++
			}
		})
		l.Debug("sea_correction", "square", c.Square, "cells", n)
		total += n
	}
	l.Info("sea_corrections_done", "version", table.Version, "cells", total)
	return total, nil
}

// ApplyBarriers：写入挡水单元，栅格外的条目跳过（降采样或测试栅格）
func ApplyBarriers(g *raster.Grid, barriers []Barrier) int {
	n := 0
	for _, b := range barriers {
		if !g.In(b.Col, b.Row) {
			logger.L().Debug("sea_barrier_skip", "row", b.Row, "col", b.Col)
			continue
		}
		g.Set(b.Col, b.Row, b.Height)
		n++
	}
	return n
}

// CheckSentinel：统计不高于哨兵值的单元数
func CheckSentinel(g *raster.Grid, s float32) int {
	n := 0
	for _, v := range g.Z {
		if v <= s {
			n++
		}
	}
	return n
}

// liftSentinel：把与哨兵冲突的单元抬到哨兵之上，保证掩膜前哨兵值唯一；n 为 CheckSentinel 的计数
func liftSentinel(g *raster.Grid, s float32, n int) {
	if n == 0 {
		return
	}
	for k, v := range g.Z {
		if v <= s {
			g.Z[k] = s + 1
		}
	}
	logger.L().Warn("sea_sentinel_collision", "cells", n, "sentinel", s)
}
