package sealevel

import (
	"terrain-api/internal/logger"
	"terrain-api/internal/raster"
)

// Report：一次完整校正的统计
type Report struct {
	Corrected  int
	Barriers   int
	Collisions int
	Mask       MaskStats
	Slope      SlopeStats
}

// 文档注释：完整海平面校正流水线
// 背景：输入为拼接后的原始栅格，缺测单元已替换为 cfg.NoData。
// 约束：按固定顺序原地执行校正表、挡水单元、哨兵冲突检查、海域掩膜、海底坡度；
// 上限告警不视为失败，仅校正表解析出错时返回错误。
func Reconcile(g *raster.Grid, cfg Config, table CorrectionTable, barriers []Barrier) (Report, error) {
	var rep Report
	var err error
	if rep.Corrected, err = ApplyCorrections(g, table, cfg.Resolution); err != nil {
		return rep, err
	}
	rep.Barriers = ApplyBarriers(g, barriers)
	rep.Collisions = CheckSentinel(g, cfg.Sentinel)
	liftSentinel(g, cfg.Sentinel, rep.Collisions)
	rep.Mask, rep.Slope = Level(g, cfg)
	logger.L().Info("sea_reconcile_done",
		"corrected", rep.Corrected,
		"barriers", rep.Barriers,
		"collisions", rep.Collisions,
		"sea_cells", rep.Mask.SeaCells,
		"mask_cap_hit", rep.Mask.CapHit,
		"slope_cap_hit", rep.Slope.CapHit,
	)
	return rep, nil
}

// Level：仅执行海域掩膜与坡度合成；对已校正的栅格再次执行不产生变化
func Level(g *raster.Grid, cfg Config) (MaskStats, SlopeStats) {
	m := SetSeaLevel(g, cfg)
	s := AddSeaSlope(g, cfg)
	return m, s
}
