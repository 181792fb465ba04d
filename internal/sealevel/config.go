// 包 sealevel：原始高程栅格的海平面校正流水线
//
// 步骤固定为：已知异常方格校正 -> 河口挡水单元 -> 海域掩膜（分块螺旋泛洪）-> 海底坡度合成。
// 每一步原地修改栅格，冷构建时各执行一次。
package sealevel

// Config：流水线可调常数
// 约束：Sentinel 必须低于任何真实高程与 NoData 占位值；Step 必须为正
type Config struct {
	// 海域掩膜标记值
	Sentinel float32
	// 缺测单元的占位值（由摄取阶段写入）
	NoData float32
	// 坡度合成后哨兵值映射到的海平面
	SeaLevel float32
	// 坡度步长：每远离海岸一个单元下降的高度
	Step float32
	// 分块边长（单元数）
	TileSize int
	// 全局轮次上限
	MaxPasses int
	// 单个分块内的扫描次数上限
	MaxSweeps int
	// 单元间距（米），用于把方格引用换算成下标
	Resolution int
	// 进度回调：stage 为 "sea_mask" 或 "sea_slope"
	Progress func(stage string, done, total int)
}

// DefaultConfig：与数据集配套的默认常数
func DefaultConfig() Config {
	return Config{
		Sentinel:   -100,
		NoData:     -10,
		SeaLevel:   0,
		Step:       0.01,
		TileSize:   80,
		MaxPasses:  100,
		MaxSweeps:  1000,
		Resolution: 50,
	}
}

func (c Config) progress(stage string, done, total int) {
	if c.Progress != nil {
		c.Progress(stage, done, total)
	}
}
