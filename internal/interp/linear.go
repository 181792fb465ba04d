// 包 interp：校正后栅格上的高程插值（双线性与三次 B 样条）
package interp

import (
	"terrain-api/internal/raster"
)

// Interpolant：以米为单位的坐标 -> 高度（米）
type Interpolant interface {
	At(x, y float64) float64
}

// Func：函数形式的 Interpolant
type Func func(x, y float64) float64

func (f Func) At(x, y float64) float64 { return f(x, y) }

// Linear：双线性插值，单元值位于其方格中心
type Linear struct {
	g   *raster.Grid
	res float64
}

func NewLinear(g *raster.Grid, resolution int) *Linear {
	return &Linear{g: g, res: float64(resolution)}
}

// 文档注释：双线性插值
// 背景：坐标先除以分辨率并减半个单元，得到以单元中心为整数的下标；取周围四个格点混合。
// 约束：下标钳制到 [0, n-2]，网格外的点按最近两列/两行外推而不报错；两端值相等时直接取该值，
// 保证在单元中心处返回与原值逐位相同的结果。
func (f *Linear) At(x, y float64) float64 {
	z, _, _ := f.eval(x, y, false)
	return z
}

// AtWithGradient：同时返回 (dz/dx, dz/dy)，单位 米/米
func (f *Linear) AtWithGradient(x, y float64) (z, gx, gy float64) {
	return f.eval(x, y, true)
}

func (f *Linear) eval(x, y float64, grad bool) (float64, float64, float64) {
	g := f.g
	u, v := x/f.res-0.5, y/f.res-0.5
	x1 := clamp(int(u), 0, max(g.Nx-2, 0))
	y1 := clamp(int(v), 0, max(g.Ny-2, 0))
	x2, y2 := min(x1+1, g.Nx-1), min(y1+1, g.Ny-1)

	h11 := float64(g.At(x1, y1))
	h21 := float64(g.At(x2, y1))
	h12 := float64(g.At(x1, y2))
	h22 := float64(g.At(x2, y2))

	// 内插时 x2-x1 == 1，省去除法；外推时同样成立
	fx1, fx2 := float64(x1), float64(x2)
	f1 := h11
	if h11 != h21 {
		f1 = (fx2-u)*h11 + (u-fx1)*h21
	}
	f2 := h12
	if h12 != h22 {
		f2 = (fx2-u)*h12 + (u-fx1)*h22
	}
	fy1, fy2 := float64(y1), float64(y2)
	z := f1
	if f1 != f2 {
		z = (fy2-v)*f1 + (v-fy1)*f2
	}
	if !grad {
		return z, 0, 0
	}
	// 单行或单列栅格时退化为一维
	wx1, wx2 := fx2-u, u-fx1
	if x2 == x1 {
		wx1, wx2 = 1, 0
	}
	wy1, wy2 := fy2-v, v-fy1
	if y2 == y1 {
		wy1, wy2 = 1, 0
	}
	gx := (wy1*(h21-h11) + wy2*(h22-h12)) / f.res
	gy := (wx1*(h12-h11) + wx2*(h22-h21)) / f.res
	return z, gx, gy
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
