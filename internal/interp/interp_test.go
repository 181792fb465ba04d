package interp

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"terrain-api/internal/raster"
)

const res = 50

func randomGrid(nx, ny int, seed int64) *raster.Grid {
	r := rand.New(rand.NewSource(seed))
	g := raster.New(nx, ny)
	for k := range g.Z {
		g.Z[k] = r.Float32()*200 - 20
	}
	return g
}

func center(i int) float64 { return (float64(i) + 0.5) * res }

func TestLinearExactAtCellCenters(t *testing.T) {
	g := randomGrid(13, 9, 1)
	f := NewLinear(g, res)
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			if got := f.At(center(i), center(j)); got != float64(g.At(i, j)) {
				t.Fatalf("(%d,%d): got %v want %v", i, j, got, g.At(i, j))
			}
		}
	}
}

func TestLinearBlend(t *testing.T) {
	g := raster.FromRows([][]float32{
		{0, 10},
		{20, 30},
	})
	f := NewLinear(g, res)
	cases := []struct {
		x, y, want float64
	}{
		{50, 50, 15},   // 四点中心
		{50, 25, 5},    // 底边中点
		{25, 50, 10},   // 左边中点
		{125, 25, 20},  // 向东外推半个单元
		{-25, 25, -10}, // 向西外推
		{25, 125, 40},  // 向北外推
	}
	for _, c := range cases {
		if got := f.At(c.x, c.y); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("At(%v, %v) = %v, want %v", c.x, c.y, got, c.want)
		}
	}

	z, gx, gy := f.AtWithGradient(50, 50)
	if z != 15 || math.Abs(gx-10.0/res) > 1e-12 || math.Abs(gy-20.0/res) > 1e-12 {
		t.Errorf("gradient: %v %v %v", z, gx, gy)
	}
}

func TestLinearGradientMatchesSlope(t *testing.T) {
	g := randomGrid(8, 6, 3)
	f := NewLinear(g, res)
	r := rand.New(rand.NewSource(4))
	const e = 0.5
	for k := 0; k < 200; k++ {
		// 单元内部的点，左右上下各偏 e 仍在同一单元
		x := (float64(r.Intn(g.Nx-1)) + 0.6 + 0.8*r.Float64()) * res
		y := (float64(r.Intn(g.Ny-1)) + 0.6 + 0.8*r.Float64()) * res
		_, gx, gy := f.AtWithGradient(x, y)
		sx := (f.At(x+e, y) - f.At(x-e, y)) / (2 * e)
		sy := (f.At(x, y+e) - f.At(x, y-e)) / (2 * e)
		if math.Abs(gx-sx) > 1e-6 || math.Abs(gy-sy) > 1e-6 {
			t.Fatalf("(%v, %v): gradient (%v, %v), slope (%v, %v)", x, y, gx, gy, sx, sy)
		}
	}
}

func TestLinearFlatShortcut(t *testing.T) {
	g := raster.New(4, 4)
	g.Fill(7.3)
	f := NewLinear(g, res)
	for _, p := range [][2]float64{{0, 0}, {-1e6, 3e6}, {101.7, 33.3}} {
		if got := f.At(p[0], p[1]); got != float64(float32(7.3)) {
			t.Errorf("flat grid at %v = %v", p, got)
		}
	}
	_, gx, gy := f.AtWithGradient(80, 80)
	if gx != 0 || gy != 0 {
		t.Errorf("flat gradient %v %v", gx, gy)
	}
}

func TestLinearDegenerate(t *testing.T) {
	g := raster.FromRows([][]float32{{1, 3, 5}})
	f := NewLinear(g, res)
	if got := f.At(50, 1000); got != 2 {
		t.Errorf("single row = %v", got)
	}
	_, gx, gy := f.AtWithGradient(50, 25)
	if gx != 2.0/res || gy != 0 {
		t.Errorf("single row gradient %v %v", gx, gy)
	}
}

func TestSplineInterpolates(t *testing.T) {
	g := randomGrid(40, 30, 2)
	s, err := NewSpline(g, res, "", false)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			if got := s.At(center(i), center(j)); math.Abs(got-float64(g.At(i, j))) > 1e-3 {
				t.Fatalf("(%d,%d): got %v want %v", i, j, got, g.At(i, j))
			}
		}
	}
}

func TestSplineConstantAndLinear(t *testing.T) {
	g := raster.New(25, 20)
	g.Fill(12.5)
	s, err := NewSpline(g, res, "", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]float64{{0, 0}, {333, 777}, {1249, 999}, {-500, 5000}} {
		if got := s.At(p[0], p[1]); math.Abs(got-12.5) > 1e-4 {
			t.Errorf("constant at %v = %v", p, got)
		}
	}

	// 线性场：镜像边界下内部应精确重现
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			g.Set(i, j, float32(2*i+3*j))
		}
	}
	s, _ = NewSpline(g, res, "", false)
	x, y := 10.3*res+25, 7.6*res+25
	if got := s.At(x, y); math.Abs(got-(2*10.3+3*7.6)) > 1e-3 {
		t.Errorf("linear field = %v", got)
	}
}

func TestSplineCache(t *testing.T) {
	g := randomGrid(20, 15, 3)
	path := filepath.Join(t.TempDir(), "cache", "spline")
	s1, err := NewSpline(g, res, path, true)
	if err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("cache not written: %v", err)
	}
	mod := st.ModTime()

	s2, err := NewSpline(g, res, path, true)
	if err != nil {
		t.Fatal(err)
	}
	if st2, _ := os.Stat(path); !st2.ModTime().Equal(mod) {
		t.Error("cache rewritten on hit")
	}
	for _, p := range [][2]float64{{123, 456}, {0, 0}, {999, 700}} {
		if s1.At(p[0], p[1]) != s2.At(p[0], p[1]) {
			t.Errorf("cached spline differs at %v", p)
		}
	}

	// 栅格变化后缓存失效
	g.Set(3, 3, g.At(3, 3)+100)
	s3, err := NewSpline(g, res, path, true)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s3.At(center(3), center(3))-float64(g.At(3, 3))) > 1e-3 {
		t.Error("stale cache used")
	}

	// 不使用缓存时不写文件
	other := filepath.Join(t.TempDir(), "spline")
	if _, err := NewSpline(g, res, other, false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(other); !os.IsNotExist(err) {
		t.Error("cache written with useCache=false")
	}

	// 损坏的缓存被重建
	if err := os.WriteFile(path, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSpline(g, res, path, true); err != nil {
		t.Fatal(err)
	}
}

func TestMirror(t *testing.T) {
	cases := []struct{ k, n, want int }{
		{-1, 5, 1}, {-2, 5, 2}, {5, 5, 3}, {6, 5, 2}, {3, 2, 1}, {-1, 2, 1}, {7, 1, 0}, {0, 3, 0},
	}
	for _, c := range cases {
		if got := mirror(c.k, c.n); got != c.want {
			t.Errorf("mirror(%d, %d) = %d, want %d", c.k, c.n, got, c.want)
		}
	}
}

func TestFuncAdapter(t *testing.T) {
	var f Interpolant = Func(func(x, y float64) float64 { return x + y })
	if f.At(1, 2) != 3 {
		t.Error("Func adapter")
	}
}
