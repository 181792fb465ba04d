package interp

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"terrain-api/internal/logger"
	"terrain-api/internal/raster"
)

// 缓存格式版本；系数算法变化时递增
const splineCacheVersion = 1

// Spline：全栅格三次 B 样条插值
// 系数由单元值经可分离的递归预滤波求得，边界按镜像延拓；网格外的点钳制到边缘单元中心。
type Spline struct {
	nx, ny int
	res    float64
	coef   []float32
}

type splineFile struct {
	Version     int
	Fingerprint uint64
	Nx, Ny      int
	Resolution  float64
	Coef        []float32
}

// 文档注释：构建（或从磁盘缓存加载）样条
// 背景：全国栅格的系数计算需数十秒且占用与栅格相同的内存，结果按栅格指纹缓存到 cachePath。
// 约束：useCache=false 时既不读也不写缓存（调试用）；缓存与当前栅格指纹或尺寸不符时重建并覆盖；
// 写缓存失败只记录告警。
func NewSpline(g *raster.Grid, resolution int, cachePath string, useCache bool) (*Spline, error) {
	l := logger.L()
	fp := g.Fingerprint()
	if useCache && cachePath != "" {
		var sf splineFile
		if err := loadObject(cachePath, &sf); err == nil {
			if sf.Version == splineCacheVersion && sf.Fingerprint == fp && sf.Nx == g.Nx && sf.Ny == g.Ny &&
				sf.Resolution == float64(resolution) && len(sf.Coef) == g.Len() {
				l.Info("spline_cache_hit", "path", cachePath)
				return &Spline{nx: sf.Nx, ny: sf.Ny, res: sf.Resolution, coef: sf.Coef}, nil
			}
			l.Info("spline_cache_stale", "path", cachePath)
		} else if !os.IsNotExist(err) {
			l.Warn("spline_cache_load_error", "path", cachePath, "err", err)
		}
	}

	start := time.Now()
	s := &Spline{nx: g.Nx, ny: g.Ny, res: float64(resolution), coef: make([]float32, g.Len())}
	copy(s.coef, g.Z)
	if err := s.prefilter(); err != nil {
		return nil, err
	}
	l.Info("spline_built", "nx", s.nx, "ny", s.ny, "duration_ms", time.Since(start).Milliseconds())

	if useCache && cachePath != "" {
		sf := splineFile{
			Version:     splineCacheVersion,
			Fingerprint: fp,
			Nx:          s.nx,
			Ny:          s.ny,
			Resolution:  s.res,
			Coef:        s.coef,
		}
		if err := storeObject(cachePath, &sf); err != nil {
			l.Warn("spline_cache_store_error", "path", cachePath, "err", err)
		}
	}
	return s, nil
}

// 三次 B 样条的极点
var splinePole = math.Sqrt(3) - 2

// prefilter：先逐行、再逐列做因果/反因果递归滤波，行列各自并行
func (s *Spline) prefilter() error {
	workers := runtime.NumCPU()
	var eg errgroup.Group
	eg.SetLimit(workers)
	for j := 0; j < s.ny; j++ {
		eg.Go(func() error {
			row := s.coef[j*s.nx : (j+1)*s.nx]
			buf := make([]float64, s.nx)
			for i, v := range row {
				buf[i] = float64(v)
			}
			bsplineCoefficients(buf)
			for i, v := range buf {
				row[i] = float32(v)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var eg2 errgroup.Group
	eg2.SetLimit(workers)
	for i := 0; i < s.nx; i++ {
		eg2.Go(func() error {
			buf := make([]float64, s.ny)
			for j := range buf {
				buf[j] = float64(s.coef[j*s.nx+i])
			}
			bsplineCoefficients(buf)
			for j, v := range buf {
				s.coef[j*s.nx+i] = float32(v)
			}
			return nil
		})
	}
	return eg2.Wait()
}

// bsplineCoefficients：一维插值系数，原地计算（镜像边界）
func bsplineCoefficients(c []float64) {
	n := len(c)
	if n < 2 {
		return
	}
	z := splinePole
	lambda := (1 - z) * (1 - 1/z)
	for k := range c {
		c[k] *= lambda
	}
	c[0] = causalInit(c, z)
	for k := 1; k < n; k++ {
		c[k] += z * c[k-1]
	}
	c[n-1] = (z / (z*z - 1)) * (z*c[n-2] + c[n-1])
	for k := n - 2; k >= 0; k-- {
		c[k] = z * (c[k+1] - c[k])
	}
}

func causalInit(c []float64, z float64) float64 {
	n := len(c)
	const tol = 1e-9
	horizon := int(math.Ceil(math.Log(tol) / math.Log(math.Abs(z))))
	if horizon < n {
		zn, sum := z, c[0]
		for k := 1; k < horizon; k++ {
			sum += zn * c[k]
			zn *= z
		}
		return sum
	}
	zn := z
	iz := 1 / z
	z2n := math.Pow(z, float64(n-1))
	sum := c[0] + z2n*c[n-1]
	z2n *= z2n * iz
	for k := 1; k < n-1; k++ {
		sum += (zn + z2n) * c[k]
		zn *= z
		z2n *= iz
	}
	return sum / (1 - zn*zn)
}

func bsplineWeights(t float64) [4]float64 {
	t2 := t * t
	t3 := t2 * t
	return [4]float64{
		(1 - 3*t + 3*t2 - t3) / 6,
		(4 - 6*t2 + 3*t3) / 6,
		(1 + 3*t + 3*t2 - 3*t3) / 6,
		t3 / 6,
	}
}

// mirror：镜像延拓下标到 [0, n)
func mirror(k, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	k %= period
	if k < 0 {
		k += period
	}
	if k >= n {
		k = period - k
	}
	return k
}

// At：坐标（米）处的样条值
func (s *Spline) At(x, y float64) float64 {
	if s.nx == 0 || s.ny == 0 {
		return math.NaN()
	}
	u := math.Min(math.Max(x/s.res-0.5, 0), float64(s.nx-1))
	v := math.Min(math.Max(y/s.res-0.5, 0), float64(s.ny-1))
	i, j := int(math.Floor(u)), int(math.Floor(v))
	wx, wy := bsplineWeights(u-float64(i)), bsplineWeights(v-float64(j))
	var sum float64
	for b := 0; b < 4; b++ {
		if wy[b] == 0 {
			continue
		}
		row := mirror(j-1+b, s.ny) * s.nx
		var acc float64
		for a := 0; a < 4; a++ {
			if wx[a] == 0 {
				continue
			}
			acc += wx[a] * float64(s.coef[row+mirror(i-1+a, s.nx)])
		}
		sum += wy[b] * acc
	}
	return sum
}

// storeObject：flate 压缩的 msgpack，写临时文件后改名
func storeObject(path string, obj any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	fw, err := flate.NewWriter(f, flate.BestSpeed)
	if err != nil {
		f.Close()
		return err
	}
	if err := msgpack.NewEncoder(fw).Encode(obj); err != nil {
		f.Close()
		return err
	}
	if err := fw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func loadObject(path string, obj any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fr := flate.NewReader(f)
	defer fr.Close()
	return msgpack.NewDecoder(fr).Decode(obj)
}
