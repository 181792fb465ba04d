// 包 terrain：校正后高程栅格的进程级存储
//
// Store 由 Open（只读缓存）或 Build（必要时下载、摄取、校正并写缓存）显式构造，
// 构造后不可变，可在多个查询方之间无锁共享。
package terrain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"terrain-api/internal/bng"
	"terrain-api/internal/interp"
	"terrain-api/internal/logger"
	"terrain-api/internal/os50"
	"terrain-api/internal/raster"
	"terrain-api/internal/sealevel"
	"terrain-api/internal/utils"
)

// ErrDataNotFound：缓存或源数据不存在
var ErrDataNotFound = errors.New("terrain data not found")

// DataNotFoundError：带补救提示的数据缺失错误
type DataNotFoundError struct {
	Path string
}

func (e *DataNotFoundError) Error() string {
	return fmt.Sprintf("terrain data not found at %s: run terrain-ingest first", e.Path)
}

func (e *DataNotFoundError) Unwrap() error { return ErrDataNotFound }

// Options：存储位置与构建参数
type Options struct {
	DataDir     string
	SourceURL   string
	SplineCache string
	// 栅格范围（米），默认全国网格
	Width, Height int
	Sea           sealevel.Config
	Corrections   sealevel.CorrectionTable
	Barriers      []sealevel.Barrier
	// Force：忽略已有缓存与归档，重新下载并构建
	Force      bool
	Downloader *os50.Downloader
	// 解包进度（瓦片数）
	ExtractProgress os50.Progress
}

// DefaultOptions：全国 50m 数据集的默认参数
func DefaultOptions() Options {
	return Options{
		DataDir:     filepath.Join("data", "os50"),
		SourceURL:   os50.SourceURL,
		Width:       bng.Width,
		Height:      bng.Height,
		Sea:         sealevel.DefaultConfig(),
		Corrections: sealevel.DefaultCorrections,
		Barriers:    sealevel.DefaultBarriers,
	}
}

// OptionsFromEnv：在默认参数上叠加 TERRAIN_* 环境变量
func OptionsFromEnv() Options {
	o := DefaultOptions()
	o.DataDir = utils.Env("TERRAIN_DATA_DIR", o.DataDir)
	o.SourceURL = utils.Env("TERRAIN_SOURCE_URL", o.SourceURL)
	o.SplineCache = utils.Env("TERRAIN_SPLINE_CACHE", "")
	o.Sea.TileSize = utils.EnvInt("TERRAIN_FLOOD_TILE", o.Sea.TileSize)
	return o
}

// CachePath：校正后栅格缓存文件
func (o Options) CachePath() string { return filepath.Join(o.DataDir, "heights.zst") }

// ArchivePath：源归档下载位置
func (o Options) ArchivePath() string { return filepath.Join(o.DataDir, os50.ArchiveName) }

func (o Options) splinePath() string {
	if o.SplineCache != "" {
		return o.SplineCache
	}
	return filepath.Join(o.DataDir, "spline.msgpack.flate")
}

// Store：不可变高程栅格及其插值器
type Store struct {
	heights *raster.Grid
	res     int
	linear  *interp.Linear

	splinePath string
	splineMu   sync.Mutex
	spline     *interp.Spline

	// Report 仅在本进程内冷构建时非空
	Report *sealevel.Report
}

// New：由现成栅格构造存储（测试或降采样调试用）；splineCache 为空时样条不落盘
func New(g *raster.Grid, resolution int, splineCache string) *Store {
	return &Store{heights: g, res: resolution, linear: interp.NewLinear(g, resolution), splinePath: splineCache}
}

func newStore(g *raster.Grid, o Options) *Store { return New(g, o.Sea.Resolution, o.splinePath()) }

// 文档注释：从缓存打开存储
// 约束：缓存不存在时返回 *DataNotFoundError（errors.Is ErrDataNotFound）；缓存损坏返回 raster.ErrBadCache。
func Open(o Options) (*Store, error) {
	start := time.Now()
	g, err := raster.Load(o.CachePath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &DataNotFoundError{Path: o.CachePath()}
	}
	if err != nil {
		return nil, err
	}
	if w, h := g.Nx*o.Sea.Resolution, g.Ny*o.Sea.Resolution; w != o.Width || h != o.Height {
		return nil, fmt.Errorf("terrain cache %s covers %dx%d m, expecting %dx%d m", o.CachePath(), w, h, o.Width, o.Height)
	}
	logger.L().Info("terrain_open_ok", "path", o.CachePath(), "nx", g.Nx, "ny", g.Ny, "duration_ms", time.Since(start).Milliseconds())
	return newStore(g, o), nil
}

// 文档注释：加载或冷构建存储
// 背景：冷构建依次为下载源归档（需确认）、解包拼接、缺测替换、海平面校正、写缓存；全程一次性，无断点续做。
// 约束：缓存已存在且未设置 Force 时等价于 Open；下载被拒绝时返回 os50.ErrNotConfirmed。
func Build(ctx context.Context, o Options) (*Store, error) {
	l := logger.L()
	if !o.Force {
		s, err := Open(o)
		if !errors.Is(err, ErrDataNotFound) {
			return s, err
		}
	}

	d := o.Downloader
	if d == nil {
		d = &os50.Downloader{}
	}
	if _, err := d.Ensure(ctx, o.SourceURL, o.ArchivePath(), o.Force); err != nil {
		return nil, err
	}

	start := time.Now()
	g := os50.NewRaw(o.Width, o.Height, o.Sea.Resolution)
	if err := os50.Extract(ctx, o.ArchivePath(), g, o.Sea.Resolution, o.ExtractProgress); err != nil {
		return nil, err
	}
	missing := os50.ReplaceMissing(g, o.Sea.NoData)
	l.Info("terrain_missing_replaced", "cells", missing, "placeholder", o.Sea.NoData)

	rep, err := sealevel.Reconcile(g, o.Sea, o.Corrections, o.Barriers)
	if err != nil {
		return nil, err
	}
	if err := raster.Save(o.CachePath(), g); err != nil {
		return nil, err
	}
	l.Info("terrain_build_done", "path", o.CachePath(), "duration_ms", time.Since(start).Milliseconds())
	s := newStore(g, o)
	s.Report = &rep
	return s, nil
}

// LoadOrBuild：Build 的非强制形式
func LoadOrBuild(ctx context.Context, o Options) (*Store, error) {
	o.Force = false
	return Build(ctx, o)
}

// Heights：规范栅格（只读，调用方不得修改）
func (s *Store) Heights() *raster.Grid { return s.heights }

// Downsampled：每 n 个单元取一个的新栅格；规范栅格不受影响
func (s *Store) Downsampled(n int) *raster.Grid { return s.heights.Downsample(n) }

// Coarse：降采样后的独立存储，间距为 n 倍；样条缓存路径带上倍数以免与规范栅格混用
func (s *Store) Coarse(n int) *Store {
	if n <= 1 {
		return s
	}
	p := ""
	if s.splinePath != "" {
		p = fmt.Sprintf("%s.x%d", s.splinePath, n)
	}
	return New(s.heights.Downsample(n), s.res*n, p)
}

// Spacing：单元间距（米）
func (s *Store) Spacing() int { return s.res }

// Dimensions：栅格覆盖范围（米）
func (s *Store) Dimensions() (int, int) { return s.heights.Nx * s.res, s.heights.Ny * s.res }

// HeightAt：双线性插值高度
func (s *Store) HeightAt(x, y float64) float64 { return s.linear.At(x, y) }

// HeightAtCoords：网格坐标处的高度
func (s *Store) HeightAtCoords(c bng.Coords) float64 {
	x, y := c.Grid()
	return s.linear.At(float64(x), float64(y))
}

// Linear：双线性插值器
func (s *Store) Linear() *interp.Linear { return s.linear }

// 文档注释：样条插值器，首次调用时构建并在进程内复用
// 约束：useCache=false 时绕过磁盘缓存且不保留在内存中（调试用）。
func (s *Store) Spline(useCache bool) (*interp.Spline, error) {
	if !useCache {
		return interp.NewSpline(s.heights, s.res, s.splinePath, false)
	}
	s.splineMu.Lock()
	defer s.splineMu.Unlock()
	if s.spline != nil {
		return s.spline, nil
	}
	sp, err := interp.NewSpline(s.heights, s.res, s.splinePath, true)
	if err != nil {
		return nil, err
	}
	s.spline = sp
	return sp, nil
}
