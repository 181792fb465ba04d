package os50

import (
	"bytes"
	"context"
	"io"
	"math"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"terrain-api/internal/logger"
	"terrain-api/internal/raster"
)

// Progress：瓦片级进度回调（done/total），在写锁内调用
type Progress func(done, total int)

// 文档注释：解包全国归档并拼接到目标栅格
// 背景：顶层 zip 内每个 100km 方格一个子 zip，子 zip 内可能再嵌套一层 zip；叶子为 .asc 文件。
// 约束：子归档并行解析（errgroup，并发度 = CPU 数），写入栅格时串行；任一瓦片失败即整体失败并取消其余任务，
// 错误信息带上子归档路径与成员名。未覆盖的单元保持调用方给定的初值。
func Extract(ctx context.Context, archive string, g *raster.Grid, resolution int, progress Progress) error {
	l := logger.L()
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return errors.Wrapf(err, "open %s", archive)
	}
	defer zr.Close()

	var tiles []*zip.File
	for _, f := range zr.File {
		if strings.EqualFold(path.Ext(f.Name), ".zip") {
			tiles = append(tiles, f)
		}
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].Name < tiles[j].Name })
	if len(tiles) == 0 {
		return &FormatError{Reason: "no tile archives in " + archive}
	}
	l.Info("extract_begin", "archive", archive, "tiles", len(tiles))
	start := time.Now()

	var mu sync.Mutex
	done := 0
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for _, f := range tiles {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parsed, err := readNested(f, 1)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range parsed {
				if err := p.tile.Into(g, resolution); err != nil {
					return errors.Wrapf(err, "error reading %s in %s", p.member, f.Name)
				}
			}
			done++
			if progress != nil {
				progress(done, len(tiles))
			}
			l.Debug("extract_tile_done", "tile", f.Name, "asc", len(parsed))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	l.Info("extract_done", "tiles", done, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

type parsedTile struct {
	member string
	tile   *Tile
}

// readNested：读取一个子归档，返回其中全部 .asc 瓦片；depth 为仍允许的额外嵌套层数
func readNested(f *zip.File, depth int) ([]parsedTile, error) {
	rc, err := f.Open()
	if err != nil {
		if errors.Is(err, zip.ErrAlgorithm) {
			return nil, errors.Wrapf(err, "unsupported compression method %d in %s", f.Method, f.Name)
		}
		return nil, errors.Wrapf(err, "open %s", f.Name)
	}
	b, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", f.Name)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, errors.Wrapf(&FormatError{Reason: err.Error()}, "open nested archive %s", f.Name)
	}

	var out []parsedTile
	for _, m := range zr.File {
		switch strings.ToLower(path.Ext(m.Name)) {
		case ".asc":
			t, err := readMember(m)
			if err != nil {
				return nil, errors.Wrapf(err, "error reading %s in %s", m.Name, f.Name)
			}
			out = append(out, parsedTile{member: m.Name, tile: t})
		case ".zip":
			if depth <= 0 {
				continue
			}
			inner, err := readNested(m, depth-1)
			if err != nil {
				return nil, errors.Wrapf(err, "in %s", f.Name)
			}
			out = append(out, inner...)
		}
	}
	return out, nil
}

func readMember(m *zip.File) (*Tile, error) {
	rc, err := m.Open()
	if err != nil {
		if errors.Is(err, zip.ErrAlgorithm) {
			return nil, errors.Wrapf(err, "unsupported compression method %d", m.Method)
		}
		return nil, err
	}
	defer rc.Close()
	return ParseASC(rc)
}

// NewRaw：按数据范围分配原始栅格，全部置 NaN 以区分未覆盖单元
func NewRaw(width, height, resolution int) *raster.Grid {
	g := raster.New(width/resolution, height/resolution)
	g.Fill(float32(math.NaN()))
	return g
}

// ReplaceMissing：NaN 单元替换为占位值，返回替换数量
func ReplaceMissing(g *raster.Grid, placeholder float32) int {
	n := 0
	for k, v := range g.Z {
		if v != v {
			g.Z[k] = placeholder
			n++
		}
	}
	return n
}
