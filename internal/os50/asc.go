package os50

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"terrain-api/internal/raster"
)

// FormatError：归档结构、文件头或分辨率不符；不可恢复
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "os50: " + e.Reason }

func formatErr(format string, args ...any) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// Tile：单个 ASCII Grid 文件解析结果
type Tile struct {
	Ncols, Nrows int
	Xll, Yll     int
	Cellsize     int
	// Rows[0] 为文件中的第一行（最北）；缺测值为 NaN
	Rows [][]float32
}

// 文档注释：解析 OS "ASCII Grid" 文本
// 背景：前 5 行依次为 ncols/nrows/xllcorner/yllcorner/cellsize（整数），第 6 行 nodata_value 可选，其后为自北向南的数据行。
// 约束：头字段顺序固定，不符即报错；数据行数与每行列数必须与头一致；等于 nodata 的记号记为 NaN。
func ParseASC(r io.Reader) (*Tile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	next := func() (string, bool) {
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				return line, true
			}
		}
		return "", false
	}
	header := func(field string) (int, error) {
		line, ok := next()
		if !ok {
			return 0, formatErr("missing header line %q", field)
		}
		f := strings.Fields(line)
		if len(f) != 2 || !strings.EqualFold(f[0], field) {
			return 0, formatErr("unexpected header line %q, expecting %q", line, field)
		}
		v, err := strconv.Atoi(f[1])
		if err != nil {
			return 0, formatErr("header %s: %v", field, err)
		}
		return v, nil
	}

	t := &Tile{}
	var err error
	for _, h := range []struct {
		name string
		dst  *int
	}{
		{"ncols", &t.Ncols},
		{"nrows", &t.Nrows},
		{"xllcorner", &t.Xll},
		{"yllcorner", &t.Yll},
		{"cellsize", &t.Cellsize},
	} {
		if *h.dst, err = header(h.name); err != nil {
			return nil, err
		}
	}
	if t.Ncols <= 0 || t.Nrows <= 0 {
		return nil, formatErr("bad tile shape %dx%d", t.Ncols, t.Nrows)
	}

	nodata := ""
	line, ok := next()
	if ok {
		if f := strings.Fields(line); len(f) >= 2 && strings.EqualFold(f[0], "nodata_value") {
			nodata = f[1]
			line, ok = next()
		}
	}

	t.Rows = make([][]float32, 0, t.Nrows)
	for ok && len(t.Rows) < t.Nrows {
		row, err := parseRow(line, t.Ncols, nodata)
		if err != nil {
			return nil, formatErr("row %d: %v", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, row)
		line, ok = next()
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(t.Rows) != t.Nrows {
		return nil, formatErr("expected %d rows, got %d", t.Nrows, len(t.Rows))
	}
	return t, nil
}

func parseRow(line string, ncols int, nodata string) ([]float32, error) {
	row := make([]float32, 0, ncols)
	for _, tok := range strings.Fields(line) {
		if tok == nodata {
			row = append(row, float32(math.NaN()))
			continue
		}
		v, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, err
		}
		row = append(row, float32(v))
	}
	if len(row) != ncols {
		return nil, fmt.Errorf("expected %d values, got %d", ncols, len(row))
	}
	return row, nil
}

// 文档注释：把瓦片写入目标栅格
// 约束：cellsize 必须等于 resolution；行按南北翻转写入，偏移为 (xll, yll) / resolution；越界即报错。
func (t *Tile) Into(g *raster.Grid, resolution int) error {
	if t.Cellsize != resolution {
		return formatErr("unexpected resolution, got %d, expecting %d", t.Cellsize, resolution)
	}
	x0, y0 := t.Xll/resolution, t.Yll/resolution
	if x0 < 0 || y0 < 0 || x0+t.Ncols > g.Nx || y0+t.Nrows > g.Ny {
		return formatErr("tile at (%d, %d) size %dx%d outside %dx%d raster", t.Xll, t.Yll, t.Ncols, t.Nrows, g.Nx, g.Ny)
	}
	for r, row := range t.Rows {
		dst := g.Row(y0 + t.Nrows - 1 - r)
		copy(dst[x0:x0+t.Ncols], row)
	}
	return nil
}

// ReadASC：解析并写入
func ReadASC(r io.Reader, g *raster.Grid, resolution int) error {
	t, err := ParseASC(r)
	if err != nil {
		return err
	}
	return t.Into(g, resolution)
}
