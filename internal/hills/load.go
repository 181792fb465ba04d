package hills

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"terrain-api/internal/logger"
)

// ErrBadHeader：CSV 表头缺少必需字段
var ErrBadHeader = errors.New("hills: bad csv header")

// CSVName：压缩包内的数据文件名
const CSVName = "hills.csv"

var fields = [...]string{"x", "y", "rank", "meters", "id", "name"}

// 文档注释：从 CSV 读取山顶记录到 Builder
// 背景：字段按名称匹配，顺序不限；多余字段忽略。
// 约束：缺少任一必需字段返回 ErrBadHeader；数值解析失败报告行号，整体失败。
func ReadCSV(r io.Reader, b *Builder) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return fmt.Errorf("%w: empty file", ErrBadHeader)
	}
	if err != nil {
		return err
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var idx [len(fields)]int
	for k, f := range fields {
		i, ok := pos[f]
		if !ok {
			return fmt.Errorf("%w: missing field %q", ErrBadHeader, f)
		}
		idx[k] = i
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line, _ := cr.FieldPos(0)
		h, err := parseRecord(rec, idx)
		if err != nil {
			return fmt.Errorf("hills: line %d: %w", line, err)
		}
		b.Add(h)
	}
}

func parseRecord(rec []string, idx [len(fields)]int) (Hill, error) {
	get := func(k int) (string, error) {
		if idx[k] >= len(rec) {
			return "", fmt.Errorf("missing %s", fields[k])
		}
		return strings.TrimSpace(rec[idx[k]]), nil
	}
	var nums [5]float64
	for k := 0; k < 5; k++ {
		s, err := get(k)
		if err != nil {
			return Hill{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Hill{}, fmt.Errorf("%s: %w", fields[k], err)
		}
		nums[k] = v
	}
	name, err := get(5)
	if err != nil {
		return Hill{}, err
	}
	return Hill{
		X:      int(nums[0]),
		Y:      int(nums[1]),
		Rank:   int(nums[2]),
		Meters: nums[3],
		ID:     int(nums[4]),
		Name:   name,
	}, nil
}

// 文档注释：从压缩包加载并建立索引
// 约束：优先读取 hills.csv，否则取第一个 .csv 成员；找不到时返回错误。
func LoadZip(p string) (*Index, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var member *zip.File
	for _, f := range zr.File {
		if path.Base(f.Name) == CSVName {
			member = f
			break
		}
		if member == nil && strings.EqualFold(path.Ext(f.Name), ".csv") {
			member = f
		}
	}
	if member == nil {
		return nil, fmt.Errorf("hills: no csv in %s", p)
	}
	rc, err := member.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b := NewBuilder()
	if err := ReadCSV(rc, b); err != nil {
		return nil, fmt.Errorf("%s in %s: %w", member.Name, p, err)
	}
	ix := b.Finalize()
	logger.L().Info("hills_loaded", "path", p, "count", ix.Len())
	return ix, nil
}
