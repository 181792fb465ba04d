package raster

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// 文档注释：栅格缓存文件格式
// 背景：校正后的全国栅格约 3.6 亿字节，冷启动重建需数分钟；落盘后后续进程直接加载。
// 约束：仅保证同一实现内可读；布局为 magic(8) + nx(u32) + ny(u32) + float32 小端数据，整体 zstd 压缩。
var magic = [8]byte{'T', 'R', 'N', 'G', 'R', 'I', 'D', '1'}

// 全国 50m 栅格为 14000×26000，文件头超过两倍时视为损坏，避免按坏头部申请内存
const maxCells = 2 * 14000 * 26000

// ErrBadCache：缓存文件头或长度不符
var ErrBadCache = errors.New("raster: bad cache file")

// Save：写入临时文件后原子改名，避免中断留下半个缓存
func Save(path string, g *Grid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := Encode(tmp, g); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Encode：按缓存格式写出到 w
func Encode(w io.Writer, g *Grid) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(zw, 1<<20)
	var hdr [16]byte
	copy(hdr[:8], magic[:])
	binary.LittleEndian.PutUint32(hdr[8:], uint32(g.Nx))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(g.Ny))
	if _, err := bw.Write(hdr[:]); err != nil {
		zw.Close()
		return err
	}
	var b [4]byte
	for _, v := range g.Z {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		if _, err := bw.Write(b[:]); err != nil {
			zw.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Load：读取缓存文件；文件不存在时返回的错误满足 errors.Is(err, fs.ErrNotExist)
func Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

func Decode(r io.Reader) (*Grid, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	br := bufio.NewReaderSize(zr, 1<<20)
	var hdr [16]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadCache, err)
	}
	if [8]byte(hdr[:8]) != magic {
		return nil, fmt.Errorf("%w: magic mismatch", ErrBadCache)
	}
	nx := int(binary.LittleEndian.Uint32(hdr[8:]))
	ny := int(binary.LittleEndian.Uint32(hdr[12:]))
	if nx*ny > maxCells {
		return nil, fmt.Errorf("%w: %d x %d cells", ErrBadCache, nx, ny)
	}
	g := New(nx, ny)
	var b [4]byte
	for k := range g.Z {
		if _, err := io.ReadFull(br, b[:]); err != nil {
			return nil, fmt.Errorf("%w: truncated at cell %d", ErrBadCache, k)
		}
		g.Z[k] = math.Float32frombits(binary.LittleEndian.Uint32(b[:]))
	}
	return g, nil
}
