// 包 raster：稠密 float32 高程栅格，按 [行, 列] 存储，行对应北向（y），列对应东向（x）
package raster

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Grid：行优先的稠密栅格
// 约束：len(Z) == Nx*Ny；(0,0) 位于网格原点（左下角）
type Grid struct {
	Nx, Ny int
	Z      []float32
}

// New：创建 ny 行 nx 列、全部为 0 的栅格
func New(nx, ny int) *Grid {
	if nx < 0 || ny < 0 {
		panic(fmt.Sprintf("raster: negative shape %dx%d", nx, ny))
	}
	return &Grid{Nx: nx, Ny: ny, Z: make([]float32, nx*ny)}
}

// FromRows：由二维切片构造（rows[0] 为最南一行），主要用于测试夹具
func FromRows(rows [][]float32) *Grid {
	ny := len(rows)
	nx := 0
	if ny > 0 {
		nx = len(rows[0])
	}
	g := New(nx, ny)
	for j, r := range rows {
		if len(r) != nx {
			panic("raster: ragged rows")
		}
		copy(g.Row(j), r)
	}
	return g
}

func (g *Grid) Len() int { return len(g.Z) }

func (g *Grid) Index(i, j int) int { return j*g.Nx + i }

// In：(i,j) 是否在栅格范围内；i 为列，j 为行
func (g *Grid) In(i, j int) bool { return i >= 0 && j >= 0 && i < g.Nx && j < g.Ny }

func (g *Grid) At(i, j int) float32 { return g.Z[j*g.Nx+i] }

func (g *Grid) Set(i, j int, v float32) { g.Z[j*g.Nx+i] = v }

// Row：第 j 行的切片视图（共享底层数组）
func (g *Grid) Row(j int) []float32 { return g.Z[j*g.Nx : (j+1)*g.Nx] }

// Fill：全部单元置为 v
func (g *Grid) Fill(v float32) {
	for k := range g.Z {
		g.Z[k] = v
	}
}

func (g *Grid) Clone() *Grid {
	out := &Grid{Nx: g.Nx, Ny: g.Ny, Z: make([]float32, len(g.Z))}
	copy(out.Z, g.Z)
	return out
}

// Equal：形状与全部单元逐位相等（NaN 按位比较）
func (g *Grid) Equal(o *Grid) bool {
	if g.Nx != o.Nx || g.Ny != o.Ny {
		return false
	}
	for k, v := range g.Z {
		if math.Float32bits(v) != math.Float32bits(o.Z[k]) {
			return false
		}
	}
	return true
}

// 文档注释：矩形子区域 [i0,i1) × [j0,j1) 的逐单元遍历
// 约束：区域按栅格边界裁剪；回调可修改传入的指针
func (g *Grid) Window(i0, j0, i1, j1 int, fn func(i, j int, v *float32)) {
	i0, j0 = max(i0, 0), max(j0, 0)
	i1, j1 = min(i1, g.Nx), min(j1, g.Ny)
	for j := j0; j < j1; j++ {
		row := g.Row(j)
		for i := i0; i < i1; i++ {
			fn(i, j, &row[i])
		}
	}
}

// Downsample：每隔 n 行/列取一个单元，返回新栅格；n<=1 时返回副本
func (g *Grid) Downsample(n int) *Grid {
	if n <= 1 {
		return g.Clone()
	}
	nx, ny := (g.Nx+n-1)/n, (g.Ny+n-1)/n
	out := New(nx, ny)
	for j := 0; j < ny; j++ {
		src := g.Row(j * n)
		dst := out.Row(j)
		for i := 0; i < nx; i++ {
			dst[i] = src[i*n]
		}
	}
	return out
}

// MinMax：全部单元的最小值与最大值；空栅格返回 (0,0)
func (g *Grid) MinMax() (float32, float32) {
	if len(g.Z) == 0 {
		return 0, 0
	}
	lo, hi := g.Z[0], g.Z[0]
	for _, v := range g.Z[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Fingerprint：形状与内容的 64 位指纹，用于判定派生缓存（样条系数）是否过期
func (g *Grid) Fingerprint() uint64 {
	d := xxhash.New()
	var hdr [16]byte
	binary.LittleEndian.PutUint64(hdr[0:], uint64(g.Nx))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(g.Ny))
	_, _ = d.Write(hdr[:])
	buf := make([]byte, 4*4096)
	for k := 0; k < len(g.Z); k += 4096 {
		end := min(k+4096, len(g.Z))
		b := buf[:4*(end-k)]
		for n, v := range g.Z[k:end] {
			binary.LittleEndian.PutUint32(b[4*n:], math.Float32bits(v))
		}
		_, _ = d.Write(b)
	}
	return d.Sum64()
}
