// 包 bng：英国国家网格（OSGB36）坐标模型，覆盖 700km × 1300km 的数据范围
package bng

import (
	"fmt"
	"sync"
)

// 网格总尺寸（米）：原点位于左下角（SV 方格）
const (
	Width  = 700000
	Height = 1300000
)

// OffGrid：点落在字母表定义域之外时返回的方格名
const OffGrid = "Off the grid"

// 网格字母（自下而上、自左向右）；字母 I 不使用
var letters = [5][5]byte{
	{'V', 'W', 'X', 'Y', 'Z'},
	{'Q', 'R', 'S', 'T', 'U'},
	{'L', 'M', 'N', 'O', 'P'},
	{'F', 'G', 'H', 'J', 'K'},
	{'A', 'B', 'C', 'D', 'E'},
}

// 字母 -> (行, 列) 反查表
var letterIndex = func() map[byte][2]int {
	m := make(map[byte][2]int, 25)
	for i, row := range letters {
		for j, c := range row {
			m[c] = [2]int{i, j}
		}
	}
	return m
}()

// Dimensions：返回网格宽高（米）
func Dimensions() (int, int) { return Width, Height }

// ToNormalised：米制坐标 -> [0,1] 归一化坐标
func ToNormalised(x, y int) (float64, float64) {
	return float64(x) / Width, float64(y) / Height
}

// ToMetric：归一化坐标 -> 米制坐标，按整数截断
func ToMetric(nx, ny float64) (int, int) {
	return int(nx * Width), int(ny * Height)
}

// Square：100km 方格名与其左下角坐标
type Square struct {
	Name string
	X, Y int
}

// 文档注释：枚举覆盖数据范围的全部 100km 方格
// 约束：自下而上逐行、行内自左向右；首行从 QRSTU 行、第三列（S）开始，保证 (0,0) 为 SV。
func Squares() []Square {
	const d = 100000
	out := make([]Square, 0, (Width/d)*(Height/d))
	i0, i1 := 1, 0
	for y := 0; y < Height; y += d {
		j0, j1 := 2, 0
		for x := 0; x < Width; x += d {
			name := string([]byte{letters[i0][j0], letters[i1][j1]})
			out = append(out, Square{Name: name, X: x, Y: y})
			j1++
			if j1 == 5 {
				j1 = 0
				j0++
			}
		}
		i1++
		if i1 == 5 {
			i1 = 0
			i0++
		}
	}
	return out
}

// 文档注释：网格坐标（不可变值）
// 背景：米制坐标与归一化坐标二者恰有其一由调用方给出，另一方派生；经纬度与方格名按需计算并缓存。
// 约束：复制 Coords 时共享同一个惰性缓存，不影响不可变语义。
type Coords struct {
	x, y   int
	nx, ny float64
	lazy   *coordsCache
}

type coordsCache struct {
	onceLL   sync.Once
	lat, lon float64

	onceSq sync.Once
	sq     *squareParts
}

type squareParts struct {
	name string
	e, n string
}

// FromGrid：由米制坐标构造
func FromGrid(x, y int) Coords {
	nx, ny := ToNormalised(x, y)
	return Coords{x: x, y: y, nx: nx, ny: ny, lazy: &coordsCache{}}
}

// FromNormalised：由归一化坐标构造；米制坐标按截断派生
func FromNormalised(nx, ny float64) Coords {
	x, y := ToMetric(nx, ny)
	return Coords{x: x, y: y, nx: nx, ny: ny, lazy: &coordsCache{}}
}

func (c Coords) Grid() (int, int) { return c.x, c.y }

func (c Coords) X() int { return c.x }

func (c Coords) Y() int { return c.y }

func (c Coords) Normalised() (float64, float64) { return c.nx, c.ny }

// LatLon：WGS84 纬度/经度（度），首次调用后缓存
func (c Coords) LatLon() (float64, float64) {
	lz := c.cache()
	lz.onceLL.Do(func() {
		lz.lat, lz.lon = GridToWGS84(float64(c.x), float64(c.y))
	})
	return lz.lat, lz.lon
}

func (c Coords) cache() *coordsCache {
	if c.lazy == nil {
		// 零值 Coords 不共享缓存
		return &coordsCache{}
	}
	return c.lazy
}

// 文档注释：返回 n 位精度的方格名，如 NN166712（n=3）
// 背景：先加 1000km/500km 偏移使 V 方格左下角成为字母系统原点，再逐级整除 500km/100km。
// 约束：n 限定在 [0,5]，0 仅返回两个字母；超出字母表定义域返回 OffGrid。
func (c Coords) Square(n int) string {
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	lz := c.cache()
	lz.onceSq.Do(func() { lz.sq = findSquare(c.x, c.y) })
	if lz.sq == nil {
		return OffGrid
	}
	return lz.sq.name + lz.sq.e[:n] + lz.sq.n[:n]
}

func findSquare(gx, gy int) *squareParts {
	x, y := gx+1000000, gy+500000
	a, b := floorDiv(y, 500000), floorDiv(x, 500000)
	if a < 0 || b < 0 || a >= 5 || b >= 5 {
		return nil
	}
	name := []byte{letters[a][b]}
	x, y = x-b*500000, y-a*500000
	a, b = y/100000, x/100000
	name = append(name, letters[a][b])
	x, y = x%100000, y%100000
	return &squareParts{
		name: string(name),
		e:    fmt.Sprintf("%05d", x),
		n:    fmt.Sprintf("%05d", y),
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Geograph：geograph.org.uk 方格页面
func (c Coords) Geograph() string {
	return "http://www.geograph.org.uk/gridref/" + c.Square(5)
}

func (c Coords) Google() string {
	lat, lon := c.LatLon()
	return fmt.Sprintf("https://www.google.com/maps/@?api=1&map_action=map&center=%.6f,%.6f&zoom=15&basemap=terrain", lat, lon)
}

func (c Coords) OSMaps() string {
	lat, lon := c.LatLon()
	return fmt.Sprintf("https://explore.osmaps.com/en/pin?lat=%.6f&lon=%.6f&zoom=17", lat, lon)
}

func (c Coords) OpenTopoMap() string {
	lat, lon := c.LatLon()
	return fmt.Sprintf("https://opentopomap.org/#marker=15/%.6f/%.6f", lat, lon)
}

func (c Coords) String() string { return fmt.Sprintf("Coords(%d, %d)", c.x, c.y) }
