// 包 game：高度猜测游戏
//
// 玩家只能通过旋转、平移后的"神秘坐标"询问高度，最后提交一个点作为答案，
// 服务端告知离该点最近的山顶及距离。用于在真实地形上测试优化算法。
package game

import (
	"math"
	"math/rand"
	"sync"
)

// ExploreUser：该用户的神秘坐标只做中心平移，不旋转
const ExploreUser = "explore"

// Player：一次登录会话的玩家状态
type Player struct {
	Name string

	cos, sin float64
	cx, cy   float64
	tx, ty   float64

	mu       sync.Mutex
	finished bool
	queries  int
}

// 文档注释：新建玩家并随机生成坐标变换
// 背景：变换为绕网格中心旋转再平移，平移量在 ±宽高/2 内；不缩放，因为边界已告知玩家。
// 约束：explore 用户旋转为单位阵、平移为零。
func NewPlayer(name string, width, height float64, rng *rand.Rand) *Player {
	p := &Player{Name: name, cos: 1, cx: width / 2, cy: height / 2}
	if name == ExploreUser {
		return p
	}
	r := rng.Float64() * 2 * math.Pi
	p.cos, p.sin = math.Cos(r), math.Sin(r)
	p.tx = (rng.Float64() - 0.5) * width
	p.ty = (rng.Float64() - 0.5) * height
	return p
}

// GridToMystery：网格坐标（米）-> 玩家坐标
func (p *Player) GridToMystery(x, y float64) (float64, float64) {
	dx, dy := x-p.cx, y-p.cy
	return p.cos*dx - p.sin*dy + p.tx, p.sin*dx + p.cos*dy + p.ty
}

// MysteryToGrid：玩家坐标 -> 网格坐标（米）
func (p *Player) MysteryToGrid(mx, my float64) (float64, float64) {
	dx, dy := mx-p.tx, my-p.ty
	return p.cos*dx + p.sin*dy + p.cx, -p.sin*dx + p.cos*dy + p.cy
}

// Finished：是否已提交最终答案
func (p *Player) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

func (p *Player) Queries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}
