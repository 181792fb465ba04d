package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"terrain-api/internal/bng"
	"terrain-api/internal/hills"
	"terrain-api/internal/interp"
	"terrain-api/internal/logger"
	"terrain-api/internal/metrics"
)

var (
	// ErrFinished：已提交最终答案后再次询问或作答
	ErrFinished = errors.New("final answer already given")
	// ErrUnauthorized：用户名或令牌错误
	ErrUnauthorized = errors.New("invalid user or token")
)

// Boundaries：玩家坐标的搜索范围
type Boundaries struct {
	XLo float64 `json:"xlo"`
	XHi float64 `json:"xhi"`
	YLo float64 `json:"ylo"`
	YHi float64 `json:"yhi"`
}

// Result：最终答案的评判结果
type Result struct {
	User     string    `json:"user"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Height   float64   `json:"height"`
	Square   string    `json:"square"`
	Hill     string    `json:"hill"`
	HillID   int       `json:"hill_id"`
	Distance float64   `json:"distance_m"`
	Queries  int       `json:"queries"`
	Message  string    `json:"msg"`
	At       time.Time `json:"at"`
}

// ResultSink：成绩持久化（可选）
type ResultSink interface {
	SaveResult(ctx context.Context, r Result) error
}

// Room：游戏服务端，持有只读地形与山顶索引
type Room struct {
	f        interp.Interpolant
	hills    *hills.Index
	tokens   Tokens
	sessions *Sessions
	sink     ResultSink
	w, h     float64
	bound    float64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Options：Room 的可选部件
type Options struct {
	Sessions *Sessions
	Sink     ResultSink
	// 随机种子；0 表示按时间
	Seed int64
}

// 文档注释：创建游戏服务端
// 背景：f 为高度插值函数（通常为样条），width/height 为地形范围；搜索边界固定为 ±2·max(width,height)。
func NewRoom(f interp.Interpolant, ix *hills.Index, tokens Tokens, width, height float64, opt Options) *Room {
	seed := opt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := opt.Sessions
	if s == nil {
		s = NewSessions(1024, 24*time.Hour)
	}
	return &Room{
		f:        f,
		hills:    ix,
		tokens:   tokens,
		sessions: s,
		sink:     opt.Sink,
		w:        width,
		h:        height,
		bound:    2 * math.Max(width, height),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Login：校验令牌并创建会话，返回会话 ID 与玩家
func (r *Room) Login(user, token string) (string, *Player, error) {
	if !r.tokens.Validate(user, token) {
		metrics.GameLoginsTotal.WithLabelValues("denied").Inc()
		logger.L().Info("game_login_denied", "user", user)
		return "", nil, ErrUnauthorized
	}
	r.rngMu.Lock()
	p := NewPlayer(user, r.w, r.h, r.rng)
	r.rngMu.Unlock()
	id := r.sessions.Create(p)
	metrics.GameLoginsTotal.WithLabelValues("ok").Inc()
	logger.L().Info("game_login_ok", "user", user)
	return id, p, nil
}

// Player：按会话 ID 取玩家
func (r *Room) Player(session string) (*Player, bool) { return r.sessions.Get(session) }

// Welcome：登录后下发的搜索边界
func (r *Room) Welcome() Boundaries {
	b := r.bound
	return Boundaries{XLo: -b, XHi: b, YLo: -b, YHi: b}
}

// AskHeight：玩家坐标处的高度；已作答后拒绝
func (r *Room) AskHeight(p *Player, x, y float64) (float64, error) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return 0, ErrFinished
	}
	p.queries++
	p.mu.Unlock()
	gx, gy := p.MysteryToGrid(x, y)
	metrics.GameQueriesTotal.Inc()
	return r.f.At(gx, gy), nil
}

// 文档注释：提交最终答案
// 背景：答案点换算回网格坐标后查最近山顶；距离 < 50m 为 "Congratulations!"，< 1km 为 "Good job!"，其余 "Interesting!"。
// 约束：每个玩家只能作答一次，最近山顶查询成功后才记为已作答；成绩写入失败只记录日志，不影响返回。
func (r *Room) FinalAnswer(ctx context.Context, p *Player, x, y float64) (Result, error) {
	if p.Finished() {
		return Result{}, ErrFinished
	}
	gx, gy := p.MysteryToGrid(x, y)
	c := bng.FromGrid(int(math.Round(gx)), int(math.Round(gy)))
	hill, d, err := r.hills.Nearest(c)
	if err != nil {
		return Result{}, err
	}

	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return Result{}, ErrFinished
	}
	p.finished = true
	queries := p.queries
	p.mu.Unlock()

	res := Result{
		User:    p.Name,
		X:       c.X(),
		Y:       c.Y(),
		Height:  r.f.At(gx, gy),
		Square:  c.Square(5),
		Queries: queries,
		At:      time.Now().UTC(),
	}
	res.Hill, res.HillID, res.Distance = hill.Name, hill.ID, d
	res.Message = verdict(d) + " " + fmt.Sprintf("You landed at %s. The nearest hill top is %q, %s away.",
		c.Google(), hill.Name, FormatDistance(d))
	metrics.GameFinalDistanceM.Observe(d)
	logger.L().Info("game_final_answer", "user", p.Name, "x", res.X, "y", res.Y, "hill", hill.Name, "distance_m", d, "queries", queries)

	if r.sink != nil {
		if err := r.sink.SaveResult(ctx, res); err != nil {
			logger.L().Error("game_result_save_error", "user", p.Name, "err", err)
		}
	}
	return res, nil
}

func verdict(d float64) string {
	switch {
	case d < 50:
		return "Congratulations!"
	case d < 1000:
		return "Good job!"
	}
	return "Interesting!"
}

// FormatDistance：1km 以内取整到米，否则保留一位小数的千米
func FormatDistance(d float64) string {
	if d < 1000 {
		return fmt.Sprintf("%dm", int(math.Round(d)))
	}
	return fmt.Sprintf("%.1fkm", math.Round(d/100)/10)
}
