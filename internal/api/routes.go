// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"terrain-api/internal/bng"
	"terrain-api/internal/game"
	"terrain-api/internal/geoip"
	"terrain-api/internal/hills"
	"terrain-api/internal/interp"
	"terrain-api/internal/logger"
	"terrain-api/internal/metrics"
	"terrain-api/internal/terrain"
)

// Locator：IP 定位
type Locator interface {
	Locate(ip string) (geoip.Place, error)
}

// Leaderboard：成绩排行
type Leaderboard interface {
	BestResults(ctx context.Context, limit int) ([]game.Result, error)
}

// Deps：路由依赖；Terrain 与 Hills 必需，其余为空时对应路由返回 503
type Deps struct {
	Terrain *terrain.Store
	Hills   *hills.Index
	Spline  interp.Interpolant
	Room    *game.Room
	Redis   *redis.Client
	Geo     Locator
	Board   Leaderboard
	// 照片页探测用；为空时取 http.DefaultClient
	HTTP    *http.Client
}

const (
	nearestTTL   = 24 * time.Hour
	photoTimeout = 5 * time.Second
)

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(route string, h http.HandlerFunc) {
		mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
			metrics.RequestsTotal.WithLabelValues(route).Inc()
			h(w, r)
		})
	}

	handle("/dimensions", func(w http.ResponseWriter, r *http.Request) {
		wd, ht := d.Terrain.Dimensions()
		writeJSON(w, http.StatusOK, dimensionsResult{Width: wd, Height: ht, Spacing: d.Terrain.Spacing()})
	})

	handle("/height", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		x, y, err := pointParam(q)
		if err != nil {
			badRequest(w, "/height", err)
			return
		}
		method := q.Get("method")
		if method == "" {
			method = "linear"
		}
		res := heightResult{X: x, Y: y, Method: method}
		switch method {
		case "linear":
			if q.Get("gradient") == "1" {
				z, gx, gy := d.Terrain.Linear().AtWithGradient(x, y)
				res.Height, res.Gradient = z, &[2]float64{gx, gy}
			} else {
				res.Height = d.Terrain.HeightAt(x, y)
			}
		case "spline":
			if d.Spline == nil {
				writeError(w, http.StatusServiceUnavailable, "spline interpolation not loaded")
				return
			}
			res.Height = d.Spline.At(x, y)
		default:
			badRequest(w, "/height", fmt.Errorf("unknown method %q", method))
			return
		}
		metrics.HeightQueriesTotal.WithLabelValues(method).Inc()
		res.Square = gridAt(x, y).Square(5)
		writeJSON(w, http.StatusOK, res)
	})

	handle("/nearest", func(w http.ResponseWriter, r *http.Request) {
		x, y, err := pointParam(r.URL.Query())
		if err != nil {
			badRequest(w, "/nearest", err)
			return
		}
		ctx := r.Context()
		c := gridAt(x, y)
		key := fmt.Sprintf("nearest:%d:%d", c.X(), c.Y())
		if d.Redis != nil {
			s, _ := d.Redis.Get(ctx, key).Result()
			if s != "" {
				var res nearestResult
				if json.Unmarshal([]byte(s), &res) == nil {
					metrics.RedisHitsTotal.Inc()
					writeJSON(w, http.StatusOK, res)
					return
				}
			}
			metrics.RedisMissesTotal.Inc()
		}
		res, err := nearestOf(d.Hills, c)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if d.Redis != nil {
			b, _ := json.Marshal(res)
			d.Redis.Set(ctx, key, string(b), nearestTTL)
		}
		writeJSON(w, http.StatusOK, res)
	})

	handle("/gridref", func(w http.ResponseWriter, r *http.Request) {
		ref := r.URL.Query().Get("ref")
		c, size, err := bng.ParseGridRefWithSize(ref)
		if err != nil {
			badRequest(w, "/gridref", err)
			return
		}
		lat, lon := c.LatLon()
		nx, ny := c.Normalised()
		writeJSON(w, http.StatusOK, gridrefResult{
			Ref: ref, X: c.X(), Y: c.Y(), Size: size,
			Lat: lat, Lon: lon, Normalised: [2]float64{nx, ny},
			Links: linksOf(c),
		})
	})

	handle("/square", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		x, y, err := pointParam(q)
		if err != nil {
			badRequest(w, "/square", err)
			return
		}
		n := 5
		if s := q.Get("precision"); s != "" {
			if n, err = strconv.Atoi(s); err != nil || n < 0 || n > 5 {
				badRequest(w, "/square", fmt.Errorf("precision must be 0..5"))
				return
			}
		}
		c := gridAt(x, y)
		writeJSON(w, http.StatusOK, map[string]any{"x": c.X(), "y": c.Y(), "square": c.Square(n)})
	})

	handle("/hills", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var (
			h   hills.Hill
			err error
		)
		switch {
		case q.Get("name") != "":
			h, err = d.Hills.ByName(q.Get("name"))
		case q.Get("id") != "":
			id, perr := strconv.Atoi(q.Get("id"))
			if perr != nil {
				badRequest(w, "/hills", perr)
				return
			}
			h, err = d.Hills.ByID(id)
		case q.Get("rank") != "":
			rank, perr := strconv.Atoi(q.Get("rank"))
			if perr != nil {
				badRequest(w, "/hills", perr)
				return
			}
			h, err = d.Hills.ByRank(rank)
		default:
			badRequest(w, "/hills", errors.New("one of name, id or rank is required"))
			return
		}
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		v := viewHill(h)
		if q.Get("photo") == "1" {
			v.Photo = photoOf(r.Context(), d.HTTP, h)
		}
		writeJSON(w, http.StatusOK, v)
	})

	handle("/hills/in", func(w http.ResponseWriter, r *http.Request) {
		hs, err := d.Hills.InSquare(r.URL.Query().Get("ref"))
		if err != nil {
			badRequest(w, "/hills/in", err)
			return
		}
		out := make([]hillView, 0, len(hs))
		for _, h := range hs {
			out = append(out, viewHill(h))
		}
		writeJSON(w, http.StatusOK, out)
	})

	handle("/whereami", func(w http.ResponseWriter, r *http.Request) {
		if d.Geo == nil {
			writeError(w, http.StatusServiceUnavailable, "geoip database not loaded")
			return
		}
		p, err := d.Geo.Locate(clientIP(r))
		if errors.Is(err, geoip.ErrNoLocation) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			logger.L().Error("geoip_locate_error", "err", err)
			writeError(w, http.StatusInternalServerError, "geoip lookup failed")
			return
		}
		c := p.Coords()
		res := whereamiResult{Place: p, Square: c.Square(5)}
		if p.OnGrid {
			z := d.Terrain.HeightAtCoords(c)
			res.Height = &z
			if n, err := nearestOf(d.Hills, c); err == nil {
				res.Nearest = &n
			}
		}
		writeJSON(w, http.StatusOK, res)
	})

	registerGame(handle, d)
	return mux
}

// photoOf：照片站点不可达时仅记日志，山顶信息照常返回
func photoOf(ctx context.Context, client *http.Client, h hills.Hill) string {
	ctx, cancel := context.WithTimeout(ctx, photoTimeout)
	defer cancel()
	u, err := h.Photo(ctx, client)
	if err != nil {
		logger.L().Warn("hill_photo_error", "id", h.ID, "err", err)
	}
	return u
}

func nearestOf(ix *hills.Index, c bng.Coords) (nearestResult, error) {
	h, dist, err := ix.Nearest(c)
	if err != nil {
		return nearestResult{}, err
	}
	return nearestResult{X: c.X(), Y: c.Y(), Hill: viewHill(h), Distance: dist}, nil
}

// 文档注释：解析查询点
// 约束：ref（方格引用，取左下角）优先；否则 x 与 y 必须同时给出且为有限数。
func pointParam(q url.Values) (float64, float64, error) {
	if ref := q.Get("ref"); ref != "" {
		c, err := bng.ParseGridRef(ref)
		if err != nil {
			return 0, 0, err
		}
		return float64(c.X()), float64(c.Y()), nil
	}
	xs, ys := q.Get("x"), q.Get("y")
	if xs == "" || ys == "" {
		return 0, 0, errors.New("x and y (or ref) are required")
	}
	x, err := parseFinite(xs)
	if err != nil {
		return 0, 0, fmt.Errorf("x: %w", err)
	}
	y, err := parseFinite(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("y: %w", err)
	}
	return x, y, nil
}

// gridAt：所在 1m 单元的网格坐标
func gridAt(x, y float64) bng.Coords { return bng.FromGrid(int(math.Floor(x)), int(math.Floor(y))) }

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.Abs(v) > 1e12 {
		return 0, fmt.Errorf("%q out of range", s)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, route string, err error) {
	metrics.BadRequestsTotal.WithLabelValues(route).Inc()
	writeError(w, http.StatusBadRequest, err.Error())
}
