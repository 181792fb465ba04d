package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"terrain-api/internal/game"
	"terrain-api/internal/logger"
)

// 文档注释：注册猜山游戏路由
// 背景：login 返回会话 ID 与搜索边界；ask/final 均以会话 ID 标识玩家，坐标为玩家自己的（旋转平移后的）坐标系。
// 约束：游戏未启用（Room 为空）时全部返回 503；作答后再 ask/final 返回 409。
func registerGame(handle func(string, http.HandlerFunc), d Deps) {
	handle("/game/login", func(w http.ResponseWriter, r *http.Request) {
		if !gameReady(w, r, d) {
			return
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "/game/login", err)
			return
		}
		id, _, err := d.Room.Login(req.User, req.Token)
		if errors.Is(err, game.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, loginResult{Session: id, Boundaries: d.Room.Welcome()})
	})

	handle("/game/ask", func(w http.ResponseWriter, r *http.Request) {
		p, x, y, ok := gamePoint(w, r, d, "/game/ask")
		if !ok {
			return
		}
		z, err := d.Room.AskHeight(p, x, y)
		if errors.Is(err, game.ErrFinished) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"x": x, "y": y, "height": z})
	})

	handle("/game/final", func(w http.ResponseWriter, r *http.Request) {
		p, x, y, ok := gamePoint(w, r, d, "/game/final")
		if !ok {
			return
		}
		res, err := d.Room.FinalAnswer(r.Context(), p, x, y)
		switch {
		case errors.Is(err, game.ErrFinished):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			logger.L().Error("game_final_error", "user", p.Name, "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, res)
		}
	})

	handle("/game/best", func(w http.ResponseWriter, r *http.Request) {
		if d.Board == nil {
			writeError(w, http.StatusServiceUnavailable, "results database not configured")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rs, err := d.Board.BestResults(r.Context(), limit)
		if err != nil {
			logger.L().Error("game_best_error", "err", err)
			writeError(w, http.StatusInternalServerError, "results query failed")
			return
		}
		if rs == nil {
			rs = []game.Result{}
		}
		writeJSON(w, http.StatusOK, rs)
	})
}

func gameReady(w http.ResponseWriter, r *http.Request, d Deps) bool {
	if d.Room == nil {
		writeError(w, http.StatusServiceUnavailable, "game not enabled")
		return false
	}
	if r.Method != http.MethodPost {
		w.Header().Set("allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return false
	}
	return true
}

// gamePoint：解析 {session,x,y} 请求体并取出玩家；失败时已写出响应
func gamePoint(w http.ResponseWriter, r *http.Request, d Deps, route string) (*game.Player, float64, float64, bool) {
	if !gameReady(w, r, d) {
		return nil, 0, 0, false
	}
	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, route, err)
		return nil, 0, 0, false
	}
	if req.X == nil || req.Y == nil {
		badRequest(w, route, errors.New("x and y are required"))
		return nil, 0, 0, false
	}
	p, ok := d.Room.Player(req.Session)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown or expired session")
		return nil, 0, 0, false
	}
	return p, *req.X, *req.Y, true
}
