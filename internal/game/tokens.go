package game

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"terrain-api/internal/logger"
)

// Tokens：用户名 -> 登录令牌
type Tokens map[string]string

// 文档注释：读取令牌文件
// 背景：每行一个 "user:token"，空行忽略；文件不存在时返回空表（无人可登录）并记录告警。
// 约束：任一行缺少用户名或令牌即整体失败，错误带文件路径。
func LoadTokens(path string) (Tokens, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.L().Warn("game_tokens_missing", "path", path)
		return Tokens{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ParseTokens(f)
	if err != nil {
		return nil, fmt.Errorf("unable to parse user tokens from %s: %w", path, err)
	}
	logger.L().Info("game_tokens_loaded", "path", path, "users", len(t))
	return t, nil
}

func ParseTokens(r io.Reader) (Tokens, error) {
	t := Tokens{}
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		user, token, ok := strings.Cut(line, ":")
		user, token = strings.TrimSpace(user), strings.TrimSpace(token)
		if !ok || user == "" || token == "" {
			return nil, fmt.Errorf("line %d: empty user and/or token", n)
		}
		t[user] = token
	}
	return t, sc.Err()
}

// Validate：常量时间比较令牌
func (t Tokens) Validate(user, token string) bool {
	want, ok := t[user]
	if !ok || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}
