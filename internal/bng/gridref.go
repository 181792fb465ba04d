package bng

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidGridRef：方格引用输入校验失败（调用方可修正）
var ErrInvalidGridRef = errors.New("invalid grid reference")

// ParseError：携带原始输入与原因
type ParseError struct {
	Code   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid BNG grid reference %q: %s", e.Code, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrInvalidGridRef }

// ParseGridRef：返回方格左下角坐标
func ParseGridRef(code string) (Coords, error) {
	c, _, err := ParseGridRefWithSize(code)
	return c, err
}

// 文档注释：解析方格引用，返回左下角坐标与边长（米）
// 背景：支持部分引用，1 个字母为 500km 方格，2 个字母为 100km 方格，其后数字平分为东/北两组，
// 每组 n 位时边长为 10^(5-n)；数字间可用空白分隔，分隔时取较长一组的位数。
// 约束：不足 1 个字母、未知字母（含 I）、无分隔且位数为奇数、非整数或负数、方格完全落在国家网格之外均报错。
func ParseGridRefWithSize(code string) (Coords, float64, error) {
	s := strings.ToUpper(strings.TrimSpace(code))
	fail := func(reason string) (Coords, float64, error) {
		return Coords{}, 0, &ParseError{Code: code, Reason: reason}
	}
	if len(s) < 1 {
		return fail("must be at least 1 letter")
	}

	// 字母系统原点是 V，国家网格原点是 S
	x, y := -1000000.0, -500000.0
	size := 500000.0
	ij, ok := letterIndex[s[0]]
	if !ok {
		return fail(fmt.Sprintf("unknown grid letter %q", s[0]))
	}
	x += 500000 * float64(ij[1])
	y += 500000 * float64(ij[0])

	if len(s) > 1 {
		ij, ok = letterIndex[s[1]]
		if !ok {
			return fail(fmt.Sprintf("unknown grid letter %q", s[1]))
		}
		x += 100000 * float64(ij[1])
		y += 100000 * float64(ij[0])
		size = 100000
	}

	if len(s) > 2 {
		groups := strings.Fields(s[2:])
		var es, ns string
		var n int
		switch len(groups) {
		case 1:
			g := groups[0]
			if len(g)%2 == 1 {
				return fail("numbers must have same number of digits")
			}
			n = len(g) / 2
			es, ns = g[:n], g[n:]
		case 2:
			es, ns = groups[0], groups[1]
			n = max(len(es), len(ns))
		default:
			return fail("expected at most two groups of digits")
		}
		a, err1 := strconv.Atoi(es)
		b, err2 := strconv.Atoi(ns)
		if err1 != nil || err2 != nil {
			return fail("numbers must be integers")
		}
		if a < 0 || b < 0 || strings.HasPrefix(es, "-") || strings.HasPrefix(ns, "-") {
			return fail("numbers must be positive")
		}
		size = math.Pow(10, float64(5-n))
		x += float64(a) * size
		y += float64(b) * size
	}

	if x+size <= 0 || y+size <= 0 || x >= Width || y >= Height {
		return fail("square lies outside the national grid")
	}
	return FromGrid(int(x), int(y)), size, nil
}
