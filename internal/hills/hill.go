// 包 hills：已知山顶的只读集合与空间索引
//
// 两阶段构造：Builder 只追加，Finalize 一次性建立 k-d 树（最近邻）与 R 树（矩形范围）并返回不可变的 Index。
package hills

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"terrain-api/internal/bng"
)

// Hill：一个山顶记录
type Hill struct {
	X, Y int
	// 1 为最高，按高度降序连续编号
	Rank   int
	Meters float64
	ID     int
	Name   string
}

// Coords：山顶的网格坐标
func (h Hill) Coords() bng.Coords { return bng.FromGrid(h.X, h.Y) }

func (h Hill) String() string { return fmt.Sprintf("%s (%gm)", h.Name, h.Meters) }

// Ranked：序数形式的排名，如 "1st"、"12th"、"23rd"
func (h Hill) Ranked() string {
	s := strconv.Itoa(h.Rank)
	if r := h.Rank % 100; r >= 11 && r <= 13 {
		return s + "th"
	}
	switch h.Rank % 10 {
	case 1:
		return s + "st"
	case 2:
		return s + "nd"
	case 3:
		return s + "rd"
	}
	return s + "th"
}

// SummitURL：山顶照片页
func (h Hill) SummitURL() string {
	return fmt.Sprintf("http://hillsummits.org.uk/htm_summit/%d.htm", h.ID)
}

// PortraitURL：山体照片页
func (h Hill) PortraitURL() string {
	return fmt.Sprintf("http://hillsummits.org.uk/htm_portrait/%d.htm", h.ID)
}

// 文档注释：探测可用的照片页
// 背景：照片站点并非每座山都有两类页面，逐个发 HEAD 请求，返回第一个非 404 的地址。
// 约束：都为 404 时返回空串；网络错误返回 error，不做缓存（调用方决定是否缓存）。
func (h Hill) Photo(ctx context.Context, client *http.Client) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	for _, u := range []string{h.SummitURL(), h.PortraitURL()} {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			return u, nil
		}
	}
	return "", nil
}
