// 包 os50：OS Terrain 50 数据集的下载、解包与 ASCII Grid 解析
package os50

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"terrain-api/internal/logger"
)

// Resolution：相邻格点间距（米）
const Resolution = 50

// SourceURL：OS 数据下载入口（ASCII Grid 格式，全国范围）
const SourceURL = "https://api.os.uk/downloads/v1/products/Terrain50/downloads?area=GB&format=ASCII+Grid+and+GML+%28Grid%29&redirect"

// ArchiveName：下载后保存的文件名
const ArchiveName = "terr50_gagg_gb.zip"

// ErrNotConfirmed：用户拒绝下载
var ErrNotConfirmed = errors.New("os50: download not confirmed")

// Downloader：一次性下载源归档
type Downloader struct {
	Client *http.Client
	// Confirm 在真正发起下载前调用；返回 false 时中止
	Confirm func(url, dest string) bool
	// Progress 以已写字节数与总长度（未知时为 -1）回调
	Progress func(written, total int64)
}

// 文档注释：确保 dest 处存在源归档
// 背景：归档约 160MB，仅首次构建需要；已存在且未强制时直接返回（幂等）。
// 约束：先确认再下载；流式写入同目录临时文件，完成后改名，失败不留残缺文件；网络错误原样向上返回。
func (d *Downloader) Ensure(ctx context.Context, url, dest string, force bool) (bool, error) {
	l := logger.L()
	if !force {
		if st, err := os.Stat(dest); err == nil && st.Mode().IsRegular() {
			l.Debug("download_skip", "path", dest)
			return false, nil
		}
	}
	if d.Confirm != nil && !d.Confirm(url, dest) {
		return false, ErrNotConfirmed
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, err
	}

	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	l.Info("download_begin", "url", url, "dest", dest)
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "download")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())
	var w io.Writer = tmp
	if d.Progress != nil {
		w = &countingWriter{w: tmp, total: resp.ContentLength, fn: d.Progress}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		tmp.Close()
		return false, errors.Wrap(err, "download")
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return false, err
	}
	l.Info("download_done", "bytes", n, "duration_ms", time.Since(start).Milliseconds())
	return true, nil
}

type countingWriter struct {
	w       io.Writer
	written int64
	total   int64
	fn      func(written, total int64)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	c.fn(c.written, c.total)
	return n, err
}
