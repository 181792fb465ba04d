// 地形摄取工具：下载 OS Terrain 50 归档，拼接并校正海平面，写出服务端读取的缓存
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gosuri/uiprogress"
	"github.com/joho/godotenv"

	"terrain-api/internal/logger"
	"terrain-api/internal/os50"
	"terrain-api/internal/terrain"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

// run：返回进程退出码，延迟关闭的日志文件与信号监听在退出前执行
func run(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("terrain-ingest", flag.ContinueOnError)
	force := fs.Bool("force", false, "re-download the archive and rebuild the cache")
	yes := fs.Bool("yes", false, "download without asking")
	spline := fs.Bool("spline", false, "also build the spline coefficient cache")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	l := logger.Setup()
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	o := terrain.OptionsFromEnv()
	o.Force = *force
	bars := &progressBars{}
	in := bufio.NewReader(stdin)
	o.Downloader = &os50.Downloader{
		Confirm: func(url, dest string) bool {
			if *yes {
				return true
			}
			return confirm(in, stdout, fmt.Sprintf("Download %s to %s? [y/N] ", url, dest))
		},
		Progress: bars.download,
	}
	o.ExtractProgress = bars.extract

	s, err := terrain.Build(ctx, o)
	bars.stop()
	if err != nil {
		l.Error("terrain_ingest_error", "err", err)
		fmt.Fprintln(os.Stderr, "terrain-ingest:", err)
		return 1
	}

	w, h := s.Dimensions()
	fmt.Fprintf(stdout, "terrain cache %s: %d x %d m at %d m\n", o.CachePath(), w, h, s.Spacing())
	if r := s.Report; r != nil {
		fmt.Fprintf(stdout, "  corrections applied: %d\n", r.Corrected)
		fmt.Fprintf(stdout, "  barrier cells:       %d\n", r.Barriers)
		fmt.Fprintf(stdout, "  sentinel collisions: %d\n", r.Collisions)
		fmt.Fprintf(stdout, "  sea mask:            %d cells in %d passes (cap hit: %t)\n", r.Mask.SeaCells, r.Mask.Passes, r.Mask.CapHit)
		fmt.Fprintf(stdout, "  sea slope:           %d cells in %d rounds (cap hit: %t)\n", r.Slope.Reached, r.Slope.Rounds, r.Slope.CapHit)
	} else {
		fmt.Fprintln(stdout, "  cache already present; use -force to rebuild")
	}

	if *spline {
		if _, err := s.Spline(true); err != nil {
			l.Error("spline_build_error", "err", err)
			return 1
		}
		fmt.Fprintln(stdout, "  spline cache ready")
	}
	return 0
}

func confirm(in *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := in.ReadString('\n')
	a := strings.ToLower(strings.TrimSpace(line))
	return a == "y" || a == "yes"
}

// progressBars：下载（MB）与解包（瓦片）两个进度条，首次回调时创建
type progressBars struct {
	mu      sync.Mutex
	started bool
	dl, ex  *uiprogress.Bar
}

func (p *progressBars) start() {
	if !p.started {
		uiprogress.Start()
		p.started = true
	}
}

func (p *progressBars) download(written, total int64) {
	if total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dl == nil {
		p.start()
		p.dl = uiprogress.AddBar(int(total >> 20)).AppendCompleted().PrependElapsed()
		p.dl.PrependFunc(func(b *uiprogress.Bar) string { return "download (MB)" })
	}
	_ = p.dl.Set(int(written >> 20))
}

func (p *progressBars) extract(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ex == nil {
		p.start()
		p.ex = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
		p.ex.PrependFunc(func(b *uiprogress.Bar) string { return "tiles        " })
	}
	_ = p.ex.Set(done)
}

func (p *progressBars) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		uiprogress.Stop()
	}
}
