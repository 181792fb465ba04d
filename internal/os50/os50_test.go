package os50

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"terrain-api/internal/raster"
)

const ascA = `ncols 2
nrows 2
xllcorner 0
yllcorner 0
cellsize 50
3 4
1 2
`

const ascB = `ncols 2
nrows 2
xllcorner 100
yllcorner 100
cellsize 50
nodata_value -9999
-9999 8.5
5 6
`

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, b := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, files map[string][]byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ArchiveName)
	if err := os.WriteFile(p, zipBytes(t, files), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseASC(t *testing.T) {
	tile, err := ParseASC(strings.NewReader(ascB))
	if err != nil {
		t.Fatal(err)
	}
	if tile.Ncols != 2 || tile.Nrows != 2 || tile.Xll != 100 || tile.Yll != 100 || tile.Cellsize != 50 {
		t.Errorf("header %+v", tile)
	}
	if !math.IsNaN(float64(tile.Rows[0][0])) || tile.Rows[0][1] != 8.5 || tile.Rows[1][0] != 5 {
		t.Errorf("rows %v", tile.Rows)
	}
}

func TestParseASCErrors(t *testing.T) {
	cases := map[string]string{
		"wrong field":  strings.Replace(ascA, "nrows", "rows", 1),
		"float header": strings.Replace(ascA, "xllcorner 0", "xllcorner 0.5", 1),
		"short row":    strings.Replace(ascA, "3 4", "3", 1),
		"missing row":  strings.Replace(ascA, "1 2\n", "", 1),
		"bad value":    strings.Replace(ascA, "3 4", "3 x", 1),
		"empty":        "",
	}
	for name, src := range cases {
		_, err := ParseASC(strings.NewReader(src))
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("%s: got %v, want FormatError", name, err)
		}
	}
}

func TestReadASCIntoGrid(t *testing.T) {
	g := raster.New(4, 4)
	if err := ReadASC(strings.NewReader(ascA), g, 50); err != nil {
		t.Fatal(err)
	}
	// 文件首行为最北一行
	if g.At(0, 0) != 1 || g.At(1, 0) != 2 || g.At(0, 1) != 3 || g.At(1, 1) != 4 {
		t.Errorf("grid %v", g.Z)
	}

	err := ReadASC(strings.NewReader(ascA), g, 25)
	var fe *FormatError
	if !errors.As(err, &fe) || !strings.Contains(err.Error(), "resolution") {
		t.Errorf("resolution mismatch: %v", err)
	}

	outside := strings.Replace(ascA, "xllcorner 0", "xllcorner 150", 1)
	if err := ReadASC(strings.NewReader(outside), g, 50); !errors.As(err, &fe) {
		t.Errorf("outside tile: %v", err)
	}
}

func TestExtractNested(t *testing.T) {
	inner := zipBytes(t, map[string][]byte{"b.asc": []byte(ascB)})
	archive := writeArchive(t, map[string][]byte{
		"data/aa/a.zip":  zipBytes(t, map[string][]byte{"a.asc": []byte(ascA), "a.gml": []byte("<x/>")}),
		"data/bb/b.zip":  zipBytes(t, map[string][]byte{"nested/inner.zip": inner}),
		"doc/readme.txt": []byte("hello"),
	})

	g := NewRaw(200, 200, 50)
	var calls, last int
	err := Extract(context.Background(), archive, g, 50, func(done, total int) {
		calls++
		last = done
		if total != 2 {
			t.Errorf("total = %d", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 || last != 2 {
		t.Errorf("progress calls=%d last=%d", calls, last)
	}
	if g.At(0, 0) != 1 || g.At(1, 1) != 4 {
		t.Errorf("tile a not placed: %v", g.Z)
	}
	if g.At(2, 2) != 5 || g.At(3, 2) != 6 || g.At(3, 3) != 8.5 {
		t.Errorf("tile b not placed: %v", g.Z)
	}
	if !math.IsNaN(float64(g.At(2, 3))) || !math.IsNaN(float64(g.At(3, 0))) {
		t.Error("missing cells should stay NaN")
	}
	if n := ReplaceMissing(g, -10); n != 9 {
		t.Errorf("replaced %d cells", n)
	}
	if g.At(2, 3) != -10 {
		t.Errorf("placeholder not written")
	}
}

func TestExtractWrapsTileErrors(t *testing.T) {
	bad := strings.Replace(ascA, "cellsize 50", "cellsize 20", 1)
	archive := writeArchive(t, map[string][]byte{
		"data/nn/nn16.zip": zipBytes(t, map[string][]byte{"nn16.asc": []byte(bad)}),
	})
	err := Extract(context.Background(), archive, NewRaw(200, 200, 50), 50, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Errorf("not a FormatError: %v", err)
	}
	if !strings.Contains(err.Error(), "nn16.asc") || !strings.Contains(err.Error(), "data/nn/nn16.zip") {
		t.Errorf("error lacks context: %v", err)
	}

	empty := writeArchive(t, map[string][]byte{"readme.txt": []byte("x")})
	if err := Extract(context.Background(), empty, NewRaw(200, 200, 50), 50, nil); !errors.As(err, &fe) {
		t.Errorf("archive without tiles: %v", err)
	}
}

func TestDownloaderEnsure(t *testing.T) {
	payload := bytes.Repeat([]byte("z"), 10000)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "os50", ArchiveName)
	d := &Downloader{Confirm: func(string, string) bool { return false }}
	if _, err := d.Ensure(context.Background(), srv.URL, dest, false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("declined download: %v", err)
	}
	if hits != 0 {
		t.Fatal("declined download hit the network")
	}

	var written int64
	d = &Downloader{
		Confirm:  func(string, string) bool { return true },
		Progress: func(w, _ int64) { written = w },
	}
	fetched, err := d.Ensure(context.Background(), srv.URL, dest, false)
	if err != nil || !fetched {
		t.Fatalf("download: %v %v", fetched, err)
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, payload) || written != int64(len(payload)) {
		t.Errorf("wrote %d bytes, progress %d", len(got), written)
	}

	fetched, err = d.Ensure(context.Background(), srv.URL, dest, false)
	if err != nil || fetched || hits != 1 {
		t.Errorf("second call should be a no-op: %v %v hits=%d", fetched, err, hits)
	}
	if _, err := d.Ensure(context.Background(), srv.URL, dest, true); err != nil || hits != 2 {
		t.Errorf("forced download: %v hits=%d", err, hits)
	}
}

func TestDownloaderStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), ArchiveName)
	_, err := (&Downloader{}).Ensure(context.Background(), srv.URL, dest, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, statErr := os.Stat(dest); statErr == nil {
		t.Error("failed download left a file behind")
	}
}
