package hills

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"terrain-api/internal/bng"
)

// 列顺序与数据源不同，另含一个多余字段
const fixture = `name,id,rank,x,y,meters,region
Ben Nevis,1,1,216666,771288,1345,Lochaber
Ben Macdui,2,2,298900,798900,1309,Cairngorms
Braeriach,3,3,295300,799900,1296,Cairngorms
Cairn Toul,4,4,296300,797200,1291,Cairngorms
"Snowdon, Yr Wyddfa",5,5,260900,354300,1085,Snowdonia
Scafell Pike,6,6,321500,507200,978,Lake District
`

func loadFixture(t *testing.T) *Index {
	t.Helper()
	b := NewBuilder()
	if err := ReadCSV(strings.NewReader(fixture), b); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 6 {
		t.Fatalf("read %d hills", b.Len())
	}
	return b.Finalize()
}

func TestNearestBenNevis(t *testing.T) {
	ix := loadFixture(t)
	h, d, err := ix.Nearest(bng.FromGrid(216600, 771300))
	if err != nil {
		t.Fatal(err)
	}
	if h.Name != "Ben Nevis" || d >= 100 {
		t.Errorf("nearest = %v at %.1fm", h, d)
	}
	if _, _, err := NewBuilder().Finalize().Nearest(bng.Ben()); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty index: %v", err)
	}
}

func TestNearestMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	b := NewBuilder()
	for i := 0; i < 400; i++ {
		b.Add(Hill{X: r.Intn(bng.Width), Y: r.Intn(bng.Height), Rank: i + 1, ID: i, Name: "h"})
	}
	ix := b.Finalize()
	all := ix.All()
	for q := 0; q < 300; q++ {
		x, y := r.Intn(bng.Width), r.Intn(bng.Height)
		best, bestD := -1, math.Inf(1)
		for i, h := range all {
			if d := math.Hypot(float64(x-h.X), float64(y-h.Y)); d < bestD {
				best, bestD = i, d
			}
		}
		h, d, _ := ix.Nearest(bng.FromGrid(x, y))
		if h.ID != all[best].ID || d != bestD {
			t.Fatalf("query (%d,%d): got %d at %v, want %d at %v", x, y, h.ID, d, all[best].ID, bestD)
		}
	}
}

func TestLookups(t *testing.T) {
	ix := loadFixture(t)
	for k := 1; k < ix.Len(); k++ {
		a, _ := ix.ByRank(k)
		b, _ := ix.ByRank(k + 1)
		if a.Meters < b.Meters {
			t.Errorf("rank %d (%v) lower than rank %d (%v)", k, a.Meters, k+1, b.Meters)
		}
	}
	for _, r := range []int{0, 7, -1} {
		if _, err := ix.ByRank(r); !errors.Is(err, ErrNotFound) {
			t.Errorf("ByRank(%d) err = %v", r, err)
		}
	}
	h, err := ix.ByName("  ben MACDUI ")
	if err != nil || h.ID != 2 {
		t.Errorf("ByName = %v, %v", h, err)
	}
	if h, _ := ix.ByName("snowdon, yr wyddfa"); h.Rank != 5 {
		t.Errorf("quoted name not parsed: %v", h)
	}
	if _, err := ix.ByName("Ben Lomond"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown name err = %v", err)
	}
	if h, err := ix.ByID(6); err != nil || h.Name != "Scafell Pike" {
		t.Errorf("ByID = %v, %v", h, err)
	}
	if _, err := ix.ByID(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id err = %v", err)
	}
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestProgrammingErrorsPanic(t *testing.T) {
	b := NewBuilder()
	b.Add(Hill{Rank: 2, Name: "second"})
	b.Add(Hill{Rank: 1, Name: "first"})
	ix := b.Finalize()
	mustPanic(t, "Add after Finalize", func() { b.Add(Hill{}) })
	mustPanic(t, "double Finalize", func() { b.Finalize() })
	mustPanic(t, "misordered ByRank", func() { ix.ByRank(1) })
}

func TestWithin(t *testing.T) {
	ix := loadFixture(t)
	got, err := ix.InSquare("NN")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 || got[0].Name != "Ben Nevis" || got[3].Rank != 4 {
		t.Errorf("NN = %v", got)
	}
	got, _ = ix.InSquare("NN17")
	if len(got) != 1 || got[0].Rank != 1 {
		t.Errorf("NN17 = %v", got)
	}
	got, _ = ix.InSquare("NY20")
	if len(got) != 1 || got[0].Name != "Scafell Pike" {
		t.Errorf("NY20 = %v", got)
	}
	if got, _ := ix.InSquare("SV"); len(got) != 0 {
		t.Errorf("SV = %v", got)
	}
	if _, err := ix.InSquare("ZZ"); !errors.Is(err, bng.ErrInvalidGridRef) {
		t.Errorf("bad ref err = %v", err)
	}
	// 半开区间：右边界与上边界不含
	if got := ix.Within(216666, 771288, 216667, 771289); len(got) != 1 {
		t.Errorf("exact cell = %v", got)
	}
	if got := ix.Within(216000, 771000, 216666, 771288); len(got) != 0 {
		t.Errorf("upper bound included: %v", got)
	}
	if got := ix.Within(5, 5, 5, 10); got != nil {
		t.Errorf("empty rectangle = %v", got)
	}
}

func TestReadCSVErrors(t *testing.T) {
	cases := []struct {
		name, in string
		header   bool
	}{
		{"empty", "", true},
		{"missing field", "x,y,rank,meters,name\n1,2,3,4,a\n", true},
		{"bad number", "x,y,rank,meters,id,name\n1,2,3,high,5,a\n", false},
		{"short row", "x,y,rank,meters,id,name\n1,2,3\n", false},
	}
	for _, c := range cases {
		err := ReadCSV(strings.NewReader(c.in), NewBuilder())
		if err == nil {
			t.Errorf("%s: accepted", c.name)
			continue
		}
		if errors.Is(err, ErrBadHeader) != c.header {
			t.Errorf("%s: err = %v", c.name, err)
		}
		if !c.header && !strings.Contains(err.Error(), "line 2") {
			t.Errorf("%s: no line number in %v", c.name, err)
		}
	}
}

func TestLoadZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("hills"))
	w, _ = zw.Create("data/" + CSVName)
	w.Write([]byte(fixture))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "hills.zip")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	ix, err := LoadZip(p)
	if err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 6 {
		t.Errorf("loaded %d", ix.Len())
	}
	if _, err := LoadZip(filepath.Join(t.TempDir(), "missing.zip")); err == nil {
		t.Error("missing zip accepted")
	}
}

func TestRanked(t *testing.T) {
	want := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 101: "101st", 111: "111th"}
	for r, s := range want {
		if got := (Hill{Rank: r}).Ranked(); got != s {
			t.Errorf("Ranked(%d) = %q, want %q", r, got, s)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestPhoto(t *testing.T) {
	h := Hill{ID: 42}
	status := map[string]int{h.SummitURL(): 404, h.PortraitURL(): 200}
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodHead {
			t.Errorf("method %s", r.Method)
		}
		return &http.Response{StatusCode: status[r.URL.String()], Body: io.NopCloser(strings.NewReader("")), Request: r}, nil
	})}
	got, err := h.Photo(context.Background(), client)
	if err != nil || got != h.PortraitURL() {
		t.Errorf("Photo = %q, %v", got, err)
	}
	status[h.PortraitURL()] = 404
	if got, _ := h.Photo(context.Background(), client); got != "" {
		t.Errorf("Photo with no pages = %q", got)
	}
}
