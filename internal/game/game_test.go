package game

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"terrain-api/internal/bng"
	"terrain-api/internal/hills"
	"terrain-api/internal/interp"
)

const w, h = float64(bng.Width), float64(bng.Height)

func TestPlayerTransform(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 20; i++ {
		p := NewPlayer("alice", w, h, rng)
		x, y := rng.Float64()*w, rng.Float64()*h
		mx, my := p.GridToMystery(x, y)
		gx, gy := p.MysteryToGrid(mx, my)
		if math.Abs(gx-x) > 1e-6 || math.Abs(gy-y) > 1e-6 {
			t.Fatalf("round trip (%v,%v) -> (%v,%v)", x, y, gx, gy)
		}
		// 旋转与平移保持距离
		mx2, my2 := p.GridToMystery(x+300, y+400)
		if d := math.Hypot(mx2-mx, my2-my); math.Abs(d-500) > 1e-6 {
			t.Fatalf("distance not preserved: %v", d)
		}
	}

	e := NewPlayer(ExploreUser, w, h, rng)
	if mx, my := e.GridToMystery(w/2+10, h/2-20); mx != 10 || my != -20 {
		t.Errorf("explore transform = (%v, %v)", mx, my)
	}
}

func TestTokens(t *testing.T) {
	tk, err := ParseTokens(strings.NewReader("\nalice: s3cret \nbob:tok:with:colons\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !tk.Validate("alice", "s3cret") || tk.Validate("alice", "s3cre") || tk.Validate("carol", "") {
		t.Error("Validate")
	}
	if !tk.Validate("bob", "tok:with:colons") {
		t.Error("token containing colons")
	}
	for _, bad := range []string{"alice\n", ":tok\n", "bob:\n"} {
		if _, err := ParseTokens(strings.NewReader(bad)); err == nil {
			t.Errorf("accepted %q", bad)
		}
	}

	dir := t.TempDir()
	tk, err = LoadTokens(filepath.Join(dir, "missing.txt"))
	if err != nil || len(tk) != 0 {
		t.Errorf("missing file: %v %v", tk, err)
	}
	p := filepath.Join(dir, "tokens.txt")
	os.WriteFile(p, []byte("x\n"), 0o600)
	if _, err := LoadTokens(p); err == nil || !strings.Contains(err.Error(), p) {
		t.Errorf("bad file err = %v", err)
	}
}

func TestSessions(t *testing.T) {
	s := NewSessions(2, 0)
	a := s.Create(&Player{Name: "a"})
	s.Create(&Player{Name: "b"})
	c := s.Create(&Player{Name: "c"})
	if _, ok := s.Get(a); ok || s.Len() != 2 {
		t.Error("capacity not enforced")
	}
	if p, ok := s.Get(c); !ok || p.Name != "c" {
		t.Error("lookup")
	}
	s.Remove(c)
	if _, ok := s.Get(c); ok {
		t.Error("remove")
	}

	short := NewSessions(0, 20*time.Millisecond)
	id := short.Create(&Player{})
	time.Sleep(80 * time.Millisecond)
	if _, ok := short.Get(id); ok {
		t.Error("session did not expire")
	}
}

type memSink struct{ got []Result }

func (m *memSink) SaveResult(_ context.Context, r Result) error {
	m.got = append(m.got, r)
	return nil
}

func testRoom(t *testing.T, sink ResultSink) *Room {
	t.Helper()
	b := hills.NewBuilder()
	b.Add(hills.Hill{X: 216666, Y: 771288, Rank: 1, Meters: 1345, ID: 1, Name: "Ben Nevis"})
	b.Add(hills.Hill{X: 321500, Y: 507200, Rank: 2, Meters: 978, ID: 2, Name: "Scafell Pike"})
	f := interp.Func(func(x, y float64) float64 { return x/1000 + y/10000 })
	tokens := Tokens{"alice": "a", ExploreUser: "e"}
	return NewRoom(f, b.Finalize(), tokens, w, h, Options{Sink: sink, Seed: 1})
}

func TestRoomGame(t *testing.T) {
	sink := &memSink{}
	r := testRoom(t, sink)
	if b := r.Welcome(); b.XLo != -2*h || b.YHi != 2*h {
		t.Errorf("boundaries %+v", b)
	}
	if _, _, err := r.Login("alice", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("login err = %v", err)
	}
	id, p, err := r.Login("alice", "a")
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := r.Player(id); !ok || got != p {
		t.Fatal("session not registered")
	}

	mx, my := p.GridToMystery(100000, 200000)
	z, err := r.AskHeight(p, mx, my)
	if err != nil || math.Abs(z-120) > 1e-6 {
		t.Errorf("AskHeight = %v, %v", z, err)
	}

	mx, my = p.GridToMystery(216666, 771300)
	res, err := r.FinalAnswer(context.Background(), p, mx, my)
	if err != nil {
		t.Fatal(err)
	}
	if res.Hill != "Ben Nevis" || !strings.HasPrefix(res.Message, "Congratulations! You landed at https://") {
		t.Errorf("result %+v", res)
	}
	if !strings.Contains(res.Message, `"Ben Nevis", 12m away.`) || res.Queries != 1 || res.Square != "NN1666671300" {
		t.Errorf("result %+v", res)
	}
	if len(sink.got) != 1 || sink.got[0].User != "alice" {
		t.Errorf("sink %+v", sink.got)
	}

	if _, err := r.AskHeight(p, 0, 0); !errors.Is(err, ErrFinished) {
		t.Errorf("ask after final: %v", err)
	}
	if _, err := r.FinalAnswer(context.Background(), p, 0, 0); !errors.Is(err, ErrFinished) {
		t.Errorf("second final: %v", err)
	}
}

func TestFinalAnswerWithoutHills(t *testing.T) {
	sink := &memSink{}
	f := interp.Func(func(x, y float64) float64 { return 1 })
	r := NewRoom(f, hills.NewBuilder().Finalize(), Tokens{"alice": "a"}, w, h, Options{Sink: sink, Seed: 1})
	_, p, err := r.Login("alice", "a")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := r.FinalAnswer(context.Background(), p, 0, 0); !errors.Is(err, hills.ErrNotFound) {
			t.Fatalf("answer %d: %v", i, err)
		}
		if p.Finished() {
			t.Fatalf("answer %d marked the player finished", i)
		}
	}
	if _, err := r.AskHeight(p, 0, 0); err != nil {
		t.Errorf("ask after failed answer: %v", err)
	}
	if len(sink.got) != 0 {
		t.Errorf("sink %+v", sink.got)
	}
}

func TestVerdicts(t *testing.T) {
	r := testRoom(t, nil)
	_, p, err := r.Login(ExploreUser, "e")
	if err != nil {
		t.Fatal(err)
	}
	// explore 用户：神秘坐标 = 网格坐标 - 中心
	res, err := r.FinalAnswer(context.Background(), p, 216666-w/2+600, 771288-h/2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Message, "Good job!") {
		t.Errorf("600m: %s", res.Message)
	}

	_, p, _ = r.Login(ExploreUser, "e")
	res, _ = r.FinalAnswer(context.Background(), p, 250000-w/2, 600000-h/2)
	if !strings.HasPrefix(res.Message, "Interesting!") || !strings.HasSuffix(res.Message, "km away.") {
		t.Errorf("far: %s", res.Message)
	}
}

func TestFormatDistance(t *testing.T) {
	cases := map[float64]string{0: "0m", 49.6: "50m", 999.4: "999m", 1000: "1.0km", 12345: "12.3km", 12351: "12.4km"}
	for d, want := range cases {
		if got := FormatDistance(d); got != want {
			t.Errorf("FormatDistance(%v) = %q, want %q", d, got, want)
		}
	}
}
