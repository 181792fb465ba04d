package bng

import (
	"errors"
	"math"
	"testing"
)

func TestParseGridRefWithSize(t *testing.T) {
	cases := []struct {
		code string
		x, y int
		size float64
	}{
		{"NN166712", 216600, 771200, 100},
		{"nn 166 712", 216600, 771200, 100},
		{"  NN166712  ", 216600, 771200, 100},
		{"N", 0, 500000, 500000},
		{"S", 0, 0, 500000},
		{"NN", 200000, 700000, 100000},
		{"SV", 0, 0, 100000},
		{"HP", 400000, 1200000, 100000},
		{"NN1671", 216000, 771000, 1000},
		{"NN 166 71", 216600, 707100, 100},
		{"NN1666671288", 216666, 771288, 1},
		{"TF", 500000, 300000, 100000},
	}
	for _, c := range cases {
		got, size, err := ParseGridRefWithSize(c.code)
		if err != nil {
			t.Errorf("%q: unexpected error %v", c.code, err)
			continue
		}
		if got.X() != c.x || got.Y() != c.y || size != c.size {
			t.Errorf("%q: got (%d, %d) size %v, want (%d, %d) size %v",
				c.code, got.X(), got.Y(), size, c.x, c.y, c.size)
		}
	}
}

func TestParseGridRefErrors(t *testing.T) {
	for _, code := range []string{
		"",
		"   ",
		"ZZ",
		"V",
		"I",
		"NI",
		"N1",
		"NN16712",
		"NN -1 -2",
		"NN 12a 345",
		"NN 1 2 3",
	} {
		_, _, err := ParseGridRefWithSize(code)
		if err == nil {
			t.Errorf("%q: expected error", code)
			continue
		}
		if !errors.Is(err, ErrInvalidGridRef) {
			t.Errorf("%q: error %v is not ErrInvalidGridRef", code, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Code != code {
			t.Errorf("%q: expected *ParseError carrying the input, got %v", code, err)
		}
	}
}

func TestSquare(t *testing.T) {
	b := Ben()
	cases := []struct {
		n    int
		want string
	}{
		{0, "NN"},
		{1, "NN17"},
		{3, "NN166712"},
		{4, "NN16667128"},
		{5, "NN1666671288"},
		{9, "NN1666671288"},
	}
	for _, c := range cases {
		if got := b.Square(c.n); got != c.want {
			t.Errorf("Square(%d) = %q, want %q", c.n, got, c.want)
		}
	}

	if got := FromGrid(0, 0).Square(0); got != "SV" {
		t.Errorf("origin square = %q", got)
	}
	if got := FromGrid(699999, 1299999).Square(0); got != "JM" {
		t.Errorf("top right square = %q", got)
	}
	if got := FromGrid(-2000000, 0).Square(3); got != OffGrid {
		t.Errorf("far west = %q, want off grid", got)
	}
	if got := FromGrid(0, 3000000).Square(3); got != OffGrid {
		t.Errorf("far north = %q, want off grid", got)
	}
}

func TestSquareRoundTrip(t *testing.T) {
	for _, p := range [][2]int{{216666, 771288}, {520483, 289083}, {1, 1}, {699999, 1299999}, {451473, 206135}} {
		c := FromGrid(p[0], p[1])
		back, err := ParseGridRef(c.Square(5))
		if err != nil {
			t.Fatalf("%v: %v", c, err)
		}
		if math.Abs(float64(back.X()-c.X())) > 1 || math.Abs(float64(back.Y()-c.Y())) > 1 {
			t.Errorf("%v -> %s -> %v", c, c.Square(5), back)
		}
	}
}

func TestNormalisedRoundTrip(t *testing.T) {
	const tol = 1e-5
	for _, p := range [][2]int{{0, 0}, {216666, 771288}, {350000, 650000}, {699999, 1299999}, {123457, 987653}} {
		nx, ny := ToNormalised(p[0], p[1])
		x, y := ToMetric(nx, ny)
		nx2, ny2 := ToNormalised(x, y)
		if math.Abs(nx-nx2) > tol || math.Abs(ny-ny2) > tol {
			t.Errorf("%v: (%v, %v) != (%v, %v)", p, nx, ny, nx2, ny2)
		}
	}

	c := FromNormalised(0.5, 0.5)
	if c.X() != 350000 || c.Y() != 650000 {
		t.Errorf("FromNormalised(0.5, 0.5) = %v", c)
	}
	if nx, ny := c.Normalised(); nx != 0.5 || ny != 0.5 {
		t.Errorf("normalised not preserved: %v %v", nx, ny)
	}
}

func TestSquares(t *testing.T) {
	sq := Squares()
	if len(sq) != 7*13 {
		t.Fatalf("got %d squares", len(sq))
	}
	if sq[0].Name != "SV" || sq[0].X != 0 || sq[0].Y != 0 {
		t.Errorf("first square %+v", sq[0])
	}
	seen := make(map[string]bool)
	for _, s := range sq {
		if seen[s.Name] {
			t.Errorf("duplicate square %s", s.Name)
		}
		seen[s.Name] = true
		c, size, err := ParseGridRefWithSize(s.Name)
		if err != nil {
			t.Errorf("%s: %v", s.Name, err)
			continue
		}
		if c.X() != s.X || c.Y() != s.Y || size != 100000 {
			t.Errorf("%s: parsed (%d, %d), listed (%d, %d)", s.Name, c.X(), c.Y(), s.X, s.Y)
		}
		if got := FromGrid(s.X, s.Y).Square(0); got != s.Name {
			t.Errorf("square of %s corner is %s", s.Name, got)
		}
	}
}

func TestLatLon(t *testing.T) {
	lat, lon := Ben().LatLon()
	if math.Abs(lat-56.797) > 0.01 || math.Abs(lon-(-5.004)) > 0.01 {
		t.Errorf("Ben Nevis at %v, %v", lat, lon)
	}
	if c := FromLatLon(lat, lon); math.Abs(float64(c.X()-Ben().X())) > 1 || math.Abs(float64(c.Y()-Ben().Y())) > 1 {
		t.Errorf("Ben Nevis back on the grid at %d, %d", c.X(), c.Y())
	}
	for _, p := range [][2]float64{{216666, 771288}, {520483, 289083}, {651409.903, 313177.270}} {
		la, lo := GridToWGS84(p[0], p[1])
		e, n := WGS84ToGrid(la, lo)
		if math.Abs(e-p[0]) > 1 || math.Abs(n-p[1]) > 1 {
			t.Errorf("%v -> (%v, %v) -> (%v, %v)", p, la, lo, e, n)
		}
	}
}

func TestPub(t *testing.T) {
	c, ok := Pub("Bear")
	if !ok || c.X() != 451473 {
		t.Errorf("Bear = %v %v", c, ok)
	}
	if _, ok := Pub("Nowhere"); ok {
		t.Error("unknown pub found")
	}
	if _, ok := Pub(""); !ok {
		t.Error("random pub not returned")
	}
}
