package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	now := time.Unix(1000, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Limit(tb, ok)
	codes := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		return rec.Code
	}
	if a, b, c := codes(), codes(), codes(); a != 204 || b != 204 || c != 429 {
		t.Errorf("first second: %d %d %d", a, b, c)
	}
	now = now.Add(time.Second)
	if codes() != 204 {
		t.Error("bucket not refilled")
	}
}

func TestWrapDisabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	inner := http.NotFoundHandler()
	if h := Wrap(inner); h == nil {
		t.Fatal("nil handler")
	}
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_QPS", "1")
	h := Wrap(inner)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != 404 || (rec2.Code != 429 && rec2.Code != 404) {
		t.Errorf("codes %d %d", rec.Code, rec2.Code)
	}
}
