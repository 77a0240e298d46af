package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	tok, err := j.Sign(42)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != 42 {
		t.Fatalf("unexpected sub: %d", id)
	}
}

func TestJWTRejectsForeignSecret(t *testing.T) {
	tok, err := NewJWT("a", time.Hour).Sign(1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewJWT("b", time.Hour).Verify(tok); err == nil {
		t.Fatalf("expected verify error")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pass12345")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !ComparePassword(hash, "pass12345") {
		t.Fatalf("expected password to match")
	}
	if ComparePassword(hash, "wrong") {
		t.Fatalf("expected mismatch")
	}
	if ComparePassword(UnusablePassword, "!") {
		t.Fatalf("unusable password must never match")
	}
}

func TestRequireAuth(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	var seen uint64
	h := RequireAuth(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status without token: %d", rec.Code)
	}

	tok, _ := j.Sign(9)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || seen != 9 {
		t.Fatalf("unexpected result: code=%d uid=%d", rec.Code, seen)
	}
}
