package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTAuth_RoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	userID := uuid.New()

	token, err := auth.GenerateAccessToken(userID, "house", false)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	got, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != userID {
		t.Errorf("Expected %s, got %s", userID, got)
	}

	other := NewJWTAuth("other-secret")
	if _, err := other.ParseToken(token); err == nil {
		t.Error("Expected error for token signed with a different secret")
	}
}

func TestJWTAuth_Expired(t *testing.T) {
	auth := &JWTAuth{Secret: []byte("s"), TTL: -time.Minute}
	token, err := auth.GenerateAccessToken(uuid.New(), "guest", true)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for expired token")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "TOKEN_EXPIRED") {
		t.Errorf("Expected TOKEN_EXPIRED, got %s", rr.Body.String())
	}
}

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	userID := uuid.New()
	token, _ := auth.GenerateAccessToken(userID, "house", false)

	var seen uuid.UUID
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Errorf("Expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
	if seen != userID {
		t.Errorf("Expected user %s in context, got %s", userID, seen)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("Expected first two hits to pass")
	}
	if rl.Allow("a") {
		t.Error("Expected third hit to be limited")
	}
	if !rl.Allow("b") {
		t.Error("Expected other key to be independent")
	}

	now = now.Add(2 * time.Minute)
	if !rl.Allow("a") {
		t.Error("Expected limit to reset after the window")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := []int{}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:" + []string{"1111", "2222"}[i]
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected [200 429] for the same host on different ports, got %v", codes)
	}
}

func TestRequestID(t *testing.T) {
	var inner string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = r.Header.Get(RequestIDHeader)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if inner == "" || rr.Header().Get(RequestIDHeader) != inner {
		t.Errorf("Expected generated id on request and response, got %q / %q", inner, rr.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get(RequestIDHeader) != "abc" {
		t.Errorf("Expected incoming id to be kept, got %q", rr.Header().Get(RequestIDHeader))
	}
}
