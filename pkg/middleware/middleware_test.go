package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "slotswapper/pkg/errors"
	httputil "slotswapper/pkg/http"
	"slotswapper/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ──────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────

type stubVerifier struct {
	tokens map[string]string
}

func (v *stubVerifier) Parse(token string) (string, error) {
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// ──────────────────────────────────────────────
// Request logging
// ──────────────────────────────────────────────

func TestRequestLogging_RequestID(t *testing.T) {
	var seen string
	h := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"generated when missing", "", false},
		{"reused when well formed", "trace-123_abc", true},
		{"replaced when malformed", "bad id;drop", false},
		{"replaced when too long", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("no request id in context")
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("header = %q, context = %q", got, seen)
			}
			if tt.reuse != (seen == tt.incoming) {
				t.Errorf("request id = %q, incoming = %q, reuse = %v", seen, tt.incoming, tt.reuse)
			}
		})
	}
}

// ──────────────────────────────────────────────
// Recovery
// ──────────────────────────────────────────────

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != apperrors.CodeInternal || strings.Contains(resp.Error, "boom") {
		t.Errorf("body = %+v", resp)
	}
}

// ──────────────────────────────────────────────
// Content type and size
// ──────────────────────────────────────────────

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(logger.Discard())(okHandler)

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		wantStatus  int
	}{
		{"json post", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"text post", http.MethodPost, `{}`, "text/plain", http.StatusUnsupportedMediaType},
		{"missing on patch", http.MethodPatch, `{}`, "", http.StatusUnsupportedMediaType},
		{"bodiless post", http.MethodPost, "", "", http.StatusOK},
		{"get", http.MethodGet, "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	h := MaxRequestSize(8)(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"long"}`)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != CodePayloadTooLarge {
		t.Errorf("code = %s", resp.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("small body status = %d", rec.Code)
	}
}

// ──────────────────────────────────────────────
// Authentication
// ──────────────────────────────────────────────

func TestAuthenticate(t *testing.T) {
	verifier := &stubVerifier{tokens: map[string]string{"good": "user-1"}}
	var caller string
	h := Authenticate(verifier, logger.Discard(), "/api/v1/auth/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ = CallerIDFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantCaller string
	}{
		{"valid token", "/api/v1/slots", "Bearer good", http.StatusOK, "user-1"},
		{"scheme is case insensitive", "/api/v1/slots", "bearer good", http.StatusOK, "user-1"},
		{"missing header", "/api/v1/slots", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "/api/v1/slots", "Basic good", http.StatusUnauthorized, ""},
		{"unknown token", "/api/v1/slots", "Bearer nope", http.StatusUnauthorized, ""},
		{"public path", "/api/v1/auth/login", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if caller != tt.wantCaller {
				t.Errorf("caller = %q, want %q", caller, tt.wantCaller)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if resp := decodeError(t, rec); resp.Code != apperrors.CodeUnauthorized {
					t.Errorf("code = %s", resp.Code)
				}
			}
		})
	}
}

// ──────────────────────────────────────────────
// Rate limiting
// ──────────────────────────────────────────────

func TestCallerRateLimiter_Allow(t *testing.T) {
	limiter := NewCallerRateLimiter(2, time.Minute, nil, logger.Discard())
	defer limiter.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if limiter.Allow("a") {
		t.Error("third request in window should be limited")
	}
	if !limiter.Allow("b") {
		t.Error("other key should not be limited")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("a") {
		t.Error("request after window should pass")
	}
}

func TestCallerRateLimit_KeysByCaller(t *testing.T) {
	limiter := NewCallerRateLimiter(1, time.Minute, nil, logger.Discard())
	defer limiter.Stop()
	h := CallerRateLimit(limiter)(okHandler)

	send := func(caller string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		if caller != "" {
			req = req.WithContext(WithCallerID(req.Context(), caller))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("alice"); code != http.StatusOK {
		t.Fatalf("alice first = %d", code)
	}
	if code := send("alice"); code != http.StatusTooManyRequests {
		t.Errorf("alice second = %d, want 429", code)
	}
	if code := send("bob"); code != http.StatusOK {
		t.Errorf("bob = %d, same address must not share alice's budget", code)
	}
	if code := send(""); code != http.StatusOK {
		t.Errorf("anonymous first = %d", code)
	}
	if code := send(""); code != http.StatusTooManyRequests {
		t.Errorf("anonymous second = %d, want 429", code)
	}
}

// ──────────────────────────────────────────────
// Timeout
// ──────────────────────────────────────────────

func TestRequestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	})

	rec := httptest.NewRecorder()
	RequestTimeout(20*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != apperrors.CodeTimeout {
		t.Errorf("code = %s", resp.Code)
	}

	rec = httptest.NewRecorder()
	RequestTimeout(time.Second)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("fast handler status = %d", rec.Code)
	}
}

func TestRequestTimeout_PanicReachesRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(RequestTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("inside")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// ──────────────────────────────────────────────
// Idempotency
// ──────────────────────────────────────────────

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]int32{"call": n})
	})
}

func idempotentRequest(caller, path, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(DefaultIdempotencyHeader, key)
	}
	if caller != "" {
		req = req.WithContext(WithCallerID(req.Context(), caller))
	}
	return req
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()
	var calls int32
	h := Idempotency(store, "", logger.Discard())(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, idempotentRequest("alice", "/api/v1/swap-request", "k1"))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, idempotentRequest("alice", "/api/v1/swap-request", "k1"))

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %q, want %d %q", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("replay header missing")
	}
}

func TestIdempotency_Scoping(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()
	var calls int32
	h := Idempotency(store, "", logger.Discard())(countingHandler(&calls, http.StatusOK))

	requests := []*http.Request{
		idempotentRequest("alice", "/a", "k"),
		idempotentRequest("bob", "/a", "k"),
		idempotentRequest("alice", "/b", "k"),
		idempotentRequest("alice", "/a", ""),
		idempotentRequest("alice", "/a", ""),
	}
	for _, req := range requests {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != int32(len(requests)) {
		t.Errorf("handler calls = %d, want %d", calls, len(requests))
	}
}

func TestIdempotency_FailuresAreNotCached(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()
	var calls int32
	h := Idempotency(store, "", logger.Discard())(countingHandler(&calls, http.StatusConflict))

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest("alice", "/a", "k"))
	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest("alice", "/a", "k"))

	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestInMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Millisecond)
	defer store.Stop()

	store.Set(context.Background(), "k", &CachedResponse{StatusCode: http.StatusOK})
	time.Sleep(5 * time.Millisecond)
	if _, ok := store.Get(context.Background(), "k"); ok {
		t.Error("expired entry returned")
	}
}

func TestRedisIdempotencyStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, time.Minute, logger.Discard())

	key := "test-" + generateRequestID()
	defer client.Del(ctx, idempotencyKeyPrefix+key)

	if _, ok := store.Get(ctx, key); ok {
		t.Fatal("unexpected hit on fresh key")
	}

	store.Set(ctx, key, &CachedResponse{StatusCode: http.StatusCreated, Body: []byte(`{"data":1}`)})
	store.Set(ctx, key, &CachedResponse{StatusCode: http.StatusOK, Body: []byte(`{"data":2}`)})

	cached, ok := store.Get(ctx, key)
	if !ok {
		t.Fatal("stored entry not found")
	}
	if cached.StatusCode != http.StatusCreated || string(cached.Body) != `{"data":1}` {
		t.Errorf("cached = %d %s, want first response kept", cached.StatusCode, cached.Body)
	}
}
