package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = WithActor(ctx, auth.Actor{UserID: uuid.MustParse("7f1c6f5e-3f43-4f4e-9e57-1c1b1c3d2a10"), UserType: "agent"})
	return req.WithContext(ctx)
}

func TestMatchRule(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		pattern  string
		ttl      time.Duration
		required bool
		ok       bool
	}{
		{"create transfer", http.MethodPost, "/api/v1/transfers", criticalIdempotencyTTL, true, true},
		{"validate", http.MethodPost, "/api/v1/transfers/{transferId}/validate", criticalIdempotencyTTL, false, true},
		{"execute", http.MethodPost, "/api/v1/transfers/{transferId}/execute", criticalIdempotencyTTL, false, true},
		{"stock movement", http.MethodPost, "/api/v1/stock/stocks/{stockId}/movements", criticalIdempotencyTTL, true, true},
		{"create config", http.MethodPost, "/api/v1/commissions/configs", defaultIdempotencyTTL, false, true},
		{"list transfers", http.MethodGet, "/api/v1/transfers", 0, false, false},
		{"login", http.MethodPost, "/api/v1/auth/login", 0, false, false},
	}

	for _, tt := range tests {
		rule, ok := matchRule(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if !ok {
			continue
		}
		if rule.ttl != tt.ttl || rule.required != tt.required {
			t.Fatalf("%s: unexpected rule %+v", tt.name, rule)
		}
	}
}

func TestIdempotencyRequiresHeaderOnTransferCreate(t *testing.T) {
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/transfers", "/api/v1/transfers", strings.NewReader(`{"amount":"10"}`))
	resp := httptest.NewRecorder()
	Idempotency(newFakeStore(), nil)(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyOptionalRuleRunsWithoutHeader(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	store := newFakeStore()
	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/transfers/abc/validate", "/api/v1/transfers/{transferId}/validate", strings.NewReader(`{}`))
		Idempotency(store, nil)(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected both requests to run, got %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"reference_id":"AB12CD"}`))
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/transfers", "/api/v1/transfers", strings.NewReader(`{"amount":"10"}`))
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d", i, rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Fatalf("expected content-type header preserved")
		}
		if strings.TrimSpace(rec.Body.String()) != `{"reference_id":"AB12CD"}` {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
		if replayed := rec.Header().Get(replayedHeader) == "true"; replayed != (i == 1) {
			t.Fatalf("attempt %d: unexpected replay header %q", i, rec.Header().Get(replayedHeader))
		}
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/stock/deposits", "/api/v1/stock/deposits", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		Idempotency(store, nil)(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected retry to reach the handler, got %d calls", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("failed request should release its key, got %v", store.data)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dup := requestWithPattern(http.MethodPost, "/api/v1/transfers", "/api/v1/transfers", strings.NewReader(`{"amount":"10"}`))
		dup.Header.Set("Idempotency-Key", "slow")
		inner = httptest.NewRecorder()
		mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("duplicate must not reach the handler")
		})).ServeHTTP(inner, dup)
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/transfers", "/api/v1/transfers", strings.NewReader(`{"amount":"10"}`))
	req.Header.Set("Idempotency-Key", "slow")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for the first request got %d", rec.Code)
	}
	if inner.Code != http.StatusConflict {
		t.Fatalf("expected 409 for the in-flight duplicate got %d", inner.Code)
	}
	var payload errorPayload
	if err := json.Unmarshal(inner.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeConflict, payload.Error.Code)
	}
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	req := requestWithPattern(http.MethodPost, "/api/v1/transfers", "/api/v1/transfers", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", strings.Repeat("k", maxIdempotencyKey+1))
	rec := httptest.NewRecorder()
	Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/transfers", "/api/v1/transfers", strings.NewReader(`{"amount":"10"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, "/api/v1/transfers", "/api/v1/transfers", strings.NewReader(`{"amount":"11"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload errorPayload
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestRoutePatternFallsBackToPathUnderMount(t *testing.T) {
	req := requestWithPattern(http.MethodPost, "/api/v1/transfers/", "/api/v1/*", nil)
	if got := routePattern(req); got != "/api/v1/transfers" {
		t.Fatalf("expected request path, got %q", got)
	}
	rule, ok := matchRule(http.MethodPost, routePattern(req))
	if !ok || !rule.required {
		t.Fatalf("expected required transfer create rule, got %+v ok=%v", rule, ok)
	}
}
