package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/remitflow-backend/internal/stock"
	"github.com/angelmondragon/remitflow-backend/internal/transfers"
	"github.com/angelmondragon/remitflow-backend/internal/users"
	pkgAuth "github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/auth/session"
	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubTransfersService struct {
	transfers.Service
}

func (stubTransfersService) Create(ctx context.Context, actor pkgAuth.Actor, input transfers.CreateTransferInput) (*transfers.TransferDTO, error) {
	return &transfers.TransferDTO{ID: uuid.New(), AgentID: actor.UserID, Status: enums.TransferStatusDraft}, nil
}

func (stubTransfersService) Validate(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, comment string) (*transfers.TransferDTO, error) {
	return &transfers.TransferDTO{ID: id, Status: enums.TransferStatusValidated}, nil
}

type stubUsersService struct {
	users.Service
}

func (stubUsersService) Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: id, Username: "tester"}, nil
}

func (stubUsersService) List(ctx context.Context, params users.ListParams) (*users.ListResult, error) {
	return &users.ListResult{}, nil
}

type stubStockService struct {
	stock.Service
}

func (stubStockService) DeleteRate(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) error {
	return nil
}

// memoryRedis satisfies RedisStore with a map.
type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	}
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) RateLimitKey(scope string) string {
	return "rl:" + scope
}

func (m *memoryRedis) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func (m *memoryRedis) Ping(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

func testDependencies() Dependencies {
	return Dependencies{
		DB:        stubPinger{},
		Sessions:  stubSessionManager{},
		Transfers: stubTransfersService{},
		Users:     stubUsersService{},
		Stock:     stubStockService{},
	}
}

func newTestRouter(cfg *config.Config, deps Dependencies) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: "debug", Output: io.Discard})
	return NewRouter(cfg, logg, deps)
}

func buildToken(t *testing.T, cfg *config.Config, userType enums.UserType, superuser bool) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:      uuid.New(),
		Username:    "tester",
		UserType:    userType,
		IsSuperuser: superuser,
		JTI:         session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(router http.Handler, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

const transferBody = `{"beneficiary_name":"Awa","beneficiary_phone":"+22500000000","withdrawal_method":"CASH","amount":"10","sent_currency":"EUR","received_currency":"BIF"}`

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(testConfig(), testDependencies())

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := serve(router, http.MethodGet, path, "", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
		if got := resp.Header().Get("X-Remitflow-Env"); got != "test" {
			t.Fatalf("%s: expected env header, got %q", path, got)
		}
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router := newTestRouter(testConfig(), testDependencies())
	resp := serve(router, http.MethodGet, "/api/v1/users/me", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAgentCanCreateTransfer(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, testDependencies())
	resp := serve(router, http.MethodPost, "/api/v1/transfers", buildToken(t, cfg, enums.UserTypeAgent, false), strings.NewReader(transferBody))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestTransferCreateNeedsIdempotencyKeyWhenRedisWired(t *testing.T) {
	cfg := testConfig()
	deps := testDependencies()
	deps.Redis = newMemoryRedis()
	router := newTestRouter(cfg, deps)
	token := buildToken(t, cfg, enums.UserTypeAgent, false)

	resp := serve(router, http.MethodPost, "/api/v1/transfers", token, strings.NewReader(transferBody))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(transferBody))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "create-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d", i, rec.Code)
		}
		if i == 0 {
			first = rec.Body.String()
		} else if rec.Body.String() != first {
			t.Fatalf("expected replayed body, got %s", rec.Body.String())
		}
	}
}

func TestValidateRequiresManager(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, testDependencies())
	target := "/api/v1/transfers/" + uuid.NewString() + "/validate"

	resp := serve(router, http.MethodPost, target, buildToken(t, cfg, enums.UserTypeAgent, false), nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent got %d", resp.Code)
	}

	resp = serve(router, http.MethodPost, target, buildToken(t, cfg, enums.UserTypeManager, false), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUserDirectoryIsManagerOnly(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, testDependencies())
	agent := buildToken(t, cfg, enums.UserTypeAgent, false)

	if resp := serve(router, http.MethodGet, "/api/v1/users/me", agent, nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for /me got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, "/api/v1/users", agent, nil); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent listing users got %d", resp.Code)
	}
	manager := buildToken(t, cfg, enums.UserTypeManager, false)
	if resp := serve(router, http.MethodGet, "/api/v1/users", manager, nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager listing users got %d", resp.Code)
	}
}

func TestRateDeleteRequiresSuperuser(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, testDependencies())
	target := "/api/v1/stock/rates/" + uuid.NewString()

	resp := serve(router, http.MethodDelete, target, buildToken(t, cfg, enums.UserTypeManager, false), nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager got %d", resp.Code)
	}
	resp = serve(router, http.MethodDelete, target, buildToken(t, cfg, enums.UserTypeManager, true), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for superuser got %d", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	deps := testDependencies()
	deps.Metrics = reg
	router := newTestRouter(testConfig(), deps)

	resp := serve(router, http.MethodGet, "/metrics", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "router_test_total 1") {
		t.Fatalf("expected counter in exposition, got %s", resp.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(testConfig(), testDependencies())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/transfers", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
