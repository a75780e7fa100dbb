package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/internal/auth"
	"github.com/angelmondragon/remitflow-backend/internal/users"
	pkgAuth "github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
)

var authJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}

type stubAuthService struct {
	got          auth.LoginRequest
	resp         *auth.LoginResponse
	err          error
	refreshedJTI string
	refreshToken string
	loggedOut    string
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.got = req
	return s.resp, s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, claims *pkgAuth.AccessTokenClaims, refreshToken string) (*auth.TokenPair, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.refreshedJTI = claims.ID
	s.refreshToken = refreshToken
	return &auth.TokenPair{AccessToken: "next-access", RefreshToken: "next-refresh", TokenType: "Bearer", ExpiresIn: 600}, nil
}

func (s *stubAuthService) Logout(ctx context.Context, claims *pkgAuth.AccessTokenClaims) error {
	if s.err != nil {
		return s.err
	}
	s.loggedOut = claims.ID
	return nil
}

// expiredToken mints a token that lapsed an hour ago.
func expiredToken(t *testing.T, jti string) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(authJWT, time.Now().Add(-time.Hour), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: "agent.one",
		UserType: enums.UserTypeAgent,
		JTI:      jti,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	return token
}

func postJSON(handler http.Handler, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthLoginSuccess(t *testing.T) {
	svc := &stubAuthService{resp: &auth.LoginResponse{
		TokenPair: auth.TokenPair{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", ExpiresIn: 600},
		User:      &users.UserDTO{ID: uuid.New(), Username: "agent.one", UserType: "agent"},
	}}
	rec := postJSON(AuthLogin(svc, nil), `{"username":"agent.one","password":"pw"}`, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.got.Username != "agent.one" {
		t.Fatalf("unexpected username %q", svc.got.Username)
	}
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["access_token"] != "access" || envelope.Data["expires_in"] != float64(600) {
		t.Fatalf("token pair should be flattened into the body: %+v", envelope.Data)
	}
	if _, ok := envelope.Data["user"]; !ok {
		t.Fatalf("expected user in body: %+v", envelope.Data)
	}
}

func TestAuthLoginErrors(t *testing.T) {
	rec := postJSON(AuthLogin(&stubAuthService{}, nil), `{"username":"agent.one"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400 got %d", rec.Code)
	}

	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	rec = postJSON(AuthLogin(svc, nil), `{"username":"a","password":"b"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials: expected 401 got %d", rec.Code)
	}
}

func TestAuthRefreshAcceptsExpiredAccessToken(t *testing.T) {
	svc := &stubAuthService{}
	rec := postJSON(AuthRefresh(svc, authJWT, nil), `{"refresh_token":"old-refresh"}`, expiredToken(t, "jti-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.refreshedJTI != "jti-1" || svc.refreshToken != "old-refresh" {
		t.Fatalf("unexpected refresh args %q %q", svc.refreshedJTI, svc.refreshToken)
	}
	var envelope struct {
		Data auth.TokenPair `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.RefreshToken != "next-refresh" {
		t.Fatalf("unexpected pair %+v", envelope.Data)
	}
}

func TestAuthRefreshRejections(t *testing.T) {
	svc := &stubAuthService{}
	if rec := postJSON(AuthRefresh(svc, authJWT, nil), `{}`, expiredToken(t, "jti-1")); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing refresh token: expected 400 got %d", rec.Code)
	}
	if rec := postJSON(AuthRefresh(svc, authJWT, nil), `{"refresh_token":"r"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer: expected 401 got %d", rec.Code)
	}
	if rec := postJSON(AuthRefresh(svc, authJWT, nil), `{"refresh_token":"r"}`, "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage bearer: expected 401 got %d", rec.Code)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	if rec := postJSON(AuthRefresh(svc, authJWT, nil), `{"refresh_token":"r"}`, expiredToken(t, "jti-1")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("service rejection: expected 401 got %d", rec.Code)
	}
}

func TestAuthLogout(t *testing.T) {
	svc := &stubAuthService{}
	rec := postJSON(AuthLogout(svc, authJWT, nil), "", expiredToken(t, "jti-9"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.loggedOut != "jti-9" {
		t.Fatalf("expected logout of jti-9, got %q", svc.loggedOut)
	}

	rec = postJSON(AuthLogout(svc, authJWT, nil), "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", rec.Code)
	}
}
