package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/auth/session"
	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}

func mintTestToken(t *testing.T, userType enums.UserType, superuser bool) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID:      userID,
		Username:    "tester",
		UserType:    userType,
		IsSuperuser: superuser,
		JTI:         session.NewAccessID(),
	})
	require.NoError(t, err)
	return token, userID
}

func serveAuth(verifier session.AccessSessionChecker, header string, next http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	Auth(testJWT, verifier, nil)(next).ServeHTTP(resp, req)
	return resp
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestAuthRejectsMissingOrInvalidToken(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(stubSessionVerifier{ok: true}, "", okHandler()).Code)
	require.Equal(t, http.StatusUnauthorized, serveAuth(stubSessionVerifier{ok: true}, "Bearer invalid", okHandler()).Code)
	require.Equal(t, http.StatusUnauthorized, serveAuth(stubSessionVerifier{ok: true}, "Bearer ", okHandler()).Code)
}

func TestAuthSeedsActor(t *testing.T) {
	token, userID := mintTestToken(t, enums.UserTypeManager, false)

	var captured auth.Actor
	resp := serveAuth(stubSessionVerifier{ok: true}, "Bearer "+token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		captured = actor
		w.WriteHeader(http.StatusOK)
	}))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, userID, captured.UserID)
	require.True(t, captured.IsManager())
	require.Equal(t, "manager", captured.Role())
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token, _ := mintTestToken(t, enums.UserTypeAgent, false)
	require.Equal(t, http.StatusUnauthorized, serveAuth(stubSessionVerifier{ok: false}, "Bearer "+token, okHandler()).Code)
	require.Equal(t, http.StatusServiceUnavailable, serveAuth(stubSessionVerifier{err: errors.New("redis down")}, "Bearer "+token, okHandler()).Code)
}

func TestRequireManager(t *testing.T) {
	cases := []struct {
		name  string
		actor *auth.Actor
		want  int
	}{
		{"no actor", nil, http.StatusUnauthorized},
		{"agent", &auth.Actor{UserID: uuid.New(), UserType: enums.UserTypeAgent}, http.StatusForbidden},
		{"manager", &auth.Actor{UserID: uuid.New(), UserType: enums.UserTypeManager}, http.StatusOK},
		{"superuser agent", &auth.Actor{UserID: uuid.New(), UserType: enums.UserTypeAgent, IsSuperuser: true}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(WithActor(req.Context(), *tc.actor))
			}
			resp := httptest.NewRecorder()
			RequireManager(nil)(okHandler()).ServeHTTP(resp, req)
			require.Equal(t, tc.want, resp.Code)
		})
	}
}

func TestRequireSuperuser(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req = req.WithContext(WithActor(req.Context(), auth.Actor{UserID: uuid.New(), UserType: enums.UserTypeManager}))
	resp := httptest.NewRecorder()
	RequireSuperuser(nil)(okHandler()).ServeHTTP(resp, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"Bearer":            "",
		"Basic dXNlcjpwdw==": "",
		"Bearer abc.def":    "abc.def",
		"bearer   abc.def ": "abc.def",
		"BEARER abc":        "abc",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		require.Equal(t, want, BearerToken(req), "header %q", header)
	}
}

func TestAuthReportsExpiredToken(t *testing.T) {
	token, err := auth.MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), auth.AccessTokenPayload{
		UserID:   uuid.New(),
		UserType: enums.UserTypeAgent,
		JTI:      session.NewAccessID(),
	})
	require.NoError(t, err)

	resp := serveAuth(stubSessionVerifier{ok: true}, "Bearer "+token, okHandler())
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Contains(t, resp.Body.String(), "token expired")
}
