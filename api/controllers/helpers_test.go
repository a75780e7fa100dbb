package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/api/middleware"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func agentActor() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Username: "agent", UserType: enums.UserTypeAgent}
}

func managerActor() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Username: "manager", UserType: enums.UserTypeManager}
}

// newRequest builds a request carrying the actor and chi URL params.
func newRequest(method, target string, body io.Reader, actor *auth.Actor, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := req.Context()
	if actor != nil {
		ctx = middleware.WithActor(ctx, *actor)
	}
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for k, v := range params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, map[string]any) {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return payload.Error.Code, payload.Error.Details
}
