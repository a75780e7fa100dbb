package middleware

import (
	"net/http"

	"github.com/angelmondragon/remitflow-backend/api/responses"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

// RequireManager admits managers and superusers.
func RequireManager(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireActor(logg, "manager role required", func(a auth.Actor) bool { return a.CanManage() })
}

func RequireSuperuser(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireActor(logg, "superuser required", func(a auth.Actor) bool { return a.IsSuperuser })
}

func requireActor(logg *logger.Logger, message string, allowed func(auth.Actor) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}
			if !allowed(actor) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, message))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
