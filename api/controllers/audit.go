package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/remitflow-backend/api/responses"
	"github.com/angelmondragon/remitflow-backend/api/validators"
	"github.com/angelmondragon/remitflow-backend/internal/audit"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

// AuditList pages through the audit trail with optional action, entity and actor filters.
func AuditList(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}
		query := r.URL.Query()
		params := audit.ListParams{
			Action:     strings.TrimSpace(query.Get("action")),
			EntityType: strings.TrimSpace(query.Get("entity_type")),
			Cursor:     strings.TrimSpace(query.Get("cursor")),
		}
		var err error
		if params.EntityID, err = validators.QueryUUID(r, "entity_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.ActorID, err = validators.QueryUUID(r, "actor_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Limit, err = validators.QueryPositiveInt(r, "limit"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
