package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/remitflow-backend/api/responses"
	"github.com/angelmondragon/remitflow-backend/api/validators"
	"github.com/angelmondragon/remitflow-backend/internal/commissions"
	"github.com/angelmondragon/remitflow-backend/internal/notifications"
	"github.com/angelmondragon/remitflow-backend/internal/reconciler"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

// BulkPromoter runs a manual reconciliation for one config.
type BulkPromoter interface {
	BulkPromote(ctx context.Context, actor auth.Actor, configID uuid.UUID) (*reconciler.Result, error)
}

type bulkPromotionResponse struct {
	ConfigID       uuid.UUID                        `json:"config_id"`
	TotalFound     int                              `json:"total_found"`
	PromotedCount  int                              `json:"promoted_count"`
	Promoted       []notifications.PromotedTransfer `json:"promoted"`
	Failed         []reconciler.Failure             `json:"failed"`
	AgentsNotified int                              `json:"agents_notified"`
}

func CommissionConfigList(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.QueryPositiveInt(r, "limit")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		active, err := validators.QueryBool(r, "active")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), actor, commissions.ListParams{
			Currency: strings.TrimSpace(r.URL.Query().Get("currency")),
			Active:   active,
			Limit:    limit,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CommissionConfigCreate saves a config; an active one triggers auto-promotion.
func CommissionConfigCreate(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body commissions.ConfigInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cfg, err := svc.Create(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, cfg)
	}
}

func CommissionConfigDetail(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		configID, err := uuidParam(r, "configId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cfg, err := svc.Get(r.Context(), actor, configID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

// CommissionConfigUpdate replaces a config with a new version; the old row is kept inactive.
func CommissionConfigUpdate(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		configID, err := uuidParam(r, "configId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body commissions.ConfigInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cfg, err := svc.Update(r.Context(), actor, configID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

func CommissionConfigToggle(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		configID, err := uuidParam(r, "configId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cfg, err := svc.Toggle(r.Context(), actor, configID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

// CommissionPreview computes the would-be split for ?amount=&currency= without persisting anything.
func CommissionPreview(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(r.URL.Query().Get("amount")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount").
				WithDetails(map[string]string{"amount": "must be a decimal number"}))
			return
		}

		preview, err := svc.Preview(r.Context(), actor, amount, r.URL.Query().Get("currency"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

func CommissionOverview(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commissions service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		period := r.URL.Query().Get("period")
		if strings.TrimSpace(period) == "" {
			period = "month"
		}

		overview, err := svc.Overview(r.Context(), actor, period)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

// CommissionPromoteDrafts is the manual bulk promotion for drafts a config covers.
func CommissionPromoteDrafts(promoter BulkPromoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if promoter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		configID, err := uuidParam(r, "configId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := promoter.BulkPromote(r.Context(), actor, configID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := bulkPromotionResponse{
			ConfigID:       result.ConfigID,
			TotalFound:     result.TotalFound,
			PromotedCount:  result.PromotedCount(),
			Promoted:       result.Promoted,
			Failed:         result.Failed,
			AgentsNotified: result.AgentsNotified,
		}
		if resp.Promoted == nil {
			resp.Promoted = []notifications.PromotedTransfer{}
		}
		if resp.Failed == nil {
			resp.Failed = []reconciler.Failure{}
		}
		responses.WriteSuccess(w, resp)
	}
}
