package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/remitflow-backend/api/responses"
	"github.com/angelmondragon/remitflow-backend/api/validators"
	"github.com/angelmondragon/remitflow-backend/internal/transfers"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

type transitionFunc func(ctx context.Context, actor auth.Actor, transferID uuid.UUID, comment string) (*transfers.TransferDTO, error)

// TransferCreate records a new transfer as DRAFT or PENDING.
func TransferCreate(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfers service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transfers.CreateTransferInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfer, err := svc.Create(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transfer)
	}
}

func TransferList(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return listTransfers(svc, logg, false)
}

// TransferPending is the manager validation queue.
func TransferPending(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return listTransfers(svc, logg, true)
}

func listTransfers(svc transfers.Service, logg *logger.Logger, pendingOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfers service unavailable"))
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
		query := r.URL.Query()
		params := transfers.ListParams{
			Status:   strings.TrimSpace(query.Get("status")),
			Currency: strings.TrimSpace(query.Get("currency")),
			Search:   validators.SanitizeString(query.Get("q"), 100),
			Limit:    limit,
			Cursor:   strings.TrimSpace(query.Get("cursor")),
		}

		var result *transfers.ListResult
		if pendingOnly {
			result, err = svc.ListPending(r.Context(), actor, params)
		} else {
			result, err = svc.List(r.Context(), actor, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func TransferDetail(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfers service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transferID, err := uuidParam(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfer, err := svc.Get(r.Context(), actor, transferID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transfer)
	}
}

// TransferPromote moves a DRAFT to PENDING using the oldest matching config.
func TransferPromote(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfers service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transferID, err := uuidParam(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfer, err := svc.Promote(r.Context(), &actor, transferID, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transfer)
	}
}

func TransferValidate(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return transferTransition(logg, svc, func(s transfers.Service) transitionFunc { return s.Validate })
}

func TransferReject(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return transferTransition(logg, svc, func(s transfers.Service) transitionFunc { return s.Reject })
}

func TransferExecute(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return transferTransition(logg, svc, func(s transfers.Service) transitionFunc { return s.Execute })
}

// transferTransition handles the manager transitions that take an optional comment body.
func transferTransition(logg *logger.Logger, svc transfers.Service, pick func(transfers.Service) transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfers service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transferID, err := uuidParam(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transfers.TransitionInput
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		transfer, err := pick(svc)(r.Context(), actor, transferID, strings.TrimSpace(body.Comment))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transfer)
	}
}
