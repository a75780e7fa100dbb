package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/internal/audit"
	"github.com/angelmondragon/remitflow-backend/internal/notifications"
	"github.com/angelmondragon/remitflow-backend/internal/transfers"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

// Trigger labels what started a reconcile run.
type Trigger string

const (
	TriggerConfigSaved Trigger = "config_saved"
	TriggerManual      Trigger = "manual"
	TriggerCron        Trigger = "cron"
)

type promoter interface {
	PromoteInBatch(ctx context.Context, actor *auth.Actor, transferID uuid.UUID, cfg *models.CommissionConfig) (*transfers.TransferDTO, error)
}

type draftFinder interface {
	ListDraftsMatching(ctx context.Context, currency enums.Currency, min, max decimal.Decimal) ([]models.Transfer, error)
}

type configLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.CommissionConfig, error)
}

type promotionNotifier interface {
	NotifyAgentsOfPromotion(ctx context.Context, promoted []notifications.PromotedTransfer, configID uuid.UUID) (int, error)
}

type runRecorder interface {
	AddPromoted(trigger string, n int)
	AddFailed(trigger string, n int)
	ObserveRun(d time.Duration)
}

// Failure describes one draft that could not be promoted.
type Failure struct {
	TransferID uuid.UUID `json:"transfer_id"`
	Reference  string    `json:"reference_id"`
	Error      string    `json:"error"`
}

// Result summarizes one reconcile run.
type Result struct {
	ConfigID       uuid.UUID                        `json:"config_id"`
	Trigger        Trigger                          `json:"trigger"`
	TotalFound     int                              `json:"total_found"`
	Promoted       []notifications.PromotedTransfer `json:"promoted"`
	Failed         []Failure                        `json:"failed"`
	AgentsNotified int                              `json:"agents_notified"`
}

// PromotedCount is the number of drafts moved to PENDING.
func (r Result) PromotedCount() int { return len(r.Promoted) }

// Params wires the reconciler.
type Params struct {
	Transfers promoter
	Drafts    draftFinder
	Configs   configLoader
	Notifier  promotionNotifier
	Audit     audit.Sink
	Metrics   runRecorder
	Logger    *logger.Logger
}

// Reconciler promotes DRAFT transfers covered by a commission config.
type Reconciler struct {
	transfers promoter
	drafts    draftFinder
	configs   configLoader
	notifier  promotionNotifier
	audit     audit.Sink
	metrics   runRecorder
	logg      *logger.Logger
	now       func() time.Time
}

func New(params Params) (*Reconciler, error) {
	if params.Transfers == nil {
		return nil, fmt.Errorf("transfer service required")
	}
	if params.Drafts == nil {
		return nil, fmt.Errorf("draft finder required")
	}
	if params.Configs == nil {
		return nil, fmt.Errorf("config loader required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{
		transfers: params.Transfers,
		drafts:    params.Drafts,
		configs:   params.Configs,
		notifier:  params.Notifier,
		audit:     params.Audit,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// AutoPromote runs after a config save commits. Per-transfer failures are
// recorded on the run and never returned.
func (r *Reconciler) AutoPromote(ctx context.Context, cfg models.CommissionConfig) error {
	_, err := r.Run(ctx, cfg, nil, TriggerConfigSaved)
	return err
}

// BulkPromote is the manager-invoked recovery path for one config.
func (r *Reconciler) BulkPromote(ctx context.Context, actor auth.Actor, configID uuid.UUID) (*Result, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can bulk promote transfers")
	}
	cfg, err := r.configs.FindByID(ctx, configID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "commission config not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission config")
	}
	if !cfg.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission config is inactive")
	}
	return r.Run(ctx, *cfg, &actor, TriggerManual)
}

// Run promotes every DRAFT covered by cfg. Only a failed draft lookup is
// returned as an error.
func (r *Reconciler) Run(ctx context.Context, cfg models.CommissionConfig, actor *auth.Actor, trigger Trigger) (*Result, error) {
	started := r.now()
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"config_id": cfg.ID.String(),
		"trigger":   string(trigger),
	})
	result := &Result{
		ConfigID: cfg.ID,
		Trigger:  trigger,
		Promoted: []notifications.PromotedTransfer{},
		Failed:   []Failure{},
	}

	drafts, err := r.drafts.ListDraftsMatching(ctx, cfg.Currency, cfg.MinAmount, cfg.MaxAmount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list matching drafts")
	}
	result.TotalFound = len(drafts)
	if len(drafts) == 0 {
		r.logg.Info(logCtx, "no drafts to reconcile")
		r.observe(trigger, result, started)
		return result, nil
	}

	var failures []string
	for _, draft := range drafts {
		// Manual runs attribute each promotion to the manager; the others run as the system.
		promoted, err := r.transfers.PromoteInBatch(ctx, actor, draft.ID, &cfg)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", draft.ReferenceID, err))
			result.Failed = append(result.Failed, Failure{
				TransferID: draft.ID,
				Reference:  draft.ReferenceID,
				Error:      err.Error(),
			})
			r.audit.Record(ctx, nil, audit.Event{
				Action:     enums.AuditAutoPromotionFailed,
				EntityType: "transfer",
				EntityID:   draft.ID,
				ActorID:    actorID(actor),
				Details: map[string]any{
					"reference_id": draft.ReferenceID,
					"config_id":    cfg.ID.String(),
					"error":        err.Error(),
				},
			})
			continue
		}
		result.Promoted = append(result.Promoted, notifications.PromotedTransfer{
			TransferID:  promoted.ID,
			Reference:   promoted.ReferenceID,
			Amount:      promoted.Amount,
			Currency:    promoted.SentCurrency,
			Beneficiary: promoted.BeneficiaryName,
			AgentID:     promoted.AgentID,
		})
	}
	if len(failures) > 0 {
		r.logg.Warn(r.logg.WithField(logCtx, "failures", failures), "some drafts could not be promoted")
	}

	if len(result.Promoted) > 0 && r.notifier != nil {
		notified, err := r.notifier.NotifyAgentsOfPromotion(ctx, result.Promoted, cfg.ID)
		result.AgentsNotified = notified
		if err != nil {
			r.logg.Error(logCtx, "promotion notification failed", err)
		}
	}

	action := enums.AuditAutoPromotionBatch
	if trigger == TriggerManual {
		action = enums.AuditManualBulkPromotion
	}
	r.audit.Record(ctx, nil, audit.Event{
		Action:     action,
		EntityType: "commission_config",
		EntityID:   cfg.ID,
		ActorID:    actorID(actor),
		Details: map[string]any{
			"trigger":     string(trigger),
			"total_found": result.TotalFound,
			"promoted":    len(result.Promoted),
			"failed":      len(result.Failed),
		},
	})

	r.observe(trigger, result, started)
	r.logg.Info(r.logg.WithFields(logCtx, map[string]any{
		"total_found": result.TotalFound,
		"promoted":    len(result.Promoted),
		"failed":      len(result.Failed),
	}), "reconcile run complete")
	return result, nil
}

func (r *Reconciler) observe(trigger Trigger, result *Result, started time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.AddPromoted(string(trigger), len(result.Promoted))
	r.metrics.AddFailed(string(trigger), len(result.Failed))
	r.metrics.ObserveRun(r.now().Sub(started))
}

func actorID(actor *auth.Actor) *uuid.UUID {
	if actor == nil {
		return nil
	}
	return audit.Actor(actor.UserID)
}
