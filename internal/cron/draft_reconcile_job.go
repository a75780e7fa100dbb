package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/remitflow-backend/internal/reconciler"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

type activeConfigLister interface {
	ListActive(ctx context.Context) ([]models.CommissionConfig, error)
}

type draftReconciler interface {
	Run(ctx context.Context, cfg models.CommissionConfig, actor *auth.Actor, trigger reconciler.Trigger) (*reconciler.Result, error)
}

// draftReconcileJob replays reconciliation for every active config, picking
// up drafts a failed or skipped save-time run left behind.
type draftReconcileJob struct {
	logg       *logger.Logger
	configs    activeConfigLister
	reconciler draftReconciler
}

func NewDraftReconcileJob(logg *logger.Logger, configs activeConfigLister, rec draftReconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if configs == nil {
		return nil, fmt.Errorf("config lister required")
	}
	if rec == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &draftReconcileJob{logg: logg, configs: configs, reconciler: rec}, nil
}

func (j *draftReconcileJob) Name() string { return "draft-reconcile" }

func (j *draftReconcileJob) Run(ctx context.Context) error {
	configs, err := j.configs.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active configs: %w", err)
	}
	var (
		errs     error
		promoted int
		failed   int
	)
	for _, cfg := range configs {
		result, err := j.reconciler.Run(ctx, cfg, nil, reconciler.TriggerCron)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("config %s: %w", cfg.ID, err))
			continue
		}
		promoted += result.PromotedCount()
		failed += len(result.Failed)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"configs":  len(configs),
		"promoted": promoted,
		"failed":   failed,
	}), "draft reconcile sweep complete")
	return errs
}
