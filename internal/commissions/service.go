package commissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/internal/audit"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/config"
	"github.com/angelmondragon/remitflow-backend/pkg/db"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/money"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox"
	"github.com/angelmondragon/remitflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/remitflow-backend/pkg/pagination"
)

// Service is the commission configuration store.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input ConfigInput) (*ConfigDTO, error)
	Update(ctx context.Context, actor auth.Actor, configID uuid.UUID, input ConfigInput) (*ConfigDTO, error)
	Toggle(ctx context.Context, actor auth.Actor, configID uuid.UUID) (*ConfigDTO, error)
	Get(ctx context.Context, actor auth.Actor, configID uuid.UUID) (*ConfigDTO, error)
	List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error)
	Preview(ctx context.Context, actor auth.Actor, amount decimal.Decimal, currency string) (*Preview, error)
	Overview(ctx context.Context, actor auth.Actor, period string) (*Overview, error)
}

// Reconciler promotes the drafts a freshly activated config now covers.
type Reconciler interface {
	AutoPromote(ctx context.Context, cfg models.CommissionConfig) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the commission store dependencies.
type ServiceParams struct {
	DB            txRunner
	Configs       *ConfigRepository
	Distributions *DistributionRepository
	Audit         audit.Sink
	Outbox        outbox.Emitter
	Reconciler    Reconciler
	AutoPromote   bool
	Commission    config.CommissionConfig
	Logger        *logger.Logger
}

type service struct {
	db            txRunner
	configs       *ConfigRepository
	distributions *DistributionRepository
	audit         audit.Sink
	outbox        outbox.Emitter
	reconciler    Reconciler
	autoPromote   bool
	minimum       decimal.Decimal
	logg          *logger.Logger
	now           func() time.Time
}

// NewService wires the commission configuration store.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Configs == nil || params.Distributions == nil {
		return nil, fmt.Errorf("commission repositories required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:            params.DB,
		configs:       params.Configs,
		distributions: params.Distributions,
		audit:         params.Audit,
		outbox:        params.Outbox,
		reconciler:    params.Reconciler,
		autoPromote:   params.AutoPromote,
		minimum:       params.Commission.Minimum(),
		logg:          params.Logger,
		now:           time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input ConfigInput) (*ConfigDTO, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can create commission configs")
	}
	cfg, err := s.buildConfig(actor.UserID, input)
	if err != nil {
		return nil, err
	}
	cfg.Active = input.Active == nil || *input.Active

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.configs.WithTx(tx)
		if cfg.Active {
			if err := s.ensureNoDuplicate(ctx, repo, *cfg, uuid.Nil); err != nil {
				return err
			}
		}
		if err := repo.Create(ctx, cfg); err != nil {
			return s.mapWriteError(err, "create commission config")
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditCommissionConfigCreated,
			EntityType: "commission_config",
			EntityID:   cfg.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details:    configDetails(*cfg),
		})
		return s.emitSaved(ctx, tx, actor, *cfg, true)
	})
	if err != nil {
		return nil, err
	}

	s.triggerReconcile(ctx, *cfg)
	return FromModel(cfg), nil
}

// Update replaces the config with a new row linked through previous_id and
// deactivates the predecessor, keeping the old terms on record.
func (s *service) Update(ctx context.Context, actor auth.Actor, configID uuid.UUID, input ConfigInput) (*ConfigDTO, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can update commission configs")
	}

	var replacement *models.CommissionConfig
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.configs.WithTx(tx)
		current, err := s.loadOwned(ctx, repo, actor, configID, true)
		if err != nil {
			return err
		}
		next, err := s.buildConfig(current.ManagerID, input)
		if err != nil {
			return err
		}
		next.Active = current.Active
		if input.Active != nil {
			next.Active = *input.Active
		}
		previousID := current.ID
		next.PreviousID = &previousID

		if err := repo.SetActive(ctx, current.ID, false); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate previous config")
		}
		if next.Active {
			if err := s.ensureNoDuplicate(ctx, repo, *next, current.ID); err != nil {
				return err
			}
		}
		if err := repo.Create(ctx, next); err != nil {
			return s.mapWriteError(err, "insert replacement config")
		}

		details := configDetails(*next)
		details["previous_id"] = current.ID.String()
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditCommissionConfigUpdated,
			EntityType: "commission_config",
			EntityID:   next.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details:    details,
		})
		replacement = next
		return s.emitSaved(ctx, tx, actor, *next, true)
	})
	if err != nil {
		return nil, err
	}

	s.triggerReconcile(ctx, *replacement)
	return FromModel(replacement), nil
}

func (s *service) Toggle(ctx context.Context, actor auth.Actor, configID uuid.UUID) (*ConfigDTO, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can toggle commission configs")
	}

	var toggled *models.CommissionConfig
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.configs.WithTx(tx)
		cfg, err := s.loadOwned(ctx, repo, actor, configID, true)
		if err != nil {
			return err
		}
		cfg.Active = !cfg.Active
		if cfg.Active {
			if err := s.ensureNoDuplicate(ctx, repo, *cfg, cfg.ID); err != nil {
				return err
			}
		}
		if err := repo.SetActive(ctx, cfg.ID, cfg.Active); err != nil {
			return s.mapWriteError(err, "toggle commission config")
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditCommissionConfigToggled,
			EntityType: "commission_config",
			EntityID:   cfg.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details:    map[string]any{"active": cfg.Active},
		})
		toggled = cfg
		return s.emitSaved(ctx, tx, actor, *cfg, false)
	})
	if err != nil {
		return nil, err
	}

	s.triggerReconcile(ctx, *toggled)
	return FromModel(toggled), nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, configID uuid.UUID) (*ConfigDTO, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can view commission configs")
	}
	cfg, err := s.loadOwned(ctx, s.configs, actor, configID, false)
	if err != nil {
		return nil, err
	}
	return FromModel(cfg), nil
}

// List shows a manager their own configs; superusers see every manager's.
func (s *service) List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can list commission configs")
	}
	query := configListParams{Active: params.Active, Limit: params.Limit}
	if !actor.IsSuperuser {
		managerID := actor.UserID
		query.ManagerID = &managerID
	}
	if raw := strings.TrimSpace(params.Currency); raw != "" {
		currency, err := enums.ParseCurrency(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
		query.Currency = &currency
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.configs.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commission configs")
	}
	result := &ListResult{Items: make([]*ConfigDTO, 0, len(rows))}
	for i := range rows {
		result.Items = append(result.Items, FromModel(&rows[i]))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Preview(ctx context.Context, actor auth.Actor, amount decimal.Decimal, currency string) (*Preview, error) {
	parsed, err := enums.ParseCurrency(currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	cfg, err := s.configs.FindActiveMatching(ctx, parsed, amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup commission config")
	}
	preview := &Preview{Amount: amount, Currency: parsed}
	if cfg == nil {
		return preview, nil
	}
	breakdown := Calculate(*cfg, actor.IsManager())
	preview.Found = true
	preview.Breakdown = &breakdown
	return preview, nil
}

// Overview reports earned commissions since the start of the period. Agents
// only see their own totals; managers also get the per-agent ranking.
func (s *service) Overview(ctx context.Context, actor auth.Actor, period string) (*Overview, error) {
	parsed, err := enums.ParseOverviewPeriod(strings.ToLower(strings.TrimSpace(period)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid period")
	}
	since := PeriodStart(parsed, s.now())

	var agentFilter *uuid.UUID
	if !actor.CanManage() {
		agentID := actor.UserID
		agentFilter = &agentID
	}
	totals, err := s.distributions.Totals(ctx, since, agentFilter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate commissions")
	}
	overview := &Overview{Period: parsed, Since: since, Totals: totals}
	if agentFilter == nil {
		perAgent, err := s.distributions.TotalsByAgent(ctx, since)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate commissions per agent")
		}
		overview.PerAgent = perAgent
	}
	return overview, nil
}

// PeriodStart truncates now (UTC) to the beginning of the day, ISO week, month or year.
func PeriodStart(period enums.OverviewPeriod, now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case enums.PeriodDay:
		return day
	case enums.PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case enums.PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func (s *service) buildConfig(managerID uuid.UUID, input ConfigInput) (*models.CommissionConfig, error) {
	currency, err := enums.ParseCurrency(input.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	if err := ValidateTerms(input.MinAmount, input.MaxAmount, input.CommissionAmount, input.AgentShare, s.minimum); err != nil {
		return nil, err
	}
	return &models.CommissionConfig{
		ID:               uuid.New(),
		ManagerID:        managerID,
		Currency:         currency,
		MinAmount:        input.MinAmount,
		MaxAmount:        input.MaxAmount,
		CommissionAmount: money.Round4(input.CommissionAmount),
		AgentShare:       input.AgentShare,
	}, nil
}

// ValidateTerms checks the range, fee and share rules a config must satisfy.
func ValidateTerms(minAmount, maxAmount, commission, agentShare, minimum decimal.Decimal) error {
	fields := pkgerrors.FieldErrors{}
	if minAmount.IsNegative() {
		fields.Add("min_amount", "must be zero or greater")
	}
	if maxAmount.IsNegative() {
		fields.Add("max_amount", "must be zero or greater")
	}
	if minAmount.GreaterThan(maxAmount) {
		fields.Set("max_amount", "must be greater than or equal to min_amount")
	}
	if !minAmount.Equal(minAmount.Round(money.AmountScale)) || !maxAmount.Equal(maxAmount.Round(money.AmountScale)) {
		fields.Add("range", "amounts allow at most two decimal places")
	}
	if commission.LessThan(minimum) {
		fields.Add("commission_amount", "must be at least "+minimum.String())
	}
	if agentShare.IsNegative() || agentShare.GreaterThan(money.Hundred) {
		fields.Add("agent_share", "must be between 0 and 100")
	}
	return fields.Err("invalid commission config")
}

func (s *service) loadOwned(ctx context.Context, repo *ConfigRepository, actor auth.Actor, configID uuid.UUID, lock bool) (*models.CommissionConfig, error) {
	var (
		cfg *models.CommissionConfig
		err error
	)
	if lock {
		cfg, err = repo.FindByIDForUpdate(ctx, configID)
	} else {
		cfg, err = repo.FindByID(ctx, configID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "commission config not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission config")
	}
	if cfg.ManagerID != actor.UserID && !actor.IsSuperuser {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "config belongs to another manager")
	}
	return cfg, nil
}

func (s *service) ensureNoDuplicate(ctx context.Context, repo *ConfigRepository, cfg models.CommissionConfig, excludeID uuid.UUID) error {
	duplicate, err := repo.HasActiveDuplicate(ctx, cfg, excludeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicate config")
	}
	if duplicate {
		return duplicateConfigError(cfg)
	}
	return nil
}

func (s *service) mapWriteError(err error, message string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "an active config already covers this range")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func duplicateConfigError(cfg models.CommissionConfig) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "an active config already covers this range").
		WithDetails(map[string]any{
			"currency":   cfg.Currency,
			"min_amount": cfg.MinAmount.String(),
			"max_amount": cfg.MaxAmount.String(),
		})
}

func (s *service) emitSaved(ctx context.Context, tx *gorm.DB, actor auth.Actor, cfg models.CommissionConfig, created bool) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCommissionConfigSaved,
		AggregateType: enums.AggregateCommissionConfig,
		AggregateID:   cfg.ID,
		Actor:         outbox.ActorOf(&actor),
		Data: payloads.CommissionConfigSavedEvent{
			ConfigID:   cfg.ID,
			ManagerID:  cfg.ManagerID,
			Currency:   cfg.Currency,
			MinAmount:  cfg.MinAmount.String(),
			MaxAmount:  cfg.MaxAmount.String(),
			Active:     cfg.Active,
			Created:    created,
			PreviousID: cfg.PreviousID,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit commission config event")
	}
	return nil
}

// triggerReconcile runs after the config transaction committed. Its failures
// and panics are logged and never reach the caller of the save.
func (s *service) triggerReconcile(ctx context.Context, cfg models.CommissionConfig) {
	if !cfg.Active || !s.autoPromote || s.reconciler == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"config_id": cfg.ID.String(),
		"currency":  string(cfg.Currency),
	})
	defer func() {
		if rec := recover(); rec != nil {
			s.logg.Error(logCtx, "auto promotion panicked", fmt.Errorf("panic: %v", rec))
		}
	}()
	if err := s.reconciler.AutoPromote(ctx, cfg); err != nil {
		s.logg.Error(logCtx, "auto promotion failed", err)
	}
}

func configDetails(cfg models.CommissionConfig) map[string]any {
	return map[string]any{
		"currency":          string(cfg.Currency),
		"min_amount":        cfg.MinAmount.String(),
		"max_amount":        cfg.MaxAmount.String(),
		"commission_amount": cfg.CommissionAmount.String(),
		"agent_share":       cfg.AgentShare.String(),
		"active":            cfg.Active,
	}
}
