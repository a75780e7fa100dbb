package transfers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/internal/audit"
	"github.com/angelmondragon/remitflow-backend/internal/commissions"
	"github.com/angelmondragon/remitflow-backend/internal/notifications"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
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

const (
	creationState  = "NEW"
	maxPhoneLength = 20
)

// Service runs the transfer state machine. Every transition locks the row,
// applies a compare-and-set on the status and records audit and outbox rows
// in the same transaction.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateTransferInput) (*TransferDTO, error)
	// Promote moves a DRAFT to PENDING. A nil actor is the system. When cfg is
	// nil the oldest active matching config is used.
	Promote(ctx context.Context, actor *auth.Actor, transferID uuid.UUID, cfg *models.CommissionConfig) (*TransferDTO, error)
	// PromoteInBatch is Promote for reconcile runs: the agent hears about it
	// through the run's grouped notification instead of a per-transfer one.
	PromoteInBatch(ctx context.Context, actor *auth.Actor, transferID uuid.UUID, cfg *models.CommissionConfig) (*TransferDTO, error)
	Validate(ctx context.Context, actor auth.Actor, transferID uuid.UUID, comment string) (*TransferDTO, error)
	Reject(ctx context.Context, actor auth.Actor, transferID uuid.UUID, comment string) (*TransferDTO, error)
	Execute(ctx context.Context, actor auth.Actor, transferID uuid.UUID, comment string) (*TransferDTO, error)
	Get(ctx context.Context, actor auth.Actor, transferID uuid.UUID) (*TransferDTO, error)
	List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error)
	ListPending(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	NotifyManagersOfDraft(ctx context.Context, draft notifications.DraftNotice) error
	NotifyAgentOfManualPromotion(ctx context.Context, transfer notifications.PromotedTransfer, promoterName string) error
	NotifyUser(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, data map[string]any) error
}

type transitionRecorder interface {
	IncTransition(from, to string)
}

// ServiceParams bundles the transfer service dependencies.
type ServiceParams struct {
	DB                txRunner
	Repo              *Repository
	Configs           *commissions.ConfigRepository
	Distributions     *commissions.DistributionRepository
	Audit             audit.Sink
	Outbox            outbox.Emitter
	Notifier          notifier
	Metrics           transitionRecorder
	ReferenceAttempts int
	Logger            *logger.Logger
}

type service struct {
	db                txRunner
	repo              *Repository
	configs           *commissions.ConfigRepository
	distributions     *commissions.DistributionRepository
	audit             audit.Sink
	outbox            outbox.Emitter
	notifier          notifier
	metrics           transitionRecorder
	referenceAttempts int
	logg              *logger.Logger
	now               func() time.Time
}

// NewService wires the transfer state machine.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("transfers repository required")
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
	attempts := params.ReferenceAttempts
	if attempts <= 0 {
		attempts = DefaultReferenceAttempts
	}
	return &service{
		db:                params.DB,
		repo:              params.Repo,
		configs:           params.Configs,
		distributions:     params.Distributions,
		audit:             params.Audit,
		outbox:            params.Outbox,
		notifier:          params.Notifier,
		metrics:           params.Metrics,
		referenceAttempts: attempts,
		logg:              params.Logger,
		now:               time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateTransferInput) (*TransferDTO, error) {
	transfer, err := buildTransfer(actor, input)
	if err != nil {
		return nil, err
	}

	var dist *models.CommissionDistribution
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reference, err := GenerateReference(ctx, repo, s.referenceAttempts)
		if err != nil {
			return err
		}
		transfer.ReferenceID = reference

		cfg, err := s.configs.WithTx(tx).FindActiveMatching(ctx, transfer.SentCurrency, transfer.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup commission config")
		}
		transfer.Status = enums.TransferStatusDraft
		if cfg != nil {
			transfer.Status = enums.TransferStatusPending
		}
		if err := repo.Create(ctx, transfer); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reference collision, retry the request")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transfer")
		}

		details := map[string]any{
			"reference_id": transfer.ReferenceID,
			"status":       string(transfer.Status),
			"amount":       transfer.Amount.String(),
			"currency":     string(transfer.SentCurrency),
		}
		if cfg != nil {
			created, err := s.createDistribution(ctx, tx, *transfer, *cfg, actor.IsManager())
			if err != nil {
				return err
			}
			dist = created
			details["config_id"] = cfg.ID.String()
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditTransferCreated,
			EntityType: "transfer",
			EntityID:   transfer.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details:    details,
		})
		return s.emitStatusChanged(ctx, tx, &actor, *transfer, "", "")
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(creationState, transfer.Status)
	logCtx := s.logg.WithTransfer(ctx, transfer.ID.String(), transfer.ReferenceID)
	s.logg.Info(logCtx, "transfer created")

	if transfer.Status == enums.TransferStatusDraft && s.notifier != nil {
		notice := notifications.DraftNotice{
			TransferID: transfer.ID,
			Reference:  transfer.ReferenceID,
			Amount:     transfer.Amount,
			Currency:   transfer.SentCurrency,
			AgentID:    transfer.AgentID,
			AgentName:  actor.Username,
		}
		if err := s.notifier.NotifyManagersOfDraft(ctx, notice); err != nil {
			s.logg.Error(logCtx, "draft notification failed", err)
		}
	}
	return FromModel(transfer, dist), nil
}

func (s *service) Promote(ctx context.Context, actor *auth.Actor, transferID uuid.UUID, cfg *models.CommissionConfig) (*TransferDTO, error) {
	return s.promote(ctx, actor, transferID, cfg, true)
}

func (s *service) PromoteInBatch(ctx context.Context, actor *auth.Actor, transferID uuid.UUID, cfg *models.CommissionConfig) (*TransferDTO, error) {
	return s.promote(ctx, actor, transferID, cfg, false)
}

func (s *service) promote(ctx context.Context, actor *auth.Actor, transferID uuid.UUID, cfg *models.CommissionConfig, notifyAgent bool) (*TransferDTO, error) {
	var (
		result *models.Transfer
		dist   *models.CommissionDistribution
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		transfer, err := s.lockTransfer(ctx, repo, transferID)
		if err != nil {
			return err
		}
		if actor != nil && !actor.CanManage() && actor.UserID != transfer.AgentID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning agent or a manager can promote this transfer")
		}
		if transfer.Status != enums.TransferStatusDraft {
			return stateConflict(transfer, enums.TransferStatusPending)
		}

		matched, err := s.resolvePromotionConfig(ctx, tx, *transfer, cfg)
		if err != nil {
			return err
		}
		if err := s.compareAndSet(ctx, repo, transfer, enums.TransferStatusPending, nil); err != nil {
			return err
		}

		agent, err := repo.FindUser(ctx, transfer.AgentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer agent")
		}
		dist, err = s.ensureDistribution(ctx, tx, *transfer, *matched, agent.IsManager())
		if err != nil {
			return err
		}

		action := enums.AuditTransferPromoted
		var actorID *uuid.UUID
		if actor == nil {
			action = enums.AuditAutoPromoted
		} else {
			actorID = audit.Actor(actor.UserID)
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     action,
			EntityType: "transfer",
			EntityID:   transfer.ID,
			ActorID:    actorID,
			Details: map[string]any{
				"reference_id": transfer.ReferenceID,
				"config_id":    matched.ID.String(),
				"from":         string(enums.TransferStatusDraft),
				"to":           string(enums.TransferStatusPending),
			},
		})
		result = transfer
		return s.emitStatusChanged(ctx, tx, actor, *transfer, enums.TransferStatusDraft, "")
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(string(enums.TransferStatusDraft), enums.TransferStatusPending)
	logCtx := s.logg.WithTransfer(ctx, result.ID.String(), result.ReferenceID)
	s.logg.Info(logCtx, "transfer promoted")

	if notifyAgent && actor != nil && actor.UserID != result.AgentID && s.notifier != nil {
		summary := notifications.PromotedTransfer{
			TransferID:  result.ID,
			Reference:   result.ReferenceID,
			Amount:      result.Amount,
			Currency:    result.SentCurrency,
			Beneficiary: result.BeneficiaryName,
			AgentID:     result.AgentID,
		}
		if err := s.notifier.NotifyAgentOfManualPromotion(ctx, summary, actor.Username); err != nil {
			s.logg.Error(logCtx, "manual promotion notification failed", err)
		}
	}
	return FromModel(result, dist), nil
}

func (s *service) Validate(ctx context.Context, actor auth.Actor, transferID uuid.UUID, comment string) (*TransferDTO, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can validate transfers")
	}
	var (
		result *models.Transfer
		dist   *models.CommissionDistribution
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		transfer, err := s.lockTransfer(ctx, repo, transferID)
		if err != nil {
			return err
		}
		if transfer.Status != enums.TransferStatusPending {
			return stateConflict(transfer, enums.TransferStatusValidated)
		}

		dist, err = s.distributions.WithTx(tx).FindByTransfer(ctx, transfer.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load distribution")
		}
		if dist == nil {
			cfg, err := s.validationConfig(ctx, tx, actor, *transfer)
			if err != nil {
				return err
			}
			agent, err := repo.FindUser(ctx, transfer.AgentID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer agent")
			}
			if dist, err = s.createDistribution(ctx, tx, *transfer, *cfg, agent.IsManager()); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		validator := actor.UserID
		note := optionalComment(comment)
		updates := map[string]any{
			"validated_by_id":    validator,
			"validated_at":       now,
			"validation_comment": note,
		}
		if err := s.compareAndSet(ctx, repo, transfer, enums.TransferStatusValidated, updates); err != nil {
			return err
		}
		transfer.ValidatedByID = &validator
		transfer.ValidatedAt = &now
		transfer.ValidationComment = note

		s.recordTransitionAudit(ctx, tx, actor, *transfer, enums.AuditTransferValidated, enums.TransferStatusPending, comment)
		result = transfer
		return s.emitStatusChanged(ctx, tx, &actor, *transfer, enums.TransferStatusPending, comment)
	})
	if err != nil {
		return nil, err
	}
	s.afterManagerTransition(ctx, result, enums.TransferStatusPending, comment)
	return FromModel(result, dist), nil
}

func (s *service) Reject(ctx context.Context, actor auth.Actor, transferID uuid.UUID, comment string) (*TransferDTO, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can reject transfers")
	}
	var result *models.Transfer
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		transfer, err := s.lockTransfer(ctx, repo, transferID)
		if err != nil {
			return err
		}
		if transfer.Status != enums.TransferStatusPending {
			return stateConflict(transfer, enums.TransferStatusCanceled)
		}

		now := s.now().UTC()
		validator := actor.UserID
		note := optionalComment(comment)
		updates := map[string]any{
			"validated_by_id":    validator,
			"validated_at":       now,
			"validation_comment": note,
		}
		if err := s.compareAndSet(ctx, repo, transfer, enums.TransferStatusCanceled, updates); err != nil {
			return err
		}
		transfer.ValidatedByID = &validator
		transfer.ValidatedAt = &now
		transfer.ValidationComment = note

		s.recordTransitionAudit(ctx, tx, actor, *transfer, enums.AuditTransferRejected, enums.TransferStatusPending, comment)
		result = transfer
		return s.emitStatusChanged(ctx, tx, &actor, *transfer, enums.TransferStatusPending, comment)
	})
	if err != nil {
		return nil, err
	}
	s.afterManagerTransition(ctx, result, enums.TransferStatusPending, comment)
	return s.withDistribution(ctx, result)
}

func (s *service) Execute(ctx context.Context, actor auth.Actor, transferID uuid.UUID, comment string) (*TransferDTO, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can execute transfers")
	}
	var result *models.Transfer
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		transfer, err := s.lockTransfer(ctx, repo, transferID)
		if err != nil {
			return err
		}
		if transfer.Status != enums.TransferStatusValidated {
			return stateConflict(transfer, enums.TransferStatusCompleted)
		}

		now := s.now().UTC()
		executor := actor.UserID
		note := optionalComment(comment)
		updates := map[string]any{
			"executed_by_id":    executor,
			"executed_at":       now,
			"execution_comment": note,
		}
		if err := s.compareAndSet(ctx, repo, transfer, enums.TransferStatusCompleted, updates); err != nil {
			return err
		}
		transfer.ExecutedByID = &executor
		transfer.ExecutedAt = &now
		transfer.ExecutionComment = note

		s.recordTransitionAudit(ctx, tx, actor, *transfer, enums.AuditTransferExecuted, enums.TransferStatusValidated, comment)
		result = transfer
		return s.emitStatusChanged(ctx, tx, &actor, *transfer, enums.TransferStatusValidated, comment)
	})
	if err != nil {
		return nil, err
	}
	s.afterManagerTransition(ctx, result, enums.TransferStatusValidated, comment)
	return s.withDistribution(ctx, result)
}

func (s *service) Get(ctx context.Context, actor auth.Actor, transferID uuid.UUID) (*TransferDTO, error) {
	transfer, err := s.repo.FindByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer")
	}
	if !actor.CanManage() && transfer.AgentID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transfer belongs to another agent")
	}
	return s.withDistribution(ctx, transfer)
}

// List scopes agents to their own transfers; managers see every transfer.
func (s *service) List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error) {
	query := listParams{Limit: params.Limit, Search: strings.TrimSpace(params.Search)}
	if !actor.CanManage() {
		agentID := actor.UserID
		query.AgentID = &agentID
	}
	if raw := strings.TrimSpace(params.Status); raw != "" {
		status, err := enums.ParseTransferStatus(strings.ToUpper(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		query.Statuses = []enums.TransferStatus{status}
	}
	return s.list(ctx, query, params)
}

func (s *service) ListPending(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error) {
	if !actor.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers can review pending transfers")
	}
	query := listParams{
		Limit:    params.Limit,
		Search:   strings.TrimSpace(params.Search),
		Statuses: []enums.TransferStatus{enums.TransferStatusPending},
	}
	return s.list(ctx, query, params)
}

func (s *service) list(ctx context.Context, query listParams, params ListParams) (*ListResult, error) {
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
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transfers")
	}
	result := &ListResult{Items: make([]*TransferDTO, 0, len(rows))}
	for i := range rows {
		result.Items = append(result.Items, FromModel(&rows[i], nil))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func buildTransfer(actor auth.Actor, input CreateTransferInput) (*models.Transfer, error) {
	fields := pkgerrors.FieldErrors{}
	name := strings.TrimSpace(input.BeneficiaryName)
	if name == "" {
		fields.Add("beneficiary_name", "is required")
	}
	phone := strings.ReplaceAll(strings.TrimSpace(input.BeneficiaryPhone), " ", "")
	switch {
	case !strings.HasPrefix(phone, "+") || len(phone) < 2:
		fields.Add("beneficiary_phone", "must start with + followed by the international dialing code")
	case len(phone) > maxPhoneLength:
		fields.Add("beneficiary_phone", fmt.Sprintf("must be at most %d characters", maxPhoneLength))
	}
	method, err := enums.ParseWithdrawalMethod(strings.ToUpper(strings.TrimSpace(input.WithdrawalMethod)))
	if err != nil {
		fields.Add("withdrawal_method", err.Error())
	}
	if !input.Amount.IsPositive() {
		fields.Add("amount", "must be greater than zero")
	} else if !input.Amount.Equal(input.Amount.Round(money.AmountScale)) {
		fields.Add("amount", "allows at most two decimal places")
	}
	sent, err := enums.ParseCurrency(input.SentCurrency)
	if err != nil {
		fields.Add("sent_currency", err.Error())
	}
	received, err := enums.ParseCurrency(input.ReceivedCurrency)
	if err != nil {
		fields.Add("received_currency", err.Error())
	}
	if err := fields.Err("invalid transfer"); err != nil {
		return nil, err
	}
	return &models.Transfer{
		ID:               uuid.New(),
		AgentID:          actor.UserID,
		BeneficiaryName:  name,
		BeneficiaryPhone: phone,
		WithdrawalMethod: method,
		Amount:           input.Amount,
		SentCurrency:     sent,
		ReceivedCurrency: received,
		Comment:          input.Comment,
	}, nil
}

func (s *service) lockTransfer(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Transfer, error) {
	transfer, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfer")
	}
	return transfer, nil
}

func (s *service) compareAndSet(ctx context.Context, repo *Repository, transfer *models.Transfer, to enums.TransferStatus, extra map[string]any) error {
	updates := map[string]any{"status": to}
	for key, value := range extra {
		updates[key] = value
	}
	affected, err := repo.CompareAndSetStatus(ctx, transfer.ID, transfer.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transfer status")
	}
	if affected == 0 {
		if current, err := repo.FindByID(ctx, transfer.ID); err == nil {
			return stateConflict(current, to)
		}
		return stateConflict(transfer, to)
	}
	transfer.Status = to
	return nil
}

func (s *service) resolvePromotionConfig(ctx context.Context, tx *gorm.DB, transfer models.Transfer, requested *models.CommissionConfig) (*models.CommissionConfig, error) {
	configs := s.configs.WithTx(tx)
	if requested != nil {
		cfg, err := configs.FindByID(ctx, requested.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission config no longer exists")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission config")
		}
		if !cfg.AppliesTo(transfer.SentCurrency, transfer.Amount) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission config does not cover this transfer").
				WithDetails(map[string]any{"config_id": cfg.ID})
		}
		return cfg, nil
	}
	cfg, err := configs.FindActiveMatching(ctx, transfer.SentCurrency, transfer.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup commission config")
	}
	if cfg == nil {
		return nil, noConfigError(transfer)
	}
	return cfg, nil
}

// validationConfig prefers the validating manager's own config and falls back
// to any active config covering the transfer.
func (s *service) validationConfig(ctx context.Context, tx *gorm.DB, actor auth.Actor, transfer models.Transfer) (*models.CommissionConfig, error) {
	configs := s.configs.WithTx(tx)
	cfg, err := configs.FindActiveMatchingForManager(ctx, actor.UserID, transfer.SentCurrency, transfer.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup commission config")
	}
	if cfg != nil {
		return cfg, nil
	}
	cfg, err = configs.FindActiveMatching(ctx, transfer.SentCurrency, transfer.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup commission config")
	}
	if cfg == nil {
		return nil, noConfigError(transfer)
	}
	return cfg, nil
}

// ensureDistribution returns the existing distribution or creates one.
func (s *service) ensureDistribution(ctx context.Context, tx *gorm.DB, transfer models.Transfer, cfg models.CommissionConfig, agentIsManager bool) (*models.CommissionDistribution, error) {
	existing, err := s.distributions.WithTx(tx).FindByTransfer(ctx, transfer.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load distribution")
	}
	if existing != nil {
		return existing, nil
	}
	return s.createDistribution(ctx, tx, transfer, cfg, agentIsManager)
}

func (s *service) createDistribution(ctx context.Context, tx *gorm.DB, transfer models.Transfer, cfg models.CommissionConfig, agentIsManager bool) (*models.CommissionDistribution, error) {
	dist := commissions.NewDistribution(transfer, cfg, agentIsManager)
	if err := s.distributions.WithTx(tx).Create(ctx, &dist); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "commission already distributed for this transfer").
				WithDetails(map[string]any{"current_status": transfer.Status})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create distribution")
	}
	return &dist, nil
}

func (s *service) recordTransitionAudit(ctx context.Context, tx *gorm.DB, actor auth.Actor, transfer models.Transfer, action enums.AuditAction, from enums.TransferStatus, comment string) {
	details := map[string]any{
		"reference_id": transfer.ReferenceID,
		"from":         string(from),
		"to":           string(transfer.Status),
	}
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		details["comment"] = trimmed
	}
	s.audit.Record(ctx, tx, audit.Event{
		Action:     action,
		EntityType: "transfer",
		EntityID:   transfer.ID,
		ActorID:    audit.Actor(actor.UserID),
		Details:    details,
	})
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, actor *auth.Actor, transfer models.Transfer, from enums.TransferStatus, comment string) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTransferStatusChanged,
		AggregateType: enums.AggregateTransfer,
		AggregateID:   transfer.ID,
		Actor:         outbox.ActorOf(actor),
		Data: payloads.TransferStatusChangedEvent{
			TransferID:  transfer.ID,
			ReferenceID: transfer.ReferenceID,
			AgentID:     transfer.AgentID,
			From:        from,
			To:          transfer.Status,
			Amount:      transfer.Amount.StringFixed(money.AmountScale),
			Currency:    transfer.SentCurrency,
			Comment:     strings.TrimSpace(comment),
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit transfer event")
	}
	return nil
}

func (s *service) afterManagerTransition(ctx context.Context, transfer *models.Transfer, from enums.TransferStatus, comment string) {
	s.recordTransition(string(from), transfer.Status)
	logCtx := s.logg.WithTransfer(ctx, transfer.ID.String(), transfer.ReferenceID)
	s.logg.Info(s.logg.WithField(logCtx, "status", string(transfer.Status)), "transfer transitioned")
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyUser(ctx, transfer.AgentID, enums.NotificationTransferUpdate, map[string]any{
		"transfer_id": transfer.ID.String(),
		"reference":   transfer.ReferenceID,
		"status":      string(transfer.Status),
		"comment":     strings.TrimSpace(comment),
	})
	if err != nil {
		s.logg.Error(logCtx, "transfer update notification failed", err)
	}
}

func (s *service) withDistribution(ctx context.Context, transfer *models.Transfer) (*TransferDTO, error) {
	dist, err := s.distributions.FindByTransfer(ctx, transfer.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load distribution")
	}
	return FromModel(transfer, dist), nil
}

func (s *service) recordTransition(from string, to enums.TransferStatus) {
	if s.metrics != nil {
		s.metrics.IncTransition(from, string(to))
	}
}

func stateConflict(transfer *models.Transfer, target enums.TransferStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("transfer %s is %s and cannot move to %s", transfer.ReferenceID, transfer.Status, target)).
		WithDetails(map[string]any{
			"current_status": transfer.Status,
			"reference_id":   transfer.ReferenceID,
		})
}

func noConfigError(transfer models.Transfer) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "no active commission config covers this transfer").
		WithDetails(map[string]any{
			"currency": transfer.SentCurrency,
			"amount":   transfer.Amount.String(),
		})
}

func optionalComment(comment string) *string {
	trimmed := strings.TrimSpace(comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
