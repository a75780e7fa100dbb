package stock

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
	"github.com/angelmondragon/remitflow-backend/pkg/db"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/logger"
	"github.com/angelmondragon/remitflow-backend/pkg/money"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 200
	recentMovementLimit  = 20
	recentRateLimit      = 50
)

// Service is the manager-only cash ledger.
type Service interface {
	ListStocks(ctx context.Context, actor auth.Actor) (*StockOverview, error)
	GetStock(ctx context.Context, actor auth.Actor, stockID uuid.UUID) (*StockDetail, error)
	CreateStock(ctx context.Context, actor auth.Actor, input CreateStockInput) (*StockDTO, error)
	CreateMovement(ctx context.Context, actor auth.Actor, stockID uuid.UUID, input MovementInput) (*MovementResult, error)
	Deposit(ctx context.Context, actor auth.Actor, input DepositInput) (*MovementResult, error)
	ListMovements(ctx context.Context, actor auth.Actor, params MovementListParams) ([]MovementDTO, error)

	ListRates(ctx context.Context, actor auth.Actor, activeOnly bool) ([]RateDTO, error)
	CreateRate(ctx context.Context, actor auth.Actor, input RateInput) (*RateDTO, error)
	UpdateRate(ctx context.Context, actor auth.Actor, rateID uuid.UUID, input RateInput) (*RateDTO, error)
	ToggleRate(ctx context.Context, actor auth.Actor, rateID uuid.UUID) (*RateDTO, error)
	DeleteRate(ctx context.Context, actor auth.Actor, rateID uuid.UUID) error
	RateHistory(ctx context.Context, actor auth.Actor, from, to string) ([]RateDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB     txRunner
	Repo   *Repository
	Audit  audit.Sink
	Logger *logger.Logger
}

type service struct {
	db    txRunner
	repo  *Repository
	audit audit.Sink
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:    params.DB,
		repo:  params.Repo,
		audit: params.Audit,
		logg:  params.Logger,
		now:   time.Now,
	}, nil
}

func requireManager(actor auth.Actor) error {
	if !actor.CanManage() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "stock ledger is restricted to managers")
	}
	return nil
}

func (s *service) ListStocks(ctx context.Context, actor auth.Actor) (*StockOverview, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListStocks(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stocks")
	}
	totals, err := s.repo.TotalsByCurrency(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum stocks")
	}
	overview := &StockOverview{Stocks: make([]StockDTO, 0, len(rows)), Totals: totals}
	for _, row := range rows {
		overview.Stocks = append(overview.Stocks, stockFromModel(row))
	}
	return overview, nil
}

func (s *service) GetStock(ctx context.Context, actor auth.Actor, stockID uuid.UUID) (*StockDetail, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	stock, err := s.repo.FindStock(ctx, stockID)
	if err != nil {
		return nil, notFoundOr(err, "stock not found", "load stock")
	}
	stats, err := s.repo.MovementStats(ctx, stockID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movement stats")
	}
	recent, err := s.repo.ListMovements(ctx, movementListParams{StockID: &stockID, Limit: recentMovementLimit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	detail := &StockDetail{Stock: stockFromModel(*stock), Stats: stats, Recent: make([]MovementDTO, 0, len(recent))}
	for _, m := range recent {
		detail.Recent = append(detail.Recent, movementFromModel(m))
	}
	return detail, nil
}

func (s *service) CreateStock(ctx context.Context, actor auth.Actor, input CreateStockInput) (*StockDTO, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	currency, err := enums.ParseCurrency(input.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	location, err := enums.ParseStockLocation(strings.ToUpper(strings.TrimSpace(input.Location)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location")
	}
	stock := &models.Stock{ID: uuid.New(), Currency: currency, Location: location}
	if input.Amount != nil {
		if input.Amount.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock amount cannot be negative")
		}
		stock.Amount = *input.Amount
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.StockExists(ctx, currency, location)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check stock")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "a stock already exists for this currency and location")
		}
		if err := repo.CreateStock(ctx, stock); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a stock already exists for this currency and location")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock")
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditStockCreated,
			EntityType: "stock",
			EntityID:   stock.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details: map[string]any{
				"currency": string(currency),
				"location": string(location),
				"amount":   stock.Amount.String(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := stockFromModel(*stock)
	return &dto, nil
}

func (s *service) Deposit(ctx context.Context, actor auth.Actor, input DepositInput) (*MovementResult, error) {
	return s.CreateMovement(ctx, actor, input.StockID, MovementInput{
		Type:        string(enums.MovementTypeIn),
		Amount:      input.Amount,
		Description: input.Description,
	})
}

// CreateMovement locks the source (and destination) stock, checks the
// balance, resolves the conversion rate and writes balances and the movement
// row in one transaction.
func (s *service) CreateMovement(ctx context.Context, actor auth.Actor, stockID uuid.UUID, input MovementInput) (*MovementResult, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	movementType, err := enums.ParseMovementType(strings.ToUpper(strings.TrimSpace(input.Type)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type")
	}
	if err := validateMovement(stockID, movementType, input); err != nil {
		return nil, err
	}

	var result *MovementResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ids := []uuid.UUID{stockID}
		if input.DestinationStockID != nil {
			ids = append(ids, *input.DestinationStockID)
		}
		locked, err := repo.FindStocksForUpdate(ctx, ids...)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stocks")
		}
		source, ok := locked[stockID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock not found")
		}
		var destination *models.Stock
		if input.DestinationStockID != nil {
			if destination, ok = locked[*input.DestinationStockID]; !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "destination stock not found")
			}
		}

		oldBalance := source.Amount
		switch movementType {
		case enums.MovementTypeIn:
			source.Amount = source.Amount.Add(input.Amount)
		case enums.MovementTypeOut:
			if input.Amount.GreaterThan(source.Amount) {
				return pkgerrors.New(pkgerrors.CodeValidation, "insufficient balance for this movement").
					WithDetails(map[string]any{"balance": source.Amount.String()})
			}
			source.Amount = source.Amount.Sub(input.Amount)
		}

		movement := &models.StockMovement{
			ID:                 uuid.New(),
			StockID:            source.ID,
			MovementType:       movementType,
			Amount:             input.Amount,
			DestinationStockID: input.DestinationStockID,
			Description:        trimmedOrNil(input.Description),
			CreatedByID:        actor.UserID,
		}
		if destination != nil {
			rate, err := s.resolveRate(ctx, repo, source.Currency, destination.Currency, input.CustomRate)
			if err != nil {
				return err
			}
			converted := money.Round4(input.Amount.Mul(rate))
			destination.Amount = destination.Amount.Add(converted)
			movement.ExchangeRate = decimal.NewNullDecimal(rate)
			movement.ConvertedAmount = decimal.NewNullDecimal(converted)
			if err := repo.SetStockAmount(ctx, destination.ID, destination.Amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit destination stock")
			}
		}
		if err := repo.SetStockAmount(ctx, source.ID, source.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock balance")
		}
		if err := repo.CreateMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record movement")
		}

		details := map[string]any{
			"stock_id":      source.ID.String(),
			"currency":      string(source.Currency),
			"location":      string(source.Location),
			"movement_type": string(movementType),
			"amount":        input.Amount.String(),
			"old_balance":   oldBalance.String(),
			"new_balance":   source.Amount.String(),
		}
		if destination != nil {
			details["destination_stock_id"] = destination.ID.String()
			details["destination_currency"] = string(destination.Currency)
			details["exchange_rate"] = movement.ExchangeRate.Decimal.String()
			details["converted_amount"] = movement.ConvertedAmount.Decimal.String()
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditStockMovementCreated,
			EntityType: "stock_movement",
			EntityID:   movement.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details:    details,
		})

		result = &MovementResult{Movement: movementFromModel(*movement), Source: stockFromModel(*source)}
		if destination != nil {
			dest := stockFromModel(*destination)
			result.Destination = &dest
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stock_id":      stockID.String(),
		"movement_type": string(movementType),
	})
	s.logg.Info(logCtx, "stock movement applied")
	return result, nil
}

func validateMovement(stockID uuid.UUID, movementType enums.MovementType, input MovementInput) error {
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement amount must be positive")
	}
	if !input.Amount.Equal(input.Amount.Round(money.AmountScale)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement amount allows at most two decimal places")
	}
	if input.DestinationStockID == nil {
		return nil
	}
	if movementType != enums.MovementTypeOut {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfers between stocks must be OUT movements")
	}
	if *input.DestinationStockID == stockID {
		return pkgerrors.New(pkgerrors.CodeValidation, "destination must differ from the source stock")
	}
	if input.CustomRate != nil {
		if !input.CustomRate.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "exchange rate must be positive")
		}
		if !input.CustomRate.Equal(money.Round4(*input.CustomRate)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "exchange rate allows at most four decimal places")
		}
	}
	return nil
}

// resolveRate: same currency converts at 1, then the custom rate, then the
// latest active stored rate for the pair.
func (s *service) resolveRate(ctx context.Context, repo *Repository, from, to enums.Currency, custom *decimal.Decimal) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if custom != nil {
		return *custom, nil
	}
	stored, err := repo.LatestActiveRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup exchange rate")
	}
	if stored == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "an exchange rate is required when currencies differ").
			WithDetails(map[string]any{"from_currency": from, "to_currency": to})
	}
	return stored.Rate, nil
}

func (s *service) ListMovements(ctx context.Context, actor auth.Actor, params MovementListParams) ([]MovementDTO, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	query := movementListParams{StockID: params.StockID, Limit: params.Limit}
	if query.Limit <= 0 {
		query.Limit = defaultMovementLimit
	}
	if query.Limit > maxMovementLimit {
		query.Limit = maxMovementLimit
	}
	if raw := strings.TrimSpace(params.Type); raw != "" {
		movementType, err := enums.ParseMovementType(strings.ToUpper(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type")
		}
		query.Type = &movementType
	}
	rows, err := s.repo.ListMovements(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	out := make([]MovementDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, movementFromModel(row))
	}
	return out, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
