package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/remitflow-backend/internal/audit"
	"github.com/angelmondragon/remitflow-backend/pkg/auth"
	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
	"github.com/angelmondragon/remitflow-backend/pkg/money"
)

func (s *service) ListRates(ctx context.Context, actor auth.Actor, activeOnly bool) ([]RateDTO, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListRates(ctx, activeOnly, recentRateLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list exchange rates")
	}
	return ratesFromModels(rows), nil
}

// CreateRate inserts a new active rate and retires the previous active rate of
// the pair. Old rows stay for history.
func (s *service) CreateRate(ctx context.Context, actor auth.Actor, input RateInput) (*RateDTO, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	rate, err := buildRate(actor, input)
	if err != nil {
		return nil, err
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		retired, err := s.replaceActive(ctx, tx, rate)
		if err != nil {
			return err
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditExchangeRateCreated,
			EntityType: "exchange_rate",
			EntityID:   rate.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details: map[string]any{
				"from_currency": string(rate.FromCurrency),
				"to_currency":   string(rate.ToCurrency),
				"rate":          rate.Rate.String(),
				"retired":       retired,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := rateFromModel(*rate)
	return &dto, nil
}

// UpdateRate never edits a row in place: the replacement is inserted as the
// new active rate of its pair.
func (s *service) UpdateRate(ctx context.Context, actor auth.Actor, rateID uuid.UUID, input RateInput) (*RateDTO, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	replacement, err := buildRate(actor, input)
	if err != nil {
		return nil, err
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		previous, err := s.repo.WithTx(tx).FindRateForUpdate(ctx, rateID)
		if err != nil {
			return notFoundOr(err, "exchange rate not found", "load exchange rate")
		}
		if _, err := s.replaceActive(ctx, tx, replacement); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).SetRateActive(ctx, previous.ID, false); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire exchange rate")
		}
		previousRate := previous.Rate.String()
		if previous.Rate.Equal(replacement.Rate) {
			previousRate = "unchanged"
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditExchangeRateUpdated,
			EntityType: "exchange_rate",
			EntityID:   replacement.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details: map[string]any{
				"from_currency": string(replacement.FromCurrency),
				"to_currency":   string(replacement.ToCurrency),
				"new_rate":      replacement.Rate.String(),
				"previous_rate": previousRate,
				"previous_id":   previous.ID.String(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := rateFromModel(*replacement)
	return &dto, nil
}

// ToggleRate flips the active flag. Activating a rate retires the other active
// rates of its pair.
func (s *service) ToggleRate(ctx context.Context, actor auth.Actor, rateID uuid.UUID) (*RateDTO, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	var toggled *models.ExchangeRate
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rate, err := repo.FindRateForUpdate(ctx, rateID)
		if err != nil {
			return notFoundOr(err, "exchange rate not found", "load exchange rate")
		}
		rate.Active = !rate.Active
		if rate.Active {
			if _, err := repo.DeactivatePair(ctx, rate.FromCurrency, rate.ToCurrency, rate.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire exchange rates")
			}
		}
		if err := repo.SetRateActive(ctx, rate.ID, rate.Active); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle exchange rate")
		}
		status := "inactive"
		if rate.Active {
			status = "active"
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditExchangeRateToggled,
			EntityType: "exchange_rate",
			EntityID:   rate.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details: map[string]any{
				"from_currency": string(rate.FromCurrency),
				"to_currency":   string(rate.ToCurrency),
				"new_status":    status,
			},
		})
		toggled = rate
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := rateFromModel(*toggled)
	return &dto, nil
}

func (s *service) DeleteRate(ctx context.Context, actor auth.Actor, rateID uuid.UUID) error {
	if !actor.IsSuperuser {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only superusers can delete exchange rates")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rate, err := repo.FindRateForUpdate(ctx, rateID)
		if err != nil {
			return notFoundOr(err, "exchange rate not found", "load exchange rate")
		}
		if err := repo.DeleteRate(ctx, rate.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete exchange rate")
		}
		s.audit.Record(ctx, tx, audit.Event{
			Action:     enums.AuditExchangeRateDeleted,
			EntityType: "exchange_rate",
			EntityID:   rate.ID,
			ActorID:    audit.Actor(actor.UserID),
			Details: map[string]any{
				"from_currency": string(rate.FromCurrency),
				"to_currency":   string(rate.ToCurrency),
				"rate":          rate.Rate.String(),
			},
		})
		return nil
	})
}

func (s *service) RateHistory(ctx context.Context, actor auth.Actor, from, to string) ([]RateDTO, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	fromCurrency, err := enums.ParseCurrency(from)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from currency")
	}
	toCurrency, err := enums.ParseCurrency(to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to currency")
	}
	rows, err := s.repo.RateHistory(ctx, fromCurrency, toCurrency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rate history")
	}
	return ratesFromModels(rows), nil
}

func (s *service) replaceActive(ctx context.Context, tx *gorm.DB, rate *models.ExchangeRate) (int64, error) {
	repo := s.repo.WithTx(tx)
	if err := repo.CreateRate(ctx, rate); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create exchange rate")
	}
	retired, err := repo.DeactivatePair(ctx, rate.FromCurrency, rate.ToCurrency, rate.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire exchange rates")
	}
	return retired, nil
}

func buildRate(actor auth.Actor, input RateInput) (*models.ExchangeRate, error) {
	fields := pkgerrors.FieldErrors{}
	from, err := enums.ParseCurrency(input.FromCurrency)
	if err != nil {
		fields.Add("from_currency", err.Error())
	}
	to, err := enums.ParseCurrency(input.ToCurrency)
	if err != nil {
		fields.Add("to_currency", err.Error())
	}
	if from != "" && from == to {
		fields.Set("to_currency", "must differ from the source currency")
	}
	if !input.Rate.IsPositive() {
		fields.Add("rate", "must be positive")
	} else if !input.Rate.Equal(money.Round4(input.Rate)) {
		fields.Add("rate", "allows at most four decimal places")
	}
	if err := fields.Err("invalid exchange rate"); err != nil {
		return nil, err
	}
	return &models.ExchangeRate{
		ID:           uuid.New(),
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         input.Rate,
		Active:       true,
		CreatedByID:  actor.UserID,
	}, nil
}
