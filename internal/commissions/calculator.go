package commissions

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/money"
)

// Breakdown is the split of one fixed commission between agent and manager.
type Breakdown struct {
	ConfigID      uuid.UUID       `json:"config_id"`
	Total         decimal.Decimal `json:"total_commission"`
	AgentAmount   decimal.Decimal `json:"agent_amount"`
	ManagerAmount decimal.Decimal `json:"manager_amount"`
	AgentShare    decimal.Decimal `json:"agent_share"`
	ManagerShare  decimal.Decimal `json:"manager_share"`
}

// Calculate splits config.CommissionAmount. Managers acting as agents earn nothing;
// the manager keeps the whole fee. All values are rounded half-up to four places
// and the manager amount absorbs the rounding residue.
func Calculate(config models.CommissionConfig, agentIsManager bool) Breakdown {
	total := money.Round4(config.CommissionAmount)
	agent := decimal.Zero
	if !agentIsManager {
		agent = money.Percent(total, config.AgentShare)
	}
	return Breakdown{
		ConfigID:      config.ID,
		Total:         total,
		AgentAmount:   agent,
		ManagerAmount: money.Round4(total.Sub(agent)),
		AgentShare:    config.AgentShare,
		ManagerShare:  config.ManagerShare(),
	}
}

// NewDistribution builds the distribution row for transfer under config.
func NewDistribution(transfer models.Transfer, config models.CommissionConfig, agentIsManager bool) models.CommissionDistribution {
	breakdown := Calculate(config, agentIsManager)
	configID := config.ID
	return models.CommissionDistribution{
		ID:              uuid.New(),
		TransferID:      transfer.ID,
		AgentID:         transfer.AgentID,
		ConfigID:        &configID,
		TotalCommission: breakdown.Total,
		AgentAmount:     breakdown.AgentAmount,
		ManagerAmount:   breakdown.ManagerAmount,
	}
}
