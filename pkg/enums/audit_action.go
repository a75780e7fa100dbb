package enums

// AuditAction names the business event an audit entry records.
type AuditAction string

const (
	AuditTransferCreated         AuditAction = "transfer_created"
	AuditTransferPromoted        AuditAction = "transfer_promoted"
	AuditAutoPromoted            AuditAction = "auto_promoted"
	AuditAutoPromotionBatch      AuditAction = "auto_promotion_batch"
	AuditAutoPromotionFailed     AuditAction = "auto_promotion_failed"
	AuditManualBulkPromotion     AuditAction = "manual_bulk_promotion"
	AuditTransferValidated       AuditAction = "transfer_validated"
	AuditTransferRejected        AuditAction = "transfer_rejected"
	AuditTransferExecuted        AuditAction = "transfer_executed"
	AuditCommissionConfigCreated AuditAction = "commission_config_created"
	AuditCommissionConfigToggled AuditAction = "commission_config_toggled"
	AuditCommissionConfigUpdated AuditAction = "commission_config_updated"
	AuditStockCreated            AuditAction = "stock_created"
	AuditStockMovementCreated    AuditAction = "stock_movement_created"
	AuditExchangeRateCreated     AuditAction = "exchange_rate_created"
	AuditExchangeRateUpdated     AuditAction = "exchange_rate_updated"
	AuditExchangeRateToggled     AuditAction = "exchange_rate_toggled"
	AuditExchangeRateDeleted     AuditAction = "exchange_rate_deleted"
	AuditUserCreated             AuditAction = "user_created"
	AuditUserToggled             AuditAction = "user_toggled"
	AuditUserLogin               AuditAction = "user_login"
	AuditUserLogout              AuditAction = "user_logout"
)

var validAuditActions = []AuditAction{
	AuditTransferCreated,
	AuditTransferPromoted,
	AuditAutoPromoted,
	AuditAutoPromotionBatch,
	AuditAutoPromotionFailed,
	AuditManualBulkPromotion,
	AuditTransferValidated,
	AuditTransferRejected,
	AuditTransferExecuted,
	AuditCommissionConfigCreated,
	AuditCommissionConfigToggled,
	AuditCommissionConfigUpdated,
	AuditStockCreated,
	AuditStockMovementCreated,
	AuditExchangeRateCreated,
	AuditExchangeRateUpdated,
	AuditExchangeRateToggled,
	AuditExchangeRateDeleted,
	AuditUserCreated,
	AuditUserToggled,
	AuditUserLogin,
	AuditUserLogout,
}

func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}
