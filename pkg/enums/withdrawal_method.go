package enums

import "fmt"

// WithdrawalMethod describes how the beneficiary collects the funds.
type WithdrawalMethod string

const (
	WithdrawalMethodCash     WithdrawalMethod = "CASH"
	WithdrawalMethodLumicash WithdrawalMethod = "LUMICASH"
	WithdrawalMethodEcocash  WithdrawalMethod = "ECOCASH"
)

var validWithdrawalMethods = []WithdrawalMethod{
	WithdrawalMethodCash,
	WithdrawalMethodLumicash,
	WithdrawalMethodEcocash,
}

func (m WithdrawalMethod) IsValid() bool {
	for _, candidate := range validWithdrawalMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseWithdrawalMethod converts raw input into WithdrawalMethod.
func ParseWithdrawalMethod(value string) (WithdrawalMethod, error) {
	for _, candidate := range validWithdrawalMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid withdrawal method %q", value)
}
