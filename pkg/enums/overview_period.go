package enums

import "fmt"

// OverviewPeriod is the bucket size used by commission overview aggregates.
type OverviewPeriod string

const (
	PeriodDay   OverviewPeriod = "day"
	PeriodWeek  OverviewPeriod = "week"
	PeriodMonth OverviewPeriod = "month"
	PeriodYear  OverviewPeriod = "year"
)

var validOverviewPeriods = []OverviewPeriod{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear}

func (p OverviewPeriod) IsValid() bool {
	for _, candidate := range validOverviewPeriods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseOverviewPeriod converts raw input into OverviewPeriod, defaulting to month.
func ParseOverviewPeriod(value string) (OverviewPeriod, error) {
	if value == "" {
		return PeriodMonth, nil
	}
	for _, candidate := range validOverviewPeriods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid overview period %q", value)
}
