package enums

import "fmt"

// StockLocation identifies where a cash bucket is physically held.
type StockLocation string

const (
	StockLocationEurope  StockLocation = "EUROPE"
	StockLocationBurundi StockLocation = "BURUNDI"
)

var validStockLocations = []StockLocation{
	StockLocationEurope,
	StockLocationBurundi,
}

func (l StockLocation) IsValid() bool {
	for _, candidate := range validStockLocations {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseStockLocation converts raw input into StockLocation.
func ParseStockLocation(value string) (StockLocation, error) {
	for _, candidate := range validStockLocations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock location %q", value)
}

// MovementType is the direction of a stock movement.
type MovementType string

const (
	MovementTypeIn  MovementType = "IN"
	MovementTypeOut MovementType = "OUT"
)

var validMovementTypes = []MovementType{
	MovementTypeIn,
	MovementTypeOut,
}

func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
