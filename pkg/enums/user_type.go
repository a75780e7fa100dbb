package enums

import "fmt"

// UserType maps to the user_type enum in Postgres.
type UserType string

const (
	UserTypeAgent   UserType = "agent"
	UserTypeManager UserType = "manager"
)

var validUserTypes = []UserType{
	UserTypeAgent,
	UserTypeManager,
}

func (u UserType) String() string {
	return string(u)
}

func (u UserType) IsValid() bool {
	for _, candidate := range validUserTypes {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUserType converts raw input into UserType.
func ParseUserType(value string) (UserType, error) {
	for _, candidate := range validUserTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user type %q", value)
}
