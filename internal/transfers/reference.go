package transfers

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
)

const (
	referenceDigits  = "23456789"
	referenceLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"

	// DefaultReferenceAttempts bounds the rejection sampling against existing codes.
	DefaultReferenceAttempts = 100
)

var referencePattern = regexp.MustCompile(`^[2-9]{4}-[A-HJ-NP-Z]{4}$`)

type referenceChecker interface {
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// IsValidReference reports whether value has the NNNN-AAAA shape.
func IsValidReference(value string) bool {
	return referencePattern.MatchString(value)
}

// NewReference draws one random NNNN-AAAA code. Digits skip 0 and 1, letters skip I and O.
func NewReference() (string, error) {
	buf := make([]byte, 9)
	for i := 0; i < 4; i++ {
		c, err := randomChar(referenceDigits)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	buf[4] = '-'
	for i := 5; i < 9; i++ {
		c, err := randomChar(referenceLetters)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	return string(buf), nil
}

// GenerateReference samples codes until checker reports one unused. After
// attempts collisions it fails with CodeExhausted.
func GenerateReference(ctx context.Context, checker referenceChecker, attempts int) (string, error) {
	if attempts <= 0 {
		attempts = DefaultReferenceAttempts
	}
	for i := 0; i < attempts; i++ {
		candidate, err := NewReference()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reference")
		}
		exists, err := checker.ReferenceExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check reference")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeExhausted, fmt.Sprintf("unable to generate a unique reference after %d attempts", attempts))
}

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return alphabet[n.Int64()], nil
}
