package transfers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/remitflow-backend/pkg/errors"
)

type checkerFunc func(ctx context.Context, reference string) (bool, error)

func (f checkerFunc) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	return f(ctx, reference)
}

func TestGenerateReferenceFormatAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	checker := checkerFunc(func(ctx context.Context, reference string) (bool, error) {
		_, ok := seen[reference]
		return ok, nil
	})
	for i := 0; i < 10000; i++ {
		ref, err := GenerateReference(context.Background(), checker, DefaultReferenceAttempts)
		require.NoError(t, err)
		require.True(t, IsValidReference(ref), "bad format %q", ref)
		_, dup := seen[ref]
		require.False(t, dup, "duplicate %q", ref)
		seen[ref] = struct{}{}
	}
}

func TestGenerateReferenceExhausts(t *testing.T) {
	calls := 0
	checker := checkerFunc(func(ctx context.Context, reference string) (bool, error) {
		calls++
		return true, nil
	})
	_, err := GenerateReference(context.Background(), checker, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExhausted))
	require.Equal(t, 100, calls)
}

func TestGenerateReferenceSurfacesCheckerError(t *testing.T) {
	checker := checkerFunc(func(ctx context.Context, reference string) (bool, error) {
		return false, errors.New("db down")
	})
	_, err := GenerateReference(context.Background(), checker, 3)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestIsValidReference(t *testing.T) {
	for _, good := range []string{"2345-ABCD", "9999-ZZZZ", "2828-HJNP"} {
		require.True(t, IsValidReference(good), good)
	}
	for _, bad := range []string{"1234-ABCD", "2345-ABCI", "2345-ABCO", "2345ABCD", "2345-abcd", "0234-ABCD", "23456-ABCD"} {
		require.False(t, IsValidReference(bad), bad)
	}
}
