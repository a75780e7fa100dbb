package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
}

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	cursor := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		ID:        uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479"),
	}
	encoded := EncodeCursor(cursor)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")

	decoded, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, cursor.ID, decoded.ID)
}

func TestParseCursorEmptyMeansFirstPage(t *testing.T) {
	cursor, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, value := range []string{"%%%", "bm8tc2VwYXJhdG9y", "eHx5"} {
		_, err := ParseCursor(value)
		assert.Error(t, err, value)
	}
}

type row struct {
	id uuid.UUID
	at time.Time
}

func position(r row) Cursor {
	return Cursor{CreatedAt: r.at, ID: r.id}
}

func TestPageTrimsLookaheadRow(t *testing.T) {
	now := time.Now().UTC()
	rows := []row{
		{id: uuid.New(), at: now},
		{id: uuid.New(), at: now.Add(-time.Minute)},
		{id: uuid.New(), at: now.Add(-2 * time.Minute)},
	}

	page, next := Page(rows, 2, position)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.Equal(t, rows[1].id, next.ID)

	page, next = Page(rows[:2], 2, position)
	assert.Len(t, page, 2)
	assert.Nil(t, next)
}
