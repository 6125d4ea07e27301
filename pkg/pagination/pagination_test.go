package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.CreatedAt.Equal(out.CreatedAt))
	require.Equal(t, in.ID, out.ID)
}

func TestParseCursorEdgeCases(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = ParseCursor("%%%")
	require.Error(t, err)
	_, err = ParseCursor("bm8tc2VwYXJhdG9y") // "no-separator"
	require.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+10))
	require.Equal(t, 7, NormalizeLimit(7))
	require.Equal(t, 8, LimitWithBuffer(7))
}

func TestBuildPage(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	type row struct {
		id uuid.UUID
		at time.Time
	}
	rows := []row{{uuid.New(), base.Add(3 * time.Hour)}, {uuid.New(), base.Add(2 * time.Hour)}, {uuid.New(), base.Add(time.Hour)}}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := BuildPage(rows, 2, cursorOf)
	require.Len(t, page.Items, 2)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	require.Equal(t, rows[1].id, next.ID)

	last := BuildPage(rows[:1], 2, cursorOf)
	require.Len(t, last.Items, 1)
	require.Empty(t, last.NextCursor)

	empty := BuildPage[row](nil, 2, cursorOf)
	require.NotNil(t, empty.Items)
}
