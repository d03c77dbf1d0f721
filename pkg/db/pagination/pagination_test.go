package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Limit())
}

func TestBuildCursorPageInfo(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []Cursor{
		{ID: "3", CreatedAt: now},
		{ID: "2", CreatedAt: now.Add(-time.Minute)},
		{ID: "1", CreatedAt: now.Add(-2 * time.Minute)},
	}

	page, info, err := BuildCursorPageInfo(rows, 2, func(c Cursor) Cursor { return c })
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2", cursor.ID)
	assert.True(t, cursor.CreatedAt.Equal(now.Add(-time.Minute)))

	page, info, err = BuildCursorPageInfo(rows, 5, func(c Cursor) Cursor { return c })
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	cursor, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}
