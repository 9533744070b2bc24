package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token := IDCursor(1843)
	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1843", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestPaginationSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}

func TestBuildCursorPageInfo(t *testing.T) {
	type row struct{ id int64 }
	rows := []*row{{id: 5}, {id: 4}, {id: 3}}
	extract := func(r *row) string { return IDCursor(r.id) }

	info := BuildCursorPageInfo(rows, 2, extract)
	assert.True(t, info.HasMore)
	assert.Equal(t, IDCursor(4), info.NextPageToken)

	info = BuildCursorPageInfo(rows, 3, extract)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	info = BuildCursorPageInfo([]*row{}, 3, extract)
	assert.False(t, info.HasMore)
}
