package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type scoredRow struct {
	ID    string
	Score float64
}

func scoredBoundary(row scoredRow) map[string]any {
	return map[string]any{"score": row.Score, "id": row.ID}
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, DefaultLimit, NormalizeLimit(-3))
	require.Equal(t, 1, NormalizeLimit(1))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
}

func TestNormalizeSortOrder(t *testing.T) {
	require.Equal(t, SortAsc, NormalizeSortOrder("asc"))
	require.Equal(t, SortDesc, NormalizeSortOrder("desc"))
	require.Equal(t, SortDesc, NormalizeSortOrder(""))
	require.Equal(t, SortDesc, NormalizeSortOrder("banana"))
}

func TestAssembleTrimsOverfetchedRow(t *testing.T) {
	codec := newTestCodec(t)

	rows := []scoredRow{
		{"f", 10}, {"e", 9}, {"d", 8}, {"c", 7}, {"b", 6}, {"a", 5},
	}

	page, err := Assemble(codec, rows, AssembleParams{
		Limit:     5,
		SortBy:    "score",
		SortOrder: SortDesc,
	}, scoredBoundary)
	require.NoError(t, err)

	require.Len(t, page.Items, 5)
	require.True(t, page.PageInfo.HasNextPage)
	require.False(t, page.PageInfo.HasPreviousPage)
	require.NotEmpty(t, page.PageInfo.StartCursor)
	require.NotEmpty(t, page.PageInfo.EndCursor)

	// cursors are minted from the trimmed page, not the probe row
	end := codec.Decode(page.PageInfo.EndCursor)
	require.NotNil(t, end)
	require.Equal(t, "b", end.Values["id"])

	start := codec.Decode(page.PageInfo.StartCursor)
	require.NotNil(t, start)
	require.Equal(t, "f", start.Values["id"])
}

func TestAssembleExactLimitHasNoNextPage(t *testing.T) {
	codec := newTestCodec(t)

	rows := []scoredRow{{"e", 9}, {"d", 8}, {"c", 7}, {"b", 6}, {"a", 5}}

	page, err := Assemble(codec, rows, AssembleParams{
		Limit:       5,
		SortBy:      "score",
		SortOrder:   SortDesc,
		HasPrevious: true,
	}, scoredBoundary)
	require.NoError(t, err)

	require.Len(t, page.Items, 5)
	require.False(t, page.PageInfo.HasNextPage)
	require.True(t, page.PageInfo.HasPreviousPage)
}

func TestAssembleEmptyPageEmitsNoCursors(t *testing.T) {
	codec := newTestCodec(t)

	page, err := Assemble(codec, nil, AssembleParams{
		Limit:       5,
		SortBy:      "score",
		SortOrder:   SortDesc,
		HasPrevious: true,
	}, scoredBoundary)
	require.NoError(t, err)

	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)
	require.False(t, page.PageInfo.HasNextPage)
	require.True(t, page.PageInfo.HasPreviousPage)
	require.Empty(t, page.PageInfo.StartCursor)
	require.Empty(t, page.PageInfo.EndCursor)
}

func TestAssembleCarriesFiltersIntoCursors(t *testing.T) {
	codec := newTestCodec(t)

	rows := []scoredRow{{"b", 6}, {"a", 5}}
	filters := map[string]string{"source_id": "hn-frontpage"}

	page, err := Assemble(codec, rows, AssembleParams{
		Limit:     2,
		SortBy:    "score",
		SortOrder: SortDesc,
		Filters:   filters,
	}, scoredBoundary)
	require.NoError(t, err)

	decoded := codec.Decode(page.PageInfo.EndCursor)
	require.NotNil(t, decoded)
	require.True(t, codec.ValidateFilters(decoded, filters))
	require.False(t, codec.ValidateFilters(decoded, map[string]string{"source_id": "other"}))
}
