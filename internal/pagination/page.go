package pagination

// Listing limits enforced across the API.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// NormalizeLimit clamps a requested page size into the accepted range.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizeSortOrder coerces arbitrary input to asc or desc, defaulting to desc.
func NormalizeSortOrder(order string) string {
	if order == SortAsc {
		return SortAsc
	}
	return SortDesc
}

// PageInfo is returned alongside a page of items.
type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor,omitempty"`
	EndCursor       string `json:"endCursor,omitempty"`
	TotalCount      *int64 `json:"totalCount,omitempty"`
}

// Page is the outbound envelope for a paginated listing.
type Page[T any] struct {
	Items    []T      `json:"items"`
	PageInfo PageInfo `json:"pageInfo"`
}

// AssembleParams carries the query shape a page was fetched under.
type AssembleParams struct {
	Limit       int
	SortBy      string
	SortOrder   string
	Filters     map[string]string
	HasPrevious bool
}

// Assemble shapes a raw row set fetched with limit+1 rows into a page plus
// cursors. The extra row only probes for a next page and is discarded.
// boundary extracts the cursor values (sort field value + tiebreak id) from an
// item; cursors are minted from the first and last item of the trimmed page.
func Assemble[T any](codec *Codec, rows []T, params AssembleParams, boundary func(T) map[string]any) (*Page[T], error) {
	limit := NormalizeLimit(params.Limit)

	hasNext := false
	if len(rows) > limit {
		hasNext = true
		rows = rows[:limit]
	}
	if rows == nil {
		rows = make([]T, 0)
	}

	page := &Page[T]{
		Items: rows,
		PageInfo: PageInfo{
			HasNextPage:     hasNext,
			HasPreviousPage: params.HasPrevious,
		},
	}

	if len(rows) == 0 {
		return page, nil
	}

	mint := func(item T) (string, error) {
		return codec.Encode(Payload{
			SortBy:    params.SortBy,
			SortOrder: params.SortOrder,
			Values:    boundary(item),
			Limit:     limit,
			Filters:   params.Filters,
		})
	}

	start, err := mint(rows[0])
	if err != nil {
		return nil, err
	}
	end, err := mint(rows[len(rows)-1])
	if err != nil {
		return nil, err
	}

	page.PageInfo.StartCursor = start
	page.PageInfo.EndCursor = end
	return page, nil
}
