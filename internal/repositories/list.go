package repositories

// SortKey is a field listings may be ordered by.
type SortKey string

const (
	SortID       SortKey = "id"
	SortDate     SortKey = "date"
	SortUsername SortKey = "username"
	SortScore    SortKey = "score"
)

// Order is the listing direction.
type Order int

const (
	Ascending Order = iota
	Descending
)

// ListOptions controls ordering of list and search results.
type ListOptions struct {
	Sort  SortKey
	Order Order
}

func (o ListOptions) sortKey() SortKey {
	if o.Sort == "" {
		return SortID
	}
	return o.Sort
}

func (o ListOptions) direction() int {
	if o.Order == Descending {
		return -1
	}
	return 1
}
