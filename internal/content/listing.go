package content

import (
	"strings"

	"github.com/odinbook/backend/internal/repositories"
)

// Kind selects the sort allow-list for a listing.
type Kind int

const (
	UserListing Kind = iota
	PostListing
	CommentListing
	UserSearch
	PostSearch
)

var allowedSorts = map[Kind][]repositories.SortKey{
	UserListing:    {repositories.SortID, repositories.SortUsername},
	PostListing:    {repositories.SortID, repositories.SortDate},
	CommentListing: {repositories.SortID, repositories.SortDate},
	UserSearch:     {repositories.SortScore, repositories.SortID, repositories.SortUsername},
	PostSearch:     {repositories.SortScore, repositories.SortID, repositories.SortDate},
}

// ListOptions parses the sort and order query parameters. Values outside the
// allow-list for kind fall back to the defaults: the first allowed key, and
// ascending order.
func ListOptions(kind Kind, sort, order string) repositories.ListOptions {
	allowed := allowedSorts[kind]
	opts := repositories.ListOptions{Sort: allowed[0], Order: repositories.Ascending}

	sort = strings.ToLower(strings.TrimSpace(sort))
	for _, key := range allowed {
		if string(key) == sort {
			opts.Sort = key
			break
		}
	}

	switch strings.ToLower(strings.TrimSpace(order)) {
	case "desc", "descending", "-1":
		opts.Order = repositories.Descending
	}
	return opts
}
