package feed

import (
	"sort"

	"github.com/lumen-social/lumen/internal/post"
)

// DefaultPageSize is the page size used when the caller supplies an
// invalid one. Ranking is a best-effort read path: bad pagination
// input is corrected, never rejected.
const DefaultPageSize = 10

// Scored pairs a candidate with its computed rank score.
type Scored struct {
	Post  *post.Post
	Score float64
}

// RankedPage is one window of the ranked candidate list.
type RankedPage struct {
	Items []Scored

	// HasMore approximates whether a next page exists: it is true iff
	// the page came back full. On an exact-boundary final page this
	// reports a false positive; that looseness is part of the endpoint
	// contract and must not be "fixed" here.
	HasMore bool
}

// Rank sorts candidates by score descending and slices out the
// requested page.
//
// Ties are broken by created-at descending (newer wins), so two
// freshly-posted items with equal scores order deterministically across
// repeated calls within the same instant; equal timestamps fall back to
// ID ascending for a stable total order.
func Rank(candidates []Scored, page, pageSize int) RankedPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	sorted := make([]Scored, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if !sorted[i].Post.CreatedAt.Equal(sorted[j].Post.CreatedAt) {
			return sorted[i].Post.CreatedAt.After(sorted[j].Post.CreatedAt)
		}
		return sorted[i].Post.ID < sorted[j].Post.ID
	})

	offset := (page - 1) * pageSize
	if offset >= len(sorted) {
		return RankedPage{Items: []Scored{}, HasMore: false}
	}

	end := offset + pageSize
	if end > len(sorted) {
		end = len(sorted)
	}

	items := sorted[offset:end]
	return RankedPage{
		Items:   items,
		HasMore: len(items) == pageSize,
	}
}
