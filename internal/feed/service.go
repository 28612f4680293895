package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumen-social/lumen/internal/post"
	"github.com/lumen-social/lumen/internal/quality"
	"github.com/lumen-social/lumen/internal/user"
)

// FeedQuery carries the caller-supplied feed parameters. Invalid
// pagination values are clamped, never rejected.
type FeedQuery struct {
	// AuthorID restricts the feed to one author's posts when non-empty.
	AuthorID string

	// Text is an optional caption filter, applied by the store before
	// eligibility filtering.
	Text string

	// IncludeArchived includes archived posts.
	IncludeArchived bool

	// Page and Limit select the result window. Page defaults to 1,
	// Limit to DefaultPageSize.
	Page  int
	Limit int

	// Context selects the scoring mode; "explore" de-emphasizes the
	// follow signal. Any other value uses the default weights.
	Context string
}

// FeedItem is the sanitized per-post view returned to clients. Author
// relationship data (block lists, privacy flags, follower sets) never
// appears here.
type FeedItem struct {
	ID         string          `json:"id"`
	AuthorID   string          `json:"author_id"`
	Caption    string          `json:"caption"`
	Visibility post.Visibility `json:"visibility"`
	LikeCount  int             `json:"like_count"`
	SaveCount  int             `json:"save_count"`
	CreatedAt  time.Time       `json:"created_at"`
	RankScore  float64         `json:"rank_score"`
}

// FeedPage is the feed response envelope.
type FeedPage struct {
	Posts   []FeedItem `json:"posts"`
	HasMore bool       `json:"has_more"`

	// Total counts candidates after the store-side filters (author,
	// text, archived, removed) but before eligibility filtering. It is
	// a UI hint, not an exact post-filter count.
	Total int `json:"total"`
}

// Service orchestrates the feed pipeline against the backing store and
// the identity/quality collaborators. Stateless between requests.
type Service struct {
	posts   post.Repository
	users   user.Directory
	quality quality.Scorer
	scorer  Scorer
	metrics *Metrics
}

// NewService creates a feed Service. qualityScorer may be nil when no
// analyzer is configured (unrated posts score the neutral default);
// metrics may be nil in tests.
func NewService(posts post.Repository, users user.Directory, qualityScorer quality.Scorer, scorer Scorer, metrics *Metrics) *Service {
	if scorer == nil {
		scorer = NewWeightedScorer(nil)
	}
	return &Service{
		posts:   posts,
		users:   users,
		quality: qualityScorer,
		scorer:  scorer,
		metrics: metrics,
	}
}

// GetFeed returns the ranked, paginated feed for a viewer. An empty
// viewerID means anonymous (public-only eligibility).
//
// Store failures are the one fatal error class; collaborator failures
// (identity lookup, quality analyzer) degrade to safe defaults.
func (s *Service) GetFeed(ctx context.Context, viewerID string, q FeedQuery) (*FeedPage, error) {
	ctx, span := otel.Tracer("lumen/feed").Start(ctx, "feed.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("feed.context", q.Context),
		attribute.Bool("feed.anonymous", viewerID == ""),
	)

	start := time.Now()
	s.metrics.observeRequest(q.Context, viewerID == "")

	storeQuery := post.Query{
		AuthorID:        q.AuthorID,
		Text:            q.Text,
		IncludeArchived: q.IncludeArchived,
		FetchLimit:      candidateFetchLimit(q.Page, q.Limit),
	}

	candidates, err := s.posts.FindCandidates(ctx, storeQuery)
	if err != nil {
		s.metrics.observeStoreError()
		return nil, fmt.Errorf("failed to fetch feed candidates: %w", err)
	}
	s.metrics.observeCandidates(len(candidates))

	total, err := s.posts.CountCandidates(ctx, storeQuery)
	if err != nil {
		s.metrics.observeStoreError()
		return nil, fmt.Errorf("failed to count feed candidates: %w", err)
	}

	// Caller gone: abandon the in-flight computation. Nothing was
	// mutated, so there is nothing to roll back.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	viewer := s.loadViewer(ctx, viewerID)
	authors := s.loadAuthors(ctx, candidates)

	allowed := FilterEligible(candidates, authors, viewer)

	now := time.Now()
	scored := make([]Scored, 0, len(allowed))
	for _, p := range allowed {
		s.resolveQuality(ctx, p)
		sig := ExtractSignals(p, authors[p.AuthorID], viewerID, now)
		scored = append(scored, Scored{Post: p, Score: s.scorer.Score(sig, q.Context)})
	}

	ranked := Rank(scored, q.Page, q.Limit)

	items := make([]FeedItem, 0, len(ranked.Items))
	for _, sc := range ranked.Items {
		items = append(items, FeedItem{
			ID:         sc.Post.ID,
			AuthorID:   sc.Post.AuthorID,
			Caption:    sc.Post.Caption,
			Visibility: sc.Post.Visibility,
			LikeCount:  len(sc.Post.Likes),
			SaveCount:  len(sc.Post.Saves),
			CreatedAt:  sc.Post.CreatedAt,
			RankScore:  sc.Score,
		})
	}

	s.metrics.observeDuration(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("feed.candidates", len(candidates)),
		attribute.Int("feed.eligible", len(allowed)),
		attribute.Int("feed.returned", len(items)),
	)

	return &FeedPage{
		Posts:   items,
		HasMore: ranked.HasMore,
		Total:   total,
	}, nil
}

// overFetchFactor sizes the candidate pool relative to the requested
// window. Eligibility filtering discards an unknown share of
// candidates, so the store fetch over-provisions by this factor.
const overFetchFactor = 5

// candidateFetchLimit bounds the store scan for a page request. The
// result is a recency-bounded approximation: ranking applies only to
// the newest overFetchFactor windows' worth of candidates, so very old
// posts can drop out of deep pages. Pagination values are clamped the
// same way Rank clamps them.
func candidateFetchLimit(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return page * pageSize * overFetchFactor
}

// loadViewer resolves the viewer's relationship profile. Anonymous
// viewers and lookup failures degrade to a profile with empty relation
// sets; a directory outage must never fail the request.
func (s *Service) loadViewer(ctx context.Context, viewerID string) *user.Profile {
	if viewerID == "" {
		return &user.Profile{}
	}
	p, err := s.users.GetProfile(ctx, viewerID)
	if err != nil {
		if !errors.Is(err, user.ErrProfileNotFound) {
			slog.WarnContext(ctx, "viewer profile lookup failed, using empty relations",
				"viewer_id", viewerID,
				"error", err)
		}
		return &user.Profile{ID: viewerID}
	}
	return p
}

// loadAuthors resolves author profiles for the candidate batch. Missing
// or failed lookups leave a nil entry, which the eligibility filter
// treats as a private author with no followers.
func (s *Service) loadAuthors(ctx context.Context, candidates []*post.Post) map[string]*user.Profile {
	authors := make(map[string]*user.Profile)
	for _, p := range candidates {
		if _, seen := authors[p.AuthorID]; seen {
			continue
		}
		profile, err := s.users.GetProfile(ctx, p.AuthorID)
		if err != nil {
			if !errors.Is(err, user.ErrProfileNotFound) {
				slog.WarnContext(ctx, "author profile lookup failed, failing closed",
					"author_id", p.AuthorID,
					"error", err)
			}
			authors[p.AuthorID] = nil
			continue
		}
		authors[p.AuthorID] = profile
	}
	return authors
}

// resolveQuality fills in a missing quality score from the analyzer,
// substituting the neutral default when the analyzer is unavailable.
// Stored scores are used as-is.
func (s *Service) resolveQuality(ctx context.Context, p *post.Post) {
	if p.Quality != nil || s.quality == nil {
		return
	}
	score, err := s.quality.Score(ctx, p)
	if err != nil {
		s.metrics.observeQualityFallback()
		slog.DebugContext(ctx, "quality scorer unavailable, using default",
			"post_id", p.ID,
			"error", err)
		return
	}
	p.Quality = &score
}
