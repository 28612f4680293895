package post

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for post data operations.
//
// FindCandidates and CountCandidates apply only the cheap filters in
// Query plus the hard rule that removed posts are never returned.
// Eligibility and ranking are the feed pipeline's job.
type Repository interface {
	// Create inserts a new post with a generated UUID.
	Create(ctx context.Context, p *Post) error

	// GetByID retrieves a post by its UUID, excluding removed posts.
	GetByID(ctx context.Context, id string) (*Post, error)

	// FindCandidates returns posts matching the query, excluding
	// removed posts. With a FetchLimit it returns the newest matches;
	// otherwise order is not guaranteed.
	FindCandidates(ctx context.Context, q Query) ([]*Post, error)

	// CountCandidates returns the number of posts matching the query,
	// excluding removed posts.
	CountCandidates(ctx context.Context, q Query) (int, error)

	// SetModerationState updates the moderation state of a post.
	SetModerationState(ctx context.Context, id string, state ModerationState) error

	// Like records that userID liked the post. Idempotent.
	Like(ctx context.Context, id, userID string) error

	// Unlike removes userID's like from the post. Idempotent.
	Unlike(ctx context.Context, id, userID string) error

	// Save records that userID saved the post. Idempotent.
	Save(ctx context.Context, id, userID string) error

	// Unsave removes userID's save from the post. Idempotent.
	Unsave(ctx context.Context, id, userID string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	posts map[string]*Post
}

// NewInMemoryRepository creates a new in-memory post repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		posts: make(map[string]*Post),
	}
}

// Create inserts a new post with a generated UUID.
func (r *InMemoryRepository) Create(ctx context.Context, p *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if p.Moderation == "" {
		p.Moderation = ModerationNone
	}

	r.posts[p.ID] = copyPost(p)
	return nil
}

// GetByID retrieves a post by its UUID, excluding removed posts.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	if p.IsRemoved() {
		return nil, ErrPostRemoved
	}
	return copyPost(p), nil
}

// FindCandidates returns posts matching the query, excluding removed posts.
func (r *InMemoryRepository) FindCandidates(ctx context.Context, q Query) ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Post
	for _, p := range r.posts {
		if matches(p, q) {
			out = append(out, copyPost(p))
		}
	}
	if q.FetchLimit > 0 && len(out) > q.FetchLimit {
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		out = out[:q.FetchLimit]
	}
	return out, nil
}

// CountCandidates returns the number of posts matching the query,
// excluding removed posts.
func (r *InMemoryRepository) CountCandidates(ctx context.Context, q Query) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.posts {
		if matches(p, q) {
			n++
		}
	}
	return n, nil
}

// SetModerationState updates the moderation state of a post.
func (r *InMemoryRepository) SetModerationState(ctx context.Context, id string, state ModerationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	p.Moderation = state
	p.UpdatedAt = time.Now()
	return nil
}

// Like records that userID liked the post. Idempotent.
func (r *InMemoryRepository) Like(ctx context.Context, id, userID string) error {
	return r.mutate(id, func(p *Post) {
		p.Likes = addIdentity(p.Likes, userID)
	})
}

// Unlike removes userID's like from the post. Idempotent.
func (r *InMemoryRepository) Unlike(ctx context.Context, id, userID string) error {
	return r.mutate(id, func(p *Post) {
		p.Likes = removeIdentity(p.Likes, userID)
	})
}

// Save records that userID saved the post. Idempotent.
func (r *InMemoryRepository) Save(ctx context.Context, id, userID string) error {
	return r.mutate(id, func(p *Post) {
		p.Saves = addIdentity(p.Saves, userID)
	})
}

// Unsave removes userID's save from the post. Idempotent.
func (r *InMemoryRepository) Unsave(ctx context.Context, id, userID string) error {
	return r.mutate(id, func(p *Post) {
		p.Saves = removeIdentity(p.Saves, userID)
	})
}

// mutate applies fn to a stored post under the write lock.
func (r *InMemoryRepository) mutate(id string, fn func(*Post)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	if p.IsRemoved() {
		return ErrPostRemoved
	}
	fn(p)
	p.UpdatedAt = time.Now()
	return nil
}

// matches applies the query filters plus the removed-post exclusion.
func matches(p *Post, q Query) bool {
	if p.IsRemoved() {
		return false
	}
	if p.Archived && !q.IncludeArchived {
		return false
	}
	if q.AuthorID != "" && p.AuthorID != q.AuthorID {
		return false
	}
	if q.Text != "" {
		if !strings.Contains(strings.ToLower(p.Caption), strings.ToLower(q.Text)) {
			return false
		}
	}
	return true
}

// copyPost returns a deep copy to prevent external mutation of stored state.
func copyPost(p *Post) *Post {
	c := *p
	c.Likes = slicesCopy(p.Likes)
	c.Saves = slicesCopy(p.Saves)
	if p.Quality != nil {
		q := *p.Quality
		c.Quality = &q
	}
	return &c
}

func slicesCopy(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func addIdentity(set []string, id string) []string {
	for _, v := range set {
		if v == id {
			return set
		}
	}
	return append(set, id)
}

func removeIdentity(set []string, id string) []string {
	for i, v := range set {
		if v == id {
			return append(set[:i], set[i+1:]...)
		}
	}
	return set
}
