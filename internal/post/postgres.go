package post

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
// Likes and saves are stored as text[] columns and scanned with pq.Array.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const postColumns = `id, author_id, caption, visibility, likes, saves, quality_score, moderation_state, archived, created_at, updated_at`

// Create inserts a new post with a generated UUID.
func (r *PostgresRepository) Create(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
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

	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.AuthorID,
		p.Caption,
		string(p.Visibility),
		pq.Array(p.Likes),
		pq.Array(p.Saves),
		p.Quality,
		string(p.Moderation),
		p.Archived,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// GetByID retrieves a post by its UUID, excluding removed posts.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE id = $1
	`
	p, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if p.IsRemoved() {
		return nil, ErrPostRemoved
	}
	return p, nil
}

// FindCandidates returns posts matching the query, excluding removed posts.
func (r *PostgresRepository) FindCandidates(ctx context.Context, q Query) ([]*Post, error) {
	where, args := candidateWhere(q)
	query := `
		SELECT ` + postColumns + `
		FROM posts
		` + where
	if q.FetchLimit > 0 {
		args = append(args, q.FetchLimit)
		query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return posts, nil
}

// CountCandidates returns the number of posts matching the query,
// excluding removed posts.
func (r *PostgresRepository) CountCandidates(ctx context.Context, q Query) (int, error) {
	where, args := candidateWhere(q)
	query := `SELECT COUNT(*) FROM posts ` + where

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return n, nil
}

// SetModerationState updates the moderation state of a post.
func (r *PostgresRepository) SetModerationState(ctx context.Context, id string, state ModerationState) error {
	query := `
		UPDATE posts
		SET moderation_state = $2, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, string(state))
	if err != nil {
		return fmt.Errorf("failed to update moderation state: %w", err)
	}
	return requireRow(res)
}

// Like records that userID liked the post. Idempotent.
func (r *PostgresRepository) Like(ctx context.Context, id, userID string) error {
	return r.addToSet(ctx, id, "likes", userID)
}

// Unlike removes userID's like from the post. Idempotent.
func (r *PostgresRepository) Unlike(ctx context.Context, id, userID string) error {
	return r.removeFromSet(ctx, id, "likes", userID)
}

// Save records that userID saved the post. Idempotent.
func (r *PostgresRepository) Save(ctx context.Context, id, userID string) error {
	return r.addToSet(ctx, id, "saves", userID)
}

// Unsave removes userID's save from the post. Idempotent.
func (r *PostgresRepository) Unsave(ctx context.Context, id, userID string) error {
	return r.removeFromSet(ctx, id, "saves", userID)
}

// addToSet appends userID to an identity array column unless present.
// The column name is interpolated from a fixed caller-supplied set, never
// from user input.
func (r *PostgresRepository) addToSet(ctx context.Context, id, column, userID string) error {
	query := fmt.Sprintf(`
		UPDATE posts
		SET %[1]s = array_append(%[1]s, $2), updated_at = NOW()
		WHERE id = $1
		  AND moderation_state <> 'removed'
		  AND NOT ($2 = ANY(%[1]s))
	`, column)
	_, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

// removeFromSet removes userID from an identity array column.
func (r *PostgresRepository) removeFromSet(ctx context.Context, id, column, userID string) error {
	query := fmt.Sprintf(`
		UPDATE posts
		SET %[1]s = array_remove(%[1]s, $2), updated_at = NOW()
		WHERE id = $1
		  AND moderation_state <> 'removed'
	`, column)
	_, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

// candidateWhere builds the WHERE clause for the cheap candidate filters.
func candidateWhere(q Query) (string, []interface{}) {
	where := `WHERE moderation_state <> 'removed'`
	var args []interface{}

	if !q.IncludeArchived {
		where += ` AND archived = FALSE`
	}
	if q.AuthorID != "" {
		args = append(args, q.AuthorID)
		where += fmt.Sprintf(` AND author_id = $%d`, len(args))
	}
	if q.Text != "" {
		args = append(args, "%"+q.Text+"%")
		where += fmt.Sprintf(` AND caption ILIKE $%d`, len(args))
	}
	return where, args
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanPost.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPost scans a post row in postColumns order.
func scanPost(row rowScanner) (*Post, error) {
	p := &Post{}
	var visibility, moderation string
	err := row.Scan(
		&p.ID,
		&p.AuthorID,
		&p.Caption,
		&visibility,
		pq.Array(&p.Likes),
		pq.Array(&p.Saves),
		&p.Quality,
		&moderation,
		&p.Archived,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Visibility = Visibility(visibility)
	p.Moderation = ModerationState(moderation)
	return p, nil
}

// requireRow converts a zero-row update into ErrPostNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}
