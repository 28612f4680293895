package feed

import (
	"time"

	"github.com/lumen-social/lumen/internal/post"
	"github.com/lumen-social/lumen/internal/user"
)

// Signals holds the normalized per-candidate inputs to the scoring
// engine. Each signal is independent and independently testable.
type Signals struct {
	// IsFollowed is true iff the viewer follows the post's author.
	IsFollowed bool

	// IsVerified is true iff the author account is verified.
	IsVerified bool

	// LikesCount and SavesCount are engagement volumes (set sizes).
	LikesCount int
	SavesCount int

	// QualityScore is the content quality signal in [0, 1].
	QualityScore float64

	// AgeMillis is the post age at extraction time, clamped to >= 0
	// to defend against clock skew and future timestamps.
	AgeMillis int64
}

// ExtractSignals derives the ranking signals for a single candidate.
// author may be nil (unknown author); viewerID may be empty (anonymous).
// Pure computation, no side effects.
func ExtractSignals(p *post.Post, author *user.Profile, viewerID string, now time.Time) Signals {
	s := Signals{
		LikesCount:   len(p.Likes),
		SavesCount:   len(p.Saves),
		QualityScore: NormalizeQuality(p.Quality),
	}

	if author != nil {
		s.IsFollowed = author.FollowedBy(viewerID)
		s.IsVerified = author.IsVerified
	}

	age := now.Sub(p.CreatedAt).Milliseconds()
	if age < 0 {
		age = 0
	}
	s.AgeMillis = age

	return s
}

// NormalizeQuality maps a stored quality score to the [0, 1] signal.
// A nil score means the content intelligence service has not rated the
// post yet and yields the neutral default; out-of-range values are
// clamped.
func NormalizeQuality(q *float64) float64 {
	if q == nil {
		return DefaultQualityScore
	}
	if *q < 0 {
		return 0
	}
	if *q > 1 {
		return 1
	}
	return *q
}
