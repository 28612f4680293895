package feed

// Feed context values. ContextExplore de-emphasizes the viewer's
// existing follow graph so the discovery feed is not dominated by
// accounts they already follow. Any other context value uses the
// default follow weight.
const ContextExplore = "explore"

// DefaultQualityScore is the neutral quality signal used when the
// content intelligence service has not rated a post.
const DefaultQualityScore = 0.5

// Default scoring weights. Saves outweigh likes because saving is a
// stronger relevance signal than a like. The freshness numerator caps
// the maximum freshness contribution at the moment of posting (age 0).
const (
	DefaultQualityWeight       = 40.0
	DefaultLikeWeight          = 2.0
	DefaultSaveWeight          = 5.0
	DefaultFollowWeight        = 25.0
	DefaultExploreFollowWeight = 10.0
	DefaultVerifiedWeight      = 15.0

	// DefaultFreshnessNumerator caps the freshness term; the decay
	// denominator grows by 1 per hour of age, so recently-posted
	// content is never tied with day-old content of equal engagement.
	DefaultFreshnessNumerator = 3000.0
)

// freshnessUnitMillis converts post age to the decay curve's hour unit.
const freshnessUnitMillis = 3_600_000.0

// Weights holds the scoring weight configuration. Fields mirror the
// default constants and can be overridden at deploy time via the JSON
// calibration file.
type Weights struct {
	Quality            float64 `json:"quality"`
	Like               float64 `json:"like"`
	Save               float64 `json:"save"`
	Follow             float64 `json:"follow"`
	ExploreFollow      float64 `json:"explore_follow"`
	Verified           float64 `json:"verified"`
	FreshnessNumerator float64 `json:"freshness_numerator"`
}

// DefaultWeights returns the default scoring weight configuration.
func DefaultWeights() *Weights {
	return &Weights{
		Quality:            DefaultQualityWeight,
		Like:               DefaultLikeWeight,
		Save:               DefaultSaveWeight,
		Follow:             DefaultFollowWeight,
		ExploreFollow:      DefaultExploreFollowWeight,
		Verified:           DefaultVerifiedWeight,
		FreshnessNumerator: DefaultFreshnessNumerator,
	}
}

// Scorer combines extracted signals into one rank score per post.
// Higher means more relevant. Implementations must be pure: the score
// depends only on the signals and the feed context, so it is
// reproducible given the same inputs at the same instant.
type Scorer interface {
	Score(s Signals, feedContext string) float64
}

// WeightedScorer is the production Scorer: a weighted sum of the
// engagement, relationship, authority, and quality signals plus a
// continuous freshness decay term.
type WeightedScorer struct {
	weights *Weights
}

// NewWeightedScorer creates a WeightedScorer. A nil weights argument
// uses the defaults.
func NewWeightedScorer(weights *Weights) *WeightedScorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &WeightedScorer{weights: weights}
}

// Score computes the rank score for one candidate.
//
//	score = quality*W_quality + likes*W_like + saves*W_save
//	      + followed*W_follow + verified*W_verified
//	      + N / (1 + ageHours)
//
// where W_follow drops to the explore weight when feedContext is
// "explore".
func (ws *WeightedScorer) Score(s Signals, feedContext string) float64 {
	w := ws.weights

	followWeight := w.Follow
	if feedContext == ContextExplore {
		followWeight = w.ExploreFollow
	}

	score := s.QualityScore*w.Quality +
		float64(s.LikesCount)*w.Like +
		float64(s.SavesCount)*w.Save +
		boolSignal(s.IsFollowed)*followWeight +
		boolSignal(s.IsVerified)*w.Verified

	score += Freshness(s.AgeMillis, w.FreshnessNumerator)

	return score
}

// Freshness computes the time-decay term: numerator / (1 + ageHours).
// The curve decays continuously rather than in discrete buckets, with a
// half-life-like shape of one hour per denominator unit.
func Freshness(ageMillis int64, numerator float64) float64 {
	return numerator / (1.0 + float64(ageMillis)/freshnessUnitMillis)
}

func boolSignal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
