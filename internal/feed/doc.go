// Package feed implements the ranked home feed pipeline.
//
// The pipeline is a stateless, per-request computation over a bounded
// candidate batch:
//
//	fetch candidates (store) -> eligibility filter -> signal extraction
//	  -> weighted scoring -> sort + paginate -> sanitized response
//
// Basic usage:
//
//	weights, err := feed.LoadCalibration("configs/feed.calibration.json")
//	if err != nil {
//		slog.Warn("using default feed weights", "error", err)
//	}
//	svc := feed.NewService(posts, directory, qualityScorer,
//		feed.NewWeightedScorer(weights), metrics)
//	page, err := svc.GetFeed(ctx, viewerID, feed.FeedQuery{Page: 1, Limit: 10})
//
// The rank score of a post is a pure function of (post, author, viewer,
// now); nothing in this package mutates stored state. Weight constants
// live in weights.go and can be overridden at deploy time via the JSON
// calibration file, which enables A/B tuning without code changes (a
// restart is required to pick up new values).
package feed
