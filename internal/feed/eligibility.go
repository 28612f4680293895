package feed

import (
	"github.com/lumen-social/lumen/internal/post"
	"github.com/lumen-social/lumen/internal/user"
)

// Visible reports whether viewer may see the post at all, independent
// of ranking.
//
// Rules, in precedence order:
//   - Removed posts are invisible to everyone, including the author.
//   - The author always sees their own posts, regardless of
//     visibility or block state.
//   - A block in either direction hides the post.
//   - A missing author record (author == nil) fails closed: the post
//     is treated as authored by a private account with no followers.
//   - Anonymous viewers see only public posts from non-private authors.
//   - Otherwise: public posts pass; followers-only posts and posts
//     from private authors require the viewer to follow the author.
func Visible(p *post.Post, author *user.Profile, viewer *user.Profile) bool {
	if p.IsRemoved() {
		return false
	}

	viewerID := ""
	if viewer != nil {
		viewerID = viewer.ID
	}

	if viewerID != "" && p.AuthorID == viewerID {
		return true
	}

	if viewer != nil && viewer.Blocks(p.AuthorID) {
		return false
	}
	if author != nil && author.Blocks(viewerID) {
		return false
	}

	if author == nil {
		// Unknown author: private, no followers.
		return false
	}

	if viewerID == "" {
		return p.Visibility == post.VisibilityPublic && !author.IsPrivate
	}

	switch p.Visibility {
	case post.VisibilityPublic:
		return true
	case post.VisibilityFollowers:
		return author.FollowedBy(viewerID)
	case post.VisibilityPrivate:
		return false
	}

	// Unrecognized visibility fails closed, except for private authors
	// handled above.
	if author.IsPrivate {
		return author.FollowedBy(viewerID)
	}
	return false
}

// FilterEligible returns the subset of candidates the viewer may see.
// authors maps author ID to profile; absent entries fail closed.
func FilterEligible(candidates []*post.Post, authors map[string]*user.Profile, viewer *user.Profile) []*post.Post {
	allowed := make([]*post.Post, 0, len(candidates))
	for _, p := range candidates {
		if Visible(p, authors[p.AuthorID], viewer) {
			allowed = append(allowed, p)
		}
	}
	return allowed
}
