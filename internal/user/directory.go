// Package user provides viewer/author profiles and the relationship
// directory the feed pipeline consults for follow and block state.
package user

import (
	"context"
	"errors"
	"sync"
)

// ErrProfileNotFound is returned when a profile does not exist.
// The feed pipeline treats a missing author as private with no
// followers, so lookups failing with this error fail closed.
var ErrProfileNotFound = errors.New("profile not found")

// Profile holds the relationship and status fields the ranking
// pipeline reads. Followers and BlockedUsers hold user IDs.
type Profile struct {
	ID           string   `json:"id"`
	IsPrivate    bool     `json:"is_private"`
	IsVerified   bool     `json:"is_verified"`
	Followers    []string `json:"followers,omitempty"`
	BlockedUsers []string `json:"blocked_users,omitempty"`
}

// FollowedBy reports whether userID follows this profile's owner.
func (p *Profile) FollowedBy(userID string) bool {
	if userID == "" {
		return false
	}
	for _, f := range p.Followers {
		if f == userID {
			return true
		}
	}
	return false
}

// Blocks reports whether this profile's owner has blocked userID.
func (p *Profile) Blocks(userID string) bool {
	if userID == "" {
		return false
	}
	for _, b := range p.BlockedUsers {
		if b == userID {
			return true
		}
	}
	return false
}

// Directory is the identity/relationship collaborator. Implemented
// elsewhere in the platform; the feed service only reads from it.
type Directory interface {
	// GetProfile returns the profile for a user ID.
	// Returns ErrProfileNotFound if the user does not exist.
	GetProfile(ctx context.Context, id string) (*Profile, error)
}

// InMemoryDirectory is an in-memory implementation of Directory.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemoryDirectory creates a new in-memory directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		profiles: make(map[string]*Profile),
	}
}

// GetProfile returns the profile for a user ID.
func (d *InMemoryDirectory) GetProfile(ctx context.Context, id string) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return copyProfile(p), nil
}

// PutProfile stores or replaces a profile.
func (d *InMemoryDirectory) PutProfile(p *Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = copyProfile(p)
}

// AddFollower records that followerID follows userID. Idempotent.
func (d *InMemoryDirectory) AddFollower(userID, followerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.profiles[userID]
	if !ok {
		p = &Profile{ID: userID}
		d.profiles[userID] = p
	}
	for _, f := range p.Followers {
		if f == followerID {
			return
		}
	}
	p.Followers = append(p.Followers, followerID)
}

// Block records that userID blocked blockedID. Idempotent.
func (d *InMemoryDirectory) Block(userID, blockedID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.profiles[userID]
	if !ok {
		p = &Profile{ID: userID}
		d.profiles[userID] = p
	}
	for _, b := range p.BlockedUsers {
		if b == blockedID {
			return
		}
	}
	p.BlockedUsers = append(p.BlockedUsers, blockedID)
}

// copyProfile returns a deep copy to avoid external modification.
func copyProfile(p *Profile) *Profile {
	c := *p
	if p.Followers != nil {
		c.Followers = make([]string, len(p.Followers))
		copy(c.Followers, p.Followers)
	}
	if p.BlockedUsers != nil {
		c.BlockedUsers = make([]string, len(p.BlockedUsers))
		copy(c.BlockedUsers, p.BlockedUsers)
	}
	return &c
}
