// Package publisher defines the platform delivery interface and its
// implementations. Each publisher turns approved post content into a live
// platform post and reports the platform's identifier for it.
package publisher

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// PublishRequest carries everything a publisher needs for one delivery.
type PublishRequest struct {
	AccessToken    string
	MemberIdentity string
	Content        string
}

// PublishResult reports a successful delivery.
type PublishResult struct {
	ExternalPostID string
}

// Publisher delivers content to one platform.
type Publisher interface {
	// Platform returns the lowercase platform key, e.g. "linkedin".
	Platform() string
	// CharacterLimit returns the platform's maximum post length in runes.
	CharacterLimit() int
	// ResolveIdentity exchanges an access token for the platform's member
	// identity used when attributing posts.
	ResolveIdentity(ctx context.Context, accessToken string) (string, error)
	// Publish creates the platform post.
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}

// Registry holds publishers keyed by platform.
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
}

// NewRegistry builds a registry from the provided publishers.
func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[string]Publisher, len(publishers))}
	for _, p := range publishers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the publisher for its platform.
func (r *Registry) Register(p Publisher) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[strings.ToLower(p.Platform())] = p
}

// Get returns the publisher for the platform, if registered.
func (r *Registry) Get(platform string) (Publisher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.publishers[strings.ToLower(strings.TrimSpace(platform))]
	return p, ok
}

// Platforms returns the sorted list of registered platform keys.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.publishers))
	for key := range r.publishers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
