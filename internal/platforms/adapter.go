package platforms

import (
	"context"

	"github.com/shubh-37/multipost-agent/internal/models"
)

// Adapter publishes a single post to one social network. Publish must return
// once ctx is done.
type Adapter interface {
	Platform() models.PlatformID
	// MaxLength is the character limit for a post, 0 for none
	MaxLength() int
	Publish(ctx context.Context, in models.PublishInput) (*models.PublishResult, error)
}

// Registry holds the adapters available to the orchestrator
type Registry struct {
	adapters map[models.PlatformID]Adapter
	order    []models.PlatformID
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.PlatformID]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter, replacing any previous adapter for the same platform
func (r *Registry) Register(a Adapter) {
	if _, exists := r.adapters[a.Platform()]; !exists {
		r.order = append(r.order, a.Platform())
	}
	r.adapters[a.Platform()] = a
}

func (r *Registry) Get(platform models.PlatformID) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

// Platforms returns the registered platform ids in registration order
func (r *Registry) Platforms() []models.PlatformID {
	out := make([]models.PlatformID, len(r.order))
	copy(out, r.order)
	return out
}

// UnavailableAdapter stands in for a platform whose credentials are missing so
// requests for it fail with the configuration error instead of a lookup miss
type UnavailableAdapter struct {
	platform models.PlatformID
	err      error
}

func NewUnavailableAdapter(platform models.PlatformID, err error) *UnavailableAdapter {
	return &UnavailableAdapter{platform: platform, err: err}
}

func (a *UnavailableAdapter) Platform() models.PlatformID { return a.platform }
func (a *UnavailableAdapter) MaxLength() int               { return 0 }

func (a *UnavailableAdapter) Publish(context.Context, models.PublishInput) (*models.PublishResult, error) {
	return nil, a.err
}
