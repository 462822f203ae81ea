package routing

import (
	"context"

	"github.com/davidbz/howl/internal/domain"
)

// FallbackRouter computes the candidate provider order for a call: the
// effective primary first, then the configured fallbacks in their given
// order with the effective primary deduplicated out.
type FallbackRouter struct {
	primary   string
	fallbacks []string
}

// NewFallbackRouter creates a new router.
func NewFallbackRouter(primary string, fallbacks []string) *FallbackRouter {
	return &FallbackRouter{
		primary:   primary,
		fallbacks: fallbacks,
	}
}

// Candidates returns the ordered provider names to try for this request.
// A per-request provider override replaces the configured primary.
func (r *FallbackRouter) Candidates(_ context.Context, req *domain.RouteRequest) []string {
	primary := r.primary
	if req != nil && req.Provider != "" {
		primary = req.Provider
	}

	order := make([]string, 0, len(r.fallbacks)+1)
	order = append(order, primary)
	for _, name := range r.fallbacks {
		if name != primary {
			order = append(order, name)
		}
	}

	return order
}
