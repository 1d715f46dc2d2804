package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/walletbot/ingress/internal/ratelimit"
)

// Router dispatches requests by command name. Plain messages and unknown
// commands go to the fallback handler.
type Router struct {
	mu       sync.RWMutex
	routes   map[string]Handler
	fallback Handler
}

// NewRouter constructs a Router with the given fallback.
func NewRouter(fallback Handler) *Router {
	return &Router{routes: make(map[string]Handler), fallback: fallback}
}

// Register binds command to h, replacing any earlier binding.
func (r *Router) Register(command string, h Handler) {
	r.mu.Lock()
	r.routes[ratelimit.NormalizeCommand(command)] = h
	r.mu.Unlock()
}

// Commands lists registered command names in order.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for cmd := range r.routes {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, req Request) (string, error) {
	r.mu.RLock()
	h := r.routes[req.Command]
	r.mu.RUnlock()
	if h == nil {
		h = r.fallback
	}
	if h == nil {
		return MessageUnknownCommand, nil
	}
	return h.Handle(ctx, req)
}
