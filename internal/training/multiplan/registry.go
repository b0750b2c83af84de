package multiplan

import (
	"sync"

	"github.com/lunaugust/plantracker/internal/telemetry/metrics"
)

// Registry hands out one Coordinator per scope, creating it lazily.
type Registry struct {
	repo    planRepo
	metrics *metrics.Manager

	mutex        sync.Mutex
	coordinators map[string]*Coordinator
}

func NewRegistry(repo planRepo, metricsManager *metrics.Manager) *Registry {
	return &Registry{
		repo:         repo,
		metrics:      metricsManager,
		coordinators: map[string]*Coordinator{},
	}
}

func (r *Registry) ForScope(scope string) *Coordinator {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if c, ok := r.coordinators[scope]; ok {
		return c
	}
	c := NewCoordinator(scope, r.repo, r.metrics)
	r.coordinators[scope] = c
	return c
}

// Drop invalidates and forgets the coordinator for a scope, e.g. on logout.
func (r *Registry) Drop(scope string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if c, ok := r.coordinators[scope]; ok {
		c.Invalidate()
		delete(r.coordinators, scope)
	}
}
