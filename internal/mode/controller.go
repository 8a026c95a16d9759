// ABOUTME: Mode controller holding the process-wide interaction mode
// ABOUTME: Single-writer value behind an accessor; never mutated by pipeline stages
package mode

import (
	"sync"

	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

// Controller owns the current interaction mode. Transitions form a fully
// connected graph: any mode may switch directly to any other. A change takes
// effect for turns dispatched after Set returns; in-flight turns keep the
// mode they were dispatched with.
type Controller struct {
	mu      sync.RWMutex
	current models.InteractionMode
}

// NewController creates a controller starting in the given mode
func NewController(initial models.InteractionMode) *Controller {
	return &Controller{current: initial}
}

// Current returns the mode in effect right now
func (c *Controller) Current() models.InteractionMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Set atomically swaps the interaction mode
func (c *Controller) Set(m models.InteractionMode) {
	c.mu.Lock()
	c.current = m
	c.mu.Unlock()
}
