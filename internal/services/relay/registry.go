package relay

import (
	"sync"

	"github.com/LeonardoBeccarini/rover_relay/internal/model/entities"
	"github.com/LeonardoBeccarini/rover_relay/internal/model/messages"
)

// Client is a downstream socket connection as seen by the registry.
type Client interface {
	ID() string
	// Send queues a frame without blocking. It reports false when the frame
	// was not queued (queue full or connection closing).
	Send(env messages.Envelope) bool
}

// Registry keeps each client in at most one role set. Membership changes and
// fan-out iterations are serialized by one mutex, so a stable member never
// misses or receives twice a frame sent while others come and go.
type Registry struct {
	mu    sync.Mutex
	roles map[string]entities.Role
	sets  map[entities.Role]map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{
		roles: make(map[string]entities.Role),
		sets: map[entities.Role]map[string]Client{
			entities.RoleDashboard: {},
			entities.RoleRover:     {},
		},
	}
}

// Register places c in the set of role. A client already holding the other
// role is moved, never kept in both sets. Registering twice is a no-op.
func (r *Registry) Register(c Client, role entities.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.roles[c.ID()]; ok && prev != role {
		delete(r.sets[prev], c.ID())
	}
	r.roles[c.ID()] = role
	r.sets[role][c.ID()] = c
}

// Unregister removes c from both sets. Unknown clients are ignored.
func (r *Registry) Unregister(c Client) entities.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	role := r.roles[c.ID()]
	delete(r.roles, c.ID())
	delete(r.sets[entities.RoleDashboard], c.ID())
	delete(r.sets[entities.RoleRover], c.ID())
	return role
}

// RoleOf returns the current role of c, RoleNone when unregistered.
func (r *Registry) RoleOf(c Client) entities.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roles[c.ID()]
}

// Counts returns the size of both sets.
func (r *Registry) Counts() (dashboards, rovers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets[entities.RoleDashboard]), len(r.sets[entities.RoleRover])
}

// SendTo queues env to every member of role. It returns how many members
// accepted the frame and how many were skipped.
func (r *Registry) SendTo(role entities.Role, env messages.Envelope) (sent, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.sets[role] {
		if c.Send(env) {
			sent++
		} else {
			skipped++
		}
	}
	return sent, skipped
}
