package cluster

import (
	"context"
	"fmt"
	"log"
	"sync"

	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"
)

// Registry is the process-scoped cache of DNS-capable nodes. It is loaded
// from the server registry at startup and refreshed on membership changes
// or on demand; call sites read the cached list instead of re-querying.
type Registry struct {
	db    *database.DB
	mu    sync.RWMutex
	nodes []models.Server
}

func NewRegistry(db *database.DB) *Registry {
	return &Registry{db: db}
}

// Reload re-queries the server registry for nodes advertising the dns
// capability and swaps the cached member list.
func (r *Registry) Reload(ctx context.Context) error {
	var nodes []models.Server
	err := r.db.SelectContext(ctx, &nodes, `
		SELECT * FROM servers
		WHERE $1 = ANY(capabilities)
		ORDER BY is_primary DESC, name
	`, models.CapabilityDNS)
	if err != nil {
		return fmt.Errorf("failed to load cluster membership: %w", err)
	}

	r.mu.Lock()
	r.nodes = nodes
	r.mu.Unlock()

	log.Printf("Cluster registry reloaded: %d DNS nodes", len(nodes))
	return nil
}

// Nodes returns a copy of the cached member list
func (r *Registry) Nodes() []models.Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodes := make([]models.Server, len(r.nodes))
	copy(nodes, r.nodes)
	return nodes
}

// Count returns the cached cluster size
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
