package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CapabilityDNS marks a server as a member of the DNS cluster
const CapabilityDNS = "dns"

// Server is an entry in the general server registry. Cluster membership is a
// capability flag, not a separate table.
type Server struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Hostname     *string        `db:"hostname" json:"hostname"`
	Address      string         `db:"address" json:"address"`
	APIPort      int            `db:"api_port" json:"api_port"`
	APIKey       string         `db:"api_key" json:"-"`
	Capabilities pq.StringArray `db:"capabilities" json:"capabilities"`
	IsPrimary    bool           `db:"is_primary" json:"is_primary"`
	LastSeen     *time.Time     `db:"last_seen" json:"last_seen"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasCapability reports whether the server advertises the given capability
func (s *Server) HasCapability(cap string) bool {
	for _, c := range s.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// DisplayName returns the hostname or name as fallback
func (s *Server) DisplayName() string {
	if s.Hostname != nil && *s.Hostname != "" {
		return *s.Hostname
	}
	return s.Name
}
