package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RecordStatus is the staging state of a record. Only "active" records are
// served by cluster nodes; the pending_* states are resolved by publish.
type RecordStatus string

const (
	StatusActive        RecordStatus = "active"
	StatusPendingCreate RecordStatus = "pending_create"
	StatusPendingUpdate RecordStatus = "pending_update"
	StatusPendingDelete RecordStatus = "pending_delete"
	StatusDeleted       RecordStatus = "deleted"
)

// RecordTypes lists the supported resource record types
var RecordTypes = []string{"A", "AAAA", "CNAME", "MX", "TXT", "NS", "SRV", "CAA"}

// IsValidRecordType checks if the given type is a supported DNS record type
func IsValidRecordType(recordType string) bool {
	for _, t := range RecordTypes {
		if t == recordType {
			return true
		}
	}
	return false
}

type Record struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ZoneID        uuid.UUID       `db:"zone_id" json:"zone_id"`
	RecordType    string          `db:"record_type" json:"record_type"`
	Name          string          `db:"name" json:"name"` // subdomain: www, @, *
	Content       string          `db:"content" json:"content"`
	Priority      *int            `db:"priority" json:"priority"` // MX, SRV
	TTL           int             `db:"ttl" json:"ttl"`
	Status        *RecordStatus   `db:"status" json:"status"` // null on legacy rows means active
	DraftData     json.RawMessage `db:"draft_data" json:"draft_data"`
	RoutingPolicy json.RawMessage `db:"routing_policy" json:"routing_policy"`
	Locked        bool            `db:"locked" json:"locked"`
	DeletedAt     *time.Time      `db:"deleted_at" json:"deleted_at"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus maps null-status legacy rows to active
func (r *Record) EffectiveStatus() RecordStatus {
	if r.Status == nil {
		return StatusActive
	}
	return *r.Status
}

// IsServed reports whether the record belongs in the zone's live record set
func (r *Record) IsServed() bool {
	return r.EffectiveStatus() == StatusActive
}

// RecordDraft is the pending replacement held in draft_data until publish
type RecordDraft struct {
	RecordType    string          `json:"record_type"`
	Name          string          `json:"name"`
	Content       string          `json:"content"`
	Priority      *int            `json:"priority,omitempty"`
	TTL           int             `json:"ttl"`
	RoutingPolicy json.RawMessage `json:"routing_policy,omitempty"`
}

// Routing policy tags
const (
	PolicyWeighted = "weighted"
	PolicyGeo      = "geo"
	PolicyFailover = "failover"
)

// RoutingPolicy is the tagged variant stored in the routing_policy column
type RoutingPolicy struct {
	Type           string  `json:"type"` // weighted, geo, failover
	Weight         *int    `json:"weight,omitempty"`
	Region         *string `json:"region,omitempty"`
	HealthCheckURL *string `json:"health_check_url,omitempty"`
}
