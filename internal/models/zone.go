package models

import (
	"time"

	"github.com/google/uuid"
)

type Zone struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Domain          string     `db:"domain" json:"domain"`
	OwnerID         *uuid.UUID `db:"owner_id" json:"owner_id"`
	PrimaryServerID *uuid.UUID `db:"primary_server_id" json:"primary_server_id"`
	Locked          bool       `db:"locked" json:"locked"`
	WebhookURL      *string    `db:"webhook_url" json:"webhook_url"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ZoneWithCounts is the list view: zone plus record counters
type ZoneWithCounts struct {
	Zone
	RecordCount  int `db:"record_count" json:"record_count"`
	PendingCount int `db:"pending_count" json:"pending_count"`
}
