package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SnapshotRetention is how many versions are kept per zone
const SnapshotRetention = 10

// VersionSnapshot is an immutable capture of a zone's full record list,
// used for rollback. Versions are monotonic per zone.
type VersionSnapshot struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ZoneID    uuid.UUID       `db:"zone_id" json:"zone_id"`
	Version   int             `db:"version" json:"version"`
	Payload   json.RawMessage `db:"payload" json:"-"`
	Author    string          `db:"author" json:"author"`
	Comment   string          `db:"comment" json:"comment"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// SnapshotInfo is the history list view without the payload blob
type SnapshotInfo struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ZoneID      uuid.UUID `db:"zone_id" json:"zone_id"`
	Version     int       `db:"version" json:"version"`
	Author      string    `db:"author" json:"author"`
	Comment     string    `db:"comment" json:"comment"`
	RecordCount int       `db:"record_count" json:"record_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
