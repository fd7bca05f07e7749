package dns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"

	"github.com/google/uuid"
)

// SnapshotStore keeps the bounded per-zone version history used for rollback
type SnapshotStore struct {
	db *database.DB
}

func NewSnapshotStore(db *database.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Create captures the zone's full record list as the next version and prunes
// history beyond the retention limit. Live records are not touched.
func (s *SnapshotStore) Create(ctx context.Context, zoneID uuid.UUID, author, comment string) (*models.VersionSnapshot, error) {
	var records []models.Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT * FROM records WHERE zone_id = $1 ORDER BY created_at
	`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for snapshot: %w", err)
	}
	if records == nil {
		records = []models.Record{}
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	var snapshot models.VersionSnapshot
	err = s.db.GetContext(ctx, &snapshot, `
		INSERT INTO zone_snapshots (zone_id, version, payload, author, comment)
		VALUES ($1, (SELECT COALESCE(MAX(version), 0) + 1 FROM zone_snapshots WHERE zone_id = $1), $2, $3, $4)
		RETURNING *
	`, zoneID, payload, author, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	// Prune beyond retention
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM zone_snapshots
		WHERE zone_id = $1 AND id NOT IN (
			SELECT id FROM zone_snapshots WHERE zone_id = $1 ORDER BY version DESC LIMIT $2
		)
	`, zoneID, models.SnapshotRetention)
	if err != nil {
		log.Printf("Failed to prune snapshots for zone %s: %v", zoneID, err)
	}

	return &snapshot, nil
}

// History returns all snapshots for a zone, newest first, without payloads
func (s *SnapshotStore) History(ctx context.Context, zoneID uuid.UUID) ([]models.SnapshotInfo, error) {
	var history []models.SnapshotInfo
	err := s.db.SelectContext(ctx, &history, `
		SELECT id, zone_id, version, author, comment,
		       jsonb_array_length(payload) AS record_count, created_at
		FROM zone_snapshots
		WHERE zone_id = $1
		ORDER BY version DESC
	`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}
	if history == nil {
		history = []models.SnapshotInfo{}
	}
	return history, nil
}

// Rollback replaces the zone's entire record set with the snapshot's payload
// inside one transaction and returns the restored version number. Cluster
// sync is not triggered; callers re-sync explicitly, as with publish.
func (s *SnapshotStore) Rollback(ctx context.Context, zoneID, versionID uuid.UUID) (int, error) {
	var snapshot models.VersionSnapshot
	err := s.db.GetContext(ctx, &snapshot, `
		SELECT * FROM zone_snapshots WHERE id = $1 AND zone_id = $2
	`, versionID, zoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: snapshot %s for zone %s", ErrNotFound, versionID, zoneID)
		}
		return 0, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var records []models.Record
	if err := json.Unmarshal(snapshot.Payload, &records); err != nil {
		return 0, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin rollback transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE zone_id = $1`, zoneID); err != nil {
		return 0, fmt.Errorf("failed to clear zone records: %w", err)
	}

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (id, zone_id, record_type, name, content, priority, ttl,
			                     status, draft_data, routing_policy, locked, deleted_at,
			                     created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		`, rec.ID, zoneID, rec.RecordType, rec.Name, rec.Content, rec.Priority, rec.TTL,
			rec.Status, rec.DraftData, rec.RoutingPolicy, rec.Locked, rec.DeletedAt, rec.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to restore record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rollback: %w", err)
	}

	return snapshot.Version, nil
}
