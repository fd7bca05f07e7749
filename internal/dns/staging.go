package dns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"zonekeeper/backend/internal/cluster"
	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Actor identifies the caller for lock gates and snapshot attribution.
// Admins bypass zone and record locks.
type Actor struct {
	ID    string
	Email string
	Admin bool
}

// RecordInput carries the caller-supplied fields for a create or update
type RecordInput struct {
	RecordType    string          `json:"record_type"`
	Name          string          `json:"name"`
	Content       string          `json:"content"`
	Priority      *int            `json:"priority"`
	TTL           int             `json:"ttl"`
	RoutingPolicy json.RawMessage `json:"routing_policy"`
}

// PublishResult summarizes one publish: the local commit counts plus the
// per-node sync outcomes. The commit is the durability boundary; sync
// failures are reported here, never rolled back.
type PublishResult struct {
	Summary string              `json:"summary"`
	Created int                 `json:"created"`
	Updated int                 `json:"updated"`
	Deleted int                 `json:"deleted"`
	Sync    *cluster.SyncReport `json:"sync,omitempty"`
}

// Service owns all record status transitions and the zone-wide publish
type Service struct {
	db        *database.DB
	snapshots *SnapshotStore
	cluster   *cluster.Engine
	notifier  *WebhookNotifier
	mirror    *Mirror
}

func NewService(db *database.DB, snapshots *SnapshotStore, engine *cluster.Engine, notifier *WebhookNotifier, mirror *Mirror) *Service {
	return &Service{
		db:        db,
		snapshots: snapshots,
		cluster:   engine,
		notifier:  notifier,
		mirror:    mirror,
	}
}

func (s *Service) Snapshots() *SnapshotStore {
	return s.snapshots
}

func (s *Service) Cluster() *cluster.Engine {
	return s.cluster
}

// GetZone loads a zone by id
func (s *Service) GetZone(ctx context.Context, zoneID uuid.UUID) (*models.Zone, error) {
	var zone models.Zone
	err := s.db.GetContext(ctx, &zone, `SELECT * FROM zones WHERE id = $1`, zoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load zone: %w", err)
	}
	return &zone, nil
}

// GetRecord loads a record by id
func (s *Service) GetRecord(ctx context.Context, recordID uuid.UUID) (*models.Record, error) {
	var record models.Record
	err := s.db.GetContext(ctx, &record, `SELECT * FROM records WHERE id = $1`, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", recordID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return &record, nil
}

// ZoneRecords loads every non-deleted record of a zone
func (s *Service) ZoneRecords(ctx context.Context, zoneID uuid.UUID) ([]models.Record, error) {
	var records []models.Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT * FROM records
		WHERE zone_id = $1 AND (status IS NULL OR status != 'deleted')
		ORDER BY name, record_type
	`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone records: %w", err)
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, nil
}

// checkZoneWritable enforces the zone lock gate for the acting caller
func (s *Service) checkZoneWritable(zone *models.Zone, actor Actor) error {
	if zone.Locked && !actor.Admin {
		return fmt.Errorf("%w: %s", ErrZoneLocked, zone.Domain)
	}
	return nil
}

func checkRecordWritable(record *models.Record, actor Actor) error {
	if record.Locked && !actor.Admin {
		return fmt.Errorf("%w: %s", ErrRecordLocked, record.ID)
	}
	return nil
}

func normalizeInput(in *RecordInput) {
	if in.TTL <= 0 {
		in.TTL = 3600
	}
	if in.RecordType != "MX" && in.RecordType != "SRV" {
		in.Priority = nil
	}
}

// StageCreate validates and inserts a new record. Without autoPublish the
// record is staged as pending_create; with it the record goes live at once
// and the zone is synced to the cluster.
func (s *Service) StageCreate(ctx context.Context, zoneID uuid.UUID, in RecordInput, actor Actor, autoPublish bool) (*models.Record, *Analysis, error) {
	zone, err := s.GetZone(ctx, zoneID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkZoneWritable(zone, actor); err != nil {
		return nil, nil, err
	}

	normalizeInput(&in)
	if err := ValidateFormat(in.RecordType, in.Name, in.Content, in.Priority, in.RoutingPolicy); err != nil {
		return nil, nil, err
	}

	existing, err := s.ZoneRecords(ctx, zoneID)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateConflicts(existing, in.RecordType, in.Name, in.Content, uuid.Nil); err != nil {
		return nil, nil, err
	}

	status := models.StatusPendingCreate
	if autoPublish {
		status = models.StatusActive
	}

	var record models.Record
	err = s.db.GetContext(ctx, &record, `
		INSERT INTO records (zone_id, record_type, name, content, priority, ttl, status, routing_policy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, zoneID, in.RecordType, in.Name, in.Content, in.Priority, in.TTL, status, nullableJSON(in.RoutingPolicy))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create record: %w", err)
	}

	if autoPublish {
		s.syncAfterWrite(ctx, zone)
	}

	return &record, Analyze(in.RecordType, in.Name, in.Content), nil
}

// StageUpdate applies the edit transition rules to an existing record
func (s *Service) StageUpdate(ctx context.Context, recordID uuid.UUID, in RecordInput, actor Actor, autoPublish bool) (*models.Record, *Analysis, error) {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}
	zone, err := s.GetZone(ctx, record.ZoneID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkZoneWritable(zone, actor); err != nil {
		return nil, nil, err
	}
	if err := checkRecordWritable(record, actor); err != nil {
		return nil, nil, err
	}

	normalizeInput(&in)
	if err := ValidateFormat(in.RecordType, in.Name, in.Content, in.Priority, in.RoutingPolicy); err != nil {
		return nil, nil, err
	}

	existing, err := s.ZoneRecords(ctx, record.ZoneID)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateConflicts(existing, in.RecordType, in.Name, in.Content, record.ID); err != nil {
		return nil, nil, err
	}

	var updated models.Record
	switch record.EffectiveStatus() {
	case models.StatusPendingCreate:
		// Never went live: overwrite in place, no draft needed
		err = s.db.GetContext(ctx, &updated, `
			UPDATE records
			SET record_type = $1, name = $2, content = $3, priority = $4, ttl = $5,
			    routing_policy = $6, updated_at = NOW()
			WHERE id = $7
			RETURNING *
		`, in.RecordType, in.Name, in.Content, in.Priority, in.TTL, nullableJSON(in.RoutingPolicy), record.ID)

	case models.StatusActive, models.StatusPendingUpdate:
		if autoPublish {
			err = s.db.GetContext(ctx, &updated, `
				UPDATE records
				SET record_type = $1, name = $2, content = $3, priority = $4, ttl = $5,
				    routing_policy = $6, status = 'active', draft_data = NULL, updated_at = NOW()
				WHERE id = $7
				RETURNING *
			`, in.RecordType, in.Name, in.Content, in.Priority, in.TTL, nullableJSON(in.RoutingPolicy), record.ID)
		} else {
			// Live fields stay untouched until publish; the edit is held as a draft
			draft, merr := json.Marshal(models.RecordDraft{
				RecordType:    in.RecordType,
				Name:          in.Name,
				Content:       in.Content,
				Priority:      in.Priority,
				TTL:           in.TTL,
				RoutingPolicy: in.RoutingPolicy,
			})
			if merr != nil {
				return nil, nil, fmt.Errorf("failed to encode draft: %w", merr)
			}
			err = s.db.GetContext(ctx, &updated, `
				UPDATE records
				SET status = 'pending_update', draft_data = $1, updated_at = NOW()
				WHERE id = $2
				RETURNING *
			`, draft, record.ID)
		}

	case models.StatusPendingDelete:
		return nil, nil, fmt.Errorf("%w: record %s is pending deletion; restore it first", ErrConflict, record.ID)

	case models.StatusDeleted:
		return nil, nil, fmt.Errorf("record %s: %w", record.ID, ErrNotFound)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("failed to update record: %w", err)
	}

	if autoPublish && updated.IsServed() {
		s.syncAfterWrite(ctx, zone)
	}

	return &updated, Analyze(in.RecordType, in.Name, in.Content), nil
}

// StageDelete applies the deletion transition rules to a record
func (s *Service) StageDelete(ctx context.Context, recordID uuid.UUID, actor Actor, autoPublish bool) error {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	zone, err := s.GetZone(ctx, record.ZoneID)
	if err != nil {
		return err
	}
	if err := s.checkZoneWritable(zone, actor); err != nil {
		return err
	}
	if err := checkRecordWritable(record, actor); err != nil {
		return err
	}

	switch record.EffectiveStatus() {
	case models.StatusPendingCreate:
		// Never went live: nothing to retract, remove the row outright
		_, err = s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, record.ID)
		if err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		return nil

	case models.StatusActive, models.StatusPendingUpdate:
		if autoPublish {
			_, err = s.db.ExecContext(ctx, `
				UPDATE records
				SET status = 'deleted', draft_data = NULL, deleted_at = NOW(), updated_at = NOW()
				WHERE id = $1
			`, record.ID)
			if err != nil {
				return fmt.Errorf("failed to delete record: %w", err)
			}
			s.syncAfterWrite(ctx, zone)
			return nil
		}
		_, err = s.db.ExecContext(ctx, `
			UPDATE records
			SET status = 'pending_delete', draft_data = NULL, updated_at = NOW()
			WHERE id = $1
		`, record.ID)
		if err != nil {
			return fmt.Errorf("failed to stage record deletion: %w", err)
		}
		return nil

	case models.StatusPendingDelete:
		return nil // already staged

	default:
		return fmt.Errorf("record %s: %w", record.ID, ErrNotFound)
	}
}

// Publish atomically resolves every staged record in the zone, then pushes
// the new active set to the cluster. Steps: pre-snapshot, transactional
// resolution, cluster sync, post-snapshot, webhook. The transaction is
// all-or-nothing; everything after it is best-effort and reported.
func (s *Service) Publish(ctx context.Context, zoneID uuid.UUID, actor Actor) (*PublishResult, error) {
	zone, err := s.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if err := s.checkZoneWritable(zone, actor); err != nil {
		return nil, err
	}

	if _, err := s.snapshots.Create(ctx, zoneID, actor.Email, "Before Publish"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin publish transaction: %w", err)
	}
	defer tx.Rollback()

	var staged []models.Record
	err = tx.SelectContext(ctx, &staged, `
		SELECT * FROM records
		WHERE zone_id = $1 AND status IN ('pending_create', 'pending_update', 'pending_delete')
	`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load staged records: %w", err)
	}

	plan, err := BuildPublishPlan(staged)
	if err != nil {
		return nil, err
	}

	if len(plan.Deletes) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE records
			SET status = 'deleted', draft_data = NULL, deleted_at = NOW(), updated_at = NOW()
			WHERE id = ANY($1)
		`, pq.Array(plan.Deletes))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve pending deletes: %w", err)
		}
	}

	if len(plan.Creates) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE records
			SET status = 'active', updated_at = NOW()
			WHERE id = ANY($1)
		`, pq.Array(plan.Creates))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve pending creates: %w", err)
		}
	}

	for _, upd := range plan.Updates {
		_, err = tx.ExecContext(ctx, `
			UPDATE records
			SET record_type = $1, name = $2, content = $3, priority = $4, ttl = $5,
			    routing_policy = $6, status = 'active', draft_data = NULL, updated_at = NOW()
			WHERE id = $7
		`, upd.Draft.RecordType, upd.Draft.Name, upd.Draft.Content, upd.Draft.Priority,
			upd.Draft.TTL, nullableJSON(upd.Draft.RoutingPolicy), upd.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve pending update %s: %w", upd.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}

	result := &PublishResult{
		Summary: plan.Summary(),
		Created: len(plan.Creates),
		Updated: len(plan.Updates),
		Deleted: len(plan.Deletes),
	}

	// Local commit is the durability boundary; per-node failures are
	// surfaced in the report so operators can re-trigger sync.
	report, err := s.cluster.SyncZone(ctx, zoneID)
	if err != nil {
		log.Printf("Cluster sync after publishing %s failed: %v", zone.Domain, err)
	} else {
		result.Sync = report
	}

	if _, err := s.snapshots.Create(ctx, zoneID, actor.Email, "Publish Completed"); err != nil {
		log.Printf("Post-publish snapshot for %s failed: %v", zone.Domain, err)
	}

	if zone.WebhookURL != nil && *zone.WebhookURL != "" {
		s.notifier.NotifyPublish(*zone.WebhookURL, zone.Domain, result.Created, result.Updated, result.Deleted)
	}

	s.mirrorZone(ctx, zone)

	return result, nil
}

// PreviewPending returns the working diff: every record not currently active
func (s *Service) PreviewPending(ctx context.Context, zoneID uuid.UUID) ([]models.Record, error) {
	var records []models.Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT * FROM records
		WHERE zone_id = $1 AND status IN ('pending_create', 'pending_update', 'pending_delete')
		ORDER BY name, record_type
	`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending records: %w", err)
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, nil
}

// ListDeleted returns the zone's soft-deleted records
func (s *Service) ListDeleted(ctx context.Context, zoneID uuid.UUID) ([]models.Record, error) {
	var records []models.Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT * FROM records
		WHERE zone_id = $1 AND status = 'deleted'
		ORDER BY deleted_at DESC
	`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted records: %w", err)
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, nil
}

// Restore moves a soft-deleted record back to pending_create; it must be
// republished to go live again.
func (s *Service) Restore(ctx context.Context, recordID uuid.UUID, actor Actor) (*models.Record, error) {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	zone, err := s.GetZone(ctx, record.ZoneID)
	if err != nil {
		return nil, err
	}
	if err := s.checkZoneWritable(zone, actor); err != nil {
		return nil, err
	}
	if err := checkRecordWritable(record, actor); err != nil {
		return nil, err
	}
	if record.EffectiveStatus() != models.StatusDeleted {
		return nil, fmt.Errorf("%w: record %s is not deleted", ErrConflict, recordID)
	}

	existing, err := s.ZoneRecords(ctx, record.ZoneID)
	if err != nil {
		return nil, err
	}
	if err := ValidateConflicts(existing, record.RecordType, record.Name, record.Content, record.ID); err != nil {
		return nil, err
	}

	var restored models.Record
	err = s.db.GetContext(ctx, &restored, `
		UPDATE records
		SET status = 'pending_create', deleted_at = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore record: %w", err)
	}
	return &restored, nil
}

// Purge permanently removes a soft-deleted record
func (s *Service) Purge(ctx context.Context, recordID uuid.UUID, actor Actor) error {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	zone, err := s.GetZone(ctx, record.ZoneID)
	if err != nil {
		return err
	}
	if err := s.checkZoneWritable(zone, actor); err != nil {
		return err
	}
	if record.EffectiveStatus() != models.StatusDeleted {
		return fmt.Errorf("%w: record %s is not deleted", ErrConflict, recordID)
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, recordID)
	if err != nil {
		return fmt.Errorf("failed to purge record: %w", err)
	}
	return nil
}

// PartitionImport validates candidate records against the format rules and
// against each other (duplicates, CNAME exclusivity within the new set),
// returning the usable inputs plus a message per rejected one. Pure.
func PartitionImport(inputs []RecordInput) ([]RecordInput, []string) {
	valid := []RecordInput{}
	accepted := []models.Record{}
	rejected := []string{}

	for _, in := range inputs {
		normalizeInput(&in)
		if err := ValidateFormat(in.RecordType, in.Name, in.Content, in.Priority, in.RoutingPolicy); err != nil {
			rejected = append(rejected, fmt.Sprintf("%s %s: %v", in.RecordType, in.Name, err))
			continue
		}
		if err := ValidateConflicts(accepted, in.RecordType, in.Name, in.Content, uuid.Nil); err != nil {
			rejected = append(rejected, fmt.Sprintf("%s %s: %v", in.RecordType, in.Name, err))
			continue
		}
		valid = append(valid, in)
		accepted = append(accepted, models.Record{
			ID:         uuid.New(),
			RecordType: in.RecordType,
			Name:       in.Name,
			Content:    in.Content,
		})
	}

	return valid, rejected
}

// ReplaceAll swaps the zone's entire record set for the given inputs. The
// inputs are validated up front and the swap is refused when none survive;
// the delete and the staged inserts run in one transaction, so the
// replacement commits whole or not at all. Replacements are staged as
// pending_create and go live on the next publish.
func (s *Service) ReplaceAll(ctx context.Context, zoneID uuid.UUID, inputs []RecordInput, actor Actor) (int, []string, error) {
	valid, rejected := PartitionImport(inputs)
	if len(valid) == 0 {
		return 0, rejected, fmt.Errorf("%w: import contains no usable records", ErrInvalidRecord)
	}

	zone, err := s.GetZone(ctx, zoneID)
	if err != nil {
		return 0, rejected, err
	}
	if err := s.checkZoneWritable(zone, actor); err != nil {
		return 0, rejected, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, rejected, fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE zone_id = $1`, zoneID); err != nil {
		return 0, rejected, fmt.Errorf("failed to clear zone records: %w", err)
	}

	for _, in := range valid {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (zone_id, record_type, name, content, priority, ttl, status, routing_policy)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending_create', $7)
		`, zoneID, in.RecordType, in.Name, in.Content, in.Priority, in.TTL, nullableJSON(in.RoutingPolicy))
		if err != nil {
			return 0, rejected, fmt.Errorf("failed to stage imported record %s %s: %w", in.RecordType, in.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, rejected, fmt.Errorf("failed to commit replace: %w", err)
	}

	return len(valid), rejected, nil
}

// SetZoneLock toggles the zone's advisory lock flag
func (s *Service) SetZoneLock(ctx context.Context, zoneID uuid.UUID, locked bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE zones SET locked = $1, updated_at = NOW() WHERE id = $2
	`, locked, zoneID)
	if err != nil {
		return fmt.Errorf("failed to update zone lock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
	}
	return nil
}

// SetRecordLock toggles the record's advisory lock flag
func (s *Service) SetRecordLock(ctx context.Context, recordID uuid.UUID, locked bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET locked = $1, updated_at = NOW() WHERE id = $2
	`, locked, recordID)
	if err != nil {
		return fmt.Errorf("failed to update record lock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s: %w", recordID, ErrNotFound)
	}
	return nil
}

// syncAfterWrite pushes the zone after a single auto-published write.
// Failures are logged; the local write already succeeded.
func (s *Service) syncAfterWrite(ctx context.Context, zone *models.Zone) {
	report, err := s.cluster.SyncZone(ctx, zone.ID)
	if err != nil {
		log.Printf("Cluster sync for zone %s failed: %v", zone.Domain, err)
		return
	}
	if report.SuccessCount < report.TotalNodes {
		log.Printf("Zone %s synced to %d/%d nodes", zone.Domain, report.SuccessCount, report.TotalNodes)
	}
	s.mirrorZone(ctx, zone)
}

// mirrorZone pushes the zone's active set to the external provider mirror,
// when one is configured. Best-effort, like cluster sync.
func (s *Service) mirrorZone(ctx context.Context, zone *models.Zone) {
	if s.mirror == nil {
		return
	}
	records, err := s.cluster.ActiveRecords(ctx, zone.ID)
	if err != nil {
		log.Printf("Mirror: failed to load active records for %s: %v", zone.Domain, err)
		return
	}
	if err := s.mirror.PushZone(ctx, zone.Domain, records); err != nil {
		log.Printf("Mirror push for zone %s failed: %v", zone.Domain, err)
	}
}

// nullableJSON maps an empty RawMessage to SQL NULL
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return []byte(raw)
}
