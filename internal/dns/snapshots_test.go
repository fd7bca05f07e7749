package dns

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func newMockStore(t *testing.T) (*SnapshotStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSnapshotStore(&database.DB{DB: sqlx.NewDb(db, "sqlmock")}), mock
}

func TestSnapshotCreatePrunesRetention(t *testing.T) {
	store, mock := newMockStore(t)
	zoneID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM records WHERE zone_id = \$1 ORDER BY created_at`).
		WithArgs(zoneID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// The 11th create gets version 11 and must prune back to the limit
	mock.ExpectQuery(`INSERT INTO zone_snapshots`).
		WithArgs(zoneID, []byte("[]"), "ops@example.com", "Before Publish").
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone_id", "version", "payload", "author", "comment", "created_at"}).
			AddRow(uuid.New().String(), zoneID.String(), 11, []byte("[]"), "ops@example.com", "Before Publish", time.Now()))

	mock.ExpectExec(`DELETE FROM zone_snapshots`).
		WithArgs(zoneID, models.SnapshotRetention).
		WillReturnResult(sqlmock.NewResult(0, 1))

	snapshot, err := store.Create(context.Background(), zoneID, "ops@example.com", "Before Publish")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Version != 11 {
		t.Errorf("Version = %d, want 11", snapshot.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("prune not executed as expected: %v", err)
	}
}

func TestRollbackRoundTrip(t *testing.T) {
	store, mock := newMockStore(t)
	zoneID := uuid.New()
	versionID := uuid.New()

	now := time.Now().UTC().Truncate(time.Second)
	active := models.StatusActive
	deleted := models.StatusDeleted
	rec1 := models.Record{
		ID: uuid.New(), ZoneID: zoneID, RecordType: "A", Name: "www",
		Content: "10.0.0.1", TTL: 300, Status: &active, CreatedAt: now,
	}
	rec2 := models.Record{
		ID: uuid.New(), ZoneID: zoneID, RecordType: "TXT", Name: "@",
		Content: "v=spf1 -all", TTL: 3600, Status: &deleted, DeletedAt: &now, CreatedAt: now,
	}
	payload, err := json.Marshal([]models.Record{rec1, rec2})
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery(`SELECT \* FROM zone_snapshots WHERE id = \$1 AND zone_id = \$2`).
		WithArgs(versionID, zoneID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone_id", "version", "payload", "author", "comment", "created_at"}).
			AddRow(versionID.String(), zoneID.String(), 4, payload, "ops@example.com", "Publish Completed", now))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM records WHERE zone_id = \$1`).
		WithArgs(zoneID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	// Every snapshotted record comes back with its id, status, and
	// deleted_at intact
	mock.ExpectExec(`INSERT INTO records`).
		WithArgs(rec1.ID, zoneID, "A", "www", "10.0.0.1", nil, 300,
			"active", sqlmock.AnyArg(), sqlmock.AnyArg(), false, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO records`).
		WithArgs(rec2.ID, zoneID, "TXT", "@", "v=spf1 -all", nil, 3600,
			"deleted", sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	version, err := store.Rollback(context.Background(), zoneID, versionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 4 {
		t.Errorf("version = %d, want 4", version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("restore did not replay the payload: %v", err)
	}
}

func TestRollbackFailureRestoresNothing(t *testing.T) {
	store, mock := newMockStore(t)
	zoneID := uuid.New()
	versionID := uuid.New()

	rec := models.Record{ID: uuid.New(), ZoneID: zoneID, RecordType: "A", Name: "www", Content: "10.0.0.1", TTL: 300}
	payload, _ := json.Marshal([]models.Record{rec})

	mock.ExpectQuery(`SELECT \* FROM zone_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone_id", "version", "payload", "author", "comment", "created_at"}).
			AddRow(versionID.String(), zoneID.String(), 2, payload, "", "", time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO records`).WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	if _, err := store.Rollback(context.Background(), zoneID, versionID); err == nil {
		t.Fatal("expected error when a restore insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("transaction not rolled back: %v", err)
	}
}
