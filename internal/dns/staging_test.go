package dns

import (
	"context"
	"errors"
	"testing"

	"zonekeeper/backend/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &Service{db: &database.DB{DB: sqlx.NewDb(db, "sqlmock")}}, mock
}

func TestPartitionImport(t *testing.T) {
	inputs := []RecordInput{
		{RecordType: "A", Name: "www", Content: "10.0.0.1"},
		{RecordType: "A", Name: "bad", Content: "999.1.1.1"},
		{RecordType: "A", Name: "www", Content: "10.0.0.1"},
		{RecordType: "CNAME", Name: "www", Content: "example.com."},
		{RecordType: "TXT", Name: "@", Content: "v=spf1 -all"},
	}

	valid, rejected := PartitionImport(inputs)

	// Bad address, exact duplicate, and CNAME-on-occupied-name all fall out
	if len(valid) != 2 {
		t.Fatalf("valid = %d records, want 2: %+v", len(valid), valid)
	}
	if len(rejected) != 3 {
		t.Fatalf("rejected = %d messages, want 3: %v", len(rejected), rejected)
	}
	if valid[0].TTL != 3600 {
		t.Errorf("TTL not defaulted: %+v", valid[0])
	}
}

func TestReplaceAllRefusesUnusableImport(t *testing.T) {
	// No store access happens before the refusal, so a zero service is safe
	svc := &Service{}

	tests := []struct {
		name   string
		inputs []RecordInput
	}{
		{"empty import", nil},
		{"all records invalid", []RecordInput{
			{RecordType: "A", Name: "www", Content: "999.1.1.1"},
			{RecordType: "BOGUS", Name: "x", Content: "y"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ReplaceAll(context.Background(), uuid.New(), tt.inputs, Actor{})
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("error = %v, want ErrInvalidRecord", err)
			}
		})
	}
}

func TestReplaceAllCommitsAtomically(t *testing.T) {
	svc, mock := newMockService(t)
	zoneID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM zones WHERE id = \$1`).
		WithArgs(zoneID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "locked"}).
			AddRow(zoneID.String(), "example.com", false))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM records WHERE zone_id = \$1`).
		WithArgs(zoneID).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`INSERT INTO records`).
		WithArgs(zoneID, "A", "www", "10.0.0.1", nil, 3600, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO records`).
		WithArgs(zoneID, "TXT", "@", "v=spf1 -all", nil, 300, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	imported, rejected, err := svc.ReplaceAll(context.Background(), zoneID, []RecordInput{
		{RecordType: "A", Name: "www", Content: "10.0.0.1"},
		{RecordType: "TXT", Name: "@", Content: "v=spf1 -all", TTL: 300},
	}, Actor{Email: "ops@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imported != 2 || len(rejected) != 0 {
		t.Errorf("imported = %d, rejected = %v", imported, rejected)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("replace did not run inside one transaction: %v", err)
	}
}

func TestReplaceAllRollsBackOnFailure(t *testing.T) {
	svc, mock := newMockService(t)
	zoneID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM zones WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "locked"}).
			AddRow(zoneID.String(), "example.com", false))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM records WHERE zone_id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`INSERT INTO records`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, _, err := svc.ReplaceAll(context.Background(), zoneID, []RecordInput{
		{RecordType: "A", Name: "www", Content: "10.0.0.1"},
	}, Actor{})
	if err == nil {
		t.Fatal("expected error when an insert fails")
	}

	// The delete must not survive a failed insert
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("transaction not rolled back: %v", err)
	}
}

func TestReplaceAllHonorsZoneLock(t *testing.T) {
	svc, mock := newMockService(t)
	zoneID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM zones WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "locked"}).
			AddRow(zoneID.String(), "example.com", true))

	_, _, err := svc.ReplaceAll(context.Background(), zoneID, []RecordInput{
		{RecordType: "A", Name: "www", Content: "10.0.0.1"},
	}, Actor{})
	if !errors.Is(err, ErrZoneLocked) {
		t.Fatalf("error = %v, want ErrZoneLocked", err)
	}
}

func TestRestoreHonorsRecordLock(t *testing.T) {
	svc, mock := newMockService(t)
	zoneID := uuid.New()
	recordID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM records WHERE id = \$1`).
		WithArgs(recordID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone_id", "record_type", "name", "content", "ttl", "status", "locked"}).
			AddRow(recordID.String(), zoneID.String(), "A", "www", "10.0.0.1", 300, "deleted", true))

	mock.ExpectQuery(`SELECT \* FROM zones WHERE id = \$1`).
		WithArgs(zoneID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "locked"}).
			AddRow(zoneID.String(), "example.com", false))

	_, err := svc.Restore(context.Background(), recordID, Actor{})
	if !errors.Is(err, ErrRecordLocked) {
		t.Fatalf("error = %v, want ErrRecordLocked", err)
	}

	// Admins bypass the record lock and proceed to the conflict check
	mock.ExpectQuery(`SELECT \* FROM records WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone_id", "record_type", "name", "content", "ttl", "status", "locked"}).
			AddRow(recordID.String(), zoneID.String(), "A", "www", "10.0.0.1", 300, "deleted", true))
	mock.ExpectQuery(`SELECT \* FROM zones WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "locked"}).
			AddRow(zoneID.String(), "example.com", false))
	mock.ExpectQuery(`SELECT \* FROM records`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`UPDATE records`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone_id", "record_type", "name", "content", "ttl", "status", "locked"}).
			AddRow(recordID.String(), zoneID.String(), "A", "www", "10.0.0.1", 300, "pending_create", true))

	restored, err := svc.Restore(context.Background(), recordID, Actor{Admin: true})
	if err != nil {
		t.Fatalf("unexpected error for admin: %v", err)
	}
	if restored.EffectiveStatus() != "pending_create" {
		t.Errorf("restored status = %s", restored.EffectiveStatus())
	}
}
