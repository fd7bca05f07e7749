package dns

import (
	"encoding/json"
	"fmt"

	"zonekeeper/backend/internal/models"

	"github.com/google/uuid"
)

// PublishPlan is the resolution of a zone's staged changes: which rows are
// soft-deleted, which go live as-is, and which get their fields replaced
// from draft_data. Built from a snapshot of the zone's rows, applied inside
// a single transaction.
type PublishPlan struct {
	Deletes []uuid.UUID     // pending_delete -> deleted
	Creates []uuid.UUID     // pending_create -> active
	Updates []PlannedUpdate // pending_update -> active with draft fields
}

// PlannedUpdate carries the decoded draft for one pending_update record
type PlannedUpdate struct {
	ID    uuid.UUID
	Draft models.RecordDraft
}

// BuildPublishPlan resolves the staged state of every record per the status
// state machine. Records that are already active (or deleted) are untouched.
func BuildPublishPlan(records []models.Record) (*PublishPlan, error) {
	plan := &PublishPlan{}

	for _, rec := range records {
		switch rec.EffectiveStatus() {
		case models.StatusPendingDelete:
			plan.Deletes = append(plan.Deletes, rec.ID)
		case models.StatusPendingCreate:
			plan.Creates = append(plan.Creates, rec.ID)
		case models.StatusPendingUpdate:
			if len(rec.DraftData) == 0 {
				return nil, fmt.Errorf("record %s is pending_update but has no draft", rec.ID)
			}
			var draft models.RecordDraft
			if err := json.Unmarshal(rec.DraftData, &draft); err != nil {
				return nil, fmt.Errorf("record %s has a malformed draft: %w", rec.ID, err)
			}
			plan.Updates = append(plan.Updates, PlannedUpdate{ID: rec.ID, Draft: draft})
		}
	}

	return plan, nil
}

// Empty reports whether the plan has no staged changes to resolve
func (p *PublishPlan) Empty() bool {
	return len(p.Deletes) == 0 && len(p.Creates) == 0 && len(p.Updates) == 0
}

// Summary returns a human-readable change description
func (p *PublishPlan) Summary() string {
	return fmt.Sprintf("%d created, %d updated, %d deleted",
		len(p.Creates), len(p.Updates), len(p.Deletes))
}
