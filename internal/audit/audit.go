package audit

import (
	"log"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	EventLogin          EventType = "login"
	EventLoginFailed    EventType = "login_failed"
	EventUserCreated    EventType = "user_created"
	EventZoneCreated    EventType = "zone_created"
	EventZoneDeleted    EventType = "zone_deleted"
	EventZoneLocked     EventType = "zone_locked"
	EventZoneUnlocked   EventType = "zone_unlocked"
	EventRecordLocked   EventType = "record_locked"
	EventRecordUnlocked EventType = "record_unlocked"
	EventPublish        EventType = "zone_published"
	EventRollback       EventType = "zone_rollback"
	EventImport         EventType = "zone_import"
	EventNodeAdded      EventType = "node_added"
	EventNodeRemoved    EventType = "node_removed"
	EventDNSSECEnabled  EventType = "dnssec_enabled"
)

// Log records an audit event
// In production, this should write to a database or external audit service
func Log(eventType EventType, userID, targetID string, details map[string]interface{}) {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	log.Printf("AUDIT [%s] event=%s user=%s target=%s details=%v",
		timestamp, eventType, userID, targetID, details)
}
