package handlers

import (
	"encoding/json"
	"net/http"

	"zonekeeper/backend/internal/audit"
	"zonekeeper/backend/internal/dns"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type SnapshotsHandler struct {
	staging *dns.Service
}

func NewSnapshotsHandler(staging *dns.Service) *SnapshotsHandler {
	return &SnapshotsHandler{staging: staging}
}

type CreateSnapshotRequest struct {
	Comment string `json:"comment"`
}

// CreateSnapshot captures the zone's current record set as a new version
func (h *SnapshotsHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	// The zone must exist; snapshots of unknown zones would otherwise
	// silently create empty history.
	if _, err := h.staging.GetZone(r.Context(), zoneID); err != nil {
		serviceError(w, err)
		return
	}

	var req CreateSnapshotRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Comment == "" {
		req.Comment = "Manual snapshot"
	}

	snapshot, err := h.staging.Snapshots().Create(r.Context(), zoneID, actorFrom(r).Email, req.Comment)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"version":    snapshot.Version,
		"comment":    snapshot.Comment,
		"created_at": snapshot.CreatedAt,
	})
}

// GetHistory returns the zone's snapshots, newest first
func (h *SnapshotsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	history, err := h.staging.Snapshots().History(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// Rollback replaces the zone's live record set with a snapshot's payload.
// Cluster sync is intentionally left to the caller.
func (h *SnapshotsHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	zoneID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}
	versionID, err := uuid.Parse(vars["versionId"])
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	actor := actorFrom(r)
	zone, err := h.staging.GetZone(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}
	if zone.Locked && !actor.Admin {
		http.Error(w, "Zone is locked", http.StatusLocked)
		return
	}

	version, err := h.staging.Snapshots().Rollback(r.Context(), zoneID, versionID)
	if err != nil {
		serviceError(w, err)
		return
	}

	audit.Log(audit.EventRollback, actor.ID, zoneID.String(), map[string]interface{}{"version": version})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Zone rolled back",
		"version": version,
	})
}
