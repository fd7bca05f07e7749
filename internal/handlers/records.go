package handlers

import (
	"encoding/json"
	"net/http"

	"zonekeeper/backend/internal/audit"
	"zonekeeper/backend/internal/dns"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type RecordsHandler struct {
	staging *dns.Service
}

func NewRecordsHandler(staging *dns.Service) *RecordsHandler {
	return &RecordsHandler{staging: staging}
}

// RecordResponse pairs a staged record with its advisory analysis
type RecordResponse struct {
	Record   interface{}   `json:"record"`
	Analysis *dns.Analysis `json:"analysis,omitempty"`
}

func autoPublish(r *http.Request) bool {
	return r.URL.Query().Get("auto_publish") == "true"
}

// ListRecords returns the zone's non-deleted records
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	records, err := h.staging.ZoneRecords(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// CreateRecord stages a new record in the zone
func (h *RecordsHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	var input dns.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, analysis, err := h.staging.StageCreate(r.Context(), zoneID, input, actorFrom(r), autoPublish(r))
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordResponse{Record: record, Analysis: analysis})
}

// UpdateRecord stages an edit to an existing record
func (h *RecordsHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(mux.Vars(r)["recordId"])
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	var input dns.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, analysis, err := h.staging.StageUpdate(r.Context(), recordID, input, actorFrom(r), autoPublish(r))
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RecordResponse{Record: record, Analysis: analysis})
}

// DeleteRecord stages a record deletion
func (h *RecordsHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(mux.Vars(r)["recordId"])
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	if err := h.staging.StageDelete(r.Context(), recordID, actorFrom(r), autoPublish(r)); err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Record deleted"})
}

type AnalyzeRequest struct {
	RecordType string `json:"record_type"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

// AnalyzeRecord runs the advisory checks without writing anything
func (h *RecordsHandler) AnalyzeRecord(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, dns.Analyze(req.RecordType, req.Name, req.Content))
}

// LockRecord sets the record's advisory lock flag
func (h *RecordsHandler) LockRecord(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, true)
}

// UnlockRecord clears the record's advisory lock flag
func (h *RecordsHandler) UnlockRecord(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, false)
}

func (h *RecordsHandler) setLock(w http.ResponseWriter, r *http.Request, locked bool) {
	recordID, err := uuid.Parse(mux.Vars(r)["recordId"])
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	if err := h.staging.SetRecordLock(r.Context(), recordID, locked); err != nil {
		serviceError(w, err)
		return
	}

	event := audit.EventRecordUnlocked
	if locked {
		event = audit.EventRecordLocked
	}
	audit.Log(event, actorFrom(r).ID, recordID.String(), nil)

	writeJSON(w, http.StatusOK, map[string]bool{"locked": locked})
}

// PreviewPending returns the zone's staged-but-unpublished records
func (h *RecordsHandler) PreviewPending(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	records, err := h.staging.PreviewPending(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// Publish promotes all staged changes in the zone and syncs the cluster
func (h *RecordsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	actor := actorFrom(r)
	result, err := h.staging.Publish(r.Context(), zoneID, actor)
	if err != nil {
		serviceError(w, err)
		return
	}

	audit.Log(audit.EventPublish, actor.ID, zoneID.String(), map[string]interface{}{"summary": result.Summary})

	writeJSON(w, http.StatusOK, result)
}

// ListTrash returns the zone's soft-deleted records
func (h *RecordsHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	records, err := h.staging.ListDeleted(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// RestoreRecord brings a soft-deleted record back as pending_create
func (h *RecordsHandler) RestoreRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(mux.Vars(r)["recordId"])
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	record, err := h.staging.Restore(r.Context(), recordID, actorFrom(r))
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// PurgeRecord permanently removes a soft-deleted record
func (h *RecordsHandler) PurgeRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(mux.Vars(r)["recordId"])
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	if err := h.staging.Purge(r.Context(), recordID, actorFrom(r)); err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Record purged"})
}
