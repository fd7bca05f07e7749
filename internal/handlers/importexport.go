package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"zonekeeper/backend/internal/audit"
	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/dns"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ImportExportHandler struct {
	db      *database.DB
	staging *dns.Service
}

func NewImportExportHandler(db *database.DB, staging *dns.Service) *ImportExportHandler {
	return &ImportExportHandler{db: db, staging: staging}
}

// ExportZone renders the zone's active records as flat zone-file text
func (h *ImportExportHandler) ExportZone(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	zone, err := h.staging.GetZone(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}

	records, err := h.staging.Cluster().ActiveRecords(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.zone", zone.Domain))
	w.Write([]byte(dns.ExportText(zone.Domain, records)))
}

type ImportRequest struct {
	Format     string          `json:"format"` // zonefile, provider
	Text       string          `json:"text"`
	Payload    json.RawMessage `json:"payload"`
	ReplaceAll bool            `json:"replace_all"`
}

type ImportResponse struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ImportZone parses zone-file text or a provider export and stages every
// valid record through the normal validate/stage path. A pre-import
// snapshot is always taken; replace_all clears the zone first.
func (h *ImportExportHandler) ImportZone(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
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

	var parsed []dns.ParsedRecord
	switch req.Format {
	case "provider":
		parsed, err = dns.ParseProviderJSON(req.Payload)
		if err != nil {
			serviceError(w, err)
			return
		}
	default:
		parsed = dns.ParseZoneText(req.Text)
	}

	if _, err := h.staging.Snapshots().Create(r.Context(), zoneID, actor.Email, "Before Import"); err != nil {
		serviceError(w, err)
		return
	}

	inputs := make([]dns.RecordInput, 0, len(parsed))
	for _, rec := range parsed {
		inputs = append(inputs, dns.RecordInput{
			RecordType: rec.RecordType,
			Name:       rec.Name,
			Content:    rec.Content,
			TTL:        rec.TTL,
			Priority:   rec.Priority,
		})
	}

	resp := ImportResponse{Errors: []string{}}
	if req.ReplaceAll {
		// Whole-set swap: one transaction, refused outright when nothing
		// in the payload is usable
		imported, rejected, err := h.staging.ReplaceAll(r.Context(), zoneID, inputs, actor)
		if err != nil {
			serviceError(w, err)
			return
		}
		resp.Imported = imported
		resp.Skipped = len(rejected)
		resp.Errors = append(resp.Errors, rejected...)
	} else {
		for _, input := range inputs {
			if _, _, err := h.staging.StageCreate(r.Context(), zoneID, input, actor, false); err != nil {
				resp.Skipped++
				resp.Errors = append(resp.Errors, fmt.Sprintf("%s %s: %v", input.RecordType, input.Name, err))
				continue
			}
			resp.Imported++
		}
	}

	audit.Log(audit.EventImport, actor.ID, zoneID.String(), map[string]interface{}{
		"imported": resp.Imported, "skipped": resp.Skipped, "replace_all": req.ReplaceAll,
	})

	writeJSON(w, http.StatusOK, resp)
}

// ListTemplates returns the built-in record template catalog
func (h *ImportExportHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dns.ListTemplates())
}

// ApplyTemplate stages a well-known record bundle into the zone
func (h *ImportExportHandler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	zoneID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	template := dns.GetTemplate(vars["templateId"])
	if template == nil {
		http.Error(w, "Template not found", http.StatusNotFound)
		return
	}

	zone, err := h.staging.GetZone(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}

	actor := actorFrom(r)
	resp := ImportResponse{Errors: []string{}}
	for _, input := range template.Expand(zone.Domain) {
		if _, _, err := h.staging.StageCreate(r.Context(), zoneID, input, actor, false); err != nil {
			resp.Skipped++
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s %s: %v", input.RecordType, input.Name, err))
			continue
		}
		resp.Imported++
	}

	writeJSON(w, http.StatusOK, resp)
}
