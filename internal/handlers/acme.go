package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"zonekeeper/backend/internal/cluster"
	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"
)

// ACMEHandler serves the DNS-01 challenge helper: certificate tooling posts
// the validation token and the matching TXT record goes live at once.
type ACMEHandler struct {
	db     *database.DB
	engine *cluster.Engine
}

func NewACMEHandler(db *database.DB, engine *cluster.Engine) *ACMEHandler {
	return &ACMEHandler{db: db, engine: engine}
}

type ACMERequest struct {
	FQDN  string `json:"fqdn"`
	Token string `json:"token"`
}

// normalizeChallengeFQDN lowercases the FQDN, drops the trailing dot, and
// strips the _acme-challenge label ACME clients commonly prepend, leaving
// the certificate domain itself.
func normalizeChallengeFQDN(fqdn string) string {
	fqdn = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(fqdn), "."))
	return strings.TrimPrefix(fqdn, "_acme-challenge.")
}

// challengeRecordName computes the TXT record name for a FQDN within a zone
func challengeRecordName(fqdn, domain string) string {
	name := "_acme-challenge"
	if sub := strings.TrimSuffix(strings.TrimSuffix(fqdn, domain), "."); sub != "" {
		name += "." + sub
	}
	return name
}

// Present upserts the _acme-challenge TXT record for the FQDN and syncs the
// zone. The record bypasses staging; challenge tokens are short-lived and
// must resolve before the CA retries.
func (h *ACMEHandler) Present(w http.ResponseWriter, r *http.Request) {
	var req ACMERequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fqdn := normalizeChallengeFQDN(req.FQDN)
	if fqdn == "" || req.Token == "" {
		http.Error(w, "fqdn and token are required", http.StatusBadRequest)
		return
	}

	zone, err := h.findZone(r, fqdn)
	if err != nil {
		http.Error(w, "No zone matches the FQDN", http.StatusNotFound)
		return
	}

	name := challengeRecordName(fqdn, zone.Domain)

	// One challenge record per name; a repeat request replaces the token
	var record models.Record
	err = h.db.Get(&record, `
		UPDATE records
		SET content = $1, status = 'active', deleted_at = NULL, updated_at = NOW()
		WHERE zone_id = $2 AND record_type = 'TXT' AND name = $3
		RETURNING *
	`, req.Token, zone.ID, name)
	if err != nil {
		err = h.db.Get(&record, `
			INSERT INTO records (zone_id, record_type, name, content, ttl, status)
			VALUES ($1, 'TXT', $2, $3, 120, 'active')
			RETURNING *
		`, zone.ID, name, req.Token)
	}
	if err != nil {
		log.Printf("Failed to upsert ACME challenge for %s: %v", fqdn, err)
		http.Error(w, "Failed to create challenge record", http.StatusInternalServerError)
		return
	}

	report, err := h.engine.SyncZone(r.Context(), zone.ID)
	if err != nil {
		log.Printf("Sync after ACME challenge for %s failed: %v", fqdn, err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record": record,
		"sync":   report,
	})
}

// Cleanup removes the challenge record once validation is done
func (h *ACMEHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req ACMERequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fqdn := normalizeChallengeFQDN(req.FQDN)
	zone, err := h.findZone(r, fqdn)
	if err != nil {
		http.Error(w, "No zone matches the FQDN", http.StatusNotFound)
		return
	}

	_, err = h.db.Exec(`
		DELETE FROM records
		WHERE zone_id = $1 AND record_type = 'TXT' AND name LIKE '_acme-challenge%' AND content = $2
	`, zone.ID, req.Token)
	if err != nil {
		log.Printf("Failed to clean up ACME challenge for %s: %v", fqdn, err)
		http.Error(w, "Failed to remove challenge record", http.StatusInternalServerError)
		return
	}

	report, err := h.engine.SyncZone(r.Context(), zone.ID)
	if err != nil {
		log.Printf("Sync after ACME cleanup for %s failed: %v", fqdn, err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Challenge removed",
		"sync":    report,
	})
}

// findZone locates the longest registered zone that is a suffix of the FQDN
func (h *ACMEHandler) findZone(r *http.Request, fqdn string) (*models.Zone, error) {
	var zone models.Zone
	err := h.db.Get(&zone, `
		SELECT * FROM zones
		WHERE $1 = domain OR $1 LIKE '%.' || domain
		ORDER BY LENGTH(domain) DESC
		LIMIT 1
	`, fqdn)
	if err != nil {
		return nil, err
	}
	return &zone, nil
}
