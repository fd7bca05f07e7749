package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"zonekeeper/backend/internal/audit"
	"zonekeeper/backend/internal/auth"
	"zonekeeper/backend/internal/cluster"
	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/dns"
	"zonekeeper/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
)

type ZonesHandler struct {
	db      *database.DB
	staging *dns.Service
	engine  *cluster.Engine
}

func NewZonesHandler(db *database.DB, staging *dns.Service, engine *cluster.Engine) *ZonesHandler {
	return &ZonesHandler{db: db, staging: staging, engine: engine}
}

// ListZones returns the caller's zones with record counts; admins see all
func (h *ZonesHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*auth.Claims)

	query := `
		SELECT z.*,
		       COUNT(rec.id) FILTER (WHERE rec.status IS NULL OR rec.status != 'deleted') AS record_count,
		       COUNT(rec.id) FILTER (WHERE rec.status IN ('pending_create', 'pending_update', 'pending_delete')) AS pending_count
		FROM zones z
		LEFT JOIN records rec ON rec.zone_id = z.id
	`
	args := []interface{}{}
	if !claims.IsAdmin() {
		query += ` WHERE z.owner_id = $1`
		args = append(args, claims.UserID)
	}
	query += ` GROUP BY z.id ORDER BY z.domain`

	var zones []models.ZoneWithCounts
	if err := h.db.Select(&zones, query, args...); err != nil {
		log.Printf("Failed to list zones: %v", err)
		http.Error(w, "Failed to list zones", http.StatusInternalServerError)
		return
	}
	if zones == nil {
		zones = []models.ZoneWithCounts{}
	}

	writeJSON(w, http.StatusOK, zones)
}

// GetZone returns a single zone
func (h *ZonesHandler) GetZone(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, zone)
}

type CreateZoneRequest struct {
	Domain   string     `json:"domain"`
	ServerID *uuid.UUID `json:"server_id"`
}

type CreateZoneResponse struct {
	Zone    models.Zone     `json:"zone"`
	Records []models.Record `json:"records"`
}

// CreateZone creates a zone with its four seed records (root A, www CNAME,
// two NS) and pushes it to the cluster.
func (h *ZonesHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*auth.Claims)

	var req CreateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	domain := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(req.Domain, ".")))
	if domain == "" || !strings.Contains(domain, ".") {
		http.Error(w, "A valid domain is required", http.StatusBadRequest)
		return
	}

	// Seed A record points at the assigned node
	serverIP := os.Getenv("DNS_DEFAULT_IP")
	if serverIP == "" {
		serverIP = "127.0.0.1"
	}
	if req.ServerID != nil {
		var addr string
		if err := h.db.Get(&addr, `SELECT address FROM servers WHERE id = $1`, *req.ServerID); err != nil {
			http.Error(w, "Target server not found", http.StatusNotFound)
			return
		}
		serverIP = addr
	}

	ns1 := os.Getenv("DNS_NS1")
	if ns1 == "" {
		ns1 = "ns1." + domain
	}
	ns2 := os.Getenv("DNS_NS2")
	if ns2 == "" {
		ns2 = "ns2." + domain
	}

	tx, err := h.db.Beginx()
	if err != nil {
		http.Error(w, "Failed to create zone", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	var zone models.Zone
	err = tx.Get(&zone, `
		INSERT INTO zones (domain, owner_id, primary_server_id)
		VALUES ($1, $2, $3)
		RETURNING *
	`, domain, claims.UserID, req.ServerID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			http.Error(w, "Domain already exists", http.StatusConflict)
			return
		}
		log.Printf("Failed to create zone: %v", err)
		http.Error(w, "Failed to create zone", http.StatusInternalServerError)
		return
	}

	seeds := []struct {
		recordType, name, content string
	}{
		{"A", "@", serverIP},
		{"CNAME", "www", domain},
		{"NS", "@", ns1},
		{"NS", "@", ns2},
	}

	records := make([]models.Record, 0, len(seeds))
	for _, seed := range seeds {
		var rec models.Record
		err = tx.Get(&rec, `
			INSERT INTO records (zone_id, record_type, name, content, ttl, status)
			VALUES ($1, $2, $3, $4, 3600, 'active')
			RETURNING *
		`, zone.ID, seed.recordType, seed.name, seed.content)
		if err != nil {
			log.Printf("Failed to seed zone %s: %v", domain, err)
			http.Error(w, "Failed to create zone", http.StatusInternalServerError)
			return
		}
		records = append(records, rec)
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, "Failed to create zone", http.StatusInternalServerError)
		return
	}

	audit.Log(audit.EventZoneCreated, claims.UserID, zone.ID.String(), map[string]interface{}{"domain": domain})

	if _, err := h.engine.SyncZone(r.Context(), zone.ID); err != nil {
		log.Printf("Initial sync for zone %s failed: %v", domain, err)
	}

	writeJSON(w, http.StatusCreated, CreateZoneResponse{Zone: zone, Records: records})
}

// DeleteZone removes the zone, its records, and its history, then broadcasts
// the removal to every node.
func (h *ZonesHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*auth.Claims)
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

	// Records and snapshots go with the zone via FK cascade
	if _, err := h.db.Exec(`DELETE FROM zones WHERE id = $1`, zoneID); err != nil {
		log.Printf("Failed to delete zone %s: %v", zone.Domain, err)
		http.Error(w, "Failed to delete zone", http.StatusInternalServerError)
		return
	}

	audit.Log(audit.EventZoneDeleted, claims.UserID, zoneID.String(), map[string]interface{}{"domain": zone.Domain})

	report := h.engine.DeleteZone(r.Context(), zone.Domain)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Zone deleted",
		"sync":    report,
	})
}

// LockZone sets the zone's advisory lock flag
func (h *ZonesHandler) LockZone(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, true)
}

// UnlockZone clears the zone's advisory lock flag
func (h *ZonesHandler) UnlockZone(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, false)
}

func (h *ZonesHandler) setLock(w http.ResponseWriter, r *http.Request, locked bool) {
	claims := r.Context().Value("claims").(*auth.Claims)
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	if err := h.staging.SetZoneLock(r.Context(), zoneID, locked); err != nil {
		serviceError(w, err)
		return
	}

	event := audit.EventZoneUnlocked
	if locked {
		event = audit.EventZoneLocked
	}
	audit.Log(event, claims.UserID, zoneID.String(), nil)

	writeJSON(w, http.StatusOK, map[string]bool{"locked": locked})
}

type SetWebhookRequest struct {
	URL string `json:"url"`
}

// SetWebhook sets or clears the zone's publish notification URL
func (h *ZonesHandler) SetWebhook(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	var req SetWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.URL != "" && !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		http.Error(w, "Webhook URL must be http(s)", http.StatusBadRequest)
		return
	}

	res, err := h.db.Exec(`
		UPDATE zones SET webhook_url = NULLIF($1, ''), updated_at = NOW() WHERE id = $2
	`, req.URL, zoneID)
	if err != nil {
		log.Printf("Failed to set webhook: %v", err)
		http.Error(w, "Failed to set webhook", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		http.Error(w, "Zone not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook updated"})
}
