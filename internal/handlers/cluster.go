package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"zonekeeper/backend/internal/audit"
	"zonekeeper/backend/internal/auth"
	"zonekeeper/backend/internal/cluster"
	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
)

type ClusterHandler struct {
	db     *database.DB
	engine *cluster.Engine
}

func NewClusterHandler(db *database.DB, engine *cluster.Engine) *ClusterHandler {
	return &ClusterHandler{db: db, engine: engine}
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := r.Context().Value("claims").(*auth.Claims)
	if !ok || !claims.IsAdmin() {
		http.Error(w, "Admin access required", http.StatusForbidden)
		return false
	}
	return true
}

// Status probes every node's DNS service
func (h *ClusterHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ClusterStatus(r.Context()))
}

// Health probes every node's liveness endpoint
func (h *ClusterHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.HealthCheck(r.Context()))
}

// Statistics reports aggregate zone/record counts and cluster size
func (h *ClusterHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GetStatistics(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListServers returns the full server registry, cluster members or not
func (h *ClusterHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	var servers []models.Server
	if err := h.db.Select(&servers, `SELECT * FROM servers ORDER BY name`); err != nil {
		log.Printf("Failed to list servers: %v", err)
		http.Error(w, "Failed to list servers", http.StatusInternalServerError)
		return
	}
	if servers == nil {
		servers = []models.Server{}
	}
	writeJSON(w, http.StatusOK, servers)
}

// ListNodes returns the current DNS cluster membership
func (h *ClusterHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Registry().Nodes())
}

type RegisterServerRequest struct {
	Name     string   `json:"name"`
	Hostname string   `json:"hostname"`
	Address  string   `json:"address"`
	APIPort  int      `json:"api_port"`
	Caps     []string `json:"capabilities"`
}

type RegisterServerResponse struct {
	Server models.Server `json:"server"`
	APIKey string        `json:"api_key"`
}

// RegisterServer adds a server to the registry and mints its shared API key.
// The key is returned once; it is never readable afterwards.
func (h *ClusterHandler) RegisterServer(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	var req RegisterServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Address == "" {
		http.Error(w, "Name and address are required", http.StatusBadRequest)
		return
	}
	if req.APIPort <= 0 {
		req.APIPort = 8053
	}
	if req.Caps == nil {
		req.Caps = []string{}
	}

	apiKey, err := auth.GenerateNodeKey()
	if err != nil {
		http.Error(w, "Failed to generate API key", http.StatusInternalServerError)
		return
	}

	var server models.Server
	err = h.db.Get(&server, `
		INSERT INTO servers (name, hostname, address, api_port, api_key, capabilities)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING *
	`, req.Name, req.Hostname, req.Address, req.APIPort, apiKey, pq.Array(req.Caps))
	if err != nil {
		log.Printf("Failed to register server: %v", err)
		http.Error(w, "Failed to register server", http.StatusInternalServerError)
		return
	}

	if server.HasCapability(models.CapabilityDNS) {
		if err := h.engine.Registry().Reload(r.Context()); err != nil {
			log.Printf("Failed to reload cluster registry: %v", err)
		}
	}

	writeJSON(w, http.StatusCreated, RegisterServerResponse{Server: server, APIKey: apiKey})
}

// AddNode grants the dns capability to a registered server
func (h *ClusterHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	serverID, err := uuid.Parse(mux.Vars(r)["serverId"])
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	if err := h.engine.AddNode(r.Context(), serverID); err != nil {
		serviceError(w, err)
		return
	}

	audit.Log(audit.EventNodeAdded, actorFrom(r).ID, serverID.String(), nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Node added to cluster",
		"nodes":   h.engine.Registry().Count(),
	})
}

// RemoveNode revokes the dns capability from a server
func (h *ClusterHandler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	serverID, err := uuid.Parse(mux.Vars(r)["serverId"])
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	if err := h.engine.RemoveNode(r.Context(), serverID); err != nil {
		serviceError(w, err)
		return
	}

	audit.Log(audit.EventNodeRemoved, actorFrom(r).ID, serverID.String(), nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Node removed from cluster",
		"nodes":   h.engine.Registry().Count(),
	})
}

// SyncZone re-pushes one zone's active set to every node
func (h *ClusterHandler) SyncZone(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	report, err := h.engine.SyncZone(r.Context(), zoneID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// SyncAllToNode replays every zone to a single node, used after it rejoins
func (h *ClusterHandler) SyncAllToNode(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	serverID, err := uuid.Parse(mux.Vars(r)["serverId"])
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	report, err := h.engine.SyncAllZonesToNode(r.Context(), serverID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// EnableDNSSEC asks every node to sign the zone and returns the DS record
func (h *ClusterHandler) EnableDNSSEC(w http.ResponseWriter, r *http.Request) {
	zoneID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid zone ID", http.StatusBadRequest)
		return
	}

	result, err := h.engine.EnableDNSSEC(r.Context(), zoneID)
	if err != nil {
		if result != nil {
			// Every node refused; surface the per-node detail
			writeJSON(w, http.StatusBadGateway, result)
			return
		}
		serviceError(w, err)
		return
	}

	audit.Log(audit.EventDNSSECEnabled, actorFrom(r).ID, zoneID.String(), map[string]interface{}{"ds_record": result.DSRecord})
	writeJSON(w, http.StatusOK, result)
}
