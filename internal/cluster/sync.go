package cluster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound marks an unknown zone or server id
var ErrNotFound = errors.New("not found")

// Engine pushes published zone state to every registered node and reports
// per-node outcomes. All broadcasts are best-effort: one node's failure
// never blocks, delays, or rolls back another's.
type Engine struct {
	db       *database.DB
	registry *Registry
	client   *Client
}

func NewEngine(db *database.DB, registry *Registry) *Engine {
	return &Engine{db: db, registry: registry, client: NewClient()}
}

// NodeResult is the outcome of one RPC against one node
type NodeResult struct {
	NodeID  uuid.UUID `json:"node_id"`
	Node    string    `json:"node"`
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// SyncReport aggregates a broadcast over the cluster
type SyncReport struct {
	Zone         string       `json:"zone"`
	Results      []NodeResult `json:"results"`
	TotalNodes   int          `json:"total_nodes"`
	SuccessCount int          `json:"success_count"`
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// fanOut runs op against every node concurrently and collects each outcome
// independently, within the per-node timeout.
func (e *Engine) fanOut(ctx context.Context, nodes []models.Server, op func(context.Context, models.Server) (string, error)) []NodeResult {
	results := make([]NodeResult, len(nodes))
	var wg sync.WaitGroup

	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node models.Server) {
			defer wg.Done()
			result := NodeResult{NodeID: node.ID, Node: node.DisplayName()}
			msg, err := op(ctx, node)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Success = true
				result.Message = msg
			}
			results[i] = result
		}(i, node)
	}

	wg.Wait()
	return results
}

func successCount(results []NodeResult) int {
	count := 0
	for _, r := range results {
		if r.Success {
			count++
		}
	}
	return count
}

// ActiveRecords loads the zone's live record set: active rows plus
// null-status legacy rows.
func (e *Engine) ActiveRecords(ctx context.Context, zoneID uuid.UUID) ([]models.Record, error) {
	var records []models.Record
	err := e.db.SelectContext(ctx, &records, `
		SELECT * FROM records
		WHERE zone_id = $1 AND (status = 'active' OR status IS NULL)
		ORDER BY name, record_type
	`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active records: %w", err)
	}
	return records, nil
}

func buildPayload(domain string, records []models.Record) ZonePayload {
	payload := ZonePayload{Domain: domain, Records: []RecordPayload{}}
	for _, rec := range records {
		payload.Records = append(payload.Records, RecordPayload{
			Type:     rec.RecordType,
			Name:     rec.Name,
			Content:  rec.Content,
			TTL:      rec.TTL,
			Priority: rec.Priority,
		})
	}
	return payload
}

// SyncZone pushes the zone's active record set to every registered node
func (e *Engine) SyncZone(ctx context.Context, zoneID uuid.UUID) (*SyncReport, error) {
	var zone models.Zone
	err := e.db.GetContext(ctx, &zone, `SELECT * FROM zones WHERE id = $1`, zoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load zone: %w", err)
	}

	records, err := e.ActiveRecords(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	nodes := e.registry.Nodes()
	payload := buildPayload(zone.Domain, records)

	results := e.fanOut(ctx, nodes, func(ctx context.Context, node models.Server) (string, error) {
		return e.client.ReplaceZone(ctx, node, payload)
	})

	report := &SyncReport{
		Zone:         zone.Domain,
		Results:      results,
		TotalNodes:   len(nodes),
		SuccessCount: successCount(results),
	}
	log.Printf("Synced zone %s to cluster: %d/%d nodes OK", zone.Domain, report.SuccessCount, report.TotalNodes)
	return report, nil
}

// ZoneReplayResult is the outcome of replaying one zone during a node
// bootstrap
type ZoneReplayResult struct {
	Zone    string `json:"zone"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReplayReport aggregates a full-state replay to a single node
type ReplayReport struct {
	NodeID       uuid.UUID          `json:"node_id"`
	Node         string             `json:"node"`
	Results      []ZoneReplayResult `json:"results"`
	TotalZones   int                `json:"total_zones"`
	SuccessCount int                `json:"success_count"`
}

// SyncAllZonesToNode replays every zone's active record set to a single
// node, used to bootstrap a node that just joined the cluster.
func (e *Engine) SyncAllZonesToNode(ctx context.Context, serverID uuid.UUID) (*ReplayReport, error) {
	node, err := e.getServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	var zones []models.Zone
	if err := e.db.SelectContext(ctx, &zones, `SELECT * FROM zones ORDER BY domain`); err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}

	report := &ReplayReport{
		NodeID:     node.ID,
		Node:       node.DisplayName(),
		Results:    []ZoneReplayResult{},
		TotalZones: len(zones),
	}
	for _, zone := range zones {
		records, err := e.ActiveRecords(ctx, zone.ID)
		result := ZoneReplayResult{Zone: zone.Domain}
		if err == nil {
			var msg string
			msg, err = e.client.ReplaceZone(ctx, *node, buildPayload(zone.Domain, records))
			result.Message = msg
		}
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Success = true
			report.SuccessCount++
		}
		report.Results = append(report.Results, result)
	}

	log.Printf("Replayed %d/%d zones to node %s", report.SuccessCount, report.TotalZones, node.DisplayName())
	return report, nil
}

// DeleteZone broadcasts a zone removal to every node
func (e *Engine) DeleteZone(ctx context.Context, domain string) *SyncReport {
	nodes := e.registry.Nodes()
	results := e.fanOut(ctx, nodes, func(ctx context.Context, node models.Server) (string, error) {
		if err := e.client.DeleteZone(ctx, node, domain); err != nil {
			return "", err
		}
		return "zone removed", nil
	})

	return &SyncReport{
		Zone:         domain,
		Results:      results,
		TotalNodes:   len(nodes),
		SuccessCount: successCount(results),
	}
}

// NodeHealth is one node's liveness probe result
type NodeHealth struct {
	NodeID         uuid.UUID `json:"node_id"`
	Node           string    `json:"node"`
	Healthy        bool      `json:"healthy"`
	ResponseTimeMS int64     `json:"response_time_ms,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// HealthReport aggregates liveness across the cluster
type HealthReport struct {
	Nodes        []NodeHealth `json:"nodes"`
	HealthyCount int          `json:"healthy_count"`
	TotalNodes   int          `json:"total_nodes"`
}

// HealthCheck probes every node's liveness endpoint, measuring latency
func (e *Engine) HealthCheck(ctx context.Context) *HealthReport {
	nodes := e.registry.Nodes()
	report := &HealthReport{Nodes: make([]NodeHealth, len(nodes)), TotalNodes: len(nodes)}

	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node models.Server) {
			defer wg.Done()
			health := NodeHealth{NodeID: node.ID, Node: node.DisplayName()}
			rtt, err := e.client.Health(ctx, node)
			if err != nil {
				health.Error = err.Error()
			} else {
				health.Healthy = true
				health.ResponseTimeMS = rtt.Milliseconds()
			}
			report.Nodes[i] = health
		}(i, node)
	}
	wg.Wait()

	for _, h := range report.Nodes {
		if h.Healthy {
			report.HealthyCount++
		}
	}
	return report
}

// NodeServiceStatus is one node's DNS-service status result
type NodeServiceStatus struct {
	NodeID uuid.UUID   `json:"node_id"`
	Node   string      `json:"node"`
	Online bool        `json:"online"`
	Status *NodeStatus `json:"status,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// StatusReport aggregates DNS-service status across the cluster
type StatusReport struct {
	Nodes        []NodeServiceStatus `json:"nodes"`
	OnlineCount  int                 `json:"online_count"`
	OfflineCount int                 `json:"offline_count"`
}

// ClusterStatus probes every node's DNS-service status endpoint
func (e *Engine) ClusterStatus(ctx context.Context) *StatusReport {
	nodes := e.registry.Nodes()
	report := &StatusReport{Nodes: make([]NodeServiceStatus, len(nodes))}

	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node models.Server) {
			defer wg.Done()
			entry := NodeServiceStatus{NodeID: node.ID, Node: node.DisplayName()}
			status, err := e.client.Status(ctx, node)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Online = true
				entry.Status = status
			}
			report.Nodes[i] = entry
		}(i, node)
	}
	wg.Wait()

	for _, n := range report.Nodes {
		if n.Online {
			report.OnlineCount++
		} else {
			report.OfflineCount++
		}
	}
	return report
}

// Statistics joins store-level zone/record counts with cluster size
type Statistics struct {
	Zones          int `db:"zones" json:"zones"`
	Records        int `db:"records" json:"records"`
	PendingRecords int `db:"pending_records" json:"pending_records"`
	Nodes          int `json:"nodes"`
}

// GetStatistics reports aggregate zone/record counts plus live membership
func (e *Engine) GetStatistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	err := e.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM zones) AS zones,
			(SELECT COUNT(*) FROM records WHERE status IS NULL OR status != 'deleted') AS records,
			(SELECT COUNT(*) FROM records WHERE status IN ('pending_create', 'pending_update', 'pending_delete')) AS pending_records
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}
	stats.Nodes = e.registry.Count()
	return &stats, nil
}

// DNSSECResult aggregates a sign-zone broadcast
type DNSSECResult struct {
	Zone         string       `json:"zone"`
	DSRecord     string       `json:"ds_record,omitempty"`
	Results      []NodeResult `json:"results"`
	TotalNodes   int          `json:"total_nodes"`
	SuccessCount int          `json:"success_count"`
}

// EnableDNSSEC broadcasts a sign-zone RPC to every node. It fails only when
// every node failed; the DS record comes from the first node that returned
// one.
func (e *Engine) EnableDNSSEC(ctx context.Context, zoneID uuid.UUID) (*DNSSECResult, error) {
	var zone models.Zone
	err := e.db.GetContext(ctx, &zone, `SELECT * FROM zones WHERE id = $1`, zoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load zone: %w", err)
	}

	nodes := e.registry.Nodes()
	dsRecords := make([]string, len(nodes))

	results := e.fanOut(ctx, nodes, func(ctx context.Context, node models.Server) (string, error) {
		ds, err := e.client.SignZone(ctx, node, zone.Domain)
		if err != nil {
			return "", err
		}
		for i := range nodes {
			if nodes[i].ID == node.ID {
				dsRecords[i] = ds
			}
		}
		return "zone signed", nil
	})

	result := &DNSSECResult{
		Zone:         zone.Domain,
		Results:      results,
		TotalNodes:   len(nodes),
		SuccessCount: successCount(results),
	}
	for _, ds := range dsRecords {
		if ds != "" {
			result.DSRecord = ds
			break
		}
	}

	if len(nodes) > 0 && result.SuccessCount == 0 {
		return result, fmt.Errorf("failed to sign zone %s on all %d nodes", zone.Domain, len(nodes))
	}
	return result, nil
}

func (e *Engine) getServer(ctx context.Context, serverID uuid.UUID) (*models.Server, error) {
	var server models.Server
	err := e.db.GetContext(ctx, &server, `SELECT * FROM servers WHERE id = $1`, serverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("server %s: %w", serverID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load server: %w", err)
	}
	return &server, nil
}

// AddNode grants the dns capability to a server and reloads membership
func (e *Engine) AddNode(ctx context.Context, serverID uuid.UUID) error {
	if _, err := e.getServer(ctx, serverID); err != nil {
		return err
	}

	_, err := e.db.ExecContext(ctx, `
		UPDATE servers
		SET capabilities = array_append(capabilities, $1), updated_at = NOW()
		WHERE id = $2 AND NOT ($1 = ANY(capabilities))
	`, models.CapabilityDNS, serverID)
	if err != nil {
		return fmt.Errorf("failed to add dns capability: %w", err)
	}

	return e.registry.Reload(ctx)
}

// RemoveNode revokes the dns capability from a server and reloads membership
func (e *Engine) RemoveNode(ctx context.Context, serverID uuid.UUID) error {
	if _, err := e.getServer(ctx, serverID); err != nil {
		return err
	}

	_, err := e.db.ExecContext(ctx, `
		UPDATE servers
		SET capabilities = array_remove(capabilities, $1), updated_at = NOW()
		WHERE id = $2
	`, models.CapabilityDNS, serverID)
	if err != nil {
		return fmt.Errorf("failed to remove dns capability: %w", err)
	}

	return e.registry.Reload(ctx)
}
