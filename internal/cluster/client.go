package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"zonekeeper/backend/internal/models"
)

// NodeTimeout bounds every RPC to a single node. A node that cannot answer
// within this window counts as failed for that operation only.
const NodeTimeout = 5 * time.Second

// ErrNodeUnreachable marks transport-level failures: the node never answered
var ErrNodeUnreachable = errors.New("node unreachable")

// RecordPayload is one record in the wire format pushed to nodes
type RecordPayload struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	TTL      int    `json:"ttl"`
	Priority *int   `json:"priority,omitempty"`
}

// ZonePayload is the full replacement record set for one zone
type ZonePayload struct {
	Domain  string          `json:"domain"`
	Records []RecordPayload `json:"records"`
}

// NodeStatus is a node's DNS-service status report
type NodeStatus struct {
	Status  string `json:"status"`
	Zones   int    `json:"zones"`
	Version string `json:"version,omitempty"`
}

// Client talks to the DNS agent API on individual cluster nodes,
// authenticated with each node's shared secret.
type Client struct {
	http *http.Client
}

func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: NodeTimeout + time.Second},
	}
}

func nodeURL(node models.Server, path string) string {
	return fmt.Sprintf("http://%s:%d%s", node.Address, node.APIPort, path)
}

func (c *Client) do(ctx context.Context, node models.Server, method, path string, body interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, NodeTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, nodeURL(node, path), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-API-Key", node.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("node %s: %w: %v", node.DisplayName(), ErrNodeUnreachable, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("node %s returned %d: %s", node.DisplayName(), resp.StatusCode, string(data))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("node %s sent malformed response: %w", node.DisplayName(), err)
		}
	}

	return nil
}

// ReplaceZone replaces the zone's full record set on one node
func (c *Client) ReplaceZone(ctx context.Context, node models.Server, payload ZonePayload) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, node, http.MethodPut, "/dnsapi/zones/"+payload.Domain, payload, &resp)
	if err != nil {
		return "", err
	}
	if resp.Message == "" {
		resp.Message = fmt.Sprintf("%d records applied", len(payload.Records))
	}
	return resp.Message, nil
}

// DeleteZone removes a zone from one node
func (c *Client) DeleteZone(ctx context.Context, node models.Server, domain string) error {
	return c.do(ctx, node, http.MethodDelete, "/dnsapi/zones/"+domain, nil, nil)
}

// Health probes the node's liveness endpoint and returns the round trip time
func (c *Client) Health(ctx context.Context, node models.Server) (time.Duration, error) {
	start := time.Now()
	if err := c.do(ctx, node, http.MethodGet, "/health", nil, nil); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Status fetches the node's DNS-service status, distinct from raw liveness
func (c *Client) Status(ctx context.Context, node models.Server) (*NodeStatus, error) {
	var status NodeStatus
	if err := c.do(ctx, node, http.MethodGet, "/dnsapi/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SignZone asks one node to DNSSEC-sign a zone; signing is idempotent per
// node. Returns the DS record text if the node reported one.
func (c *Client) SignZone(ctx context.Context, node models.Server, domain string) (string, error) {
	var resp struct {
		DSRecord string `json:"ds_record"`
	}
	err := c.do(ctx, node, http.MethodPost, "/dnsapi/zones/"+domain+"/dnssec", nil, &resp)
	if err != nil {
		return "", err
	}
	return resp.DSRecord, nil
}
