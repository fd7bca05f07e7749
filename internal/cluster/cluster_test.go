package cluster

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// testNode builds a Server entry pointing at an httptest server
func testNode(t *testing.T, ts *httptest.Server, name, apiKey string) models.Server {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return models.Server{
		ID:      uuid.New(),
		Name:    name,
		Address: host,
		APIPort: port,
		APIKey:  apiKey,
	}
}

// deadNode points at a closed port
func deadNode(t *testing.T) models.Server {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	node := testNode(t, ts, "dead", "key")
	ts.Close()
	return node
}

func testEngine(nodes []models.Server) *Engine {
	registry := NewRegistry(nil)
	registry.nodes = nodes
	return &Engine{registry: registry, client: NewClient()}
}

func TestReplaceZone(t *testing.T) {
	var gotMethod, gotPath, gotKey string
	var gotPayload ZonePayload

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]string{"message": "zone updated"})
	}))
	defer ts.Close()

	node := testNode(t, ts, "node1", "secret-key")
	prio := 10
	payload := ZonePayload{
		Domain: "example.com",
		Records: []RecordPayload{
			{Type: "A", Name: "@", Content: "10.0.0.1", TTL: 3600},
			{Type: "MX", Name: "@", Content: "mail.example.com.", TTL: 3600, Priority: &prio},
		},
	}

	msg, err := NewClient().ReplaceZone(context.Background(), node, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg != "zone updated" {
		t.Errorf("message = %q", msg)
	}
	if gotMethod != http.MethodPut || gotPath != "/dnsapi/zones/example.com" {
		t.Errorf("request was %s %s", gotMethod, gotPath)
	}
	if gotKey != "secret-key" {
		t.Errorf("X-API-Key = %q", gotKey)
	}
	if len(gotPayload.Records) != 2 || gotPayload.Records[1].Priority == nil {
		t.Errorf("payload not delivered intact: %+v", gotPayload)
	}
}

func TestReplaceZoneNodeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "zone is bad", http.StatusBadRequest)
	}))
	defer ts.Close()

	node := testNode(t, ts, "node1", "key")
	_, err := NewClient().ReplaceZone(context.Background(), node, ZonePayload{Domain: "example.com"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestDeleteZoneBestEffort(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	})

	ts1 := httptest.NewServer(okHandler)
	defer ts1.Close()
	ts2 := httptest.NewServer(okHandler)
	defer ts2.Close()

	nodes := []models.Server{
		testNode(t, ts1, "node1", "k1"),
		deadNode(t),
		testNode(t, ts2, "node3", "k3"),
	}
	engine := testEngine(nodes)

	report := engine.DeleteZone(context.Background(), "example.com")

	if report.TotalNodes != 3 {
		t.Errorf("TotalNodes = %d", report.TotalNodes)
	}
	if report.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", report.SuccessCount)
	}

	// One failure must not suppress the other nodes' results
	if len(report.Results) != 3 {
		t.Fatalf("Results = %d entries", len(report.Results))
	}
	if report.Results[1].Success || report.Results[1].Error == "" {
		t.Errorf("dead node result = %+v", report.Results[1])
	}
	if !report.Results[0].Success || !report.Results[2].Success {
		t.Errorf("live node results = %+v", report.Results)
	}
}

func TestHealthCheck(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	nodes := []models.Server{
		testNode(t, ts, "node1", "k1"),
		deadNode(t),
	}
	engine := testEngine(nodes)

	report := engine.HealthCheck(context.Background())

	if report.TotalNodes != 2 || report.HealthyCount != 1 {
		t.Errorf("report = %+v", report)
	}
	if !report.Nodes[0].Healthy {
		t.Errorf("live node unhealthy: %+v", report.Nodes[0])
	}
	if report.Nodes[0].ResponseTimeMS < 0 {
		t.Errorf("negative response time: %+v", report.Nodes[0])
	}
	if report.Nodes[1].Healthy || report.Nodes[1].Error == "" {
		t.Errorf("dead node result = %+v", report.Nodes[1])
	}
}

func TestClusterStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dnsapi/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(NodeStatus{Status: "ok", Zones: 7})
	}))
	defer ts.Close()

	engine := testEngine([]models.Server{
		testNode(t, ts, "node1", "k1"),
		deadNode(t),
	})

	report := engine.ClusterStatus(context.Background())

	if report.OnlineCount != 1 || report.OfflineCount != 1 {
		t.Errorf("counts = %d online, %d offline", report.OnlineCount, report.OfflineCount)
	}
	if report.Nodes[0].Status == nil || report.Nodes[0].Status.Zones != 7 {
		t.Errorf("status not decoded: %+v", report.Nodes[0])
	}
}

func TestSignZone(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/dnsapi/zones/example.com/dnssec" {
			t.Errorf("request was %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"ds_record": "example.com. IN DS 12345 13 2 ABCDEF",
		})
	}))
	defer ts.Close()

	node := testNode(t, ts, "node1", "k1")
	ds, err := NewClient().SignZone(context.Background(), node, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds != "example.com. IN DS 12345 13 2 ABCDEF" {
		t.Errorf("ds = %q", ds)
	}
}

func TestSyncAllZonesToNode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dnsapi/zones/broken.example" {
			http.Error(w, "refused", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "zone updated"})
	}))
	defer ts.Close()
	target := testNode(t, ts, "fresh-node", "k1")

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM servers WHERE id = \$1`).
		WithArgs(target.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address", "api_port", "api_key"}).
			AddRow(target.ID.String(), target.Name, target.Address, target.APIPort, target.APIKey))

	mock.ExpectQuery(`SELECT \* FROM zones ORDER BY domain`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "domain"}).
			AddRow(uuid.New().String(), "alpha.example").
			AddRow(uuid.New().String(), "broken.example"))

	// One active-record load per zone
	mock.ExpectQuery(`SELECT \* FROM records`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM records`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	engine := &Engine{
		db:       &database.DB{DB: sqlx.NewDb(mockDB, "sqlmock")},
		registry: NewRegistry(nil),
		client:   NewClient(),
	}

	report, err := engine.SyncAllZonesToNode(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Node != "fresh-node" || report.NodeID != target.ID {
		t.Errorf("report targets %q (%s)", report.Node, report.NodeID)
	}
	if report.TotalZones != 2 {
		t.Errorf("TotalZones = %d, want 2", report.TotalZones)
	}
	if report.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", report.SuccessCount)
	}

	// Each result names the zone it replayed, not a node
	if len(report.Results) != 2 || report.Results[0].Zone != "alpha.example" {
		t.Fatalf("Results = %+v", report.Results)
	}
	if !report.Results[0].Success {
		t.Errorf("alpha.example not replayed: %+v", report.Results[0])
	}
	if report.Results[1].Success || report.Results[1].Error == "" {
		t.Errorf("broken.example result = %+v", report.Results[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("store reads did not match: %v", err)
	}
}

func TestRegistryNodesReturnsCopy(t *testing.T) {
	registry := NewRegistry(nil)
	registry.nodes = []models.Server{{Name: "node1"}, {Name: "node2"}}

	nodes := registry.Nodes()
	nodes[0].Name = "mutated"

	if registry.Nodes()[0].Name != "node1" {
		t.Error("Nodes() must return a copy, not the cached slice")
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d", registry.Count())
	}
}
