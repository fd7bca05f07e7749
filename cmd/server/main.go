package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"zonekeeper/backend/internal/cluster"
	"zonekeeper/backend/internal/database"
	"zonekeeper/backend/internal/dns"
	"zonekeeper/backend/internal/handlers"
	"zonekeeper/backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	db, err := database.New()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		log.Printf("Warning: failed to run migrations: %v", err)
	}

	registry := cluster.NewRegistry(db)
	if err := registry.Reload(context.Background()); err != nil {
		log.Printf("Warning: failed to load cluster membership: %v", err)
	}
	engine := cluster.NewEngine(db, registry)

	snapshots := dns.NewSnapshotStore(db)
	notifier := dns.NewWebhookNotifier()
	mirror, err := dns.NewMirrorFromEnv()
	if err != nil {
		log.Printf("Warning: provider mirror disabled: %v", err)
	}
	staging := dns.NewService(db, snapshots, engine, notifier, mirror)

	router := mux.NewRouter()
	router.Use(middleware.CORSMiddleware)

	// Auth routes (public)
	authHandler := handlers.NewAuthHandler(db)
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST", "OPTIONS")

	// Protected API routes (requires user auth)
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.AuthMiddleware)

	apiRouter.HandleFunc("/auth/me", authHandler.Me).Methods("GET", "OPTIONS")

	// Zones
	zonesHandler := handlers.NewZonesHandler(db, staging, engine)
	apiRouter.HandleFunc("/zones", zonesHandler.ListZones).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/zones", zonesHandler.CreateZone).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}", zonesHandler.GetZone).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}", zonesHandler.DeleteZone).Methods("DELETE", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/lock", zonesHandler.LockZone).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/lock", zonesHandler.UnlockZone).Methods("DELETE", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/webhook", zonesHandler.SetWebhook).Methods("PUT", "OPTIONS")

	// Records
	recordsHandler := handlers.NewRecordsHandler(staging)
	apiRouter.HandleFunc("/zones/{id}/records", recordsHandler.ListRecords).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/records", recordsHandler.CreateRecord).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/records/{recordId}", recordsHandler.UpdateRecord).Methods("PUT", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/records/{recordId}", recordsHandler.DeleteRecord).Methods("DELETE", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/records/{recordId}/lock", recordsHandler.LockRecord).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/records/{recordId}/lock", recordsHandler.UnlockRecord).Methods("DELETE", "OPTIONS")
	apiRouter.HandleFunc("/records/analyze", recordsHandler.AnalyzeRecord).Methods("POST", "OPTIONS")

	// Staging and publish
	apiRouter.HandleFunc("/zones/{id}/pending", recordsHandler.PreviewPending).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/publish", recordsHandler.Publish).Methods("POST", "OPTIONS")

	// Trash
	apiRouter.HandleFunc("/zones/{id}/trash", recordsHandler.ListTrash).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/trash/{recordId}/restore", recordsHandler.RestoreRecord).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/trash/{recordId}", recordsHandler.PurgeRecord).Methods("DELETE", "OPTIONS")

	// Snapshots
	snapshotsHandler := handlers.NewSnapshotsHandler(staging)
	apiRouter.HandleFunc("/zones/{id}/snapshots", snapshotsHandler.CreateSnapshot).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/history", snapshotsHandler.GetHistory).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/rollback/{versionId}", snapshotsHandler.Rollback).Methods("POST", "OPTIONS")

	// Import/export and templates
	importExportHandler := handlers.NewImportExportHandler(db, staging)
	apiRouter.HandleFunc("/zones/{id}/export", importExportHandler.ExportZone).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/import", importExportHandler.ImportZone).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/templates", importExportHandler.ListTemplates).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/templates/{templateId}", importExportHandler.ApplyTemplate).Methods("POST", "OPTIONS")

	// Cluster
	clusterHandler := handlers.NewClusterHandler(db, engine)
	apiRouter.HandleFunc("/cluster/status", clusterHandler.Status).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/cluster/health", clusterHandler.Health).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/cluster/statistics", clusterHandler.Statistics).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/cluster/nodes", clusterHandler.ListNodes).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/cluster/nodes/{serverId}", clusterHandler.AddNode).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/cluster/nodes/{serverId}", clusterHandler.RemoveNode).Methods("DELETE", "OPTIONS")
	apiRouter.HandleFunc("/cluster/nodes/{serverId}/sync-all", clusterHandler.SyncAllToNode).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/sync", clusterHandler.SyncZone).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/zones/{id}/dnssec", clusterHandler.EnableDNSSEC).Methods("POST", "OPTIONS")

	// Server registry
	apiRouter.HandleFunc("/servers", clusterHandler.ListServers).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/servers", clusterHandler.RegisterServer).Methods("POST", "OPTIONS")

	// ACME DNS-01 helper
	acmeHandler := handlers.NewACMEHandler(db, engine)
	apiRouter.HandleFunc("/acme/dns-01", acmeHandler.Present).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/acme/dns-01", acmeHandler.Cleanup).Methods("DELETE", "OPTIONS")

	// Periodic membership refresh picks up out-of-band registry edits
	reloadMinutes := 5
	if intervalStr := os.Getenv("CLUSTER_RELOAD_MINUTES"); intervalStr != "" {
		if val, err := strconv.Atoi(intervalStr); err == nil && val > 0 {
			reloadMinutes = val
		}
	}
	stopReload := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(reloadMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := registry.Reload(context.Background()); err != nil {
					log.Printf("Cluster registry refresh failed: %v", err)
				}
			case <-stopReload:
				return
			}
		}
	}()
	defer close(stopReload)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Printf("Cluster registry refresh interval: %d minute(s)", reloadMinutes)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
