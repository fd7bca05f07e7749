package dns

import (
	"context"
	"fmt"
	"log"
	"os"

	"zonekeeper/backend/internal/models"

	"github.com/cloudflare/cloudflare-go"
)

// Mirror pushes a zone's active record set to an external DNS provider,
// keeping a third-party copy in step with the cluster. Like cluster sync it
// is best-effort: mirror failures never fail a publish.
type Mirror struct {
	api *cloudflare.API
}

// NewMirrorFromEnv builds a mirror from CF_API_TOKEN; returns nil when no
// token is configured, which disables mirroring.
func NewMirrorFromEnv() (*Mirror, error) {
	token := os.Getenv("CF_API_TOKEN")
	if token == "" {
		return nil, nil
	}

	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror client: %w", err)
	}
	return &Mirror{api: api}, nil
}

// PushZone reconciles the provider's record set for a domain against the
// given active records: create missing, update differing, delete extras.
func (m *Mirror) PushZone(ctx context.Context, domain string, records []models.Record) error {
	zoneID, err := m.api.ZoneIDByName(domain)
	if err != nil {
		return fmt.Errorf("mirror zone %s not found at provider: %w", domain, err)
	}
	rc := cloudflare.ZoneIdentifier(zoneID)

	remote, _, err := m.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{})
	if err != nil {
		return fmt.Errorf("failed to list provider records: %w", err)
	}

	remoteByKey := make(map[string]cloudflare.DNSRecord)
	for _, r := range remote {
		remoteByKey[r.Type+"|"+r.Name] = r
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		fqdn := recordFQDN(rec.Name, domain)
		key := rec.RecordType + "|" + fqdn
		seen[key] = true

		existing, ok := remoteByKey[key]
		if ok && existing.Content == rec.Content && existing.TTL == rec.TTL {
			continue
		}

		if ok {
			_, err = m.api.UpdateDNSRecord(ctx, rc, cloudflare.UpdateDNSRecordParams{
				ID:       existing.ID,
				Type:     rec.RecordType,
				Name:     fqdn,
				Content:  rec.Content,
				TTL:      rec.TTL,
				Priority: cfPriority(rec.Priority),
			})
		} else {
			_, err = m.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
				Type:     rec.RecordType,
				Name:     fqdn,
				Content:  rec.Content,
				TTL:      rec.TTL,
				Priority: cfPriority(rec.Priority),
			})
		}
		if err != nil {
			log.Printf("Mirror: failed to push %s %s: %v", rec.RecordType, fqdn, err)
		}
	}

	// Remove provider records we no longer serve
	for key, r := range remoteByKey {
		if seen[key] {
			continue
		}
		if err := m.api.DeleteDNSRecord(ctx, rc, r.ID); err != nil {
			log.Printf("Mirror: failed to remove stale %s %s: %v", r.Type, r.Name, err)
		}
	}

	return nil
}

func recordFQDN(name, domain string) string {
	if name == "@" || name == "" {
		return domain
	}
	return name + "." + domain
}

func cfPriority(p *int) *uint16 {
	if p == nil {
		return nil
	}
	v := uint16(*p)
	return &v
}
