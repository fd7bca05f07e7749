package dns

import (
	"strings"
	"testing"

	"zonekeeper/backend/internal/models"
)

func TestExportText(t *testing.T) {
	prio := 10
	records := []models.Record{
		{Name: "@", RecordType: "A", Content: "10.0.0.1", TTL: 3600},
		{Name: "@", RecordType: "MX", Content: "mail.example.com.", TTL: 3600, Priority: &prio},
		{Name: "@", RecordType: "TXT", Content: "v=spf1 -all", TTL: 300},
	}

	out := ExportText("example.com", records)

	if !strings.Contains(out, "; Zone file for example.com") {
		t.Error("missing header comment")
	}
	if !strings.Contains(out, "@\t3600\tIN\tA\t10.0.0.1") {
		t.Errorf("missing A line in:\n%s", out)
	}
	if !strings.Contains(out, "@\t3600\tIN\tMX\t10\tmail.example.com.") {
		t.Errorf("missing MX line with priority in:\n%s", out)
	}
	if !strings.Contains(out, `"v=spf1 -all"`) {
		t.Errorf("TXT content should be quoted in:\n%s", out)
	}
}

func TestParseZoneText(t *testing.T) {
	text := `; comment line
$TTL 3600
@	3600	IN	A	10.0.0.1
www	IN	CNAME	example.com.
@	3600	IN	MX	10	mail.example.com.
@	300	IN	TXT	"v=spf1 -all"
garbage line without type
`

	records := ParseZoneText(text)
	if len(records) != 4 {
		t.Fatalf("parsed %d records, want 4: %+v", len(records), records)
	}

	a := records[0]
	if a.RecordType != "A" || a.Name != "@" || a.Content != "10.0.0.1" || a.TTL != 3600 {
		t.Errorf("A record parsed as %+v", a)
	}

	cname := records[1]
	if cname.RecordType != "CNAME" || cname.TTL != 3600 {
		t.Errorf("CNAME without explicit TTL parsed as %+v", cname)
	}

	mx := records[2]
	if mx.Priority == nil || *mx.Priority != 10 || mx.Content != "mail.example.com." {
		t.Errorf("MX record parsed as %+v", mx)
	}

	txt := records[3]
	if txt.Content != "v=spf1 -all" {
		t.Errorf("TXT quotes not stripped: %+v", txt)
	}
}

func TestParseZoneTextEmptyInput(t *testing.T) {
	records := ParseZoneText("; only a comment\n$ORIGIN example.com.\n")
	if len(records) != 0 {
		t.Fatalf("expected no records, got %+v", records)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	prio := 5
	records := []models.Record{
		{Name: "@", RecordType: "A", Content: "10.0.0.1", TTL: 3600},
		{Name: "www", RecordType: "CNAME", Content: "example.com.", TTL: 600},
		{Name: "@", RecordType: "MX", Content: "mail.example.com.", TTL: 3600, Priority: &prio},
		{Name: "_dmarc", RecordType: "TXT", Content: "v=DMARC1; p=none", TTL: 3600},
	}

	parsed := ParseZoneText(ExportText("example.com", records))
	if len(parsed) != len(records) {
		t.Fatalf("round trip lost records: got %d, want %d", len(parsed), len(records))
	}

	for i, rec := range records {
		got := parsed[i]
		if got.RecordType != rec.RecordType || got.Name != rec.Name || got.Content != rec.Content || got.TTL != rec.TTL {
			t.Errorf("record %d: got %+v, want %s %s %s", i, got, rec.RecordType, rec.Name, rec.Content)
		}
	}
	if parsed[2].Priority == nil || *parsed[2].Priority != 5 {
		t.Errorf("MX priority lost in round trip: %+v", parsed[2])
	}
}

func TestParseProviderJSON(t *testing.T) {
	payload := []byte(`[
		{"type": "a", "name": "www", "content": "10.0.0.1", "ttl": 300},
		{"type": "MX", "name": "@", "content": "mail.example.com.", "ttl": 0, "priority": 10},
		{"type": "BOGUS", "name": "x", "content": "y"},
		{"type": "A", "name": "", "content": "10.0.0.2"}
	]`)

	records, err := ParseProviderJSON(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("parsed %d records, want 2: %+v", len(records), records)
	}

	if records[0].RecordType != "A" {
		t.Errorf("type not upcased: %+v", records[0])
	}
	if records[1].TTL != 3600 {
		t.Errorf("zero TTL not defaulted: %+v", records[1])
	}
	if records[1].Priority == nil || *records[1].Priority != 10 {
		t.Errorf("priority lost: %+v", records[1])
	}
}

func TestParseProviderJSONMalformed(t *testing.T) {
	if _, err := ParseProviderJSON([]byte(`{"not": "an array"}`)); err == nil {
		t.Fatal("expected error for non-array payload")
	}
}
