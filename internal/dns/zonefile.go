package dns

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"zonekeeper/backend/internal/models"
)

// ParsedRecord is one record tuple produced by the importers. Parsed tuples
// go through the same validate/stage path as manually entered records.
type ParsedRecord struct {
	RecordType string `json:"record_type"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	TTL        int    `json:"ttl"`
	Priority   *int   `json:"priority,omitempty"`
}

// ExportText projects a record list to a flat zone-file style text block:
// one name/ttl/class/type/content line per record.
func ExportText(domain string, records []models.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; Zone file for %s\n", domain)

	for _, rec := range records {
		line := fmt.Sprintf("%s\t%d\tIN\t%s", rec.Name, rec.TTL, rec.RecordType)
		if rec.Priority != nil {
			line += fmt.Sprintf("\t%d", *rec.Priority)
		}
		content := rec.Content
		if rec.RecordType == "TXT" && !strings.HasPrefix(content, `"`) {
			content = `"` + content + `"`
		}
		b.WriteString(line + "\t" + content + "\n")
	}

	return b.String()
}

// ParseZoneText parses flat zone-file text into record tuples. The parser is
// tolerant: comments, directives, and unparseable lines are skipped, and an
// empty list is returned when no valid lines remain.
func ParseZoneText(text string) []ParsedRecord {
	records := []ParsedRecord{}

	for _, line := range strings.Split(text, "\n") {
		if idx := strings.Index(line, ";"); idx >= 0 && !strings.Contains(line[:idx], `"`) {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "$") {
			continue
		}

		if rec, ok := parseZoneLine(line); ok {
			records = append(records, rec)
		}
	}

	return records
}

func parseZoneLine(line string) (ParsedRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return ParsedRecord{}, false
	}

	rec := ParsedRecord{Name: fields[0], TTL: 3600}
	i := 1

	// Optional TTL
	if ttl, err := strconv.Atoi(fields[i]); err == nil {
		rec.TTL = ttl
		i++
	}
	// Optional class
	if i < len(fields) && strings.EqualFold(fields[i], "IN") {
		i++
	}
	if i >= len(fields) {
		return ParsedRecord{}, false
	}

	rec.RecordType = strings.ToUpper(fields[i])
	i++
	if !models.IsValidRecordType(rec.RecordType) || i >= len(fields) {
		return ParsedRecord{}, false
	}

	// MX/SRV carry a leading priority field
	if rec.RecordType == "MX" || rec.RecordType == "SRV" {
		if prio, err := strconv.Atoi(fields[i]); err == nil && i+1 < len(fields) {
			rec.Priority = &prio
			i++
		}
	}

	content := strings.Join(fields[i:], " ")
	if rec.RecordType == "TXT" {
		content = strings.Trim(content, `"`)
	}
	if content == "" {
		return ParsedRecord{}, false
	}
	rec.Content = content

	return rec, true
}

// ParseProviderJSON parses the generic provider export shape: a JSON array
// of {type, name, content, ttl, priority} objects.
func ParseProviderJSON(payload []byte) ([]ParsedRecord, error) {
	var raw []struct {
		Type     string `json:"type"`
		Name     string `json:"name"`
		Content  string `json:"content"`
		TTL      int    `json:"ttl"`
		Priority *int   `json:"priority"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed provider payload: %v", ErrInvalidRecord, err)
	}

	records := []ParsedRecord{}
	for _, r := range raw {
		typ := strings.ToUpper(r.Type)
		if !models.IsValidRecordType(typ) || r.Name == "" || r.Content == "" {
			continue
		}
		ttl := r.TTL
		if ttl <= 0 {
			ttl = 3600
		}
		records = append(records, ParsedRecord{
			RecordType: typ,
			Name:       r.Name,
			Content:    r.Content,
			TTL:        ttl,
			Priority:   r.Priority,
		})
	}

	return records, nil
}
