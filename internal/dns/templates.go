package dns

import "strings"

// TemplateRecord is one record in a template bundle. The {domain}
// placeholder in content is replaced with the zone's domain on apply.
type TemplateRecord struct {
	RecordType string `json:"record_type"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	TTL        int    `json:"ttl"`
	Priority   *int   `json:"priority,omitempty"`
}

// RecordTemplate is a named bundle of well-known records
type RecordTemplate struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Records     []TemplateRecord `json:"records"`
}

func prio(p int) *int { return &p }

// Built-in record templates
var Templates = map[string]*RecordTemplate{
	"google-workspace": {
		ID:          "google-workspace",
		Name:        "Google Workspace",
		Description: "MX and SPF records for Google Workspace mail",
		Records: []TemplateRecord{
			{RecordType: "MX", Name: "@", Content: "smtp.google.com.", TTL: 3600, Priority: prio(1)},
			{RecordType: "TXT", Name: "@", Content: "v=spf1 include:_spf.google.com ~all", TTL: 3600},
		},
	},
	"microsoft-365": {
		ID:          "microsoft-365",
		Name:        "Microsoft 365",
		Description: "MX, SPF and autodiscover records for Microsoft 365",
		Records: []TemplateRecord{
			{RecordType: "MX", Name: "@", Content: "{domain-dashed}.mail.protection.outlook.com.", TTL: 3600, Priority: prio(0)},
			{RecordType: "TXT", Name: "@", Content: "v=spf1 include:spf.protection.outlook.com -all", TTL: 3600},
			{RecordType: "CNAME", Name: "autodiscover", Content: "autodiscover.outlook.com.", TTL: 3600},
		},
	},
	"basic-email-auth": {
		ID:          "basic-email-auth",
		Name:        "Basic Email Authentication",
		Description: "SPF and DMARC skeleton records",
		Records: []TemplateRecord{
			{RecordType: "TXT", Name: "@", Content: "v=spf1 a mx -all", TTL: 3600},
			{RecordType: "TXT", Name: "_dmarc", Content: "v=DMARC1; p=none; rua=mailto:postmaster@{domain}", TTL: 3600},
		},
	},
}

// GetTemplate returns a template by id, or nil
func GetTemplate(id string) *RecordTemplate {
	return Templates[id]
}

// ListTemplates returns all built-in templates
func ListTemplates() []*RecordTemplate {
	list := make([]*RecordTemplate, 0, len(Templates))
	for _, t := range Templates {
		list = append(list, t)
	}
	return list
}

// Expand renders the template's records for a concrete domain
func (t *RecordTemplate) Expand(domain string) []RecordInput {
	inputs := make([]RecordInput, 0, len(t.Records))
	for _, rec := range t.Records {
		content := strings.ReplaceAll(rec.Content, "{domain}", domain)
		content = strings.ReplaceAll(content, "{domain-dashed}", strings.ReplaceAll(domain, ".", "-"))
		inputs = append(inputs, RecordInput{
			RecordType: rec.RecordType,
			Name:       rec.Name,
			Content:    content,
			TTL:        rec.TTL,
			Priority:   rec.Priority,
		})
	}
	return inputs
}
