package dns

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTemplateCatalog(t *testing.T) {
	if len(ListTemplates()) == 0 {
		t.Fatal("template catalog is empty")
	}

	for id, template := range Templates {
		if template.ID != id {
			t.Errorf("template %q has mismatched ID %q", id, template.ID)
		}
		if len(template.Records) == 0 {
			t.Errorf("template %q has no records", id)
		}
	}

	if GetTemplate("no-such-template") != nil {
		t.Error("unknown template id should return nil")
	}
}

func TestTemplateExpand(t *testing.T) {
	inputs := GetTemplate("basic-email-auth").Expand("example.com")

	for _, in := range inputs {
		if strings.Contains(in.Content, "{domain}") {
			t.Errorf("placeholder left in content: %q", in.Content)
		}
	}

	found := false
	for _, in := range inputs {
		if in.Name == "_dmarc" && strings.Contains(in.Content, "postmaster@example.com") {
			found = true
		}
	}
	if !found {
		t.Error("expected DMARC record with substituted domain")
	}
}

func TestTemplateExpandDashedDomain(t *testing.T) {
	inputs := GetTemplate("microsoft-365").Expand("example.com")

	found := false
	for _, in := range inputs {
		if in.RecordType == "MX" && strings.HasPrefix(in.Content, "example-com.") {
			found = true
		}
	}
	if !found {
		t.Error("expected MX target with dashed domain substitution")
	}
}

func TestTemplateRecordsPassValidation(t *testing.T) {
	for id, template := range Templates {
		for _, in := range template.Expand("example.com") {
			var policy json.RawMessage
			if err := ValidateFormat(in.RecordType, in.Name, in.Content, in.Priority, policy); err != nil {
				t.Errorf("template %q record %s %s fails validation: %v", id, in.RecordType, in.Name, err)
			}
		}
	}
}
