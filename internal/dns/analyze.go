package dns

import (
	"net"
	"strings"
)

// Analysis is an advisory report for a record. It never blocks a write.
type Analysis struct {
	IsValid      bool     `json:"is_valid"`
	Warnings     []string `json:"warnings"`
	Suggestion   *string  `json:"suggestion,omitempty"`
	FixedContent *string  `json:"fixed_content,omitempty"`
}

// Analyze runs heuristic checks on a record: trailing-dot suggestions for
// FQDN-valued targets and sanity checks for SPF/DKIM/DMARC TXT records.
func Analyze(recordType, name, content string) *Analysis {
	result := &Analysis{
		IsValid:  ValidateFormat(recordType, name, content, zeroPriority(recordType), nil) == nil,
		Warnings: []string{},
	}

	switch recordType {
	case "CNAME", "MX", "NS", "SRV":
		if looksLikeFQDN(content) && !strings.HasSuffix(content, ".") {
			suggestion := "Target looks like a fully qualified domain name; append a trailing dot to avoid zone-relative expansion"
			fixed := content + "."
			result.Suggestion = &suggestion
			result.FixedContent = &fixed
		}
	case "TXT":
		analyzeTXT(name, content, result)
	}

	return result
}

func analyzeTXT(name, content string, result *Analysis) {
	switch {
	case strings.HasPrefix(content, "v=spf1"):
		if !strings.Contains(content, "all") {
			result.Warnings = append(result.Warnings,
				"SPF record has no 'all' mechanism; mail from unlisted hosts will not be rejected")
		}
	case strings.HasPrefix(content, "v=DKIM1"):
		if !strings.Contains(content, "p=") {
			result.Warnings = append(result.Warnings,
				"DKIM record is missing the public key (p=) tag")
		}
	}

	if strings.HasPrefix(name, "_dmarc") {
		if !strings.Contains(content, "v=DMARC1") {
			result.Warnings = append(result.Warnings,
				"DMARC record is missing the version tag (v=DMARC1)")
		}
		if !strings.Contains(content, "p=") {
			result.Warnings = append(result.Warnings,
				"DMARC record is missing the policy (p=) tag")
		}
	}
}

// looksLikeFQDN reports whether a hostname target spans multiple labels and
// is not a bare IP
func looksLikeFQDN(content string) bool {
	if content == "" || net.ParseIP(content) != nil {
		return false
	}
	return strings.Contains(strings.TrimSuffix(content, "."), ".")
}

// zeroPriority supplies a placeholder priority so Analyze can reuse
// ValidateFormat for types that require one
func zeroPriority(recordType string) *int {
	if recordType == "MX" || recordType == "SRV" {
		p := 0
		return &p
	}
	return nil
}
