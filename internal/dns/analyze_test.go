package dns

import "testing"

func TestAnalyzeTrailingDotSuggestion(t *testing.T) {
	result := Analyze("CNAME", "blog", "target.example.com")

	if result.Suggestion == nil {
		t.Fatal("expected a trailing-dot suggestion")
	}
	if result.FixedContent == nil || *result.FixedContent != "target.example.com." {
		t.Fatalf("FixedContent = %v, want target.example.com.", result.FixedContent)
	}

	// Already dotted targets get no suggestion
	result = Analyze("CNAME", "blog", "target.example.com.")
	if result.Suggestion != nil {
		t.Fatalf("unexpected suggestion for dotted target: %q", *result.Suggestion)
	}
}

func TestAnalyzeNoSuggestionForSingleLabel(t *testing.T) {
	result := Analyze("CNAME", "blog", "localhost")
	if result.Suggestion != nil {
		t.Fatalf("unexpected suggestion for single label: %q", *result.Suggestion)
	}
}

func TestAnalyzeSPF(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantWarning bool
	}{
		{"missing all mechanism", "v=spf1 ip4:1.2.3.4", true},
		{"hard fail all", "v=spf1 -all", false},
		{"soft fail all", "v=spf1 include:_spf.google.com ~all", false},
		{"not an SPF record", "some plain text", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Analyze("TXT", "@", tt.content)
			if (len(result.Warnings) > 0) != tt.wantWarning {
				t.Errorf("warnings = %v, wantWarning %v", result.Warnings, tt.wantWarning)
			}
		})
	}
}

func TestAnalyzeDKIM(t *testing.T) {
	result := Analyze("TXT", "selector._domainkey", "v=DKIM1; k=rsa")
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for missing p= tag")
	}

	result = Analyze("TXT", "selector._domainkey", "v=DKIM1; k=rsa; p=MIGfMA0")
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestAnalyzeDMARC(t *testing.T) {
	result := Analyze("TXT", "_dmarc", "p=none")
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for missing v=DMARC1 tag")
	}

	result = Analyze("TXT", "_dmarc", "v=DMARC1; p=quarantine; rua=mailto:d@example.com")
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestAnalyzeValidity(t *testing.T) {
	if !Analyze("A", "www", "10.0.0.1").IsValid {
		t.Error("valid A record reported invalid")
	}
	if Analyze("A", "www", "999.1.1.1").IsValid {
		t.Error("bad A record reported valid")
	}
	// MX validity check must not fail on the placeholder priority
	if !Analyze("MX", "@", "mail.example.com.").IsValid {
		t.Error("valid MX record reported invalid")
	}
}
