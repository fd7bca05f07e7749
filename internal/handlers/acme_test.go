package handlers

import "testing"

func TestNormalizeChallengeFQDN(t *testing.T) {
	tests := []struct {
		fqdn string
		want string
	}{
		{"example.com", "example.com"},
		{"example.com.", "example.com"},
		{"WWW.Example.COM.", "www.example.com"},
		{"  example.com \n", "example.com"},
		// lego and acme.sh hand over the full challenge name
		{"_acme-challenge.example.com.", "example.com"},
		{"_acme-challenge.www.example.com", "www.example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeChallengeFQDN(tt.fqdn); got != tt.want {
			t.Errorf("normalizeChallengeFQDN(%q) = %q, want %q", tt.fqdn, got, tt.want)
		}
	}
}

func TestChallengeRecordName(t *testing.T) {
	tests := []struct {
		fqdn   string
		domain string
		want   string
	}{
		{"example.com", "example.com", "_acme-challenge"},
		{"www.example.com", "example.com", "_acme-challenge.www"},
		{"a.b.example.com", "example.com", "_acme-challenge.a.b"},
	}

	for _, tt := range tests {
		if got := challengeRecordName(tt.fqdn, tt.domain); got != tt.want {
			t.Errorf("challengeRecordName(%q, %q) = %q, want %q", tt.fqdn, tt.domain, got, tt.want)
		}
	}
}

func TestChallengeNameNeverDoubled(t *testing.T) {
	fqdn := normalizeChallengeFQDN("_acme-challenge.www.example.com.")
	if got := challengeRecordName(fqdn, "example.com"); got != "_acme-challenge.www" {
		t.Errorf("challenge name = %q, want %q", got, "_acme-challenge.www")
	}
}
