package dns

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"zonekeeper/backend/internal/models"

	"github.com/google/uuid"
)

var (
	// Conservative subdomain grammar: @, *, or label characters. Underscores
	// are allowed for service records (_acme-challenge, _dmarc, SRV names).
	nameRe = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)

	// Hostname-valued content (CNAME/NS/MX targets), optional trailing dot
	hostnameRe = regexp.MustCompile(`^[A-Za-z0-9\-_.]+\.?$`)
)

// ValidateName checks the record name against the subdomain grammar
func ValidateName(name string) error {
	if name == "@" || name == "*" {
		return nil
	}
	if name == "" || !nameRe.MatchString(name) {
		return fmt.Errorf("%w: invalid record name %q", ErrInvalidRecord, name)
	}
	return nil
}

// ValidateFormat runs the type-specific grammar checks for a single record.
// It is pure: no store access, no side effects.
func ValidateFormat(recordType, name, content string, priority *int, policy json.RawMessage) error {
	if !models.IsValidRecordType(recordType) {
		return fmt.Errorf("%w: unsupported record type %q", ErrInvalidRecord, recordType)
	}

	if err := ValidateName(name); err != nil {
		return err
	}

	switch recordType {
	case "A":
		ip := net.ParseIP(content)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("%w: %q is not a valid IPv4 address", ErrInvalidRecord, content)
		}
	case "AAAA":
		ip := net.ParseIP(content)
		if ip == nil || ip.To4() != nil {
			return fmt.Errorf("%w: %q is not a valid IPv6 address", ErrInvalidRecord, content)
		}
	case "CNAME", "NS", "MX":
		if content == "" || !hostnameRe.MatchString(content) {
			return fmt.Errorf("%w: %q is not a valid hostname", ErrInvalidRecord, content)
		}
	case "TXT":
		// Unconstrained
	case "SRV", "CAA":
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("%w: content is required for %s records", ErrInvalidRecord, recordType)
		}
	}

	if recordType == "MX" || recordType == "SRV" {
		if priority == nil {
			return fmt.Errorf("%w: priority is required for %s records", ErrInvalidRecord, recordType)
		}
		if *priority < 0 || *priority > 65535 {
			return fmt.Errorf("%w: priority must be between 0 and 65535", ErrInvalidRecord)
		}
	}

	if len(policy) > 0 && string(policy) != "null" {
		if err := validateRoutingPolicy(policy); err != nil {
			return err
		}
	}

	return nil
}

func validateRoutingPolicy(raw json.RawMessage) error {
	var policy models.RoutingPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return fmt.Errorf("%w: malformed routing policy: %v", ErrInvalidRecord, err)
	}

	switch policy.Type {
	case models.PolicyWeighted:
		if policy.Weight == nil || *policy.Weight < 0 || *policy.Weight > 100 {
			return fmt.Errorf("%w: weighted policy requires a weight between 0 and 100", ErrInvalidRecord)
		}
	case models.PolicyGeo:
		if policy.Region == nil || len(*policy.Region) != 2 {
			return fmt.Errorf("%w: geo policy requires a 2-letter region code", ErrInvalidRecord)
		}
	case models.PolicyFailover:
		if policy.HealthCheckURL == nil {
			return fmt.Errorf("%w: failover policy requires a health check URL", ErrInvalidRecord)
		}
		u, err := url.Parse(*policy.HealthCheckURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: health check URL must be http(s)", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown routing policy type %q", ErrInvalidRecord, policy.Type)
	}

	return nil
}

// ValidateConflicts checks a candidate record against the zone's existing
// records: no duplicate (type, name, content) tuple among non-deleted rows,
// and a name with a CNAME may carry no other record. excludeID lets an
// in-place update validate against all records except itself.
func ValidateConflicts(existing []models.Record, recordType, name, content string, excludeID uuid.UUID) error {
	for _, rec := range existing {
		if rec.ID == excludeID {
			continue
		}
		if rec.EffectiveStatus() == models.StatusDeleted {
			continue
		}
		if rec.Name != name {
			continue
		}

		if rec.RecordType == recordType && rec.Content == content {
			return fmt.Errorf("%w: identical %s record for %q already exists", ErrConflict, recordType, name)
		}
		if recordType == "CNAME" {
			return fmt.Errorf("%w: CNAME for %q cannot coexist with other records", ErrConflict, name)
		}
		if rec.RecordType == "CNAME" {
			return fmt.Errorf("%w: a CNAME record already exists for %q", ErrConflict, name)
		}
	}

	return nil
}
