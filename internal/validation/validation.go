// Package validation provides centralized input validation for perfstat.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/xtxerr/perfstat/internal/errors"
)

// =============================================================================
// Perftest Endpoint Validation
// =============================================================================

// forbiddenSuffixes are endpoint endings that point at the wrong resource
// of the result service: the collection itself or the artifact listing.
var forbiddenSuffixes = []string{"/", "perftest", "perftest/", "artifact", "artifact/"}

// ValidateEndpoint checks a perftest endpoint URL.
//
// The endpoint must be an http(s) URL that addresses a single test result
// below /perftest/, with no trailing slash.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return errors.NewInvalidEndpoint(endpoint, "is empty")
	}
	if !strings.HasPrefix(endpoint, "http") {
		return errors.NewInvalidEndpoint(endpoint, "must start with http")
	}
	if !strings.Contains(endpoint, "/perftest/") {
		return errors.NewInvalidEndpoint(endpoint, "must contain /perftest/")
	}
	for _, suffix := range forbiddenSuffixes {
		if strings.HasSuffix(endpoint, suffix) {
			return errors.NewInvalidEndpoint(endpoint, fmt.Sprintf("must not end with %q", suffix))
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.NewInvalidEndpoint(endpoint, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewInvalidEndpoint(endpoint, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return errors.NewInvalidEndpoint(endpoint, "has no host")
	}
	return nil
}

// =============================================================================
// Interface Name Validation
// =============================================================================

// MaxIfaceNameLength bounds interface names. SNMP ifDescr values are
// longer than kernel names, so this is looser than IFNAMSIZ.
const MaxIfaceNameLength = 255

// ValidateIfaceName checks a network interface name. The empty name means
// all interfaces and is valid.
func ValidateIfaceName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > MaxIfaceNameLength {
		return errors.NewValidation("iface", fmt.Sprintf("too long: maximum %d characters allowed", MaxIfaceNameLength))
	}
	if strings.TrimSpace(name) != name {
		return errors.NewValidation("iface", "leading or trailing whitespace")
	}
	for i, r := range name {
		if r < 32 || r == 127 {
			return errors.NewValidation("iface", fmt.Sprintf("control character at position %d", i))
		}
	}
	return nil
}

// =============================================================================
// Host Validation
// =============================================================================

// ValidateHost checks an SNMP agent address: an IP literal or a host name.
func ValidateHost(host string) error {
	if host == "" {
		return errors.NewMissingField("source.snmp.host")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) > 253 {
		return errors.NewValidation("source.snmp.host", "too long")
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" || len(label) > 63 {
			return errors.NewValidation("source.snmp.host", fmt.Sprintf("bad label in %q", host))
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return errors.NewValidation("source.snmp.host", fmt.Sprintf("label %q starts or ends with '-'", label))
		}
		for _, r := range label {
			if !isHostChar(r) {
				return errors.NewValidation("source.snmp.host", fmt.Sprintf("invalid character '%c'", r))
			}
		}
	}
	return nil
}

func isHostChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}
