package service

import (
	"regexp"
	"strings"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// sanitizeString collapses whitespace and trims the result.
func sanitizeString(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// normalizeHash lowercases a hex digest and drops a 0x prefix.
func normalizeHash(hash string) string {
	hash = strings.ToLower(strings.TrimSpace(hash))
	return strings.TrimPrefix(hash, "0x")
}

// normalizeCertType maps a certificate type to its canonical lowercase form.
func normalizeCertType(certType string) string {
	return strings.ToLower(strings.TrimSpace(certType))
}

// normalizeRegistration tidies the free-text fields of an issuer registration.
func normalizeRegistration(reg domain.IssuerRegistration) domain.IssuerRegistration {
	reg.Name = sanitizeString(reg.Name)
	reg.Institution = sanitizeString(reg.Institution)
	reg.Role = strings.ToLower(strings.TrimSpace(reg.Role))
	return reg
}
