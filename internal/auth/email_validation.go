package auth

import (
	"net/mail"
	"strings"

	"github.com/vidlink/identity/internal/domain"
)

const maxEmailLength = 254 // RFC 5321

// Domains of widely used mail services. Detection of an unknown domain does
// not reject the address; it only feeds the known-provider hint surfaced in
// send-code responses.
var knownProviderDomains = []string{
	"gmail.com", "googlemail.com",
	"yahoo.com", "yahoo.co.uk", "yahoo.ca", "yahoo.in",
	"outlook.com", "hotmail.com", "live.com", "msn.com",
	"icloud.com", "me.com", "mac.com",
	"aol.com", "protonmail.com", "mail.com",
}

// ValidateEmail validates an email address for format and length.
func ValidateEmail(email string) error {
	if email == "" {
		return domain.ErrInvalidEmail
	}
	if len(email) > maxEmailLength {
		return domain.ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(NormalizeEmail(email))
	if err != nil || addr.Address != NormalizeEmail(email) {
		return domain.ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsKnownProviderDomain reports whether the address belongs to a widely used
// mail service. Purely informational.
func IsKnownProviderDomain(email string) bool {
	emailDomain := EmailDomain(email)
	for _, d := range knownProviderDomains {
		if strings.Contains(emailDomain, strings.Split(d, ".")[0]) {
			return true
		}
	}
	return false
}

// EmailDomain extracts the lowercased domain from an email address.
func EmailDomain(email string) string {
	parts := strings.Split(NormalizeEmail(email), "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
