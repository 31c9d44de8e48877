package notification

import (
	"strconv"
	"strings"
)

// ProviderKey names a bundle of SMTP connection parameters tuned to a
// specific mail service.
type ProviderKey string

const (
	ProviderGmail   ProviderKey = "gmail"
	ProviderOutlook ProviderKey = "outlook"
	ProviderYahoo   ProviderKey = "yahoo"
	ProviderICloud  ProviderKey = "icloud"
	ProviderGeneric ProviderKey = "generic"
)

// providerTable maps domain fragments to provider profiles, evaluated top to
// bottom. This is a heuristic, not an authoritative MX lookup; the generic
// entry is the required catch-all for anything unmatched.
var providerTable = []struct {
	fragment string
	key      ProviderKey
}{
	{"gmail", ProviderGmail},
	{"outlook", ProviderOutlook},
	{"hotmail", ProviderOutlook},
	{"live", ProviderOutlook},
	{"yahoo", ProviderYahoo},
	{"icloud", ProviderICloud},
	{"me.com", ProviderICloud},
}

// DetectProvider resolves a recipient's likely mail provider from the domain
// part of the address. Matching is case-insensitive and purely a function of
// the domain substring.
func DetectProvider(email string) ProviderKey {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(email)), "@", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ProviderGeneric
	}
	domain := parts[1]

	for _, entry := range providerTable {
		if strings.Contains(domain, entry.fragment) {
			return entry.key
		}
	}
	return ProviderGeneric
}

// TransportConfig holds resolved SMTP connection parameters for one
// delivery attempt.
type TransportConfig struct {
	Host   string
	Port   int
	Secure bool // implicit TLS; otherwise STARTTLS is attempted
}

// Addr returns the host:port dial address.
func (c TransportConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Named-service profiles. Gmail, Yahoo and Outlook imply their own hosts;
// iCloud needs the explicit host.
var providerProfiles = map[ProviderKey]TransportConfig{
	ProviderGmail:   {Host: "smtp.gmail.com", Port: 587, Secure: false},
	ProviderOutlook: {Host: "smtp-mail.outlook.com", Port: 587, Secure: false},
	ProviderYahoo:   {Host: "smtp.mail.yahoo.com", Port: 587, Secure: false},
	ProviderICloud:  {Host: "smtp.mail.me.com", Port: 587, Secure: false},
}

// defaultGeneric is the hard fallback when no generic SMTP settings are
// configured.
var defaultGeneric = TransportConfig{Host: "smtp.gmail.com", Port: 587, Secure: false}

// BuildTransport resolves a provider key to transport configuration. The
// generic profile comes from configured SMTP settings, defaulting to
// defaultGeneric.
func (s *EmailService) BuildTransport(key ProviderKey) TransportConfig {
	if profile, ok := providerProfiles[key]; ok {
		return profile
	}
	generic := s.config.Generic
	if generic.Host == "" {
		return defaultGeneric
	}
	return generic
}
