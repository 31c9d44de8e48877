package notification

import "testing"

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  ProviderKey
	}{
		{"gmail", "alice@gmail.com", ProviderGmail},
		{"googlemail lacks the gmail fragment", "alice@googlemail.com", ProviderGeneric},
		{"outlook", "bob@outlook.com", ProviderOutlook},
		{"hotmail maps to outlook", "bob@hotmail.com", ProviderOutlook},
		{"live maps to outlook", "bob@live.com", ProviderOutlook},
		{"yahoo", "carol@yahoo.com", ProviderYahoo},
		{"yahoo country domain", "carol@yahoo.co.uk", ProviderYahoo},
		{"icloud", "dave@icloud.com", ProviderICloud},
		{"me.com maps to icloud", "dave@me.com", ProviderICloud},
		{"unknown domain", "eve@example.org", ProviderGeneric},
		{"uppercase domain", "alice@GMAIL.COM", ProviderGmail},
		{"mixed case", "Bob@HotMail.Com", ProviderOutlook},
		{"missing domain", "no-at-sign", ProviderGeneric},
		{"empty", "", ProviderGeneric},
		{"gmail substring in subdomain", "x@mail.gmail.example", ProviderGmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectProvider(tt.email); got != tt.want {
				t.Errorf("DetectProvider(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestDetectProviderIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := DetectProvider("alice@gmail.com"); got != ProviderGmail {
			t.Fatalf("DetectProvider changed between calls: %q", got)
		}
	}
}

func TestBuildTransport(t *testing.T) {
	svc := NewEmailService(EmailConfig{}, discardLogger())

	gmail := svc.BuildTransport(ProviderGmail)
	if gmail.Host != "smtp.gmail.com" || gmail.Port != 587 {
		t.Errorf("gmail transport = %+v", gmail)
	}

	outlook := svc.BuildTransport(ProviderOutlook)
	if outlook.Host != "smtp-mail.outlook.com" {
		t.Errorf("outlook transport = %+v", outlook)
	}

	// Generic without configured SMTP settings falls back to the hard default.
	generic := svc.BuildTransport(ProviderGeneric)
	if generic.Host != "smtp.gmail.com" || generic.Port != 587 {
		t.Errorf("default generic transport = %+v", generic)
	}
}

func TestBuildTransportConfiguredGeneric(t *testing.T) {
	svc := NewEmailService(EmailConfig{
		Generic: TransportConfig{Host: "mail.internal", Port: 465, Secure: true},
	}, discardLogger())

	generic := svc.BuildTransport(ProviderGeneric)
	if generic.Host != "mail.internal" || generic.Port != 465 || !generic.Secure {
		t.Errorf("configured generic transport = %+v", generic)
	}

	if generic.Addr() != "mail.internal:465" {
		t.Errorf("Addr() = %q", generic.Addr())
	}
}
