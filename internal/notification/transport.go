package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
)

// Credentials are the fixed sender credentials used for SMTP auth.
type Credentials struct {
	User     string
	Password string
}

// Transport performs delivery for a resolved transport profile. It is
// exchangeable per provider and replaceable in tests.
type Transport interface {
	// Verify checks that the transport can connect and authenticate.
	Verify(ctx context.Context, cfg TransportConfig, creds Credentials) error
	// Send delivers a fully rendered message.
	Send(ctx context.Context, cfg TransportConfig, creds Credentials, from, to string, msg []byte) error
}

// smtpTransport is the production Transport backed by net/smtp.
type smtpTransport struct{}

// Providers like Gmail present certificates for several hostnames; the relaxed
// TLS policy from the original deployment is kept, with a TLS 1.2 floor.
func tlsConfig(host string) *tls.Config {
	return &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}
}

func (t *smtpTransport) Verify(ctx context.Context, cfg TransportConfig, creds Credentials) error {
	client, err := t.connect(ctx, cfg, creds)
	if err != nil {
		return err
	}
	return client.Quit()
}

func (t *smtpTransport) Send(ctx context.Context, cfg TransportConfig, creds Credentials, from, to string, msg []byte) error {
	client, err := t.connect(ctx, cfg, creds)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// connect dials the SMTP host, negotiates TLS (implicit or STARTTLS) and
// authenticates with the sender credentials.
func (t *smtpTransport) connect(ctx context.Context, cfg TransportConfig, creds Credentials) (*smtp.Client, error) {
	dialer := &net.Dialer{}

	var client *smtp.Client
	if cfg.Secure {
		conn, err := tls.DialWithDialer(dialer, "tcp", cfg.Addr(), tlsConfig(cfg.Host))
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), err)
		}
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return nil, err
		}
	} else {
		conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), err)
		}
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig(cfg.Host)); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if creds.User != "" {
		auth := smtp.PlainAuth("", creds.User, creds.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("auth: %w", err)
		}
	}

	return client, nil
}
