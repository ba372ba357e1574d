package provider

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPRelay implements Provider by handing the message to an SMTP relay.
// The idempotency key becomes the Message-ID so relays that track message
// identifiers deduplicate repeated attempts.
type SMTPRelay struct {
	addr     string
	username string
	password string
	useTLS   bool
}

// NewSMTPRelay creates an SMTPRelay provider from the given configuration.
func NewSMTPRelay(cfg Config) *SMTPRelay {
	return &SMTPRelay{
		addr:     cfg.Endpoint,
		username: cfg.Username,
		password: cfg.Password,
		useTLS:   cfg.UseTLS,
	}
}

func (s *SMTPRelay) Name() string { return "smtp" }

// Send connects to the relay, authenticates when credentials are set, and
// submits the message.
func (s *SMTPRelay) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	client, err := s.dial(ctx)
	if err != nil {
		return nil, ClassifyTransportError(s.Name(), err)
	}
	defer client.Close()

	if s.username != "" {
		auth := sasl.NewPlainClient("", s.username, s.password)
		if err := client.Auth(auth); err != nil {
			return nil, &Error{
				Provider:  s.Name(),
				Message:   "authentication failed: " + err.Error(),
				Permanent: true,
			}
		}
	}

	raw := buildRFC822(msg)
	if err := client.SendMail(msg.From, msg.To, strings.NewReader(raw)); err != nil {
		return nil, classifySMTPError(s.Name(), err)
	}

	if err := client.Quit(); err != nil {
		// Message was accepted; a failed QUIT is not a delivery failure.
		_ = err
	}

	return &SendResult{
		ProviderMessageID: msg.IdempotencyKey,
		Status:            StatusSent,
		Timestamp:         time.Now(),
	}, nil
}

// HealthCheck verifies the relay accepts connections.
func (s *SMTPRelay) HealthCheck(ctx context.Context) error {
	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp: health check dial: %w", err)
	}
	defer client.Close()
	return client.Noop()
}

// dial connects under the caller's context and pins its deadline on the
// connection, so a dead relay cannot hold an attempt past its timeout.
func (s *SMTPRelay) dial(ctx context.Context) (*smtp.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if s.useTLS {
		client, err := smtp.NewClientStartTLS(conn, nil)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return client, nil
	}
	return smtp.NewClient(conn), nil
}

// classifySMTPError partitions SMTP reply codes: 4xx replies are transient
// (the relay asks the client to retry later), 5xx replies are permanent.
func classifySMTPError(providerName string, err error) *Error {
	if smtpErr, ok := err.(*smtp.SMTPError); ok {
		return &Error{
			Provider:   providerName,
			StatusCode: smtpErr.Code,
			Message:    smtpErr.Message,
			Permanent:  smtpErr.Code >= 500,
		}
	}
	return ClassifyTransportError(providerName, err)
}

// buildRFC822 renders the minimal message headers and body for submission.
func buildRFC822(msg *Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message-ID: <%s@mailflow>\r\n", msg.IdempotencyKey)
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return b.String()
}
