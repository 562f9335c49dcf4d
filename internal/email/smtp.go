package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers the notification emails.
type Sender interface {
	SendLeadAssignedEmail(ctx context.Context, toEmail string, data LeadAssigned) error
	SendDeadLetterAlert(ctx context.Context, toEmail string, data DeadLetterAlert) error
}

// SMTPSender implements Sender over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	dial      func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
		dial: func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		},
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(s.dial),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendLeadAssignedEmail(ctx context.Context, toEmail string, data LeadAssigned) error {
	content, err := renderEmailTemplate("lead_assigned.html", leadAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:    "New lead assigned",
			Heading:  "New lead assigned",
			CTALabel: "Open assignment",
			CTAURL:   data.Location,
		},
		LeadAssigned: data,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectLeadAssignedFmt, data.LeadName), content)
}

func (s *SMTPSender) SendDeadLetterAlert(ctx context.Context, toEmail string, data DeadLetterAlert) error {
	content, err := renderEmailTemplate("dead_letter.html", deadLetterEmailData{
		baseEmailData: baseEmailData{
			Title:      "Index sync dead letter",
			Heading:    "Change event dead-lettered",
			Subheading: data.Reason,
		},
		DeadLetterAlert: data,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectDeadLetterFmt, data.EntityType, data.EntityID), content)
}

// NoopSender drops every email. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendLeadAssignedEmail(context.Context, string, LeadAssigned) error { return nil }

func (NoopSender) SendDeadLetterAlert(context.Context, string, DeadLetterAlert) error { return nil }
