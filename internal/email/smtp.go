package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers mail over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
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

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendVerificationLink(ctx context.Context, to, name, link string) error {
	content, err := renderEmailTemplate("verification.html", portalEmailData{
		baseEmailData: baseEmailData{
			Title:    "Confirm your email address",
			Heading:  "Confirm your email address",
			CTALabel: "Verify email",
			CTAURL:   link,
		},
		PatientName: name,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, subjectVerification, content)
}

func (s *SMTPSender) SendPortalMagicLink(ctx context.Context, to, name, link string) error {
	content, err := renderEmailTemplate("magic_link.html", portalEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your patient portal sign-in link",
			Heading:  "Sign in to your patient portal",
			CTALabel: "Open my portal",
			CTAURL:   link,
		},
		PatientName: name,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, subjectMagicLink, content)
}

func (s *SMTPSender) SendPasswordResetEmail(ctx context.Context, to, link string) error {
	content, err := renderEmailTemplate("password_reset.html", baseEmailData{
		Title:    "Reset your password",
		Heading:  "Reset your password",
		CTALabel: "Choose a new password",
		CTAURL:   link,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, subjectPasswordReset, content)
}
