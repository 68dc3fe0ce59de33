// Package email delivers transactional mail for the patient portal and
// staff accounts.
package email

import (
	"context"

	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/logger"
)

// Sender is the outbound mail contract. The identity and auth services
// depend on narrower views of it.
type Sender interface {
	SendVerificationLink(ctx context.Context, to, name, link string) error
	SendPortalMagicLink(ctx context.Context, to, name, link string) error
	SendPasswordResetEmail(ctx context.Context, to, link string) error
}

// NewSender returns the SMTP sender when email is enabled, otherwise a
// logging no-op so local development works without an SMTP server.
func NewSender(cfg config.EmailConfig, log *logger.Logger) Sender {
	if !cfg.GetEmailEnabled() {
		return &NoopSender{log: log}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(), cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
	)
}

// NoopSender logs instead of sending. Links are not logged in full.
type NoopSender struct {
	log *logger.Logger
}

func (n *NoopSender) SendVerificationLink(_ context.Context, to, _, _ string) error {
	n.log.Info("email disabled, skipping verification link", "to", to)
	return nil
}

func (n *NoopSender) SendPortalMagicLink(_ context.Context, to, _, _ string) error {
	n.log.Info("email disabled, skipping magic link", "to", to)
	return nil
}

func (n *NoopSender) SendPasswordResetEmail(_ context.Context, to, _ string) error {
	n.log.Info("email disabled, skipping password reset", "to", to)
	return nil
}
