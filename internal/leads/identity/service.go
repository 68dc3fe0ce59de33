// Package identity enforces the one-canonical-lead-per-email rule. Email
// verification is the trigger: when a patient proves control of an
// address, all active leads for that address collapse into the oldest one.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"smiledesign_backend/internal/auth/token"
	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/logger"
)

// Mailer is the outbound-email surface the identity flow needs.
type Mailer interface {
	SendVerificationLink(ctx context.Context, to, name, link string) error
	SendPortalMagicLink(ctx context.Context, to, name, link string) error
}

type Service struct {
	repo   repository.LeadsRepository
	mailer Mailer
	bus    events.Bus
	cfg    config.PortalConfig
	log    *logger.Logger
	now    func() time.Time
}

func NewService(repo repository.LeadsRepository, mailer Mailer, bus events.Bus, cfg config.PortalConfig, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		mailer: mailer,
		bus:    bus,
		cfg:    cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail is the single normalization applied everywhere an email
// is compared or stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestVerification issues a fresh verification link for a lead. Any
// prior pending link for the lead is invalidated.
func (s *Service) RequestVerification(ctx context.Context, leadID uuid.UUID) error {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found").WithOp("identity.RequestVerification")
		}
		return apperr.Wrap(apperr.KindInternal, "load lead", err).WithOp("identity.RequestVerification")
	}
	if lead.Email == nil || NormalizeEmail(*lead.Email) == "" {
		return apperr.Validation("lead has no email address").WithOp("identity.RequestVerification")
	}

	email := NormalizeEmail(*lead.Email)
	rawToken, err := token.GenerateRandomToken(32)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "generate verification token", err)
	}

	expiresAt := s.now().Add(s.cfg.GetVerifyTokenTTL())
	if _, err := s.repo.CreateVerification(ctx, lead.ID, email, token.HashSHA256(rawToken), expiresAt); err != nil {
		return apperr.Wrap(apperr.KindInternal, "store verification", err)
	}

	link := s.cfg.GetPortalBaseURL() + "/verify?token=" + rawToken
	name := ""
	if lead.Name != nil {
		name = *lead.Name
	}
	if err := s.mailer.SendVerificationLink(ctx, email, name, link); err != nil {
		return apperr.Wrap(apperr.KindInternal, "send verification email", err)
	}

	s.log.PortalEvent("verification_link_issued", lead.CaseID, true)
	return nil
}

// RequestMagicLink mails a portal sign-in link to the canonical lead for
// an address. It succeeds regardless of whether the address is known, so
// the endpoint cannot be used to probe which emails exist.
func (s *Service) RequestMagicLink(ctx context.Context, rawEmail string) error {
	email := NormalizeEmail(rawEmail)
	if email == "" {
		return nil
	}

	leadsForEmail, err := s.repo.ListActiveByEmail(ctx, email)
	if err != nil {
		s.log.DatabaseError("identity.RequestMagicLink", err)
		return nil
	}
	if len(leadsForEmail) == 0 {
		return nil
	}

	canonical := leadsForEmail[0]
	rawToken, err := token.GenerateRandomToken(32)
	if err != nil {
		return nil
	}

	expiresAt := s.now().Add(s.cfg.GetVerifyTokenTTL())
	if _, err := s.repo.CreateVerification(ctx, canonical.ID, email, token.HashSHA256(rawToken), expiresAt); err != nil {
		s.log.DatabaseError("identity.RequestMagicLink", err)
		return nil
	}

	link := s.cfg.GetPortalBaseURL() + "/verify?token=" + rawToken
	name := ""
	if canonical.Name != nil {
		name = *canonical.Name
	}
	if err := s.mailer.SendPortalMagicLink(ctx, email, name, link); err != nil {
		s.log.Warn("magic link email failed", "case_id", canonical.CaseID, "error", err.Error())
	}
	return nil
}

// VerifyResult is what the public verify endpoint returns: enough for the
// portal to open the canonical case, and nothing identifying beyond it.
type VerifyResult struct {
	OK          bool      `json:"ok"`
	Already     bool      `json:"already,omitempty"`
	Redirected  bool      `json:"redirected,omitempty"`
	LeadID      uuid.UUID `json:"leadId"`
	CaseID      string    `json:"caseId"`
	PortalToken string    `json:"portalToken,omitempty"`
}

// VerifyEmail consumes a verification token and resolves the canonical
// lead for the verified address. The whole merge runs in one transaction:
// active rows for the email are locked, the oldest becomes canonical, and
// every other active lead is soft-merged into it.
//
// Re-presenting a consumed token is not an error. It returns the canonical
// lead again with Already set and mutates nothing.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) (VerifyResult, error) {
	verification, err := s.repo.GetVerificationByTokenHash(ctx, token.HashSHA256(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrVerificationNotFound) {
			return VerifyResult{}, apperr.Unauthorized("invalid verification link").WithOp("identity.VerifyEmail")
		}
		return VerifyResult{}, apperr.Wrap(apperr.KindInternal, "load verification", err).WithOp("identity.VerifyEmail")
	}

	now := s.now()
	email := NormalizeEmail(verification.Email)

	if verification.ConsumedAt != nil {
		return s.alreadyVerifiedResult(ctx, verification, email)
	}
	if verification.ExpiresAt.Before(now) {
		return VerifyResult{}, apperr.Gone("verification link expired").WithOp("identity.VerifyEmail")
	}

	var result VerifyResult
	var mergedFrom []repository.Lead

	err = s.repo.WithTx(ctx, func(tx repository.LeadsRepository) error {
		// Lock first so concurrent verifications for one address
		// serialize on canonical selection.
		active, err := tx.ListActiveByEmailForUpdate(ctx, email)
		if err != nil {
			return err
		}

		if err := tx.ConsumeVerification(ctx, verification.ID, now); err != nil {
			return err
		}

		verified := repository.SetVerifiedIdentityParams{
			Email:           email,
			EmailVerifiedAt: now,
			PromoteToActive: true,
		}

		lead, err := tx.GetByID(ctx, verification.LeadID)
		if err != nil {
			return err
		}
		if lead.Status != repository.StatusMerged {
			if err := tx.SetVerifiedIdentity(ctx, lead.ID, verified); err != nil {
				return err
			}
		}

		// The locked list can miss this lead when the verification email
		// differs from what was on its row, so add it explicitly.
		candidates := active
		inList := false
		for _, c := range active {
			if c.ID == lead.ID {
				inList = true
				break
			}
		}
		if !inList && lead.Status != repository.StatusMerged && lead.Status != repository.StatusClosed {
			candidates = append(candidates, lead)
		}
		if len(candidates) == 0 {
			return apperr.NotFound("no active lead for verified email")
		}

		canonical := candidates[0]
		for _, c := range candidates[1:] {
			if c.CreatedAt.Before(canonical.CreatedAt) {
				canonical = c
			}
		}

		for _, dup := range candidates {
			if dup.ID == canonical.ID {
				continue
			}
			if err := tx.MarkMerged(ctx, dup.ID, canonical.ID, now, "duplicate email verified"); err != nil {
				return err
			}
			// Leads merged into dup in an earlier round would otherwise
			// keep pointing at a row that is itself merged now.
			if err := tx.RepointMergedReferences(ctx, dup.ID, canonical.ID); err != nil {
				return err
			}
			if _, err := tx.ReassignTimelineEvents(ctx, dup.ID, canonical.ID); err != nil {
				return err
			}
			if _, err := tx.ReassignNotes(ctx, dup.ID, canonical.ID); err != nil {
				return err
			}
			mergedFrom = append(mergedFrom, dup)
		}

		// The canonical record always carries the most recently verified
		// identity, even when another lead did the verifying.
		if err := tx.SetVerifiedIdentity(ctx, canonical.ID, verified); err != nil {
			return err
		}

		canonical, err = tx.GetByID(ctx, canonical.ID)
		if err != nil {
			return err
		}

		result = VerifyResult{
			OK:          true,
			Redirected:  canonical.ID != verification.LeadID,
			LeadID:      canonical.ID,
			CaseID:      canonical.CaseID,
			PortalToken: derefOrEmpty(canonical.PortalToken),
		}
		return nil
	})
	if err != nil {
		if apperr.GetKind(err) != apperr.KindUnknown {
			return VerifyResult{}, err
		}
		return VerifyResult{}, apperr.Wrap(apperr.KindInternal, "verify email", err).WithOp("identity.VerifyEmail")
	}

	s.bus.Publish(ctx, events.LeadVerified{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          verification.LeadID,
		CanonicalLeadID: result.LeadID,
		Email:           email,
		Merged:          len(mergedFrom) > 0,
	})
	for _, dup := range mergedFrom {
		s.bus.Publish(ctx, events.LeadMerged{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     dup.ID,
			MergedInto: result.LeadID,
			Reason:     "duplicate email verified",
		})
	}

	s.log.PortalEvent("email_verified", result.CaseID, true)
	return result, nil
}

// alreadyVerifiedResult re-resolves the canonical lead for a consumed
// token without mutating anything.
func (s *Service) alreadyVerifiedResult(ctx context.Context, verification repository.EmailVerification, email string) (VerifyResult, error) {
	canonical, _, err := s.ResolveCanonical(ctx, email)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return VerifyResult{}, err
		}
		// All leads for the address are terminal; fall back to the lead
		// the token was issued for.
		lead, lookupErr := s.repo.GetByID(ctx, verification.LeadID)
		if lookupErr != nil {
			return VerifyResult{}, apperr.Unauthorized("invalid verification link")
		}
		canonical = lead
	}

	return VerifyResult{
		OK:          true,
		Already:     true,
		Redirected:  canonical.ID != verification.LeadID,
		LeadID:      canonical.ID,
		CaseID:      canonical.CaseID,
		PortalToken: derefOrEmpty(canonical.PortalToken),
	}, nil
}

// ResolveCanonical is the read-side resolution: the canonical lead plus
// any remaining active duplicates for an address. It applies the same
// oldest-first rule as verification, so both entry points agree.
func (s *Service) ResolveCanonical(ctx context.Context, rawEmail string) (repository.Lead, []repository.Lead, error) {
	email := NormalizeEmail(rawEmail)
	if email == "" {
		return repository.Lead{}, nil, apperr.Validation("email is required")
	}

	active, err := s.repo.ListActiveByEmail(ctx, email)
	if err != nil {
		return repository.Lead{}, nil, apperr.Wrap(apperr.KindInternal, "list leads by email", err)
	}
	if len(active) == 0 {
		return repository.Lead{}, nil, apperr.NotFound("no active lead for email")
	}

	return active[0], active[1:], nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
