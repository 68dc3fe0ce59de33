package onboarding

import (
	"context"
	"crypto/subtle"
	"errors"
	"math"

	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
)

type Service struct {
	repo    repository.LeadsRepository
	catalog *Catalog
	bus     events.Bus
	log     *logger.Logger
}

func NewService(repo repository.LeadsRepository, catalog *Catalog, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, bus: bus, log: log}
}

// Cards returns the catalog in display order.
func (s *Service) Cards() []Card {
	return s.catalog.Cards()
}

// Progress is the portal's completion gauge for one lead.
type Progress struct {
	CompletedCardIDs []string `json:"completedCardIds"`
	TotalCards       int      `json:"totalCards"`
	ProgressPercent  int      `json:"progressPercent"`
}

// AuthenticateSession resolves a portal session to its lead. The token
// compare is constant-time, and every failure mode returns the same
// generic error so callers cannot probe which case ids exist.
func (s *Service) AuthenticateSession(ctx context.Context, caseID, portalToken string) (repository.Lead, error) {
	generic := apperr.Unauthorized("invalid portal credentials")

	if caseID == "" || portalToken == "" {
		return repository.Lead{}, generic
	}

	lead, err := s.repo.GetByCaseID(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, generic
		}
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "load lead", err).WithOp("onboarding.AuthenticateSession")
	}

	if lead.PortalToken == nil {
		return repository.Lead{}, generic
	}
	if subtle.ConstantTimeCompare([]byte(*lead.PortalToken), []byte(portalToken)) != 1 {
		s.log.PortalEvent("portal_auth_failed", caseID, false)
		return repository.Lead{}, generic
	}
	if lead.Status == repository.StatusMerged || lead.Status == repository.StatusClosed {
		return repository.Lead{}, generic
	}

	return lead, nil
}

// SubmitCard stores a card's answers and marks the card completed.
// Answers are last-write-wins; completion is a set, so resubmitting a
// card never changes the progress backwards.
func (s *Service) SubmitCard(ctx context.Context, caseID, portalToken, cardID string, answers map[string]any) (Progress, error) {
	lead, err := s.AuthenticateSession(ctx, caseID, portalToken)
	if err != nil {
		return Progress{}, err
	}

	if !s.catalog.Has(cardID) {
		return Progress{}, apperr.Validation("unknown onboarding card").WithOp("onboarding.SubmitCard")
	}

	if err := s.repo.UpsertOnboardingAnswers(ctx, lead.ID, cardID, answers); err != nil {
		return Progress{}, apperr.Wrap(apperr.KindInternal, "store answers", err).WithOp("onboarding.SubmitCard")
	}

	state, err := s.repo.MarkCardCompleted(ctx, lead.ID, cardID)
	if err != nil {
		return Progress{}, apperr.Wrap(apperr.KindInternal, "mark card completed", err).WithOp("onboarding.SubmitCard")
	}

	progress := s.progressFrom(state)

	s.bus.Publish(ctx, events.OnboardingCardCompleted{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		CardID:          cardID,
		ProgressPercent: progress.ProgressPercent,
	})

	return progress, nil
}

// GetProgress returns the completion state for a portal session.
func (s *Service) GetProgress(ctx context.Context, caseID, portalToken string) (Progress, error) {
	lead, err := s.AuthenticateSession(ctx, caseID, portalToken)
	if err != nil {
		return Progress{}, err
	}

	state, err := s.repo.GetOnboardingState(ctx, lead.ID)
	if err != nil {
		return Progress{}, apperr.Wrap(apperr.KindInternal, "load onboarding state", err).WithOp("onboarding.GetProgress")
	}

	return s.progressFrom(state), nil
}

// GetAnswers returns the stored card answers for a portal session.
func (s *Service) GetAnswers(ctx context.Context, caseID, portalToken string) ([]repository.OnboardingAnswer, error) {
	lead, err := s.AuthenticateSession(ctx, caseID, portalToken)
	if err != nil {
		return nil, err
	}

	answers, err := s.repo.ListOnboardingAnswers(ctx, lead.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load onboarding answers", err).WithOp("onboarding.GetAnswers")
	}
	return answers, nil
}

func (s *Service) progressFrom(state repository.OnboardingState) Progress {
	// Only cards still in the catalog count, so retiring a card cannot
	// leave progress above 100.
	completed := make([]string, 0, len(state.CompletedCards))
	for _, id := range state.CompletedCards {
		if s.catalog.Has(id) {
			completed = append(completed, id)
		}
	}

	total := s.catalog.Size()
	n := len(completed)
	if n > total {
		n = total
	}

	return Progress{
		CompletedCardIDs: completed,
		TotalCards:       total,
		ProgressPercent:  int(math.Round(float64(n) / float64(total) * 100)),
	}
}
