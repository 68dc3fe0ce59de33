package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LeadsRepository is the persistence surface the lead services depend on.
// *Repository implements it against postgres; tests substitute fakes.
type LeadsRepository interface {
	WithTx(ctx context.Context, fn func(tx LeadsRepository) error) error

	Create(ctx context.Context, params CreateLeadParams) (Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	GetByCaseID(ctx context.Context, caseID string) (Lead, error)
	GetByBookingRef(ctx context.Context, bookingRef string) (Lead, error)
	List(ctx context.Context, params ListLeadsParams) ([]Lead, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Lead, error)
	ListActiveByEmail(ctx context.Context, email string) ([]Lead, error)
	ListActiveByEmailForUpdate(ctx context.Context, email string) ([]Lead, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	AssignDoctor(ctx context.Context, id uuid.UUID, doctorID *uuid.UUID, at time.Time) error
	SetReviewStatus(ctx context.Context, id uuid.UUID, status string) error
	SetLastContacted(ctx context.Context, id uuid.UUID, at time.Time) error
	SetVerifiedIdentity(ctx context.Context, id uuid.UUID, params SetVerifiedIdentityParams) error
	MarkMerged(ctx context.Context, id, canonicalID uuid.UUID, at time.Time, reason string) error
	RepointMergedReferences(ctx context.Context, from, to uuid.UUID) error
	SaveRiskAnalysis(ctx context.Context, id uuid.UUID, score int, summary string, analyzedAt time.Time) error
	ListIDsForRiskRefresh(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
	SetBookingRef(ctx context.Context, id uuid.UUID, bookingRef string) error
	SetPortalToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error

	AppendTimelineEvent(ctx context.Context, params AppendTimelineEventParams) (TimelineEvent, error)
	ListTimelineEvents(ctx context.Context, leadID uuid.UUID) ([]TimelineEvent, error)
	ReassignTimelineEvents(ctx context.Context, fromLeadID, toLeadID uuid.UUID) (int64, error)

	CreateNote(ctx context.Context, leadID, authorID uuid.UUID, body string) (Note, error)
	ListNotes(ctx context.Context, leadID uuid.UUID) ([]Note, error)
	CountNotes(ctx context.Context, leadID uuid.UUID) (int, error)
	ReassignNotes(ctx context.Context, fromLeadID, toLeadID uuid.UUID) (int64, error)

	CreateVerification(ctx context.Context, leadID uuid.UUID, email, tokenHash string, expiresAt time.Time) (EmailVerification, error)
	GetVerificationByTokenHash(ctx context.Context, tokenHash string) (EmailVerification, error)
	ConsumeVerification(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteExpiredVerifications(ctx context.Context, olderThan time.Time) (int64, error)

	GetOnboardingState(ctx context.Context, leadID uuid.UUID) (OnboardingState, error)
	MarkCardCompleted(ctx context.Context, leadID uuid.UUID, cardID string) (OnboardingState, error)
	UpsertOnboardingAnswers(ctx context.Context, leadID uuid.UUID, cardID string, answers map[string]any) error
	ListOnboardingAnswers(ctx context.Context, leadID uuid.UUID) ([]OnboardingAnswer, error)
}

var _ LeadsRepository = (*Repository)(nil)
