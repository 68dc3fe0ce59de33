package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
)

// reviewRepo covers only the row load and the status write. Anything else
// panics via the embedded nil interface, so a timeline read during the
// review-status path would fail the test immediately.
type reviewRepo struct {
	repository.LeadsRepository

	lead      repository.Lead
	statusSet map[uuid.UUID]string
}

func (r *reviewRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	if id != r.lead.ID {
		return repository.Lead{}, repository.ErrNotFound
	}
	return r.lead, nil
}

func (r *reviewRepo) SetReviewStatus(_ context.Context, id uuid.UUID, status string) error {
	if id != r.lead.ID {
		return repository.ErrNotFound
	}
	r.statusSet[id] = status
	return nil
}

type reviewCfg struct{}

func (reviewCfg) GetPortalBaseURL() string         { return "https://portal.example.com" }
func (reviewCfg) GetVerifyTokenTTL() time.Duration { return 24 * time.Hour }
func (reviewCfg) GetPortalTokenTTL() time.Duration { return 90 * 24 * time.Hour }

func newReviewService(doctorID uuid.UUID) (*Service, *reviewRepo) {
	repo := &reviewRepo{
		lead: repository.Lead{
			ID:       uuid.New(),
			CaseID:   "GH-2026-0001",
			Status:   repository.StatusContacted,
			DoctorID: &doctorID,
		},
		statusSet: make(map[uuid.UUID]string),
	}
	log := logger.New("test")
	return New(repo, events.NewInMemoryBus(log), reviewCfg{}, log), repo
}

func TestDoctorSetReviewStatusWritesWithoutDetailLoad(t *testing.T) {
	doctorID := uuid.New()
	svc, repo := newReviewService(doctorID)

	err := svc.DoctorSetReviewStatus(context.Background(), doctorID, repo.lead.ID, repository.ReviewReviewed)
	if err != nil {
		t.Fatalf("DoctorSetReviewStatus: %v", err)
	}
	if repo.statusSet[repo.lead.ID] != repository.ReviewReviewed {
		t.Fatalf("review status = %q, want reviewed", repo.statusSet[repo.lead.ID])
	}
}

func TestDoctorSetReviewStatusForbiddenForUnassignedDoctor(t *testing.T) {
	svc, repo := newReviewService(uuid.New())

	err := svc.DoctorSetReviewStatus(context.Background(), uuid.New(), repo.lead.ID, repository.ReviewReviewed)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for unassigned doctor, got %v", err)
	}
	if len(repo.statusSet) != 0 {
		t.Fatal("status must not change for an unassigned doctor")
	}
}

func TestDoctorSetReviewStatusRejectsUnknownStatus(t *testing.T) {
	doctorID := uuid.New()
	svc, repo := newReviewService(doctorID)

	err := svc.DoctorSetReviewStatus(context.Background(), doctorID, repo.lead.ID, "archived")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.statusSet) != 0 {
		t.Fatal("status must not change for an unknown value")
	}
}
