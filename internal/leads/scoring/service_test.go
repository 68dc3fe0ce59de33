package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
)

// fakeRepo overrides only what Analyze touches; anything else panics via
// the embedded nil interface.
type fakeRepo struct {
	repository.LeadsRepository

	lead      repository.Lead
	leadErr   error
	timeline  []repository.TimelineEvent
	noteCount int
	saveErr   error

	savedScore   int
	savedSummary string
	saved        bool
}

func (f *fakeRepo) GetByID(_ context.Context, _ uuid.UUID) (repository.Lead, error) {
	return f.lead, f.leadErr
}

func (f *fakeRepo) ListTimelineEvents(_ context.Context, _ uuid.UUID) ([]repository.TimelineEvent, error) {
	return f.timeline, nil
}

func (f *fakeRepo) CountNotes(_ context.Context, _ uuid.UUID) (int, error) {
	return f.noteCount, nil
}

func (f *fakeRepo) SaveRiskAnalysis(_ context.Context, _ uuid.UUID, score int, summary string, _ time.Time) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = true
	f.savedScore = score
	f.savedSummary = summary
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo, events.NewInMemoryBus(logger.New("test")), logger.New("test"))
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestAnalyzePersistsScoreAndSummary(t *testing.T) {
	leadID := uuid.New()
	phoneNumber := "+905551234567"
	repo := &fakeRepo{
		lead:      repository.Lead{ID: leadID, Phone: &phoneNumber},
		noteCount: 1,
		timeline: []repository.TimelineEvent{
			{EventType: "booking.rescheduled", OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
			{EventType: "booking.cancelled", OccurredAt: time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)},
		},
	}

	result, err := newTestService(repo).Analyze(context.Background(), leadID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.RiskScore != 65 {
		t.Fatalf("score = %d, want 65", result.RiskScore)
	}
	if !repo.saved || repo.savedScore != 65 {
		t.Fatalf("expected persisted score 65, got saved=%v score=%d", repo.saved, repo.savedScore)
	}
	if repo.savedSummary != result.Summary {
		t.Fatal("persisted summary differs from returned summary")
	}
}

func TestAnalyzeUnknownLead(t *testing.T) {
	repo := &fakeRepo{leadErr: repository.ErrNotFound}

	_, err := newTestService(repo).Analyze(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAnalyzeReturnsResultOnFailedWrite(t *testing.T) {
	leadID := uuid.New()
	repo := &fakeRepo{
		lead:    repository.Lead{ID: leadID},
		saveErr: errors.New("connection reset"),
		timeline: []repository.TimelineEvent{
			{EventType: "booking.created", OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		},
	}

	result, err := newTestService(repo).Analyze(context.Background(), leadID)
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if result.RiskScore != 15 {
		t.Fatalf("computed score should survive a failed write, got %d", result.RiskScore)
	}
}
