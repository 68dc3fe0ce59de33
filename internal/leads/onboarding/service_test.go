package onboarding

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

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	cards := []Card{
		{ID: "personal_details", Title: "Personal details"},
		{ID: "medical_history", Title: "Medical history"},
		{ID: "dental_history", Title: "Dental history"},
		{ID: "treatment_goals", Title: "Treatment goals"},
		{ID: "photo_upload", Title: "Photos"},
		{ID: "travel_preferences", Title: "Travel preferences"},
		{ID: "consent", Title: "Consent"},
	}
	catalog, err := NewCatalog(cards)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return catalog
}

type fakeRepo struct {
	repository.LeadsRepository

	lead      repository.Lead
	completed map[string]bool
	answers   map[string]map[string]any
}

func newFakeRepo() *fakeRepo {
	portalToken := "portal-secret"
	return &fakeRepo{
		lead: repository.Lead{
			ID:          uuid.New(),
			CaseID:      "GH-2026-0042",
			Status:      repository.StatusNew,
			PortalToken: &portalToken,
		},
		completed: make(map[string]bool),
		answers:   make(map[string]map[string]any),
	}
}

func (f *fakeRepo) GetByCaseID(_ context.Context, caseID string) (repository.Lead, error) {
	if caseID != f.lead.CaseID {
		return repository.Lead{}, repository.ErrNotFound
	}
	return f.lead, nil
}

func (f *fakeRepo) UpsertOnboardingAnswers(_ context.Context, _ uuid.UUID, cardID string, answers map[string]any) error {
	f.answers[cardID] = answers
	return nil
}

func (f *fakeRepo) MarkCardCompleted(_ context.Context, leadID uuid.UUID, cardID string) (repository.OnboardingState, error) {
	f.completed[cardID] = true
	return f.state(leadID), nil
}

func (f *fakeRepo) GetOnboardingState(_ context.Context, leadID uuid.UUID) (repository.OnboardingState, error) {
	return f.state(leadID), nil
}

func (f *fakeRepo) state(leadID uuid.UUID) repository.OnboardingState {
	cards := make([]string, 0, len(f.completed))
	for id := range f.completed {
		cards = append(cards, id)
	}
	return repository.OnboardingState{LeadID: leadID, CompletedCards: cards, UpdatedAt: time.Now()}
}

func newTestService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	log := logger.New("test")
	return NewService(repo, testCatalog(t), events.NewInMemoryBus(log), log)
}

func TestSubmitCardComputesProgress(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	cards := []string{"personal_details", "medical_history", "dental_history"}
	var progress Progress
	var err error
	for _, card := range cards {
		progress, err = svc.SubmitCard(ctx, "GH-2026-0042", "portal-secret", card, map[string]any{"x": 1})
		if err != nil {
			t.Fatalf("SubmitCard(%s): %v", card, err)
		}
	}

	if progress.ProgressPercent != 43 {
		t.Fatalf("3 of 7 cards: progress = %d, want 43", progress.ProgressPercent)
	}
	if len(progress.CompletedCardIDs) != 3 {
		t.Fatalf("completed = %v, want 3 cards", progress.CompletedCardIDs)
	}
}

func TestResubmittingCardKeepsSetSemantics(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.SubmitCard(ctx, "GH-2026-0042", "portal-secret", "consent", map[string]any{"agreed": true}); err != nil {
		t.Fatalf("SubmitCard: %v", err)
	}
	progress, err := svc.SubmitCard(ctx, "GH-2026-0042", "portal-secret", "consent", map[string]any{"agreed": false})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	if len(progress.CompletedCardIDs) != 1 {
		t.Fatalf("completed cardinality = %d, want 1", len(progress.CompletedCardIDs))
	}
	if repo.answers["consent"]["agreed"] != false {
		t.Fatal("resubmitted answers should overwrite (last write wins)")
	}
}

func TestSubmitCardRejectsUnknownCard(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	_, err := svc.SubmitCard(context.Background(), "GH-2026-0042", "portal-secret", "not_a_card", nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthenticateSessionRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	ctx := context.Background()

	cases := []struct {
		name   string
		caseID string
		token  string
	}{
		{"wrong token", "GH-2026-0042", "guess"},
		{"unknown case", "GH-2026-9999", "portal-secret"},
		{"empty token", "GH-2026-0042", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AuthenticateSession(ctx, tc.caseID, tc.token)
			if !apperr.Is(err, apperr.KindUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			if err.Error() != "invalid portal credentials" {
				t.Fatalf("error message must stay generic, got %q", err.Error())
			}
		})
	}
}

func TestAuthenticateSessionRejectsMergedLead(t *testing.T) {
	repo := newFakeRepo()
	repo.lead.Status = repository.StatusMerged
	svc := newTestService(t, repo)

	_, err := svc.AuthenticateSession(context.Background(), "GH-2026-0042", "portal-secret")
	if !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("merged lead session should be rejected, got %v", err)
	}
}

func TestRetiredCardsDoNotInflateProgress(t *testing.T) {
	repo := newFakeRepo()
	repo.completed["long_gone_card"] = true
	svc := newTestService(t, repo)

	progress, err := svc.GetProgress(context.Background(), "GH-2026-0042", "portal-secret")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if progress.ProgressPercent != 0 {
		t.Fatalf("retired card counted: progress = %d, want 0", progress.ProgressPercent)
	}
}
