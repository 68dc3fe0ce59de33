package identity

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"smiledesign_backend/internal/auth/token"
	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
)

// memRepo is a stateful in-memory fake covering the identity flow.
// Anything it does not override panics via the embedded nil interface.
type memRepo struct {
	repository.LeadsRepository

	leads         map[uuid.UUID]*repository.Lead
	verifications map[uuid.UUID]*repository.EmailVerification
	timeline      map[uuid.UUID][]repository.TimelineEvent
}

func newMemRepo() *memRepo {
	return &memRepo{
		leads:         make(map[uuid.UUID]*repository.Lead),
		verifications: make(map[uuid.UUID]*repository.EmailVerification),
		timeline:      make(map[uuid.UUID][]repository.TimelineEvent),
	}
}

func (m *memRepo) WithTx(_ context.Context, fn func(tx repository.LeadsRepository) error) error {
	return fn(m)
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := m.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *lead, nil
}

func (m *memRepo) activeByEmail(email string) []repository.Lead {
	out := make([]repository.Lead, 0)
	for _, lead := range m.leads {
		if lead.Email == nil || NormalizeEmail(*lead.Email) != email {
			continue
		}
		if lead.Status == repository.StatusClosed || lead.Status == repository.StatusMerged {
			continue
		}
		out = append(out, *lead)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (m *memRepo) ListActiveByEmail(_ context.Context, email string) ([]repository.Lead, error) {
	return m.activeByEmail(email), nil
}

func (m *memRepo) ListActiveByEmailForUpdate(_ context.Context, email string) ([]repository.Lead, error) {
	return m.activeByEmail(email), nil
}

func (m *memRepo) SetVerifiedIdentity(_ context.Context, id uuid.UUID, params repository.SetVerifiedIdentityParams) error {
	lead, ok := m.leads[id]
	if !ok {
		return repository.ErrNotFound
	}
	email := params.Email
	verifiedAt := params.EmailVerifiedAt
	state := repository.PortalStateVerified
	lead.Email = &email
	lead.EmailVerifiedAt = &verifiedAt
	lead.PortalState = &state
	if params.PromoteToActive && (lead.PortalStatus == nil || *lead.PortalStatus == repository.PortalStatusPendingReview) {
		active := repository.PortalStatusActive
		lead.PortalStatus = &active
	}
	return nil
}

func (m *memRepo) MarkMerged(_ context.Context, id, canonicalID uuid.UUID, at time.Time, reason string) error {
	lead, ok := m.leads[id]
	if !ok {
		return repository.ErrNotFound
	}
	lead.Status = repository.StatusMerged
	lead.Meta = map[string]any{
		"merged_into":   canonicalID.String(),
		"merged_at":     at.UTC().Format(time.RFC3339),
		"merged_reason": reason,
	}
	return nil
}

func (m *memRepo) RepointMergedReferences(_ context.Context, from, to uuid.UUID) error {
	for _, lead := range m.leads {
		if lead.Meta["merged_into"] == from.String() {
			lead.Meta["merged_into"] = to.String()
		}
	}
	return nil
}

func (m *memRepo) ReassignTimelineEvents(_ context.Context, from, to uuid.UUID) (int64, error) {
	moved := m.timeline[from]
	m.timeline[to] = append(m.timeline[to], moved...)
	delete(m.timeline, from)
	return int64(len(moved)), nil
}

func (m *memRepo) ReassignNotes(_ context.Context, _, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (m *memRepo) ConsumeVerification(_ context.Context, id uuid.UUID, at time.Time) error {
	v, ok := m.verifications[id]
	if !ok || v.ConsumedAt != nil {
		return repository.ErrVerificationNotFound
	}
	v.ConsumedAt = &at
	return nil
}

func (m *memRepo) GetVerificationByTokenHash(_ context.Context, hash string) (repository.EmailVerification, error) {
	for _, v := range m.verifications {
		if v.TokenHash == hash {
			return *v, nil
		}
	}
	return repository.EmailVerification{}, repository.ErrVerificationNotFound
}

func (m *memRepo) CreateVerification(_ context.Context, leadID uuid.UUID, email, tokenHash string, expiresAt time.Time) (repository.EmailVerification, error) {
	for id, v := range m.verifications {
		if v.LeadID == leadID && v.ConsumedAt == nil {
			delete(m.verifications, id)
		}
	}
	v := &repository.EmailVerification{
		ID:        uuid.New(),
		LeadID:    leadID,
		Email:     email,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	m.verifications[v.ID] = v
	return *v, nil
}

func (m *memRepo) addLead(caseID, email string, createdAt time.Time) uuid.UUID {
	id := uuid.New()
	portalToken := "pt-" + caseID
	lead := &repository.Lead{
		ID:          id,
		CaseID:      caseID,
		Status:      repository.StatusNew,
		PortalToken: &portalToken,
		CreatedAt:   createdAt,
	}
	if email != "" {
		lead.Email = &email
	}
	m.leads[id] = lead
	return id
}

func (m *memRepo) addVerification(leadID uuid.UUID, email, rawToken string, expiresAt time.Time) {
	v := &repository.EmailVerification{
		ID:        uuid.New(),
		LeadID:    leadID,
		Email:     email,
		TokenHash: token.HashSHA256(rawToken),
		ExpiresAt: expiresAt,
	}
	m.verifications[v.ID] = v
}

type fakeMailer struct {
	verificationLinks []string
	magicLinks        []string
}

func (f *fakeMailer) SendVerificationLink(_ context.Context, _, _, link string) error {
	f.verificationLinks = append(f.verificationLinks, link)
	return nil
}

func (f *fakeMailer) SendPortalMagicLink(_ context.Context, _, _, link string) error {
	f.magicLinks = append(f.magicLinks, link)
	return nil
}

type portalCfg struct{}

func (portalCfg) GetPortalBaseURL() string         { return "https://portal.example.com" }
func (portalCfg) GetVerifyTokenTTL() time.Duration { return 24 * time.Hour }
func (portalCfg) GetPortalTokenTTL() time.Duration { return 90 * 24 * time.Hour }

func newTestService(repo *memRepo, mailer *fakeMailer) *Service {
	log := logger.New("test")
	svc := NewService(repo, mailer, events.NewInMemoryBus(log), portalCfg{}, log)
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func (m *memRepo) activeCount(email string) int {
	return len(m.activeByEmail(email))
}

func TestVerifyEmailPromotesSingleLead(t *testing.T) {
	repo := newMemRepo()
	leadID := repo.addLead("GH-2026-0001", "jane@example.com", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo.addVerification(leadID, "Jane@Example.com ", "raw-token", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo, &fakeMailer{})
	result, err := svc.VerifyEmail(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !result.OK || result.Already || result.Redirected {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.LeadID != leadID || result.CaseID != "GH-2026-0001" {
		t.Fatalf("result points at wrong lead: %+v", result)
	}

	lead := repo.leads[leadID]
	if lead.EmailVerifiedAt == nil {
		t.Fatal("email_verified_at not set")
	}
	if lead.Email == nil || *lead.Email != "jane@example.com" {
		t.Fatalf("email not normalized: %v", lead.Email)
	}
	if lead.PortalState == nil || *lead.PortalState != repository.PortalStateVerified {
		t.Fatal("portal_state not promoted to verified")
	}
	if lead.PortalStatus == nil || *lead.PortalStatus != repository.PortalStatusActive {
		t.Fatal("portal_status not promoted to active")
	}
}

func TestVerifyEmailMergesDuplicatesIntoOldest(t *testing.T) {
	repo := newMemRepo()
	oldest := repo.addLead("GH-2026-0001", "dup@example.com", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	middle := repo.addLead("GH-2026-0002", "dup@example.com", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	newest := repo.addLead("GH-2026-0003", "dup@example.com", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	repo.timeline[newest] = []repository.TimelineEvent{{EventType: "booking.created"}}
	repo.addVerification(newest, "dup@example.com", "raw-token", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo, &fakeMailer{})
	result, err := svc.VerifyEmail(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if result.LeadID != oldest {
		t.Fatalf("canonical = %v, want oldest %v", result.LeadID, oldest)
	}
	if !result.Redirected {
		t.Fatal("expected redirect to the canonical lead")
	}
	if result.PortalToken != "pt-GH-2026-0001" {
		t.Fatalf("portal token = %q, want the canonical lead's", result.PortalToken)
	}

	for _, dup := range []uuid.UUID{middle, newest} {
		lead := repo.leads[dup]
		if lead.Status != repository.StatusMerged {
			t.Fatalf("lead %v status = %q, want merged", dup, lead.Status)
		}
		if lead.Meta["merged_into"] != oldest.String() {
			t.Fatalf("lead %v merged_into = %v, want %v", dup, lead.Meta["merged_into"], oldest)
		}
	}

	canonical := repo.leads[oldest]
	if canonical.EmailVerifiedAt == nil {
		t.Fatal("canonical lead must carry the verified identity")
	}
	if len(repo.timeline[oldest]) != 1 {
		t.Fatal("timeline events not reassigned to the canonical lead")
	}
	if repo.activeCount("dup@example.com") != 1 {
		t.Fatalf("active leads = %d, want exactly 1", repo.activeCount("dup@example.com"))
	}
}

func TestVerifyEmailIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	oldest := repo.addLead("GH-2026-0001", "dup@example.com", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newest := repo.addLead("GH-2026-0002", "dup@example.com", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	repo.addVerification(newest, "dup@example.com", "raw-token", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo, &fakeMailer{})
	first, err := svc.VerifyEmail(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("first VerifyEmail: %v", err)
	}

	mergedAt := repo.leads[newest].Meta["merged_at"]

	second, err := svc.VerifyEmail(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("second VerifyEmail: %v", err)
	}
	if !second.Already {
		t.Fatal("second verification should report already")
	}
	if second.LeadID != first.LeadID || second.LeadID != oldest {
		t.Fatalf("second verification resolved %v, want %v", second.LeadID, first.LeadID)
	}
	if repo.leads[newest].Meta["merged_at"] != mergedAt {
		t.Fatal("second verification must not re-merge")
	}
	if repo.activeCount("dup@example.com") != 1 {
		t.Fatal("merge invariant broken by repeat verification")
	}
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	repo := newMemRepo()
	leadID := repo.addLead("GH-2026-0001", "jane@example.com", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo.addVerification(leadID, "jane@example.com", "raw-token", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo, &fakeMailer{})
	_, err := svc.VerifyEmail(context.Background(), "raw-token")
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone error for expired token, got %v", err)
	}
	if repo.leads[leadID].EmailVerifiedAt != nil {
		t.Fatal("expired token must not verify the lead")
	}
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	svc := newTestService(newMemRepo(), &fakeMailer{})
	_, err := svc.VerifyEmail(context.Background(), "nope")
	if !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestMergeInvariantAcrossVerifications(t *testing.T) {
	repo := newMemRepo()
	leads := []uuid.UUID{
		repo.addLead("GH-2026-0001", "multi@example.com", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		repo.addLead("GH-2026-0002", "multi@example.com", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)),
		repo.addLead("GH-2026-0003", "multi@example.com", time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)),
	}
	expires := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	repo.addVerification(leads[2], "multi@example.com", "token-a", expires)
	repo.addVerification(leads[1], "multi@example.com", "token-b", expires)

	svc := newTestService(repo, &fakeMailer{})
	for _, raw := range []string{"token-a", "token-b", "token-a"} {
		if _, err := svc.VerifyEmail(context.Background(), raw); err != nil {
			t.Fatalf("VerifyEmail(%s): %v", raw, err)
		}
	}

	if n := repo.activeCount("multi@example.com"); n != 1 {
		t.Fatalf("active leads = %d, want exactly 1", n)
	}

	// merged_into must always point at a non-merged lead
	for id, lead := range repo.leads {
		if lead.Status != repository.StatusMerged {
			continue
		}
		targetID, err := uuid.Parse(lead.Meta["merged_into"].(string))
		if err != nil {
			t.Fatalf("lead %v has malformed merged_into: %v", id, err)
		}
		target := repo.leads[targetID]
		if target == nil || target.Status == repository.StatusMerged {
			t.Fatalf("lead %v merged into a non-canonical lead", id)
		}
	}
}

func TestVerifyEmailRepointsMergersWhenCanonicalChanges(t *testing.T) {
	repo := newMemRepo()
	reopened := repo.addLead("GH-2026-0001", "back@example.com", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	middle := repo.addLead("GH-2026-0002", "back@example.com", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	newest := repo.addLead("GH-2026-0003", "back@example.com", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	expires := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	// The oldest lead is closed, so the first verification picks the
	// middle lead as canonical.
	repo.leads[reopened].Status = repository.StatusClosed
	repo.addVerification(newest, "back@example.com", "token-a", expires)

	svc := newTestService(repo, &fakeMailer{})
	first, err := svc.VerifyEmail(context.Background(), "token-a")
	if err != nil {
		t.Fatalf("first VerifyEmail: %v", err)
	}
	if first.LeadID != middle {
		t.Fatalf("first canonical = %v, want %v", first.LeadID, middle)
	}

	// Reopening the oldest lead changes which lead wins earliest-created-at
	// on the next verification round.
	repo.leads[reopened].Status = repository.StatusContacted
	repo.addVerification(middle, "back@example.com", "token-b", expires)

	second, err := svc.VerifyEmail(context.Background(), "token-b")
	if err != nil {
		t.Fatalf("second VerifyEmail: %v", err)
	}
	if second.LeadID != reopened {
		t.Fatalf("second canonical = %v, want reopened %v", second.LeadID, reopened)
	}

	// The lead merged in the first round must follow its target to the new
	// canonical instead of pointing at a row that is itself merged.
	if got := repo.leads[newest].Meta["merged_into"]; got != reopened.String() {
		t.Fatalf("earlier merger merged_into = %v, want %v", got, reopened)
	}
	for id, lead := range repo.leads {
		if lead.Status != repository.StatusMerged {
			continue
		}
		target := repo.leads[uuid.MustParse(lead.Meta["merged_into"].(string))]
		if target == nil || target.Status == repository.StatusMerged {
			t.Fatalf("lead %v merged into a non-canonical lead", id)
		}
	}
}

func TestRequestMagicLinkIsGenericForUnknownEmail(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestService(newMemRepo(), mailer)

	if err := svc.RequestMagicLink(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("magic link for unknown email must not error: %v", err)
	}
	if len(mailer.magicLinks) != 0 {
		t.Fatal("no email should be sent for an unknown address")
	}
}

func TestRequestMagicLinkTargetsCanonicalLead(t *testing.T) {
	repo := newMemRepo()
	oldest := repo.addLead("GH-2026-0001", "jane@example.com", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo.addLead("GH-2026-0002", "jane@example.com", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	mailer := &fakeMailer{}
	svc := newTestService(repo, mailer)
	if err := svc.RequestMagicLink(context.Background(), "JANE@example.com"); err != nil {
		t.Fatalf("RequestMagicLink: %v", err)
	}
	if len(mailer.magicLinks) != 1 {
		t.Fatalf("magic links sent = %d, want 1", len(mailer.magicLinks))
	}
	for _, v := range repo.verifications {
		if v.LeadID != oldest {
			t.Fatalf("verification issued for %v, want canonical %v", v.LeadID, oldest)
		}
	}
}

func TestRequestVerificationRequiresEmail(t *testing.T) {
	repo := newMemRepo()
	leadID := repo.addLead("GH-2026-0001", "", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	svc := newTestService(repo, &fakeMailer{})
	err := svc.RequestVerification(context.Background(), leadID)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
