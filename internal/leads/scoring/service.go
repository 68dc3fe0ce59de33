package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
	"smiledesign_backend/platform/phone"
)

type Result struct {
	LeadID     uuid.UUID `json:"leadId"`
	RiskScore  int       `json:"ai_risk_score"`
	Summary    string    `json:"ai_summary"`
	AnalyzedAt time.Time `json:"ai_last_analyzed_at"`
}

type Service struct {
	repo repository.LeadsRepository
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo repository.LeadsRepository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Analyze recomputes a lead's risk score and call brief and persists them.
// Notes and timeline reads degrade to empty inputs on error; only the lead
// lookup and the final write are fatal. On a failed write the computed
// result is still returned alongside the error.
func (s *Service) Analyze(ctx context.Context, leadID uuid.UUID) (Result, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{}, apperr.NotFound("lead not found").WithOp("scoring.Analyze")
		}
		return Result{}, apperr.Wrap(apperr.KindInternal, "load lead", err).WithOp("scoring.Analyze")
	}

	in := s.buildInput(ctx, lead)
	score := Score(in)
	summary := BuildSummary(in, score)
	analyzedAt := s.now()

	result := Result{LeadID: lead.ID, RiskScore: score, Summary: summary, AnalyzedAt: analyzedAt}

	if err := s.repo.SaveRiskAnalysis(ctx, lead.ID, score, summary, analyzedAt); err != nil {
		return result, apperr.Wrap(apperr.KindInternal, "persist risk analysis", err).WithOp("scoring.Analyze")
	}

	s.bus.Publish(ctx, events.LeadRiskScored{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		RiskScore: score,
	})

	return result, nil
}

func (s *Service) buildInput(ctx context.Context, lead repository.Lead) Input {
	in := Input{HasPhone: lead.Phone != nil && phone.HasUsableNumber(*lead.Phone)}
	if lead.Source != nil {
		in.Source = *lead.Source
	}

	timeline, err := s.repo.ListTimelineEvents(ctx, lead.ID)
	if err != nil {
		s.log.Warn("risk scoring: timeline read failed, scoring without events",
			"lead_id", lead.ID.String(), "error", err.Error())
	}
	for _, event := range timeline {
		in.Events = append(in.Events, TimelineEntry{EventType: event.EventType, OccurredAt: event.OccurredAt})
	}

	noteCount, err := s.repo.CountNotes(ctx, lead.ID)
	if err != nil {
		s.log.Warn("risk scoring: notes read failed, scoring without notes",
			"lead_id", lead.ID.String(), "error", err.Error())
		noteCount = 0
	}
	in.NoteCount = noteCount

	return in
}
