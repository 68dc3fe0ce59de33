// Package service implements the staff-facing lead management operations:
// intake, listing, assignment, status changes, and contact logging.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"smiledesign_backend/internal/auth/token"
	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/internal/leads/transport"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/logger"
	"smiledesign_backend/platform/phone"
	"smiledesign_backend/platform/sanitize"
)

const caseIDAttempts = 5

type Service struct {
	repo repository.LeadsRepository
	bus  events.Bus
	cfg  config.PortalConfig
	log  *logger.Logger
	now  func() time.Time
}

func New(repo repository.LeadsRepository, bus events.Bus, cfg config.PortalConfig, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		cfg:  cfg,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new intake submission. Free-text fields are stripped
// of HTML, the phone number is normalized, and a portal credential is
// issued up front so the verification email can link straight in.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (repository.Lead, error) {
	portalToken, err := token.GenerateRandomToken(32)
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "generate portal token", err).WithOp("leads.Create")
	}

	params := repository.CreateLeadParams{
		Name:                 optionalText(req.Name),
		Email:                optionalEmail(req.Email),
		Phone:                optionalPhone(req.Phone),
		Treatment:            optionalText(req.Treatment),
		Message:              optionalText(req.Message),
		Source:               optionalText(req.Source),
		PortalToken:          portalToken,
		PortalTokenExpiresAt: s.now().Add(s.cfg.GetPortalTokenTTL()),
	}

	var lead repository.Lead
	for attempt := 0; attempt < caseIDAttempts; attempt++ {
		params.CaseID = newCaseID(s.now())
		lead, err = s.repo.Create(ctx, params)
		if err == nil {
			break
		}
		if !repository.IsUniqueViolation(err) {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "create lead", err).WithOp("leads.Create")
		}
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "exhausted case id attempts", err).WithOp("leads.Create")
	}

	event := events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		CaseID:    lead.CaseID,
	}
	if lead.Email != nil {
		event.Email = *lead.Email
	}
	if lead.Source != nil {
		event.Source = *lead.Source
	}
	s.bus.Publish(ctx, event)

	s.log.Info("lead created", "case_id", lead.CaseID, "source", req.Source)
	return lead, nil
}

// newCaseID builds a GH-<year>-<4 digits> code. Collisions are rare and
// handled by the caller retrying on the unique constraint.
func newCaseID(now time.Time) string {
	return fmt.Sprintf("GH-%d-%04d", now.Year(), rand.Intn(10000))
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found").WithOp("leads.GetByID")
		}
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "load lead", err).WithOp("leads.GetByID")
	}
	return lead, nil
}

// Detail is a lead with its timeline and notes. Timeline and notes are
// optional reads: a failure there degrades to empty lists.
type Detail struct {
	Lead     repository.Lead
	Timeline []repository.TimelineEvent
	Notes    []repository.Note
}

func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (Detail, error) {
	lead, err := s.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Lead: lead}

	if detail.Timeline, err = s.repo.ListTimelineEvents(ctx, id); err != nil {
		s.log.Warn("lead detail: timeline read failed", "lead_id", id.String(), "error", err.Error())
		detail.Timeline = nil
	}
	if detail.Notes, err = s.repo.ListNotes(ctx, id); err != nil {
		s.log.Warn("lead detail: notes read failed", "lead_id", id.String(), "error", err.Error())
		detail.Notes = nil
	}

	return detail, nil
}

func (s *Service) List(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error) {
	leads, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list leads", err).WithOp("leads.List")
	}
	return leads, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (repository.Lead, error) {
	params := repository.UpdateLeadParams{
		Name:      sanitize.TextPtr(req.Name),
		Treatment: sanitize.TextPtr(req.Treatment),
		Message:   sanitize.TextPtr(req.Message),
		Snapshot:  sanitize.TextPtr(req.Snapshot),
	}
	if req.Phone != nil {
		params.Phone = optionalPhone(*req.Phone)
	}

	lead, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found").WithOp("leads.Update")
		}
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "update lead", err).WithOp("leads.Update")
	}
	return lead, nil
}

// UpdateStatus moves a lead through the pipeline. Merged is reserved for
// the identity resolver and cannot be set by hand.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	switch status {
	case repository.StatusNew, repository.StatusContacted, repository.StatusQuoted,
		repository.StatusBooked, repository.StatusClosed, repository.StatusLost:
	default:
		return apperr.Validation("invalid lead status").WithOp("leads.UpdateStatus")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found").WithOp("leads.UpdateStatus")
		}
		return apperr.Wrap(apperr.KindInternal, "update status", err).WithOp("leads.UpdateStatus")
	}
	return nil
}

// AssignDoctor sets or clears a lead's doctor. A fresh assignment lands
// in the pending review bucket until the doctor acts on it.
func (s *Service) AssignDoctor(ctx context.Context, id uuid.UUID, doctorID *uuid.UUID) error {
	if err := s.repo.AssignDoctor(ctx, id, doctorID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found").WithOp("leads.AssignDoctor")
		}
		return apperr.Wrap(apperr.KindInternal, "assign doctor", err).WithOp("leads.AssignDoctor")
	}

	if doctorID != nil {
		s.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    id,
			NewDoctor: doctorID,
		})
	}
	return nil
}

func (s *Service) SetReviewStatus(ctx context.Context, id uuid.UUID, status string) error {
	switch status {
	case repository.ReviewPending, repository.ReviewNeedsInfo, repository.ReviewReviewed:
	default:
		return apperr.Validation("invalid review status").WithOp("leads.SetReviewStatus")
	}

	if err := s.repo.SetReviewStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found").WithOp("leads.SetReviewStatus")
		}
		return apperr.Wrap(apperr.KindInternal, "set review status", err).WithOp("leads.SetReviewStatus")
	}
	return nil
}

// LogContact appends a manual contact event to the timeline and bumps the
// lead's last-contacted marker.
func (s *Service) LogContact(ctx context.Context, id uuid.UUID, actorID uuid.UUID, channel, note string) (repository.TimelineEvent, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return repository.TimelineEvent{}, err
	}

	eventType, ok := contactEventTypes[channel]
	if !ok {
		return repository.TimelineEvent{}, apperr.Validation("invalid contact channel").WithOp("leads.LogContact")
	}

	now := s.now()
	event, err := s.repo.AppendTimelineEvent(ctx, repository.AppendTimelineEventParams{
		LeadID:     id,
		EventType:  eventType,
		ActorType:  repository.ActorStaff,
		ActorID:    &actorID,
		Note:       optionalText(note),
		OccurredAt: now,
	})
	if err != nil {
		return repository.TimelineEvent{}, apperr.Wrap(apperr.KindInternal, "log contact", err).WithOp("leads.LogContact")
	}

	if err := s.repo.SetLastContacted(ctx, id, now); err != nil {
		s.log.Warn("last_contacted_at update failed", "lead_id", id.String(), "error", err.Error())
	}

	return event, nil
}

var contactEventTypes = map[string]string{
	"phone":    repository.EventContactPhone,
	"whatsapp": repository.EventContactWhatsApp,
	"email":    repository.EventContactEmail,
	"sms":      repository.EventContactSMS,
}

func (s *Service) AddNote(ctx context.Context, leadID, authorID uuid.UUID, body string) (repository.Note, error) {
	if _, err := s.GetByID(ctx, leadID); err != nil {
		return repository.Note{}, err
	}

	note, err := s.repo.CreateNote(ctx, leadID, authorID, sanitize.Text(body))
	if err != nil {
		return repository.Note{}, apperr.Wrap(apperr.KindInternal, "save note", err).WithOp("leads.AddNote")
	}
	return note, nil
}

func (s *Service) ListNotes(ctx context.Context, leadID uuid.UUID) ([]repository.Note, error) {
	notes, err := s.repo.ListNotes(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list notes", err).WithOp("leads.ListNotes")
	}
	return notes, nil
}

func optionalText(s string) *string {
	clean := sanitize.Text(s)
	if clean == "" {
		return nil
	}
	return &clean
}

func optionalEmail(s string) *string {
	if s == "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(sanitize.Text(s)))
	if email == "" {
		return nil
	}
	return &email
}

func optionalPhone(s string) *string {
	if s == "" {
		return nil
	}
	normalized := phone.NormalizeE164(s)
	if normalized == "" {
		normalized = sanitize.Text(s)
	}
	if normalized == "" {
		return nil
	}
	return &normalized
}
