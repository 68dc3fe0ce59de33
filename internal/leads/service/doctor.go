package service

import (
	"context"

	"github.com/google/uuid"

	"smiledesign_backend/internal/leads/privacy"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
)

// DoctorQueue returns the doctor's assigned leads as privacy-projected
// DTOs, partitioned by the requested review bucket.
func (s *Service) DoctorQueue(ctx context.Context, doctorID uuid.UUID, bucket string) ([]*privacy.DoctorLeadDTO, error) {
	leads, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list doctor leads", err).WithOp("leads.DoctorQueue")
	}

	bags := make([]map[string]any, 0, len(leads))
	for _, lead := range leads {
		bags = append(bags, s.leadFieldBag(ctx, lead, false))
	}

	return privacy.FilterByBucket(privacy.ToDoctorLeadDTOs(bags), bucket), nil
}

// DoctorLead returns a single assigned lead with its timeline, projected
// for the doctor. Doctors only see leads assigned to them.
func (s *Service) DoctorLead(ctx context.Context, doctorID, leadID uuid.UUID) (*privacy.DoctorLeadDTO, error) {
	lead, err := s.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.DoctorID == nil || *lead.DoctorID != doctorID {
		return nil, apperr.Forbidden("lead is not assigned to you").WithOp("leads.DoctorLead")
	}

	return privacy.ToDoctorLeadDTO(s.leadFieldBag(ctx, lead, true)), nil
}

// DoctorSetReviewStatus updates the review status of a lead assigned to the
// doctor. Assignment is checked on the plain row; the projected detail path
// (and its timeline read) is not involved.
func (s *Service) DoctorSetReviewStatus(ctx context.Context, doctorID, leadID uuid.UUID, status string) error {
	lead, err := s.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.DoctorID == nil || *lead.DoctorID != doctorID {
		return apperr.Forbidden("lead is not assigned to you").WithOp("leads.DoctorSetReviewStatus")
	}
	return s.SetReviewStatus(ctx, leadID, status)
}

// leadFieldBag flattens a lead row into the open record the projector
// consumes. The timeline is loaded only for detail views and redacted
// note text is left to the projector.
func (s *Service) leadFieldBag(ctx context.Context, lead repository.Lead, withTimeline bool) map[string]any {
	bag := map[string]any{
		"id":         lead.ID.String(),
		"name":       derefAny(lead.Name),
		"treatment":  derefAny(lead.Treatment),
		"message":    derefAny(lead.Message),
		"snapshot":   derefAny(lead.Snapshot),
		"updated_at": lead.UpdatedAt,
	}
	if lead.LeadUUID != nil {
		bag["lead_uuid"] = lead.LeadUUID.String()
	}
	if lead.DoctorReviewStatus != nil {
		bag["doctor_review_status"] = *lead.DoctorReviewStatus
	}
	if lead.DoctorAssignedAt != nil {
		bag["doctor_assigned_at"] = *lead.DoctorAssignedAt
	}

	if withTimeline {
		events, err := s.repo.ListTimelineEvents(ctx, lead.ID)
		if err != nil {
			s.log.Warn("doctor view: timeline read failed", "lead_id", lead.ID.String(), "error", err.Error())
		} else {
			timeline := make([]map[string]any, 0, len(events))
			for _, event := range events {
				timeline = append(timeline, map[string]any{
					"event_type":  event.EventType,
					"occurred_at": event.OccurredAt,
				})
			}
			bag["timeline"] = timeline
		}
	}

	return bag
}

func derefAny(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
