package handler

import (
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/internal/leads/service"
	"smiledesign_backend/internal/leads/transport"
)

func toLeadResponse(lead repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:                 lead.ID,
		CaseID:             lead.CaseID,
		Name:               lead.Name,
		Email:              lead.Email,
		Phone:              lead.Phone,
		Treatment:          lead.Treatment,
		Message:            lead.Message,
		Snapshot:           lead.Snapshot,
		Status:             lead.Status,
		Source:             lead.Source,
		BookingRef:         lead.BookingRef,
		DoctorID:           lead.DoctorID,
		DoctorReviewStatus: lead.DoctorReviewStatus,
		DoctorAssignedAt:   lead.DoctorAssignedAt,
		EmailVerifiedAt:    lead.EmailVerifiedAt,
		PortalStatus:       lead.PortalStatus,
		AIRiskScore:        lead.AIRiskScore,
		AISummary:          lead.AISummary,
		AILastAnalyzedAt:   lead.AILastAnalyzedAt,
		LastContactedAt:    lead.LastContactedAt,
		Meta:               lead.Meta,
		CreatedAt:          lead.CreatedAt,
		UpdatedAt:          lead.UpdatedAt,
	}
}

func toTimelineResponse(event repository.TimelineEvent) transport.TimelineEventResponse {
	return transport.TimelineEventResponse{
		ID:         event.ID,
		EventType:  event.EventType,
		ActorType:  event.ActorType,
		Note:       event.Note,
		Payload:    event.Payload,
		OccurredAt: event.OccurredAt,
	}
}

func toNoteResponse(note repository.Note) transport.NoteResponse {
	return transport.NoteResponse{
		ID:        note.ID,
		AuthorID:  note.AuthorID,
		Body:      note.Body,
		CreatedAt: note.CreatedAt,
	}
}

func toDetailResponse(detail service.Detail) transport.LeadDetailResponse {
	out := transport.LeadDetailResponse{
		Lead:     toLeadResponse(detail.Lead),
		Timeline: make([]transport.TimelineEventResponse, 0, len(detail.Timeline)),
		Notes:    make([]transport.NoteResponse, 0, len(detail.Notes)),
	}
	for _, event := range detail.Timeline {
		out.Timeline = append(out.Timeline, toTimelineResponse(event))
	}
	for _, note := range detail.Notes {
		out.Notes = append(out.Notes, toNoteResponse(note))
	}
	return out
}
