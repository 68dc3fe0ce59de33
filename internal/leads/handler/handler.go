// Package handler exposes the leads HTTP endpoints: the staff API, the
// doctor review API, and the public patient portal.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smiledesign_backend/internal/leads/identity"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/internal/leads/scoring"
	"smiledesign_backend/internal/leads/service"
	"smiledesign_backend/internal/leads/transport"
	"smiledesign_backend/platform/httpkit"
	"smiledesign_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler serves the authenticated staff endpoints.
type Handler struct {
	svc      *service.Service
	scorer   *scoring.Service
	identity *identity.Service
	val      *validator.Validator
}

func New(svc *service.Service, scorer *scoring.Service, identitySvc *identity.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, scorer: scorer, identity: identitySvc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/by-email", h.UnifiedByEmail)
	rg.GET("/:id", h.GetDetail)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.PUT("/:id/assign", httpkit.RequireRole(httpkit.RoleAdmin), h.AssignDoctor)
	rg.POST("/:id/contact", h.LogContact)
	rg.GET("/:id/notes", h.ListNotes)
	rg.POST("/:id/notes", h.AddNote)
	rg.POST("/:id/analyze", httpkit.RequireRole(httpkit.RoleAdmin), h.Analyze)
	rg.POST("/:id/verification", h.ResendVerification)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	params := repository.ListLeadsParams{}
	if status := c.Query("status"); status != "" {
		params.Status = &status
	}
	if doctorID := c.Query("doctorId"); doctorID != "" {
		id, err := uuid.Parse(doctorID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		params.DoctorID = &id
	}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	leads, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, toLeadResponse(lead))
	}
	httpkit.OK(c, out)
}

func (h *Handler) GetDetail(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	detail, err := h.svc.GetDetail(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toDetailResponse(detail))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Update(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if httpkit.HandleError(c, h.svc.UpdateStatus(c.Request.Context(), id, req.Status)) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}

func (h *Handler) AssignDoctor(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transport.AssignDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if httpkit.HandleError(c, h.svc.AssignDoctor(c.Request.Context(), id, req.DoctorID)) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}

func (h *Handler) LogContact(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transport.LogContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor := httpkit.MustGetIdentity(c)
	event, err := h.svc.LogContact(c.Request.Context(), id, actor.UserID(), req.Channel, req.Note)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toTimelineResponse(event))
}

func (h *Handler) ListNotes(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	notes, err := h.svc.ListNotes(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.NoteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, toNoteResponse(note))
	}
	httpkit.OK(c, out)
}

func (h *Handler) AddNote(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transport.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor := httpkit.MustGetIdentity(c)
	note, err := h.svc.AddNote(c.Request.Context(), id, actor.UserID(), req.Body)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toNoteResponse(note))
}

// Analyze refreshes the lead's risk score and call brief.
func (h *Handler) Analyze(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	result, err := h.scorer.Analyze(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"ok":                  true,
		"leadId":              result.LeadID,
		"ai_risk_score":       result.RiskScore,
		"ai_summary":          result.Summary,
		"ai_last_analyzed_at": result.AnalyzedAt,
	})
}

// UnifiedByEmail returns the canonical lead and remaining duplicates for
// an email address.
func (h *Handler) UnifiedByEmail(c *gin.Context) {
	email := c.Query("email")
	canonical, duplicates, err := h.identity.ResolveCanonical(c.Request.Context(), email)
	if httpkit.HandleError(c, err) {
		return
	}

	out := transport.UnifiedPatientResponse{Canonical: toLeadResponse(canonical)}
	for _, dup := range duplicates {
		out.Duplicates = append(out.Duplicates, toLeadResponse(dup))
	}
	httpkit.OK(c, out)
}

// ResendVerification issues a fresh verification link for a lead.
func (h *Handler) ResendVerification(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.identity.RequestVerification(c.Request.Context(), id)) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
