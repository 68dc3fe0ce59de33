package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smiledesign_backend/internal/leads/identity"
	"smiledesign_backend/internal/leads/onboarding"
	"smiledesign_backend/internal/leads/service"
	"smiledesign_backend/internal/leads/transport"
	"smiledesign_backend/internal/storage"
	"smiledesign_backend/platform/httpkit"
	"smiledesign_backend/platform/validator"
)

// PublicHandler serves the unauthenticated patient portal. Sessions are
// established per request with (case id, portal token); staff identifiers
// and contact metadata never appear in its responses.
type PublicHandler struct {
	svc        *service.Service
	identity   *identity.Service
	onboarding *onboarding.Service
	documents  storage.DocumentStore
	docBucket  string
	val        *validator.Validator
}

func NewPublicHandler(
	svc *service.Service,
	identitySvc *identity.Service,
	onboardingSvc *onboarding.Service,
	documents storage.DocumentStore,
	docBucket string,
	val *validator.Validator,
) *PublicHandler {
	return &PublicHandler{
		svc:        svc,
		identity:   identitySvc,
		onboarding: onboardingSvc,
		documents:  documents,
		docBucket:  docBucket,
		val:        val,
	}
}

func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", h.Intake)
	rg.POST("/verify-email", h.VerifyEmail)
	rg.POST("/magic-link", h.MagicLink)
	rg.POST("/session", h.PortalView)
	rg.GET("/onboarding/cards", h.ListCards)
	rg.POST("/onboarding/cards", h.SubmitCard)
	rg.POST("/onboarding/progress", h.Progress)
	rg.POST("/documents/upload-url", h.DocumentUploadURL)
}

// Intake accepts a website enquiry and creates a lead.
func (h *PublicHandler) Intake(c *gin.Context) {
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

	// The public response identifies the case, never the internal record.
	httpkit.JSON(c, http.StatusCreated, gin.H{"ok": true, "caseId": lead.CaseID})
}

func (h *PublicHandler) VerifyEmail(c *gin.Context) {
	var req transport.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.identity.VerifyEmail(c.Request.Context(), req.Token)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// MagicLink always responds with success so the endpoint cannot be used
// to probe which email addresses exist.
func (h *PublicHandler) MagicLink(c *gin.Context) {
	var req transport.MagicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	_ = h.identity.RequestMagicLink(c.Request.Context(), req.Email)
	httpkit.OK(c, gin.H{"ok": true})
}

// PortalView returns the patient's own case summary for a valid session.
func (h *PublicHandler) PortalView(c *gin.Context) {
	var req transport.PortalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.onboarding.AuthenticateSession(c.Request.Context(), req.CaseID, req.PortalToken)
	if httpkit.HandleError(c, err) {
		return
	}

	progress, err := h.onboarding.GetProgress(c.Request.Context(), req.CaseID, req.PortalToken)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"caseId":    lead.CaseID,
		"name":      lead.Name,
		"treatment": lead.Treatment,
		"status":    lead.Status,
		"progress":  progress,
	})
}

func (h *PublicHandler) ListCards(c *gin.Context) {
	httpkit.OK(c, h.onboarding.Cards())
}

func (h *PublicHandler) SubmitCard(c *gin.Context) {
	var req transport.SubmitCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	progress, err := h.onboarding.SubmitCard(c.Request.Context(), req.CaseID, req.PortalToken, req.CardID, req.Answers)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"ok": true, "progress": progress})
}

func (h *PublicHandler) Progress(c *gin.Context) {
	var req transport.PortalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	progress, err := h.onboarding.GetProgress(c.Request.Context(), req.CaseID, req.PortalToken)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, progress)
}

// DocumentUploadURL issues a presigned upload URL for a patient document.
// Uploads are keyed under the case id so staff can list them per lead.
func (h *PublicHandler) DocumentUploadURL(c *gin.Context) {
	var req transport.UploadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.onboarding.AuthenticateSession(c.Request.Context(), req.CaseID, req.PortalToken)
	if httpkit.HandleError(c, err) {
		return
	}
	if h.documents == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "document uploads are not available", nil)
		return
	}

	presigned, err := h.documents.GenerateUploadURL(
		c.Request.Context(), h.docBucket, lead.CaseID, req.FileName, req.ContentType, req.FileSize,
	)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	httpkit.OK(c, presigned)
}
