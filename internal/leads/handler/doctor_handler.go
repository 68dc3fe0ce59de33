package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smiledesign_backend/internal/leads/service"
	"smiledesign_backend/internal/leads/transport"
	"smiledesign_backend/platform/httpkit"
	"smiledesign_backend/platform/validator"
)

// DoctorHandler serves the doctor review API. Every response goes through
// the privacy projector, so contact details never reach this surface.
type DoctorHandler struct {
	svc *service.Service
	val *validator.Validator
}

func NewDoctorHandler(svc *service.Service, val *validator.Validator) *DoctorHandler {
	return &DoctorHandler{svc: svc, val: val}
}

func (h *DoctorHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Queue)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id/review-status", h.SetReviewStatus)
}

// Queue lists the doctor's assigned leads, filtered by the bucket query
// parameter (unread or reviewed; anything else returns all).
func (h *DoctorHandler) Queue(c *gin.Context) {
	doctor := httpkit.MustGetIdentity(c)

	items, err := h.svc.DoctorQueue(c.Request.Context(), doctor.UserID(), c.Query("bucket"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, items)
}

func (h *DoctorHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	doctor := httpkit.MustGetIdentity(c)
	dto, err := h.svc.DoctorLead(c.Request.Context(), doctor.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, dto)
}

func (h *DoctorHandler) SetReviewStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transport.ReviewStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	doctor := httpkit.MustGetIdentity(c)
	if httpkit.HandleError(c, h.svc.DoctorSetReviewStatus(c.Request.Context(), doctor.UserID(), id, req.Status)) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}
