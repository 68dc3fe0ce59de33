package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smiledesign_backend/internal/auth/token"
	"smiledesign_backend/platform/httpkit"
	"smiledesign_backend/platform/validator"
)

type Handler struct {
	svc  *Service
	repo *Repository
	val  *validator.Validator
}

func NewHandler(svc *Service, repo *Repository, val *validator.Validator) *Handler {
	return &Handler{svc: svc, repo: repo, val: val}
}

// HandleBookingEvent accepts a booking-provider callback.
func (h *Handler) HandleBookingEvent(c *gin.Context) {
	var payload BookingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.val.Struct(payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if httpkit.HandleError(c, h.svc.HandleBookingEvent(c.Request.Context(), payload)) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}

type createKeyRequest struct {
	Name           string   `json:"name" validate:"required,min=2,max=100"`
	AllowedDomains []string `json:"allowedDomains" validate:"omitempty,dive,max=255"`
}

// HandleCreateAPIKey mints a new webhook key. The plaintext key appears
// only in this response.
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	plaintext, err := token.GenerateRandomToken(32)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "key generation failed", nil)
		return
	}

	key, err := h.repo.Create(c.Request.Context(), req.Name, HashKey(plaintext), req.AllowedDomains)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "key creation failed", nil)
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{
		"id":   key.ID,
		"name": key.Name,
		"key":  plaintext,
	})
}

func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	keys, err := h.repo.List(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "key listing failed", nil)
		return
	}

	out := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		out = append(out, gin.H{
			"id":             key.ID,
			"name":           key.Name,
			"allowedDomains": key.AllowedDomains,
			"createdAt":      key.CreatedAt,
			"revokedAt":      key.RevokedAt,
		})
	}
	httpkit.OK(c, out)
}

func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key id", nil)
		return
	}

	if err := h.repo.Revoke(c.Request.Context(), id); err != nil {
		httpkit.Error(c, http.StatusNotFound, "key not found", nil)
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}
