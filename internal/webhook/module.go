package webhook

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"smiledesign_backend/internal/events"
	leadsrepo "smiledesign_backend/internal/leads/repository"
	apphttp "smiledesign_backend/internal/http"
	"smiledesign_backend/platform/logger"
	"smiledesign_backend/platform/validator"
)

// Module receives booking-provider callbacks and manages the API keys
// that authenticate them.
type Module struct {
	handler *Handler
}

func NewModule(pool *pgxpool.Pool, leads leadsrepo.LeadsRepository, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	svc := NewService(leads, bus, log)
	return &Module{handler: NewHandler(svc, repo, val)}
}

func (m *Module) Name() string { return "webhook" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public webhook endpoint (API key auth, no JWT).
	hooks := ctx.V1.Group("/webhook")
	hooks.Use(APIKeyAuthMiddleware(m.handler.repo))
	hooks.POST("/bookings", m.handler.HandleBookingEvent)

	keys := ctx.Admin.Group("/webhook/keys")
	keys.POST("", m.handler.HandleCreateAPIKey)
	keys.GET("", m.handler.HandleListAPIKeys)
	keys.DELETE("/:keyId", m.handler.HandleRevokeAPIKey)
}

var _ apphttp.Module = (*Module)(nil)
