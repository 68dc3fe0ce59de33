// Package quotes provides the treatment-note and quote domain module.
package quotes

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"smiledesign_backend/internal/events"
	apphttp "smiledesign_backend/internal/http"
	leadsrepo "smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/internal/quotes/handler"
	"smiledesign_backend/internal/quotes/repository"
	"smiledesign_backend/internal/quotes/service"
	"smiledesign_backend/platform/httpkit"
	"smiledesign_backend/platform/logger"
	"smiledesign_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, leads leadsrepo.LeadsRepository, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, bus, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string { return "quotes" }

// Service exposes the quote workflows to other modules.
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Treatment notes are written by the assigned doctor.
	notes := ctx.Protected.Group("/treatment-notes")
	notes.Use(httpkit.RequireRole(httpkit.RoleDoctor))
	notes.POST("", m.handler.HandleCreateNote)
	notes.GET("", m.handler.HandleListNotes)
	notes.PUT("/:noteId", m.handler.HandleUpdateNote)
	notes.POST("/:noteId/approve", m.handler.HandleApproveNote)

	// Quotes are managed by coordinators and admins.
	quotes := ctx.Protected.Group("/quotes")
	quotes.POST("", m.handler.HandleCreateQuote)
	quotes.GET("", m.handler.HandleListQuotes)
	quotes.GET("/:quoteId", m.handler.HandleGetQuote)
	quotes.PUT("/:quoteId", m.handler.HandleUpdateQuote)
	quotes.POST("/:quoteId/send", m.handler.HandleSendQuote)
}

var _ apphttp.Module = (*Module)(nil)
