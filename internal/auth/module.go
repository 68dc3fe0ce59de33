// Package auth provides staff authentication and user administration.
package auth

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"smiledesign_backend/internal/auth/handler"
	"smiledesign_backend/internal/auth/repository"
	"smiledesign_backend/internal/auth/service"
	apphttp "smiledesign_backend/internal/http"
	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/logger"
	"smiledesign_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, cfg *config.Config, mailer service.Mailer, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, cfg.GetPortalBaseURL(), mailer, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

func (m *Module) Name() string { return "auth" }

// Service exposes user administration to the composition root (seeding
// the first admin account).
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("/auth")
	public.POST("/sign-in", m.handler.HandleSignIn)
	public.POST("/refresh", m.handler.HandleRefresh)
	public.POST("/sign-out", m.handler.HandleSignOut)
	public.POST("/forgot-password", m.handler.HandleForgotPassword)
	public.POST("/reset-password", m.handler.HandleResetPassword)

	protected := ctx.Protected.Group("/auth")
	protected.GET("/me", m.handler.HandleGetMe)

	users := ctx.Admin.Group("/users")
	users.POST("", m.handler.HandleCreateUser)
	users.GET("", m.handler.HandleListUsers)
	users.PUT("/:userId/role", m.handler.HandleSetRole)
}

var _ apphttp.Module = (*Module)(nil)
