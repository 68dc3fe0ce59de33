// Package leads is the lead management bounded context: intake, staff
// workflows, doctor review, risk scoring, identity resolution, and the
// patient portal.
package leads

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"smiledesign_backend/internal/events"
	apphttp "smiledesign_backend/internal/http"
	"smiledesign_backend/internal/leads/handler"
	"smiledesign_backend/internal/leads/identity"
	"smiledesign_backend/internal/leads/onboarding"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/internal/leads/scoring"
	"smiledesign_backend/internal/leads/service"
	"smiledesign_backend/internal/storage"
	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/httpkit"
	"smiledesign_backend/platform/logger"
	"smiledesign_backend/platform/validator"
)

// Module is the leads bounded context implementing http.Module.
type Module struct {
	repo          *repository.Repository
	management    *service.Service
	scorer        *scoring.Service
	identity      *identity.Service
	onboarding    *onboarding.Service
	staffHandler  *handler.Handler
	doctorHandler *handler.DoctorHandler
	publicHandler *handler.PublicHandler
	portalLimiter *httpkit.PortalRateLimiter
	log           *logger.Logger
}

// NewModule wires the leads context. Documents may be nil when MinIO is
// not configured; the portal then declines upload requests.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	mailer identity.Mailer,
	documents storage.DocumentStore,
	cfg *config.Config,
	val *validator.Validator,
	log *logger.Logger,
) (*Module, error) {
	repo := repository.New(pool)

	catalog, err := onboarding.LoadCatalog(cfg.GetOnboardingCardsPath())
	if err != nil {
		return nil, err
	}

	managementSvc := service.New(repo, eventBus, cfg, log)
	scoringSvc := scoring.NewService(repo, eventBus, log)
	identitySvc := identity.NewService(repo, mailer, eventBus, cfg, log)
	onboardingSvc := onboarding.NewService(repo, catalog, eventBus, log)

	// New intake submissions get a verification email straight away.
	eventBus.Subscribe(events.LeadCreated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadCreated)
		if !ok || e.Email == "" {
			return nil
		}
		if err := identitySvc.RequestVerification(ctx, e.LeadID); err != nil {
			log.Error("verification email on intake failed", "error", err, "leadId", e.LeadID)
		}
		return nil
	}))

	// Booking events feed the risk score, so re-analyze as they arrive.
	eventBus.Subscribe(events.BookingEventReceived{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.BookingEventReceived)
		if !ok {
			return nil
		}
		if _, err := scoringSvc.Analyze(ctx, e.LeadID); err != nil {
			log.Error("risk analysis after booking event failed", "error", err, "leadId", e.LeadID)
		}
		return nil
	}))

	staffHandler := handler.New(managementSvc, scoringSvc, identitySvc, val)
	doctorHandler := handler.NewDoctorHandler(managementSvc, val)
	publicHandler := handler.NewPublicHandler(
		managementSvc, identitySvc, onboardingSvc,
		documents, cfg.GetMinioBucketPatientDocuments(), val,
	)

	return &Module{
		repo:          repo,
		management:    managementSvc,
		scorer:        scoringSvc,
		identity:      identitySvc,
		onboarding:    onboardingSvc,
		staffHandler:  staffHandler,
		doctorHandler: doctorHandler,
		publicHandler: publicHandler,
		portalLimiter: httpkit.NewPortalRateLimiter(log),
		log:           log,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository exposes the lead repository for sibling modules.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// ManagementService exposes the staff lead operations for sibling modules.
func (m *Module) ManagementService() *service.Service {
	return m.management
}

// ScoringService exposes the risk scorer for the scheduler worker.
func (m *Module) ScoringService() *scoring.Service {
	return m.scorer
}

// IdentityService exposes identity resolution for sibling modules.
func (m *Module) IdentityService() *identity.Service {
	return m.identity
}

// RegisterRoutes mounts the staff, doctor, and portal route groups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.staffHandler.RegisterRoutes(ctx.Protected.Group("/leads"))

	doctorGroup := ctx.Protected.Group("/doctor/leads")
	doctorGroup.Use(httpkit.RequireRole(httpkit.RoleDoctor))
	m.doctorHandler.RegisterRoutes(doctorGroup)

	portalGroup := ctx.V1.Group("/portal")
	portalGroup.Use(m.portalLimiter.RateLimit())
	m.publicHandler.RegisterRoutes(portalGroup)
}

var _ apphttp.Module = (*Module)(nil)
