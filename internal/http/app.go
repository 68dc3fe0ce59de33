package http

import (
	"context"

	"smiledesign_backend/platform/config"
	"smiledesign_backend/platform/logger"
)

// RouterConfig combines the config interfaces the router needs.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies. main.go
// (the composition root) populates it and hands it to the router.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}
