// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"
	"net/http"

	"searchahouse/platform/config"
	"searchahouse/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// Ping calls f.
func (f HealthCheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP settings.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health maps dependency names to readiness checks.
	Health map[string]HealthChecker
	// Metrics serves the Prometheus registry on /metrics when set.
	Metrics http.Handler
	// RateLimit is the sustained per-IP request rate for /api/v1. Zero disables limiting.
	RateLimit float64
	// RateBurst is the per-IP burst size.
	RateBurst int
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
