// Package indexsync provides the index synchronizer module: the dead-letter
// store and its admin API. Event processing lives in the service package and
// is driven by the scheduler worker.
package indexsync

import (
	apphttp "searchahouse/internal/http"
	"searchahouse/internal/indexsync/handler"
	"searchahouse/internal/indexsync/repository"
	"searchahouse/platform/logger"
	"searchahouse/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the index synchronizer module.
type Module struct {
	repo    *repository.Repository
	handler *handler.Handler
}

// NewModule creates and initializes the index synchronizer module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	log.Info("indexsync module initialized")
	return &Module{
		repo:    repo,
		handler: handler.New(repo, val),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "indexsync"
}

// Repository returns the dead-letter repository.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the dead-letter admin endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	deadLetters := ctx.V1.Group("/dead-letters")
	deadLetters.GET("", m.handler.List)
	deadLetters.GET("/:id", m.handler.Get)
	deadLetters.POST("/:id/replay", m.handler.Replay)
}

var _ apphttp.Module = (*Module)(nil)
