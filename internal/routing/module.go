// Package routing provides the lead routing bounded context module.
// This file defines the module that encapsulates all routing setup.
package routing

import (
	"searchahouse/internal/directory"
	"searchahouse/internal/domain"
	"searchahouse/internal/events"
	apphttp "searchahouse/internal/http"
	"searchahouse/internal/routing/handler"
	"searchahouse/internal/routing/service"
	"searchahouse/platform/config"
	"searchahouse/platform/logger"
	"searchahouse/platform/phone"
	"searchahouse/platform/validator"
)

// Module is the lead routing bounded context module.
type Module struct {
	service *service.Service
	handler *handler.Handler
}

// Deps holds the collaborators shared with other modules.
type Deps struct {
	Memo    service.AssignmentMemo
	Bus     events.Bus
	Metrics service.Recorder
	Phones  phone.Normalizer
	Val     *validator.Validator
}

// NewModule creates and initializes the routing module.
func NewModule(cfg config.RouterConfig, deps Deps, log *logger.Logger) (*Module, error) {
	dir, err := directory.New(cfg.GetAgentDirectoryURL(), cfg.GetAgentDirectoryTimeout(), log)
	if err != nil {
		return nil, err
	}

	svc := service.NewService(dir, log, service.Options{
		LoadStatus: domain.ContactStatus(cfg.GetRouterLoadStatus()),
		Retry: service.RetryPolicy{
			Attempts:  cfg.GetRouterRetryAttempts(),
			BaseDelay: cfg.GetRouterRetryBaseDelay(),
		},
		Memo:    deps.Memo,
		Phones:  deps.Phones,
		Bus:     deps.Bus,
		Metrics: deps.Metrics,
	})

	log.Info("routing module initialized",
		"directory", cfg.GetAgentDirectoryURL(),
		"loadStatus", cfg.GetRouterLoadStatus(),
	)

	return &Module{
		service: svc,
		handler: handler.New(svc, deps.Val),
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "routing"
}

// Service returns the routing service.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the routing endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leads := ctx.V1.Group("/leads")
	leads.POST("/route", m.handler.RouteLead)
}

var _ apphttp.Module = (*Module)(nil)
