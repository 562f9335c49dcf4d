package search

import (
	apphttp "searchahouse/internal/http"
	"searchahouse/internal/search/handler"
	"searchahouse/internal/search/service"
	"searchahouse/platform/validator"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(index service.Index, val *validator.Validator) *Module {
	svc := service.New(index)
	h := handler.New(svc, val)

	return &Module{handler: h}
}

func (m *Module) Name() string {
	return "search"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1)
}

var _ apphttp.Module = (*Module)(nil)
