package handler

import (
	"net/http"
	"strings"

	"searchahouse/internal/search/service"
	"searchahouse/internal/search/transport"
	"searchahouse/platform/httpkit"
	"searchahouse/platform/validator"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "invalid request"

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	properties := rg.Group("/properties")
	properties.GET("", h.ListProperties)
	properties.GET("/near", h.PropertiesNear)
	properties.GET("/search", h.SearchProperties)
	properties.GET("/by-agent/:agentId", h.PropertiesByAgent)
	properties.GET("/by-agent-email", h.PropertiesByAgentEmail)
	properties.GET("/:id", h.GetProperty)

	agents := rg.Group("/agents")
	agents.GET("/autocomplete", h.AutocompleteAgents)
}

// bindQuery binds and validates query parameters, writing the error response
// itself when they are invalid.
func (h *Handler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Check(req); err != nil {
		httpkit.HandleError(c, err)
		return false
	}
	return true
}

func (h *Handler) ListProperties(c *gin.Context) {
	var req transport.PageRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.ListProperties(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) GetProperty(c *gin.Context) {
	result, err := h.svc.GetProperty(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) PropertiesNear(c *gin.Context) {
	var req transport.NearRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.PropertiesNear(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) SearchProperties(c *gin.Context) {
	var req transport.TextSearchRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.SearchProperties(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) PropertiesByAgent(c *gin.Context) {
	var req transport.PageRequest
	if !h.bindQuery(c, &req) {
		return
	}
	agentID := strings.TrimSpace(c.Param("agentId"))
	result, err := h.svc.PropertiesByAgent(c.Request.Context(), agentID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) PropertiesByAgentEmail(c *gin.Context) {
	var req transport.AgentEmailRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.PropertiesByAgentEmail(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) AutocompleteAgents(c *gin.Context) {
	var req transport.TextSearchRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.AutocompleteAgents(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
