// Package handler provides HTTP handlers for lead routing.
package handler

import (
	"context"
	"errors"
	"net/http"

	"searchahouse/internal/domain"
	"searchahouse/internal/routing/service"
	"searchahouse/internal/routing/transport"
	"searchahouse/platform/apperr"
	"searchahouse/platform/httpkit"
	"searchahouse/platform/validator"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "invalid request"

// Router is the routing operation used by the handler.
type Router interface {
	RouteLead(ctx context.Context, lead domain.Lead, propertyID string) (service.Assignment, error)
}

// Handler handles lead routing HTTP requests.
type Handler struct {
	svc Router
	val *validator.Validator
}

// New creates a new routing handler.
func New(svc Router, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RouteLead handles POST /api/v1/leads/route.
func (h *Handler) RouteLead(c *gin.Context) {
	var req transport.RouteLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Check(req); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	assignment, err := h.svc.RouteLead(c.Request.Context(), req.Lead.ToDomain(), req.PropertyID)
	if err != nil {
		httpkit.HandleError(c, toAppError(err, assignment.LeadID))
		return
	}

	c.Header("Location", assignment.Location)
	httpkit.JSON(c, http.StatusCreated, transport.RouteLeadResponse{
		LeadID:     assignment.LeadID,
		PropertyID: assignment.PropertyID,
		AgentID:    assignment.AgentID,
		Location:   assignment.Location,
	})
}

func toAppError(err error, leadID string) error {
	var (
		rejected    *service.RejectedError
		unavailable *service.UnavailableError
	)
	switch {
	case errors.Is(err, service.ErrNoEligibleAgent):
		return apperr.Wrap(apperr.KindUnprocessable, "no agent services this property", err).
			WithDetails(transport.RoutingFailure{LeadID: leadID})
	case errors.As(err, &rejected):
		return apperr.Wrap(apperr.KindBadRequest, "could not assign lead to an agent", err).
			WithDetails(transport.RoutingFailure{
				LeadID:         leadID,
				Reason:         rejected.Reason,
				UpstreamStatus: rejected.Status,
			})
	case errors.As(err, &unavailable):
		return apperr.Wrap(apperr.KindUnavailable, "agent directory unavailable", err).
			WithDetails(transport.RoutingFailure{LeadID: leadID, Retryable: true})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindUnavailable, "request cancelled", err).
			WithDetails(transport.RoutingFailure{LeadID: leadID, Retryable: true})
	default:
		return err
	}
}
