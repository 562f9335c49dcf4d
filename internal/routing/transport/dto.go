package transport

import "searchahouse/internal/domain"

// LeadRequest is the lead to route. ID is optional; supplying the identifier
// returned by an earlier failed attempt makes the retry idempotent.
type LeadRequest struct {
	ID        string `json:"id" validate:"omitempty,max=64"`
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone     string `json:"mobilePhone" validate:"omitempty,min=6,max=32"`
}

// RouteLeadRequest is the body of POST /api/v1/leads/route.
type RouteLeadRequest struct {
	PropertyID string      `json:"propertyId" validate:"required,min=1,max=64"`
	Lead       LeadRequest `json:"lead"`
}

// ToDomain converts the request lead into a domain lead.
func (r LeadRequest) ToDomain() domain.Lead {
	return domain.Lead{
		ID:            r.ID,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		Phone:         r.Phone,
		ContactStatus: domain.StatusUncontacted,
	}
}

// RouteLeadResponse describes the created assignment.
type RouteLeadResponse struct {
	LeadID     string `json:"leadId"`
	PropertyID string `json:"propertyId"`
	AgentID    string `json:"agentId"`
	Location   string `json:"location"`
}

// RoutingFailure is returned in the error details of a failed routing request.
type RoutingFailure struct {
	LeadID         string `json:"leadId,omitempty"`
	Reason         string `json:"reason,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
	Retryable      bool   `json:"retryable"`
}
