package searchindex

import (
	"context"

	"searchahouse/internal/domain"
)

// PropertyDoc is the indexed projection of a property.
type PropertyDoc struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Address     domain.Address   `json:"address"`
	AddressText string           `json:"addressText"`
	Location    *domain.GeoPoint `json:"location,omitempty"`
	Price       int64            `json:"price"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	AgentIDs    []string         `json:"agentIds,omitempty"`
}

// AgentDoc is the indexed projection of an agent. Leads are reduced to counts.
type AgentDoc struct {
	ID               string   `json:"id"`
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	FullName         string   `json:"fullName"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone,omitempty"`
	PropertyIDs      []string `json:"propertyIds,omitempty"`
	ContactedLeads   int      `json:"contactedLeads"`
	UncontactedLeads int      `json:"uncontactedLeads"`
}

// LeadDoc is the indexed projection of a lead.
type LeadDoc struct {
	ID            string `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	ContactStatus string `json:"contactStatus"`
}

// GeoFilter restricts results to a radius around a point, sorted by distance.
type GeoFilter struct {
	Center     domain.GeoPoint
	DistanceKm float64
	Descending bool
}

// PropertyQuery selects live property documents. Zero fields do not filter.
type PropertyQuery struct {
	Text         string
	Autocomplete bool
	Near         *GeoFilter
	IDs          []string
	AgentID      string
	Page         int
	Size         int
}

// AgentQuery selects live agent documents. Zero fields do not filter.
type AgentQuery struct {
	Text         string
	Autocomplete bool
	Email        string
	Page         int
	Size         int
}

// Hit is one matching document.
type Hit struct {
	ID         string
	Version    int64
	Body       []byte
	DistanceKm *float64
}

// Result is one page of hits.
type Result struct {
	Total int64
	Hits  []Hit
}

// Searcher runs read queries against live (non-tombstoned) documents.
type Searcher interface {
	SearchProperties(ctx context.Context, q PropertyQuery) (Result, error)
	SearchAgents(ctx context.Context, q AgentQuery) (Result, error)
}
