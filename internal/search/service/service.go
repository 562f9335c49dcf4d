// Package service answers read queries from the search index.
package service

import (
	"context"
	"encoding/json"
	"strings"

	"searchahouse/internal/domain"
	"searchahouse/internal/search/transport"
	"searchahouse/internal/searchindex"
	"searchahouse/platform/apperr"
)

const defaultPageSize = 20

// Index is the read side of the search index.
type Index interface {
	searchindex.Searcher
	Get(ctx context.Context, entityType, id string) (searchindex.Document, bool, error)
}

type Service struct {
	index Index
}

func New(index Index) *Service {
	return &Service{index: index}
}

func pageOf(p transport.PageRequest) (int, int) {
	size := p.Size
	if size <= 0 {
		size = defaultPageSize
	}
	return p.Page, size
}

func (s *Service) ListProperties(ctx context.Context, req transport.PageRequest) (*transport.PropertyPage, error) {
	page, size := pageOf(req)
	return s.properties(ctx, "search.ListProperties", searchindex.PropertyQuery{Page: page, Size: size})
}

func (s *Service) GetProperty(ctx context.Context, id string) (*transport.PropertyItem, error) {
	doc, ok, err := s.index.Get(ctx, "property", id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "search index unavailable", err).WithOp("search.GetProperty")
	}
	if !ok || doc.Deleted {
		return nil, apperr.NotFound("property not found")
	}

	var pd searchindex.PropertyDoc
	if err := json.Unmarshal(doc.Body, &pd); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "corrupt property document", err).WithOp("search.GetProperty")
	}
	return &transport.PropertyItem{PropertyDoc: pd, Version: doc.Version}, nil
}

// PropertiesNear returns properties within the radius sorted by distance.
func (s *Service) PropertiesNear(ctx context.Context, req transport.NearRequest) (*transport.PropertyPage, error) {
	page, size := pageOf(req.PageRequest)
	return s.properties(ctx, "search.PropertiesNear", searchindex.PropertyQuery{
		Near: &searchindex.GeoFilter{
			Center:     domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon},
			DistanceKm: req.DistanceKm,
			Descending: req.Order == "desc",
		},
		Page: page,
		Size: size,
	})
}

// SearchProperties matches name and address text, as whole words or as a prefix.
func (s *Service) SearchProperties(ctx context.Context, req transport.TextSearchRequest) (*transport.PropertyPage, error) {
	page, size := pageOf(req.PageRequest)
	return s.properties(ctx, "search.SearchProperties", searchindex.PropertyQuery{
		Text:         req.Query,
		Autocomplete: req.Autocomplete,
		Page:         page,
		Size:         size,
	})
}

func (s *Service) PropertiesByAgent(ctx context.Context, agentID string, req transport.PageRequest) (*transport.PropertyPage, error) {
	page, size := pageOf(req)
	return s.properties(ctx, "search.PropertiesByAgent", searchindex.PropertyQuery{AgentID: agentID, Page: page, Size: size})
}

// PropertiesByAgentEmail resolves the agent by email and lists its properties.
func (s *Service) PropertiesByAgentEmail(ctx context.Context, req transport.AgentEmailRequest) (*transport.PropertyPage, error) {
	agents, err := s.index.SearchAgents(ctx, searchindex.AgentQuery{Email: strings.ToLower(strings.TrimSpace(req.Email)), Size: 1})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "search index unavailable", err).WithOp("search.PropertiesByAgentEmail")
	}
	if len(agents.Hits) == 0 {
		return nil, apperr.NotFound("agent not found")
	}
	return s.PropertiesByAgent(ctx, agents.Hits[0].ID, req.PageRequest)
}

// AutocompleteAgents matches agents by first or last name prefix.
func (s *Service) AutocompleteAgents(ctx context.Context, req transport.TextSearchRequest) (*transport.AgentPage, error) {
	page, size := pageOf(req.PageRequest)
	res, err := s.index.SearchAgents(ctx, searchindex.AgentQuery{Text: req.Query, Autocomplete: true, Page: page, Size: size})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "search index unavailable", err).WithOp("search.AutocompleteAgents")
	}

	items := make([]transport.AgentItem, 0, len(res.Hits))
	for _, h := range res.Hits {
		var ad searchindex.AgentDoc
		if err := json.Unmarshal(h.Body, &ad); err != nil {
			continue
		}
		items = append(items, transport.AgentItem{AgentDoc: ad, Version: h.Version})
	}
	return &transport.AgentPage{Items: items, Total: res.Total, Page: page, Size: size}, nil
}

func (s *Service) properties(ctx context.Context, op string, q searchindex.PropertyQuery) (*transport.PropertyPage, error) {
	res, err := s.index.SearchProperties(ctx, q)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "search index unavailable", err).WithOp(op)
	}

	items := make([]transport.PropertyItem, 0, len(res.Hits))
	for _, h := range res.Hits {
		var pd searchindex.PropertyDoc
		if err := json.Unmarshal(h.Body, &pd); err != nil {
			continue
		}
		items = append(items, transport.PropertyItem{PropertyDoc: pd, Version: h.Version, DistanceKm: h.DistanceKm})
	}
	return &transport.PropertyPage{Items: items, Total: res.Total, Page: q.Page, Size: q.Size}, nil
}
