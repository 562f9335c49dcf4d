package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"searchahouse/internal/searchindex"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SearchProperties runs a property query against live documents.
func (s *Store) SearchProperties(ctx context.Context, q searchindex.PropertyQuery) (searchindex.Result, error) {
	var must []any
	if text := strings.TrimSpace(q.Text); text != "" {
		if q.Autocomplete {
			must = append(must, prefixMatch(text, "entity.name", "entity.addressText"))
		} else {
			must = append(must, map[string]any{
				"multi_match": map[string]any{
					"query":  text,
					"fields": []string{"entity.name^3", "entity.addressText^2", "entity.description"},
				},
			})
		}
	}

	filter := []any{}
	if len(q.IDs) > 0 {
		filter = append(filter, map[string]any{"terms": map[string]any{"entity.id": q.IDs}})
	}
	if q.AgentID != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"entity.agentIds": q.AgentID}})
	}

	var sort []any
	if q.Near != nil {
		center := map[string]any{"lat": q.Near.Center.Lat, "lon": q.Near.Center.Lon}
		filter = append(filter, map[string]any{
			"geo_distance": map[string]any{
				"distance":        strconv.FormatFloat(q.Near.DistanceKm, 'f', -1, 64) + "km",
				"entity.location": center,
			},
		})
		order := "asc"
		if q.Near.Descending {
			order = "desc"
		}
		sort = append(sort, map[string]any{
			"_geo_distance": map[string]any{
				"entity.location": center,
				"order":           order,
				"unit":            "km",
			},
		})
	}

	return s.search(ctx, "property", must, filter, sort, q.Page, q.Size, q.Near != nil)
}

// SearchAgents runs an agent query against live documents.
func (s *Store) SearchAgents(ctx context.Context, q searchindex.AgentQuery) (searchindex.Result, error) {
	var must []any
	if text := strings.TrimSpace(q.Text); text != "" {
		if q.Autocomplete {
			must = append(must, prefixMatch(text, "entity.fullName", "entity.firstName", "entity.lastName"))
		} else {
			must = append(must, map[string]any{
				"multi_match": map[string]any{
					"query":  text,
					"fields": []string{"entity.fullName^2", "entity.firstName", "entity.lastName", "entity.email.text"},
				},
			})
		}
	}

	filter := []any{}
	if email := strings.TrimSpace(q.Email); email != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"entity.email": email}})
	}

	return s.search(ctx, "agent", must, filter, nil, q.Page, q.Size, false)
}

// prefixMatch builds a bool_prefix query across search_as_you_type fields and
// their shingle subfields.
func prefixMatch(text string, fields ...string) map[string]any {
	expanded := make([]string, 0, len(fields)*3)
	for _, f := range fields {
		expanded = append(expanded, f, f+"._2gram", f+"._3gram")
	}
	return map[string]any{
		"multi_match": map[string]any{
			"query":  text,
			"type":   "bool_prefix",
			"fields": expanded,
		},
	}
}

func pageBounds(page, size int) (from, n int) {
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if page < 0 {
		page = 0
	}
	return page * size, size
}

func (s *Store) search(ctx context.Context, entityType string, must, filter, sort []any, page, size int, distanceSorted bool) (searchindex.Result, error) {
	from, n := pageBounds(page, size)

	boolQuery := map[string]any{
		"filter":   filter,
		"must_not": []any{map[string]any{"term": map[string]any{"deleted": true}}},
	}
	if len(must) > 0 {
		boolQuery["must"] = must
	}

	query := map[string]any{
		"from":    from,
		"size":    n,
		"version": true,
		"query":   map[string]any{"bool": boolQuery},
	}
	if len(sort) > 0 {
		query["sort"] = sort
	}

	body, err := json.Marshal(query)
	if err != nil {
		return searchindex.Result{}, err
	}

	res, err := s.es.Search(
		s.es.Search.WithIndex(s.IndexName(entityType)),
		s.es.Search.WithBody(bytes.NewReader(body)),
		s.es.Search.WithTrackTotalHits(true),
		s.es.Search.WithContext(ctx),
	)
	if err != nil {
		return searchindex.Result{}, fmt.Errorf("search %s: %w", entityType, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return searchindex.Result{Hits: []searchindex.Hit{}}, nil
	}
	if res.IsError() {
		return searchindex.Result{}, fmt.Errorf("search %s: %s", entityType, decodeError(res))
	}

	var out struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID      string `json:"_id"`
				Version int64  `json:"_version"`
				Source  source `json:"_source"`
				Sort    []any  `json:"sort"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return searchindex.Result{}, fmt.Errorf("decode %s search: %w", entityType, err)
	}

	result := searchindex.Result{
		Total: out.Hits.Total.Value,
		Hits:  make([]searchindex.Hit, 0, len(out.Hits.Hits)),
	}
	for _, h := range out.Hits.Hits {
		hit := searchindex.Hit{ID: h.ID, Version: h.Version, Body: h.Source.Entity}
		if distanceSorted && len(h.Sort) > 0 {
			if d, ok := h.Sort[0].(float64); ok {
				hit.DistanceKm = &d
			}
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}
