package service

import (
	"context"
	"encoding/json"
	"strings"

	"searchahouse/internal/domain"
	"searchahouse/internal/searchindex"
	"searchahouse/platform/phone"
	"searchahouse/platform/sanitize"
)

// Geocoder resolves a postal address to coordinates. ok is false when the
// address is unknown.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (point domain.GeoPoint, ok bool, err error)
}

// Projector turns decoded entities into index documents.
type Projector struct {
	phones   phone.Normalizer
	geocoder Geocoder
}

// NewProjector creates a projector. geocoder may be nil.
func NewProjector(phones phone.Normalizer, geocoder Geocoder) *Projector {
	return &Projector{phones: phones, geocoder: geocoder}
}

// Project builds the document body for a create or update.
func (p *Projector) Project(ctx context.Context, c Change) (json.RawMessage, error) {
	var doc any
	switch {
	case c.Property != nil:
		pd, err := p.property(ctx, *c.Property)
		if err != nil {
			return nil, err
		}
		doc = pd
	case c.Agent != nil:
		doc = p.agent(*c.Agent)
	case c.Lead != nil:
		doc = p.lead(*c.Lead)
	default:
		return nil, malformed("missing entity body", nil)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, malformed("unencodable entity", err)
	}
	return body, nil
}

func (p *Projector) property(ctx context.Context, prop domain.Property) (searchindex.PropertyDoc, error) {
	doc := searchindex.PropertyDoc{
		ID:          prop.ID,
		Name:        sanitize.Name(prop.Name),
		Description: sanitize.Text(prop.Description),
		ImageURL:    prop.ImageURL,
		Address:     prop.Address,
		AddressText: prop.Address.String(),
		Location:    prop.Location,
		Price:       prop.Price,
		Type:        string(prop.Type),
		Status:      string(prop.Status),
		AgentIDs:    prop.AgentIDs,
	}

	if doc.Location == nil && p.geocoder != nil && doc.AddressText != "" {
		point, ok, err := p.geocoder.Geocode(ctx, doc.AddressText)
		if err != nil {
			return searchindex.PropertyDoc{}, &TransientError{Op: "geocode", Err: err}
		}
		if ok {
			doc.Location = &point
		}
	}
	return doc, nil
}

func (p *Projector) agent(a domain.Agent) searchindex.AgentDoc {
	return searchindex.AgentDoc{
		ID:               a.ID,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		FullName:         a.FullName(),
		Email:            strings.ToLower(strings.TrimSpace(a.Email)),
		Phone:            p.phones.E164(a.Phone),
		PropertyIDs:      a.PropertyIDs,
		ContactedLeads:   a.CountLeads(domain.StatusContacted),
		UncontactedLeads: a.CountLeads(domain.StatusUncontacted),
	}
}

func (p *Projector) lead(l domain.Lead) searchindex.LeadDoc {
	status := l.ContactStatus
	if status == "" {
		status = domain.StatusUncontacted
	}
	return searchindex.LeadDoc{
		ID:            l.ID,
		FirstName:     sanitize.Name(l.FirstName),
		LastName:      sanitize.Name(l.LastName),
		FullName:      sanitize.Name(l.FirstName + " " + l.LastName),
		Email:         strings.ToLower(strings.TrimSpace(l.Email)),
		Phone:         p.phones.E164(l.Phone),
		ContactStatus: string(status),
	}
}
