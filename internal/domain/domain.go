// Package domain holds the entities shared by the lead router and the index
// synchronizer. The JSON shapes follow the agent directory's wire format.
package domain

import (
	"strings"
)

// ContactStatus is the contact state of a lead owned by an agent.
type ContactStatus string

const (
	StatusUncontacted ContactStatus = "UNCONTACTED"
	StatusContacted   ContactStatus = "CONTACTED"
)

// ParseContactStatus maps s onto a known status. Blank input defaults to UNCONTACTED.
func ParseContactStatus(s string) (ContactStatus, bool) {
	switch ContactStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusContacted:
		return StatusContacted, true
	case StatusUncontacted, "":
		return StatusUncontacted, true
	default:
		return "", false
	}
}

// PropertyType distinguishes sale and rental listings.
type PropertyType string

const (
	PropertySale PropertyType = "SALE"
	PropertyRent PropertyType = "RENT"
)

// PropertyStatus is the availability of a listing.
type PropertyStatus string

const (
	PropertyAvailable    PropertyStatus = "AVAILABLE"
	PropertyNotAvailable PropertyStatus = "NOT_AVAILABLE"
)

// Lead is a prospective buyer or renter.
type Lead struct {
	ID            string        `json:"primaryKey,omitempty"`
	FirstName     string        `json:"firstName"`
	LastName      string        `json:"lastName"`
	Email         string        `json:"email"`
	Phone         string        `json:"mobilePhone,omitempty"`
	ContactStatus ContactStatus `json:"contactStatus"`
	Version       int64         `json:"version,omitempty"`
}

// Agent is a sales agent together with the leads assigned to it.
type Agent struct {
	ID          string   `json:"primaryKey"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone,omitempty"`
	Leads       []Lead   `json:"leads"`
	PropertyIDs []string `json:"propertyIds,omitempty"`
	Version     int64    `json:"version,omitempty"`
}

// FullName joins first and last name.
func (a Agent) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// CountLeads returns how many of the agent's leads have the given status.
func (a Agent) CountLeads(status ContactStatus) int {
	n := 0
	for _, l := range a.Leads {
		s := l.ContactStatus
		if s == "" {
			s = StatusUncontacted
		}
		if s == status {
			n++
		}
	}
	return n
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within WGS84 bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Address is a postal address.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// String renders the address as a single comma separated line.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.City, a.State, a.Zip, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Property is a listing owned by the system of record.
type Property struct {
	ID          string         `json:"primaryKey"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	Address     Address        `json:"address"`
	Location    *GeoPoint      `json:"location,omitempty"`
	Price       int64          `json:"price"`
	Type        PropertyType   `json:"type"`
	Status      PropertyStatus `json:"status"`
	AgentIDs    []string       `json:"agentIds,omitempty"`
	Version     int64          `json:"version,omitempty"`
}
