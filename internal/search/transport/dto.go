package transport

import "searchahouse/internal/searchindex"

type PageRequest struct {
	Page int `form:"page" validate:"omitempty,min=0"`
	Size int `form:"size" validate:"omitempty,min=1,max=100"`
}

type NearRequest struct {
	Lat        *float64 `form:"lat" validate:"required,min=-90,max=90"`
	Lon        *float64 `form:"lon" validate:"required,min=-180,max=180"`
	DistanceKm float64  `form:"distanceKm" validate:"required,gt=0,max=20000"`
	Order      string   `form:"order" validate:"omitempty,oneof=asc desc"`
	PageRequest
}

type TextSearchRequest struct {
	Query        string `form:"q" validate:"required,min=1,max=200"`
	Autocomplete bool   `form:"autocomplete"`
	PageRequest
}

type AgentEmailRequest struct {
	Email string `form:"email" validate:"required,email"`
	PageRequest
}

type PropertyItem struct {
	searchindex.PropertyDoc
	Version    int64    `json:"version"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

type AgentItem struct {
	searchindex.AgentDoc
	Version int64 `json:"version"`
}

type PropertyPage struct {
	Items []PropertyItem `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

type AgentPage struct {
	Items []AgentItem `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}
