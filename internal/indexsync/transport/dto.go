// Package transport defines the dead-letter admin API payloads.
package transport

import (
	"time"
)

// ListDeadLettersRequest holds the query parameters of GET /dead-letters.
type ListDeadLettersRequest struct {
	Status     string `form:"status" validate:"omitempty,oneof=pending replay_requested replaying replayed replay_failed"`
	EntityType string `form:"entityType" validate:"omitempty,oneof=property agent lead"`
	Page       int    `form:"page" validate:"omitempty,min=0"`
	Size       int    `form:"size" validate:"omitempty,min=1,max=200"`
}

type DeadLetterResponse struct {
	ID          string     `json:"id"`
	EntityType  string     `json:"entityType"`
	EntityID    string     `json:"entityId"`
	Operation   string     `json:"operation"`
	Version     *int64     `json:"version,omitempty"`
	Reason      string     `json:"reason"`
	Error       string     `json:"error"`
	Attempts    int        `json:"attempts"`
	Status      string     `json:"status"`
	ReplayError *string    `json:"replayError,omitempty"`
	Payload     string     `json:"payload"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ReplayedAt  *time.Time `json:"replayedAt,omitempty"`
}

type DeadLetterListResponse struct {
	Items []DeadLetterResponse `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
}
