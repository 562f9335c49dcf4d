// Package events defines the domain events exchanged between the routing,
// index sync and notification modules. The bus itself lives in platform/events.
package events

import (
	"searchahouse/platform/events"
	"searchahouse/platform/logger"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Routing Domain Events
// =============================================================================

// LeadRouted is published after the agent directory accepted a lead assignment.
type LeadRouted struct {
	BaseEvent
	LeadID     string `json:"leadId"`
	PropertyID string `json:"propertyId"`
	AgentID    string `json:"agentId"`
	AgentName  string `json:"agentName"`
	AgentEmail string `json:"agentEmail"`
	Location   string `json:"location"`
	LeadName   string `json:"leadName"`
	LeadEmail  string `json:"leadEmail"`
	LeadPhone  string `json:"leadPhone,omitempty"`
}

func (e LeadRouted) EventName() string { return "routing.lead.routed" }

// =============================================================================
// Index Sync Domain Events
// =============================================================================

// ChangeDeadLettered is published when a change event was moved to the dead-letter store.
type ChangeDeadLettered struct {
	BaseEvent
	DeadLetterID string `json:"deadLetterId"`
	EntityType   string `json:"entityType"`
	EntityID     string `json:"entityId"`
	Operation    string `json:"operation"`
	Reason       string `json:"reason"`
	Error        string `json:"error"`
	Attempts     int    `json:"attempts"`
}

func (e ChangeDeadLettered) EventName() string { return "indexsync.change.dead_lettered" }
