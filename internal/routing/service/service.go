// Package service assigns incoming leads to the least loaded agent servicing
// a property.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"searchahouse/internal/directory"
	"searchahouse/internal/domain"
	"searchahouse/internal/events"
	"searchahouse/platform/logger"
	"searchahouse/platform/phone"
	"searchahouse/platform/sanitize"

	"github.com/google/uuid"
)

// Directory is the subset of the agent directory used for routing.
type Directory interface {
	AgentsForProperty(ctx context.Context, propertyID string) ([]domain.Agent, error)
	AssignLead(ctx context.Context, agentID string, lead domain.Lead) (string, error)
}

// Recorder receives routing metrics.
type Recorder interface {
	ObserveRoute(result string, elapsed time.Duration)
	IncRouteRetry()
}

// Assignment is a successfully routed lead.
type Assignment struct {
	LeadID     string `json:"leadId"`
	PropertyID string `json:"propertyId"`
	AgentID    string `json:"agentId"`
	Location   string `json:"location"`
}

// Options configures a Service.
type Options struct {
	// LoadStatus is the contact status counted as load. Defaults to CONTACTED.
	LoadStatus domain.ContactStatus
	Retry      RetryPolicy
	Memo       AssignmentMemo
	Phones     phone.Normalizer
	Bus        events.Bus
	Metrics    Recorder
}

// Service routes leads through the agent directory. It keeps no load state of
// its own: each request reads the current agents and decides from that snapshot.
type Service struct {
	directory  Directory
	memo       AssignmentMemo
	loadStatus domain.ContactStatus
	retry      RetryPolicy
	phones     phone.Normalizer
	bus        events.Bus
	metrics    Recorder
	log        *logger.Logger
}

// NewService creates a routing service.
func NewService(dir Directory, log *logger.Logger, opts Options) *Service {
	status := opts.LoadStatus
	if status == "" {
		status = domain.StatusContacted
	}
	memo := opts.Memo
	if memo == nil {
		memo = NoopMemo{}
	}
	return &Service{
		directory:  dir,
		memo:       memo,
		loadStatus: status,
		retry:      opts.Retry,
		phones:     opts.Phones,
		bus:        opts.Bus,
		metrics:    opts.Metrics,
		log:        log,
	}
}

// RouteLead assigns lead to the least loaded agent servicing propertyID.
// A lead without an identifier gets one before any remote call, so a repeated
// request with the returned identifier reaches the same agent. On failure the
// returned Assignment carries only LeadID and PropertyID.
func (s *Service) RouteLead(ctx context.Context, lead domain.Lead, propertyID string) (Assignment, error) {
	start := time.Now()
	log := s.log.WithContext(ctx)

	lead = s.prepareLead(lead)
	assignment, err := s.route(ctx, lead, propertyID)

	result := resultLabel(err)
	if s.metrics != nil {
		s.metrics.ObserveRoute(result, time.Since(start))
	}
	if err != nil {
		log.Warn("lead routing failed",
			"leadId", lead.ID,
			"propertyId", propertyID,
			"result", result,
			"error", err,
		)
		// the identifier is returned so the caller can retry idempotently
		return Assignment{LeadID: lead.ID, PropertyID: propertyID}, err
	}

	log.Info("lead routed",
		"leadId", assignment.LeadID,
		"propertyId", propertyID,
		"agentId", assignment.AgentID,
		"location", assignment.Location,
	)
	return assignment, nil
}

func (s *Service) route(ctx context.Context, lead domain.Lead, propertyID string) (Assignment, error) {
	agents, err := WithRetry(ctx, s.retryPolicy(ctx, "list agents"), func(ctx context.Context) ([]domain.Agent, error) {
		agents, err := s.directory.AgentsForProperty(ctx, propertyID)
		return agents, classify(err)
	})
	if err != nil {
		return Assignment{}, err
	}

	agent, err := s.chooseAgent(ctx, lead.ID, agents)
	if err != nil {
		return Assignment{}, err
	}

	// the append is attempted once; retrying it is up to the caller
	location, err := s.directory.AssignLead(ctx, agent.ID, lead)
	if err = classify(err); err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			if ferr := s.memo.Forget(ctx, lead.ID); ferr != nil {
				s.log.WithContext(ctx).Warn("failed to clear lead assignment memo", "leadId", lead.ID, "error", ferr)
			}
		}
		return Assignment{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadRouted{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			PropertyID: propertyID,
			AgentID:    agent.ID,
			AgentName:  agent.FullName(),
			AgentEmail: agent.Email,
			Location:   location,
			LeadName:   strings.TrimSpace(lead.FirstName + " " + lead.LastName),
			LeadEmail:  lead.Email,
			LeadPhone:  lead.Phone,
		})
	}

	return Assignment{
		LeadID:     lead.ID,
		PropertyID: propertyID,
		AgentID:    agent.ID,
		Location:   location,
	}, nil
}

// chooseAgent prefers an agent this lead was already routed to, as long as it
// still services the property, and otherwise picks the least loaded one.
func (s *Service) chooseAgent(ctx context.Context, leadID string, agents []domain.Agent) (domain.Agent, error) {
	log := s.log.WithContext(ctx)

	if previous, err := s.memo.Lookup(ctx, leadID); err != nil {
		log.Warn("lead assignment memo lookup failed", "leadId", leadID, "error", err)
	} else if agent, ok := findAgent(agents, previous); ok {
		return agent, nil
	}

	selected, ok := SelectAgent(agents, s.loadStatus)
	if !ok {
		return domain.Agent{}, ErrNoEligibleAgent
	}

	owner, err := s.memo.Claim(ctx, leadID, selected.ID)
	if err != nil {
		log.Warn("lead assignment memo claim failed", "leadId", leadID, "error", err)
		return selected, nil
	}
	if agent, ok := findAgent(agents, owner); ok {
		return agent, nil
	}
	return selected, nil
}

func (s *Service) prepareLead(lead domain.Lead) domain.Lead {
	lead.ID = strings.TrimSpace(lead.ID)
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.ContactStatus == "" {
		lead.ContactStatus = domain.StatusUncontacted
	}
	lead.FirstName = sanitize.Name(lead.FirstName)
	lead.LastName = sanitize.Name(lead.LastName)
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	lead.Phone = s.phones.E164(lead.Phone)
	return lead
}

// retryPolicy decorates the configured policy so every repeated call is logged and counted.
func (s *Service) retryPolicy(ctx context.Context, op string) RetryPolicy {
	policy := s.retry
	policy.OnRetry = func(attempt int, err error) {
		s.log.WithContext(ctx).Warn("retrying agent directory call", "op", op, "attempt", attempt, "error", err)
		if s.metrics != nil {
			s.metrics.IncRouteRetry()
		}
	}
	return policy
}

func findAgent(agents []domain.Agent, id string) (domain.Agent, bool) {
	if id == "" {
		return domain.Agent{}, false
	}
	for _, a := range agents {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Agent{}, false
}

// classify maps directory failures onto the routing error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if de, ok := directory.AsError(err); ok && de.Rejected() {
		return &RejectedError{Status: de.Status, Reason: de.Reason, Err: err}
	}
	return &UnavailableError{Err: err}
}

func resultLabel(err error) string {
	var (
		rejected    *RejectedError
		unavailable *UnavailableError
	)
	switch {
	case err == nil:
		return "routed"
	case errors.Is(err, ErrNoEligibleAgent):
		return "no_eligible_agent"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.As(err, &unavailable):
		return "unavailable"
	default:
		return "error"
	}
}
