// Package notification provides event handlers for sending notifications in
// response to domain events. Domain modules publish on the bus and never see
// email providers or templates.
package notification

import (
	"context"
	"strings"

	"searchahouse/internal/email"
	"searchahouse/internal/events"
	"searchahouse/platform/config"
	"searchahouse/platform/logger"
)

// Module sends lead assignment notices and dead-letter alerts.
type Module struct {
	sender     email.Sender
	alertEmail string
	log        *logger.Logger
}

// New creates the notification module.
func New(sender email.Sender, alertEmail string, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{
		sender:     sender,
		alertEmail: strings.TrimSpace(alertEmail),
		log:        log,
	}
}

// NewFromConfig builds the SMTP sender when email is enabled.
func NewFromConfig(cfg config.EmailConfig, log *logger.Logger) *Module {
	var sender email.Sender = email.NoopSender{}
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		)
	} else {
		log.Info("email disabled, notifications will only be logged")
	}
	return New(sender, cfg.GetAlertEmail(), log)
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadRouted{}.EventName(), m)
	bus.Subscribe(events.ChangeDeadLettered{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadRouted:
		return m.handleLeadRouted(ctx, e)
	case events.ChangeDeadLettered:
		return m.handleChangeDeadLettered(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadRouted(ctx context.Context, e events.LeadRouted) error {
	if e.AgentEmail == "" {
		m.log.Info("agent has no email, skipping lead notice", "agentId", e.AgentID, "leadId", e.LeadID)
		return nil
	}

	err := m.sender.SendLeadAssignedEmail(ctx, e.AgentEmail, email.LeadAssigned{
		AgentName:  e.AgentName,
		LeadName:   e.LeadName,
		LeadEmail:  e.LeadEmail,
		LeadPhone:  e.LeadPhone,
		PropertyID: e.PropertyID,
		Location:   e.Location,
	})
	if err != nil {
		m.log.Error("failed to send lead notice",
			"agentId", e.AgentID,
			"leadId", e.LeadID,
			"error", err,
		)
		return err
	}
	m.log.Info("lead notice sent", "agentId", e.AgentID, "leadId", e.LeadID)
	return nil
}

func (m *Module) handleChangeDeadLettered(ctx context.Context, e events.ChangeDeadLettered) error {
	if m.alertEmail == "" {
		return nil
	}

	err := m.sender.SendDeadLetterAlert(ctx, m.alertEmail, email.DeadLetterAlert{
		DeadLetterID: e.DeadLetterID,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		Operation:    e.Operation,
		Reason:       e.Reason,
		Error:        e.Error,
		Attempts:     e.Attempts,
	})
	if err != nil {
		m.log.Error("failed to send dead letter alert", "deadLetterId", e.DeadLetterID, "error", err)
		return err
	}
	m.log.Info("dead letter alert sent", "deadLetterId", e.DeadLetterID)
	return nil
}
