// Package service applies change events to the search index. Each event is
// decoded, projected and written with a version-conditional write; events
// that can never be applied end up in the dead-letter store.
package service

import (
	"context"
	"errors"
	"time"

	"searchahouse/internal/changefeed"
	"searchahouse/internal/events"
	"searchahouse/internal/searchindex"
	"searchahouse/platform/logger"
	"searchahouse/platform/phone"
)

// Dead-letter reasons.
const (
	ReasonMalformed = "malformed"
	ReasonRejected  = "rejected"
	ReasonExhausted = "retries_exhausted"
)

// Delivery is one attempt at processing a queued change event.
type Delivery struct {
	EntityType string
	Payload    []byte
	// Attempt is 1 for the first delivery.
	Attempt     int
	MaxAttempts int
	TaskID      string
}

func (d Delivery) final() bool {
	return d.MaxAttempts > 0 && d.Attempt >= d.MaxAttempts
}

// DeadLetter is an event that was given up on.
type DeadLetter struct {
	EntityType string
	EntityID   string
	Operation  string
	Version    int64
	Reason     string
	Error      string
	Attempts   int
	Payload    []byte
}

// DeadLetterSink durably records dead letters and returns the record id.
type DeadLetterSink interface {
	Record(ctx context.Context, dl DeadLetter) (string, error)
}

// Recorder receives synchronizer metrics.
type Recorder interface {
	ObserveSync(entityType, result string, elapsed time.Duration)
	IncDeadLetter(entityType, reason string)
}

// Processor applies deliveries to a search index store.
type Processor struct {
	store     searchindex.Store
	sink      DeadLetterSink
	projector *Projector
	bus       events.Bus
	metrics   Recorder
	log       *logger.Logger
	now       func() time.Time
}

// ProcessorOptions holds optional collaborators.
type ProcessorOptions struct {
	Projector *Projector
	Bus       events.Bus
	Metrics   Recorder
}

// NewProcessor creates a processor.
func NewProcessor(store searchindex.Store, sink DeadLetterSink, log *logger.Logger, opts ProcessorOptions) *Processor {
	projector := opts.Projector
	if projector == nil {
		projector = NewProjector(phone.Normalizer{}, nil)
	}
	return &Processor{
		store:     store,
		sink:      sink,
		projector: projector,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		log:       log,
		now:       time.Now,
	}
}

// Process handles one delivery. A nil result acknowledges the event: it was
// applied, found stale, or durably dead-lettered. An error asks for
// redelivery.
func (p *Processor) Process(ctx context.Context, d Delivery) error {
	start := p.now()
	log := p.log.WithContext(ctx)

	change, err := Decode(d.EntityType, d.Payload)
	if err != nil {
		return p.deadLetter(ctx, d, headerOf(d), ReasonMalformed, err, start)
	}

	outcome, err := p.apply(ctx, change)
	if err == nil {
		log.IndexOutcome(string(change.Kind), change.ID, string(change.Op), change.Version, string(outcome))
		p.observe(d.EntityType, string(outcome), start)
		return nil
	}

	ref := deadLetterRef{id: change.ID, op: string(change.Op), version: change.Version}
	switch {
	case errors.Is(err, ErrMalformedEvent):
		return p.deadLetter(ctx, d, ref, ReasonMalformed, err, start)
	case searchindex.IsPermanent(err):
		return p.deadLetter(ctx, d, ref, ReasonRejected, err, start)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return err
	case d.final():
		return p.deadLetter(ctx, d, ref, ReasonExhausted, err, start)
	}

	log.Warn("index write failed, will retry",
		"entityType", change.Kind,
		"entityId", change.ID,
		"version", change.Version,
		"attempt", d.Attempt,
		"maxAttempts", d.MaxAttempts,
		"error", err,
	)
	p.observe(d.EntityType, "retried", start)
	return err
}

func (p *Processor) apply(ctx context.Context, c Change) (searchindex.Outcome, error) {
	if c.Op == changefeed.OpDelete {
		return p.store.Delete(ctx, string(c.Kind), c.ID, c.Version)
	}

	body, err := p.projector.Project(ctx, c)
	if err != nil {
		return "", err
	}
	return p.store.Put(ctx, searchindex.Document{
		Type:      string(c.Kind),
		ID:        c.ID,
		Version:   c.Version,
		Body:      body,
		IndexedAt: p.now().UTC(),
	})
}

type deadLetterRef struct {
	id      string
	op      string
	version int64
}

// headerOf salvages whatever identifies an undecodable event.
func headerOf(d Delivery) deadLetterRef {
	h, _ := changefeed.PeekHeader(d.Payload)
	ref := deadLetterRef{id: h.ID, op: h.Operation}
	if h.Version != nil {
		ref.version = *h.Version
	}
	return ref
}

// deadLetter records the event and acknowledges it. If the record cannot be
// written the event stays queued.
func (p *Processor) deadLetter(ctx context.Context, d Delivery, ref deadLetterRef, reason string, cause error, start time.Time) error {
	attempts := d.Attempt
	if attempts < 1 {
		attempts = 1
	}
	dl := DeadLetter{
		EntityType: d.EntityType,
		EntityID:   ref.id,
		Operation:  ref.op,
		Version:    ref.version,
		Reason:     reason,
		Error:      cause.Error(),
		Attempts:   attempts,
		Payload:    d.Payload,
	}

	id, err := p.sink.Record(ctx, dl)
	if err != nil {
		p.log.WithContext(ctx).Error("failed to record dead letter", "entityType", d.EntityType, "entityId", ref.id, "reason", reason, "error", err)
		return &TransientError{Op: "record dead letter", Err: err}
	}

	p.log.WithContext(ctx).DeadLettered(d.EntityType, ref.id, attempts, reason)
	p.observe(d.EntityType, "dead_lettered", start)
	if p.metrics != nil {
		p.metrics.IncDeadLetter(d.EntityType, reason)
	}
	if p.bus != nil {
		p.bus.Publish(ctx, events.ChangeDeadLettered{
			BaseEvent:    events.NewBaseEvent(),
			DeadLetterID: id,
			EntityType:   dl.EntityType,
			EntityID:     dl.EntityID,
			Operation:    dl.Operation,
			Reason:       dl.Reason,
			Error:        dl.Error,
			Attempts:     dl.Attempts,
		})
	}
	return nil
}

func (p *Processor) observe(entityType, result string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveSync(entityType, result, p.now().Sub(start))
	}
}
