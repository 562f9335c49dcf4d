package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"searchahouse/internal/changefeed"
	"searchahouse/internal/domain"
)

// Change is a decoded change event. Exactly one of Property, Agent and Lead
// is set for creates and updates, matching Kind. Deletes carry only the id.
type Change struct {
	Kind     changefeed.EntityType
	Op       changefeed.Operation
	ID       string
	Version  int64
	Property *domain.Property
	Agent    *domain.Agent
	Lead     *domain.Lead
}

// Ref identifies the mutation for logging and deduplication.
func (c Change) Ref() changefeed.Ref {
	return changefeed.Ref{Type: c.Kind, ID: c.ID, Operation: c.Op, Version: c.Version}
}

// Decode parses payload as a change event for entityType. Every failure is a
// *MalformedError.
func Decode(entityType string, payload []byte) (Change, error) {
	kind, ok := changefeed.ParseEntityType(entityType)
	if !ok {
		return Change{}, malformed("unknown entity type "+quote(entityType), nil)
	}

	header, err := changefeed.PeekHeader(payload)
	if err != nil {
		return Change{}, malformed("undecodable payload", err)
	}

	op, ok := changefeed.ParseOperation(header.Operation)
	if !ok {
		return Change{}, malformed("unknown operation "+quote(header.Operation), nil)
	}
	if header.ID == "" {
		return Change{}, malformed("missing entity id", nil)
	}
	if header.Version == nil {
		return Change{}, malformed("missing version", nil)
	}
	if *header.Version < 0 {
		return Change{}, malformed("negative version", nil)
	}

	change := Change{Kind: kind, Op: op, ID: header.ID, Version: *header.Version}
	if op == changefeed.OpDelete {
		return change, nil
	}

	var env changefeed.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Change{}, malformed("undecodable payload", err)
	}
	if len(bytes.TrimSpace(env.Entity)) == 0 || string(env.Entity) == "null" {
		return Change{}, malformed("missing entity body", nil)
	}

	switch kind {
	case changefeed.EntityProperty:
		var p domain.Property
		if err := json.Unmarshal(env.Entity, &p); err != nil {
			return Change{}, malformed("invalid property", err)
		}
		p.ID, p.Version = change.ID, change.Version
		if p.Location != nil && !p.Location.Valid() {
			return Change{}, malformed("location out of range", nil)
		}
		change.Property = &p
	case changefeed.EntityAgent:
		var a domain.Agent
		if err := json.Unmarshal(env.Entity, &a); err != nil {
			return Change{}, malformed("invalid agent", err)
		}
		a.ID, a.Version = change.ID, change.Version
		change.Agent = &a
	case changefeed.EntityLead:
		var l domain.Lead
		if err := json.Unmarshal(env.Entity, &l); err != nil {
			return Change{}, malformed("invalid lead", err)
		}
		l.ID, l.Version = change.ID, change.Version
		change.Lead = &l
	}
	return change, nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
