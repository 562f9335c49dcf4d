// Package changefeed defines the change event wire format shared by the
// publisher side and the index synchronizer.
package changefeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Operation is the kind of mutation a change event describes.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// ParseOperation accepts the three operations case-insensitively.
func ParseOperation(s string) (Operation, bool) {
	switch op := Operation(strings.ToUpper(strings.TrimSpace(s))); op {
	case OpCreate, OpUpdate, OpDelete:
		return op, true
	default:
		return "", false
	}
}

// EntityType names a tracked entity. Each type has its own queue stream.
type EntityType string

const (
	EntityProperty EntityType = "property"
	EntityAgent    EntityType = "agent"
	EntityLead     EntityType = "lead"
)

// EntityTypes lists every tracked entity type.
var EntityTypes = []EntityType{EntityProperty, EntityAgent, EntityLead}

// ParseEntityType maps s onto a tracked entity type.
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EntityTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Envelope is the queue payload: {"entity": ..., "operation": ..., "version": ...}.
type Envelope struct {
	Entity    json.RawMessage `json:"entity"`
	Operation string          `json:"operation"`
	Version   *int64          `json:"version,omitempty"`
}

// Ref identifies a single mutation. It is used to build deduplicating task ids.
type Ref struct {
	Type      EntityType
	ID        string
	Operation Operation
	Version   int64
}

// Key returns "<type>:<id>:<op>:<version>".
func (r Ref) Key() string {
	return fmt.Sprintf("%s:%s:%s:%d", r.Type, r.ID, r.Operation, r.Version)
}

// Encode builds the payload for a mutation of entity. For deletes only the
// identifier is carried.
func Encode(ref Ref, entity any) ([]byte, error) {
	if ref.ID == "" {
		return nil, errors.New("change event requires an entity id")
	}
	if _, ok := ParseOperation(string(ref.Operation)); !ok {
		return nil, fmt.Errorf("unknown operation %q", ref.Operation)
	}

	var body json.RawMessage
	var err error
	if ref.Operation == OpDelete || entity == nil {
		body, err = json.Marshal(map[string]string{"primaryKey": ref.ID})
	} else {
		body, err = json.Marshal(entity)
	}
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}

	version := ref.Version
	return json.Marshal(Envelope{Entity: body, Operation: string(ref.Operation), Version: &version})
}

// Header is the part of an event every consumer can read regardless of shape.
type Header struct {
	ID        string
	Operation string
	Version   *int64
}

// PeekHeader extracts identifier, raw operation and version without
// validating the rest of the payload.
func PeekHeader(payload []byte) (Header, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Header{}, fmt.Errorf("decode envelope: %w", err)
	}

	h := Header{Operation: env.Operation, Version: env.Version}
	if len(env.Entity) == 0 || string(env.Entity) == "null" {
		return h, nil
	}

	var ident struct {
		ID         json.RawMessage `json:"id"`
		PrimaryKey json.RawMessage `json:"primaryKey"`
		Version    *int64          `json:"version"`
	}
	if err := json.Unmarshal(env.Entity, &ident); err != nil {
		return h, fmt.Errorf("decode entity: %w", err)
	}
	h.ID = scalarString(ident.PrimaryKey)
	if h.ID == "" {
		h.ID = scalarString(ident.ID)
	}
	if h.Version == nil {
		h.Version = ident.Version
	}
	return h, nil
}

// scalarString renders a JSON string or number as text.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
