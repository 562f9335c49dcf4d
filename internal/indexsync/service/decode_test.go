package service

import (
	"errors"
	"testing"

	"searchahouse/internal/changefeed"
)

func TestDecodeProperty(t *testing.T) {
	payload := []byte(`{"operation":"update","version":3,"entity":{"primaryKey":"p1","name":"Loft","price":250000,
		"address":{"street":"1 Main St","city":"Springfield"},"location":{"lat":40.1,"lon":-73.9},"version":2}}`)

	c, err := Decode("property", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Kind != changefeed.EntityProperty || c.Op != changefeed.OpUpdate || c.ID != "p1" {
		t.Fatalf("unexpected change header: %+v", c)
	}
	if c.Version != 3 || c.Property == nil || c.Property.Version != 3 {
		t.Fatalf("expected envelope version to win, got %+v", c)
	}
	if c.Agent != nil || c.Lead != nil {
		t.Fatal("expected only the property variant to be set")
	}
}

func TestDecodeFallsBackToEntityVersionAndID(t *testing.T) {
	c, err := Decode("agent", []byte(`{"operation":"CREATE","entity":{"id":42,"firstName":"Ann","version":7}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "42" || c.Version != 7 || c.Agent == nil || c.Agent.ID != "42" {
		t.Fatalf("unexpected change: %+v", c)
	}
}

func TestDecodeDeleteNeedsOnlyID(t *testing.T) {
	c, err := Decode("lead", []byte(`{"operation":"DELETE","version":4,"entity":{"primaryKey":"l1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Op != changefeed.OpDelete || c.Lead != nil || c.Version != 4 {
		t.Fatalf("unexpected change: %+v", c)
	}
}

func TestDecodeRejectsMalformedEvents(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		payload    string
	}{
		{"unknown operation", "property", `{"operation":"PATCH","version":1,"entity":{"primaryKey":"p1"}}`},
		{"missing id", "property", `{"operation":"CREATE","version":1,"entity":{"name":"x"}}`},
		{"missing version", "property", `{"operation":"CREATE","entity":{"primaryKey":"p1"}}`},
		{"negative version", "agent", `{"operation":"UPDATE","version":-1,"entity":{"primaryKey":"a1"}}`},
		{"not json", "agent", `not json`},
		{"unknown entity type", "building", `{"operation":"CREATE","version":1,"entity":{"primaryKey":"b1"}}`},
		{"wrong field type", "property", `{"operation":"CREATE","version":1,"entity":{"primaryKey":"p1","price":"lots"}}`},
		{"location out of range", "property", `{"operation":"CREATE","version":1,"entity":{"primaryKey":"p1","location":{"lat":91,"lon":0}}}`},
		{"missing body", "lead", `{"operation":"CREATE","version":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.entityType, []byte(tt.payload))
			if !errors.Is(err, ErrMalformedEvent) {
				t.Fatalf("expected malformed event error, got %v", err)
			}
			var me *MalformedError
			if !errors.As(err, &me) || me.Reason == "" {
				t.Fatalf("expected a reason, got %v", err)
			}
		})
	}
}
