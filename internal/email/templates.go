package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

// LeadAssigned describes a lead routed to an agent.
type LeadAssigned struct {
	AgentName  string
	LeadName   string
	LeadEmail  string
	LeadPhone  string
	PropertyID string
	Location   string
}

type leadAssignedEmailData struct {
	baseEmailData
	LeadAssigned
}

// DeadLetterAlert describes a change event the index synchronizer gave up on.
type DeadLetterAlert struct {
	DeadLetterID string
	EntityType   string
	EntityID     string
	Operation    string
	Reason       string
	Error        string
	Attempts     int
}

type deadLetterEmailData struct {
	baseEmailData
	DeadLetterAlert
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
