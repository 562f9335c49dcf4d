package email

import (
	"strings"
	"testing"
)

func TestRenderLeadAssigned(t *testing.T) {
	out, err := renderEmailTemplate("lead_assigned.html", leadAssignedEmailData{
		baseEmailData: baseEmailData{Heading: "New lead assigned", CTALabel: "Open", CTAURL: "http://dir/agent/a1/lead/l1"},
		LeadAssigned:  LeadAssigned{AgentName: "Ann", LeadName: "Jane <Doe>", PropertyID: "p1"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Hi Ann", "p1", "Jane &lt;Doe&gt;", `href="http://dir/agent/a1/lead/l1"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Phone:") {
		t.Fatal("expected phone line to be omitted")
	}
}

func TestRenderDeadLetter(t *testing.T) {
	out, err := renderEmailTemplate("dead_letter.html", deadLetterEmailData{
		baseEmailData:   baseEmailData{Heading: "Change event dead-lettered"},
		DeadLetterAlert: DeadLetterAlert{DeadLetterID: "d1", EntityType: "property", EntityID: "p1", Reason: "malformed", Attempts: 1},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "/api/v1/dead-letters/d1/replay") || !strings.Contains(out, "property p1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
