package email

const (
	subjectLeadAssignedFmt = "New lead: %s"
	subjectDeadLetterFmt   = "Index sync dead letter: %s %s"
)
