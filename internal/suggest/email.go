package suggest

import (
	"strings"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
)

// urgentSubjectTerms bump an email to high priority when any appears in
// the subject, case-insensitive.
var urgentSubjectTerms = []string{
	"urgent",
	"asap",
	"action required",
	"deadline",
	"reminder",
	"follow up",
	"response needed",
}

// ScoreEmail turns an inbox message into a suggestion. Email scores are
// intentionally unclamped; starred urgent unread mail can exceed 100.
func ScoreEmail(email events.Email) events.Suggestion {
	score := 50
	priority := events.PriorityMedium

	if email.IsStarred {
		score = 90
		priority = events.PriorityHigh
	}
	if email.IsUnread {
		score += 20
	}

	subject := strings.ToLower(email.Subject)
	for _, term := range urgentSubjectTerms {
		if strings.Contains(subject, term) {
			score += 30
			priority = events.PriorityHigh
			break
		}
	}

	return events.Suggestion{
		ID:       events.SuggestionID(events.SourceEmail, email.ID),
		Title:    "Reply: " + events.TruncateText(email.Subject, 60),
		Source:   events.SourceEmail,
		SourceID: email.ID,
		Priority: priority,
		Context:  "From " + events.SenderName(email.From),
		Score:    score,
	}
}
